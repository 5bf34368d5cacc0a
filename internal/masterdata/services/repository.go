package services

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/domus-erp/domus-erp/internal/billing/methodology"
	"github.com/domus-erp/domus-erp/internal/shared"
)

type Repository interface {
	Get(ctx context.Context, id int64) (Service, error)
	ListByBuilding(ctx context.Context, buildingID int64) ([]Service, error)
	// CostTotals sums cost rows per service for the given year.
	CostTotals(ctx context.Context, buildingID int64, year int) (map[int64]decimal.Decimal, error)
}

type repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{pool: pool}
}

const serviceColumns = `id, building_id, name, methodology, methodology_raw, data_source, attribute_name, formula,
unit_price, fixed_amount, divisor, manual_overrides,
use_dual_cost, cost_with_meter, cost_without_meter, shares_are_percent, guidance_number,
passthrough, visible, created_at, updated_at`

func scanService(row pgx.Row) (Service, error) {
	var s Service
	var overrides []byte
	err := row.Scan(&s.ID, &s.BuildingID, &s.Name, &s.Methodology, &s.MethodologyRaw, &s.DataSource, &s.AttributeName, &s.Formula,
		&s.UnitPrice, &s.FixedAmount, &s.Divisor, &overrides,
		&s.UseDualCost, &s.CostWithMeter, &s.CostWithoutMeter, &s.SharesArePercent, &s.GuidanceNumber,
		&s.Passthrough, &s.Visible, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		return Service{}, err
	}
	if len(overrides) > 0 {
		if err := json.Unmarshal(overrides, &s.ManualOverrides); err != nil {
			return Service{}, err
		}
	}
	// Imported legacy rows carry free-form Czech methodology strings.
	if !s.Methodology.Valid() {
		normalized := methodology.Normalize(string(s.Methodology))
		s.MethodologyRaw = normalized.Raw
		s.Methodology = normalized.Methodology
		if s.DataSource == "" {
			s.DataSource = normalized.Source
		}
	}
	return s, nil
}

func (r *repository) Get(ctx context.Context, id int64) (Service, error) {
	s, err := scanService(r.pool.QueryRow(ctx, `SELECT `+serviceColumns+` FROM services WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Service{}, shared.ErrNotFound
	}
	return s, err
}

func (r *repository) ListByBuilding(ctx context.Context, buildingID int64) ([]Service, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+serviceColumns+` FROM services WHERE building_id = $1 ORDER BY id`, buildingID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Service
	for rows.Next() {
		s, err := scanService(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func (r *repository) CostTotals(ctx context.Context, buildingID int64, year int) (map[int64]decimal.Decimal, error) {
	rows, err := r.pool.Query(ctx, `SELECT c.service_id, SUM(c.amount)
FROM costs c
JOIN services s ON s.id = c.service_id
WHERE s.building_id = $1 AND c.year = $2
GROUP BY c.service_id`, buildingID, year)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	totals := make(map[int64]decimal.Decimal)
	for rows.Next() {
		var serviceID int64
		var total decimal.Decimal
		if err := rows.Scan(&serviceID, &total); err != nil {
			return nil, err
		}
		totals[serviceID] = total
	}
	return totals, rows.Err()
}
