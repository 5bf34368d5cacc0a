package ledger

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/domus-erp/domus-erp/internal/shared"
)

type Repository interface {
	// UpsertAdvance writes the prescribed advance keyed by the unique
	// (unit, service, year, month) tuple, replacing any previous value.
	UpsertAdvance(ctx context.Context, in AdvanceMonthly) error
	// PrescribedTotals sums advances per (unit, service) over the year.
	PrescribedTotals(ctx context.Context, buildingID int64, year int) (map[int64]map[int64]decimal.Decimal, error)
	// PaidTotals sums payments per unit over the year.
	PaidTotals(ctx context.Context, buildingID int64, year int) (map[int64]decimal.Decimal, error)
	// UnitBuilding resolves the building a unit belongs to.
	UnitBuilding(ctx context.Context, unitID int64) (int64, error)
}

type repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{pool: pool}
}

func (r *repository) UpsertAdvance(ctx context.Context, in AdvanceMonthly) error {
	_, err := r.pool.Exec(ctx, `INSERT INTO advances_monthly (unit_id, service_id, year, month, amount)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (unit_id, service_id, year, month) DO UPDATE SET amount = EXCLUDED.amount`,
		in.UnitID, in.ServiceID, in.Year, in.Month, in.Amount)
	return err
}

func (r *repository) PrescribedTotals(ctx context.Context, buildingID int64, year int) (map[int64]map[int64]decimal.Decimal, error) {
	rows, err := r.pool.Query(ctx, `SELECT a.unit_id, a.service_id, SUM(a.amount)
FROM advances_monthly a
JOIN units u ON u.id = a.unit_id
WHERE u.building_id = $1 AND a.year = $2
GROUP BY a.unit_id, a.service_id`, buildingID, year)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	prescribed := make(map[int64]map[int64]decimal.Decimal)
	for rows.Next() {
		var unitID, serviceID int64
		var total decimal.Decimal
		if err := rows.Scan(&unitID, &serviceID, &total); err != nil {
			return nil, err
		}
		perService, ok := prescribed[unitID]
		if !ok {
			perService = make(map[int64]decimal.Decimal)
			prescribed[unitID] = perService
		}
		perService[serviceID] = total
	}
	return prescribed, rows.Err()
}

func (r *repository) PaidTotals(ctx context.Context, buildingID int64, year int) (map[int64]decimal.Decimal, error) {
	rows, err := r.pool.Query(ctx, `SELECT p.unit_id, SUM(p.amount)
FROM payments p
JOIN units u ON u.id = p.unit_id
WHERE u.building_id = $1 AND date_part('year', p.paid_at) = $2
GROUP BY p.unit_id`, buildingID, year)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	paid := make(map[int64]decimal.Decimal)
	for rows.Next() {
		var unitID int64
		var total decimal.Decimal
		if err := rows.Scan(&unitID, &total); err != nil {
			return nil, err
		}
		paid[unitID] = total
	}
	return paid, rows.Err()
}

func (r *repository) UnitBuilding(ctx context.Context, unitID int64) (int64, error) {
	var buildingID int64
	err := r.pool.QueryRow(ctx, `SELECT building_id FROM units WHERE id = $1`, unitID).Scan(&buildingID)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, shared.ErrNotFound
	}
	return buildingID, err
}
