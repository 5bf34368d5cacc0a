package units

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/domus-erp/domus-erp/internal/shared"
)

type Repository interface {
	Get(ctx context.Context, id int64) (Unit, error)
	ListByBuilding(ctx context.Context, buildingID int64) ([]Unit, error)
	// PersonMonthTotals sums person counts per unit over the twelve
	// months of the given year.
	PersonMonthTotals(ctx context.Context, buildingID int64, year int) (map[int64]int, error)
}

type repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{pool: pool}
}

const unitColumns = `id, building_id, name, share_numerator, share_denominator, total_area, floor_area, residents, variable_symbol, attributes, created_at, updated_at`

func scanUnit(row pgx.Row) (Unit, error) {
	var u Unit
	var attrs []byte
	err := row.Scan(&u.ID, &u.BuildingID, &u.Name, &u.ShareNumerator, &u.ShareDenominator, &u.TotalArea, &u.FloorArea, &u.Residents, &u.VariableSymbol, &attrs, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return Unit{}, err
	}
	if len(attrs) > 0 {
		if err := json.Unmarshal(attrs, &u.Attributes); err != nil {
			return Unit{}, err
		}
	}
	return u, nil
}

func (r *repository) Get(ctx context.Context, id int64) (Unit, error) {
	u, err := scanUnit(r.pool.QueryRow(ctx, `SELECT `+unitColumns+` FROM units WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Unit{}, shared.ErrNotFound
	}
	return u, err
}

func (r *repository) ListByBuilding(ctx context.Context, buildingID int64) ([]Unit, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+unitColumns+` FROM units WHERE building_id = $1 ORDER BY id`, buildingID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Unit
	for rows.Next() {
		u, err := scanUnit(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

func (r *repository) PersonMonthTotals(ctx context.Context, buildingID int64, year int) (map[int64]int, error) {
	rows, err := r.pool.Query(ctx, `SELECT pm.unit_id, SUM(pm.person_count)
FROM person_months pm
JOIN units u ON u.id = pm.unit_id
WHERE u.building_id = $1 AND pm.year = $2
GROUP BY pm.unit_id`, buildingID, year)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	totals := make(map[int64]int)
	for rows.Next() {
		var unitID int64
		var total int
		if err := rows.Scan(&unitID, &total); err != nil {
			return nil, err
		}
		totals[unitID] = total
	}
	return totals, rows.Err()
}
