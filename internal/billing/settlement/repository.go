package settlement

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/domus-erp/domus-erp/internal/billing/measurement"
	"github.com/domus-erp/domus-erp/internal/platform/db"
	"github.com/domus-erp/domus-erp/internal/shared"
)

// Repository encapsulates DB operations for billing periods and their
// settlement rows. Result replacement happens inside WithTx so a
// recalculation is all-or-nothing.
type Repository interface {
	GetPeriod(ctx context.Context, id int64) (BillingPeriod, error)
	GetPeriodByKey(ctx context.Context, buildingID int64, year int) (BillingPeriod, error)
	CreatePeriod(ctx context.Context, buildingID int64, year int) (BillingPeriod, error)
	// DeletePeriod removes a period and cascades its results.
	DeletePeriod(ctx context.Context, id int64) error
	UpdatePeriodStatus(ctx context.Context, id int64, status PeriodStatus) error
	ListResults(ctx context.Context, periodID int64) ([]BillingResult, error)
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
}

// TxRepository exposes methods available within a transaction.
type TxRepository interface {
	GetPeriodForUpdate(ctx context.Context, id int64) (BillingPeriod, error)
	DeleteResults(ctx context.Context, periodID int64) error
	InsertResult(ctx context.Context, result BillingResult) (int64, error)
	InsertServiceCosts(ctx context.Context, resultID int64, lines []BillingServiceCost) error
	SetPeriodCalculated(ctx context.Context, periodID int64, at time.Time, warnings []measurement.Warning) error
}

type repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{pool: pool}
}

const periodColumns = `id, building_id, year, status, calculated_at, warnings, created_at, updated_at`

func scanPeriod(row pgx.Row) (BillingPeriod, error) {
	var p BillingPeriod
	var warnings []byte
	err := row.Scan(&p.ID, &p.BuildingID, &p.Year, &p.Status, &p.CalculatedAt, &warnings, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return BillingPeriod{}, shared.ErrNotFound
	}
	if err != nil {
		return BillingPeriod{}, err
	}
	if len(warnings) > 0 {
		if err := json.Unmarshal(warnings, &p.Warnings); err != nil {
			return BillingPeriod{}, err
		}
	}
	return p, nil
}

func (r *repository) GetPeriod(ctx context.Context, id int64) (BillingPeriod, error) {
	return scanPeriod(r.pool.QueryRow(ctx, `SELECT `+periodColumns+` FROM billing_periods WHERE id = $1`, id))
}

func (r *repository) GetPeriodByKey(ctx context.Context, buildingID int64, year int) (BillingPeriod, error) {
	return scanPeriod(r.pool.QueryRow(ctx, `SELECT `+periodColumns+` FROM billing_periods WHERE building_id = $1 AND year = $2`, buildingID, year))
}

func (r *repository) CreatePeriod(ctx context.Context, buildingID int64, year int) (BillingPeriod, error) {
	return scanPeriod(r.pool.QueryRow(ctx, `INSERT INTO billing_periods (building_id, year, status)
VALUES ($1, $2, 'DRAFT') RETURNING `+periodColumns, buildingID, year))
}

func (r *repository) DeletePeriod(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM billing_periods WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

func (r *repository) UpdatePeriodStatus(ctx context.Context, id int64, status PeriodStatus) error {
	tag, err := r.pool.Exec(ctx, `UPDATE billing_periods SET status = $2, updated_at = NOW() WHERE id = $1`, id, status)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

func (r *repository) ListResults(ctx context.Context, periodID int64) ([]BillingResult, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, period_id, unit_id, total_cost, total_advance_prescribed, total_advance_paid, repair_fund, result
FROM billing_results WHERE period_id = $1 ORDER BY unit_id`, periodID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var results []BillingResult
	byID := make(map[int64]int)
	for rows.Next() {
		var res BillingResult
		if err := rows.Scan(&res.ID, &res.PeriodID, &res.UnitID, &res.TotalCost, &res.TotalAdvancePrescribed, &res.TotalAdvancePaid, &res.RepairFund, &res.Result); err != nil {
			return nil, err
		}
		byID[res.ID] = len(results)
		results = append(results, res)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	lineRows, err := r.pool.Query(ctx, `SELECT sc.id, sc.result_id, sc.service_id, s.name, sc.building_cost, sc.quantity, sc.price_per_unit, sc.unit_cost, sc.advance, sc.balance, sc.formula
FROM billing_service_costs sc
JOIN billing_results br ON br.id = sc.result_id
JOIN services s ON s.id = sc.service_id
WHERE br.period_id = $1 ORDER BY sc.result_id, sc.service_id`, periodID)
	if err != nil {
		return nil, err
	}
	defer lineRows.Close()
	for lineRows.Next() {
		var line BillingServiceCost
		if err := lineRows.Scan(&line.ID, &line.ResultID, &line.ServiceID, &line.ServiceName, &line.BuildingCost, &line.Quantity, &line.PricePerUnit, &line.UnitCost, &line.Advance, &line.Balance, &line.Formula); err != nil {
			return nil, err
		}
		if idx, ok := byID[line.ResultID]; ok {
			results[idx].ServiceCosts = append(results[idx].ServiceCosts, line)
		}
	}
	return results, lineRows.Err()
}

func (r *repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepository{tx: tx})
	})
}

type txRepository struct {
	tx pgx.Tx
}

func (r *txRepository) GetPeriodForUpdate(ctx context.Context, id int64) (BillingPeriod, error) {
	return scanPeriod(r.tx.QueryRow(ctx, `SELECT `+periodColumns+` FROM billing_periods WHERE id = $1 FOR UPDATE`, id))
}

func (r *txRepository) DeleteResults(ctx context.Context, periodID int64) error {
	if _, err := r.tx.Exec(ctx, `DELETE FROM billing_service_costs sc USING billing_results br
WHERE sc.result_id = br.id AND br.period_id = $1`, periodID); err != nil {
		return err
	}
	_, err := r.tx.Exec(ctx, `DELETE FROM billing_results WHERE period_id = $1`, periodID)
	return err
}

func (r *txRepository) InsertResult(ctx context.Context, result BillingResult) (int64, error) {
	var id int64
	err := r.tx.QueryRow(ctx, `INSERT INTO billing_results (period_id, unit_id, total_cost, total_advance_prescribed, total_advance_paid, repair_fund, result)
VALUES ($1, $2, $3, $4, $5, $6, $7) RETURNING id`,
		result.PeriodID, result.UnitID, result.TotalCost, result.TotalAdvancePrescribed, result.TotalAdvancePaid, result.RepairFund, result.Result).Scan(&id)
	return id, err
}

func (r *txRepository) InsertServiceCosts(ctx context.Context, resultID int64, lines []BillingServiceCost) error {
	for _, line := range lines {
		if _, err := r.tx.Exec(ctx, `INSERT INTO billing_service_costs (result_id, service_id, building_cost, quantity, price_per_unit, unit_cost, advance, balance, formula)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
			resultID, line.ServiceID, line.BuildingCost, line.Quantity, line.PricePerUnit, line.UnitCost, line.Advance, line.Balance, line.Formula); err != nil {
			return err
		}
	}
	return nil
}

func (r *txRepository) SetPeriodCalculated(ctx context.Context, periodID int64, at time.Time, warnings []measurement.Warning) error {
	warningsJSON, err := json.Marshal(warnings)
	if err != nil {
		return err
	}
	_, err = r.tx.Exec(ctx, `UPDATE billing_periods SET status = 'CALCULATED', calculated_at = $2, warnings = $3, updated_at = NOW() WHERE id = $1`,
		periodID, at, warningsJSON)
	return err
}
