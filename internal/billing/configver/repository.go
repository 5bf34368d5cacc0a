package configver

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/domus-erp/domus-erp/internal/platform/db"
	"github.com/domus-erp/domus-erp/internal/shared"
)

type Repository interface {
	Get(ctx context.Context, id uuid.UUID) (ConfigVersion, error)
	// List pages versions of a building, newest first.
	List(ctx context.Context, buildingID int64, page, perPage int) ([]ConfigVersion, shared.Pagination, error)
	Insert(ctx context.Context, v ConfigVersion) error
	Delete(ctx context.Context, id uuid.UUID) error
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
}

// TxRepository covers the operations that must land together: flipping
// the default flag and writing a snapshot back onto the services.
type TxRepository interface {
	ClearDefault(ctx context.Context, buildingID int64) error
	SetDefault(ctx context.Context, id uuid.UUID) error
	ApplySnapshot(ctx context.Context, snap ServiceSnapshot) error
}

type repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{pool: pool}
}

const versionColumns = `id, building_id, name, note, is_default, snapshot, created_at`

func scanVersion(row pgx.Row) (ConfigVersion, error) {
	var v ConfigVersion
	var snapshot []byte
	err := row.Scan(&v.ID, &v.BuildingID, &v.Name, &v.Note, &v.IsDefault, &snapshot, &v.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return ConfigVersion{}, shared.ErrNotFound
	}
	if err != nil {
		return ConfigVersion{}, err
	}
	if len(snapshot) > 0 {
		if err := json.Unmarshal(snapshot, &v.Snapshot); err != nil {
			return ConfigVersion{}, err
		}
	}
	return v, nil
}

func (r *repository) Get(ctx context.Context, id uuid.UUID) (ConfigVersion, error) {
	return scanVersion(r.pool.QueryRow(ctx, `SELECT `+versionColumns+` FROM config_versions WHERE id = $1`, id))
}

func (r *repository) List(ctx context.Context, buildingID int64, page, perPage int) ([]ConfigVersion, shared.Pagination, error) {
	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM config_versions WHERE building_id = $1`, buildingID).Scan(&total); err != nil {
		return nil, shared.Pagination{}, err
	}
	pagination := shared.NewPagination(page, perPage, total)
	offset := (pagination.Page - 1) * pagination.PerPage

	rows, err := r.pool.Query(ctx, `SELECT `+versionColumns+` FROM config_versions
WHERE building_id = $1 ORDER BY created_at DESC LIMIT $2 OFFSET $3`, buildingID, pagination.PerPage, offset)
	if err != nil {
		return nil, shared.Pagination{}, err
	}
	defer rows.Close()
	var out []ConfigVersion
	for rows.Next() {
		v, err := scanVersion(rows)
		if err != nil {
			return nil, shared.Pagination{}, err
		}
		out = append(out, v)
	}
	return out, pagination, rows.Err()
}

func (r *repository) Insert(ctx context.Context, v ConfigVersion) error {
	snapshot, err := json.Marshal(v.Snapshot)
	if err != nil {
		return err
	}
	_, err = r.pool.Exec(ctx, `INSERT INTO config_versions (id, building_id, name, note, is_default, snapshot, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7)`, v.ID, v.BuildingID, v.Name, v.Note, v.IsDefault, snapshot, v.CreatedAt)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return shared.ErrAlreadyExists
	}
	return err
}

func (r *repository) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM config_versions WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

func (r *repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepository{tx: tx})
	})
}

type txRepository struct {
	tx pgx.Tx
}

func (r *txRepository) ClearDefault(ctx context.Context, buildingID int64) error {
	_, err := r.tx.Exec(ctx, `UPDATE config_versions SET is_default = FALSE WHERE building_id = $1 AND is_default`, buildingID)
	return err
}

func (r *txRepository) SetDefault(ctx context.Context, id uuid.UUID) error {
	tag, err := r.tx.Exec(ctx, `UPDATE config_versions SET is_default = TRUE WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

func (r *txRepository) ApplySnapshot(ctx context.Context, snap ServiceSnapshot) error {
	overrides, err := json.Marshal(snap.ManualOverrides)
	if err != nil {
		return err
	}
	tag, err := r.tx.Exec(ctx, `UPDATE services SET
methodology = $2, methodology_raw = $3, data_source = $4, attribute_name = $5, formula = $6,
unit_price = $7, fixed_amount = $8, divisor = $9, manual_overrides = $10,
use_dual_cost = $11, cost_with_meter = $12, cost_without_meter = $13, shares_are_percent = $14, guidance_number = $15,
passthrough = $16, visible = $17, updated_at = NOW()
WHERE id = $1`,
		snap.ServiceID,
		snap.Methodology, snap.MethodologyRaw, snap.DataSource, snap.AttributeName, snap.Formula,
		snap.UnitPrice, snap.FixedAmount, snap.Divisor, overrides,
		snap.UseDualCost, snap.CostWithMeter, snap.CostWithoutMeter, snap.SharesArePercent, snap.GuidanceNumber,
		snap.Passthrough, snap.Visible)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}
