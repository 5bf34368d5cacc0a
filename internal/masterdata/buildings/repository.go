package buildings

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/domus-erp/domus-erp/internal/shared"
)

type Repository interface {
	Get(ctx context.Context, id int64) (Building, error)
	List(ctx context.Context) ([]Building, error)
}

type repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{pool: pool}
}

func (r *repository) Get(ctx context.Context, id int64) (Building, error) {
	row := r.pool.QueryRow(ctx, `SELECT id, name, street, city, postal_code, total_area, total_people, created_at, updated_at FROM buildings WHERE id = $1`, id)
	var b Building
	err := row.Scan(&b.ID, &b.Name, &b.Street, &b.City, &b.PostalCode, &b.TotalArea, &b.TotalPeople, &b.CreatedAt, &b.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Building{}, shared.ErrNotFound
	}
	if err != nil {
		return Building{}, err
	}
	return b, nil
}

func (r *repository) List(ctx context.Context) ([]Building, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, name, street, city, postal_code, total_area, total_people, created_at, updated_at FROM buildings ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Building
	for rows.Next() {
		var b Building
		if err := rows.Scan(&b.ID, &b.Name, &b.Street, &b.City, &b.PostalCode, &b.TotalArea, &b.TotalPeople, &b.CreatedAt, &b.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}
