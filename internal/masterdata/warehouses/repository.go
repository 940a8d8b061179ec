package warehouses

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/classbridge-erp/classbridge-erp/internal/platform/httpx"
)

// Repository persists warehouses.
type Repository interface {
	Create(ctx context.Context, wh Warehouse) (Warehouse, error)
	Get(ctx context.Context, schoolID, id int64) (Warehouse, error)
	List(ctx context.Context, schoolID int64) ([]Warehouse, error)
}

type repository struct {
	pool *pgxpool.Pool
}

// NewRepository builds the pgx-backed repository.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{pool: pool}
}

func (r *repository) Create(ctx context.Context, wh Warehouse) (Warehouse, error) {
	err := r.pool.QueryRow(ctx, `INSERT INTO warehouses (school_id, code, name) VALUES ($1,$2,$3) RETURNING id`,
		wh.SchoolID, wh.Code, wh.Name).Scan(&wh.ID)
	return wh, err
}

func (r *repository) Get(ctx context.Context, schoolID, id int64) (Warehouse, error) {
	var wh Warehouse
	err := r.pool.QueryRow(ctx, `SELECT id, school_id, code, name FROM warehouses WHERE school_id=$1 AND id=$2`, schoolID, id).
		Scan(&wh.ID, &wh.SchoolID, &wh.Code, &wh.Name)
	if errors.Is(err, pgx.ErrNoRows) {
		return Warehouse{}, fmt.Errorf("warehouses: warehouse %d: %w", id, httpx.ErrNotFound)
	}
	return wh, err
}

func (r *repository) List(ctx context.Context, schoolID int64) ([]Warehouse, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, school_id, code, name FROM warehouses WHERE school_id=$1 ORDER BY code ASC`, schoolID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Warehouse
	for rows.Next() {
		var wh Warehouse
		if err := rows.Scan(&wh.ID, &wh.SchoolID, &wh.Code, &wh.Name); err != nil {
			return nil, err
		}
		out = append(out, wh)
	}
	return out, rows.Err()
}
