package items

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/classbridge-erp/classbridge-erp/internal/platform/httpx"
)

// Repository persists items.
type Repository interface {
	Create(ctx context.Context, it Item) (Item, error)
	Get(ctx context.Context, schoolID, id int64) (Item, error)
	List(ctx context.Context, schoolID int64) ([]Item, error)
}

type repository struct {
	pool *pgxpool.Pool
}

// NewRepository builds the pgx-backed repository.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{pool: pool}
}

func (r *repository) Create(ctx context.Context, it Item) (Item, error) {
	err := r.pool.QueryRow(ctx, `INSERT INTO items (school_id, code, name, uom) VALUES ($1,$2,$3,$4) RETURNING id`,
		it.SchoolID, it.Code, it.Name, it.UoM).Scan(&it.ID)
	return it, err
}

func (r *repository) Get(ctx context.Context, schoolID, id int64) (Item, error) {
	var it Item
	err := r.pool.QueryRow(ctx, `SELECT id, school_id, code, name, uom FROM items WHERE school_id=$1 AND id=$2`, schoolID, id).
		Scan(&it.ID, &it.SchoolID, &it.Code, &it.Name, &it.UoM)
	if errors.Is(err, pgx.ErrNoRows) {
		return Item{}, fmt.Errorf("items: item %d: %w", id, httpx.ErrNotFound)
	}
	return it, err
}

func (r *repository) List(ctx context.Context, schoolID int64) ([]Item, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, school_id, code, name, uom FROM items WHERE school_id=$1 ORDER BY code ASC`, schoolID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Item
	for rows.Next() {
		var it Item
		if err := rows.Scan(&it.ID, &it.SchoolID, &it.Code, &it.Name, &it.UoM); err != nil {
			return nil, err
		}
		out = append(out, it)
	}
	return out, rows.Err()
}
