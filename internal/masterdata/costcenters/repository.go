package costcenters

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/classbridge-erp/classbridge-erp/internal/platform/httpx"
)

// Repository persists cost centers.
type Repository interface {
	Create(ctx context.Context, cc CostCenter) (CostCenter, error)
	Get(ctx context.Context, schoolID, id int64) (CostCenter, error)
	List(ctx context.Context, schoolID int64) ([]CostCenter, error)
}

type repository struct {
	pool *pgxpool.Pool
}

// NewRepository builds the pgx-backed repository.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{pool: pool}
}

func (r *repository) Create(ctx context.Context, cc CostCenter) (CostCenter, error) {
	err := r.pool.QueryRow(ctx, `INSERT INTO cost_centers (school_id, code, name) VALUES ($1,$2,$3) RETURNING id`,
		cc.SchoolID, cc.Code, cc.Name).Scan(&cc.ID)
	return cc, err
}

func (r *repository) Get(ctx context.Context, schoolID, id int64) (CostCenter, error) {
	var cc CostCenter
	err := r.pool.QueryRow(ctx, `SELECT id, school_id, code, name FROM cost_centers WHERE school_id=$1 AND id=$2`, schoolID, id).
		Scan(&cc.ID, &cc.SchoolID, &cc.Code, &cc.Name)
	if errors.Is(err, pgx.ErrNoRows) {
		return CostCenter{}, fmt.Errorf("costcenters: cost center %d: %w", id, httpx.ErrNotFound)
	}
	return cc, err
}

func (r *repository) List(ctx context.Context, schoolID int64) ([]CostCenter, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, school_id, code, name FROM cost_centers WHERE school_id=$1 ORDER BY code ASC`, schoolID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []CostCenter
	for rows.Next() {
		var cc CostCenter
		if err := rows.Scan(&cc.ID, &cc.SchoolID, &cc.Code, &cc.Name); err != nil {
			return nil, err
		}
		out = append(out, cc)
	}
	return out, rows.Err()
}
