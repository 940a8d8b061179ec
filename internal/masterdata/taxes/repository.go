package taxes

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/classbridge-erp/classbridge-erp/internal/platform/httpx"
)

// Repository persists tax codes.
type Repository interface {
	Create(ctx context.Context, t Tax) (Tax, error)
	Get(ctx context.Context, schoolID, id int64) (Tax, error)
	List(ctx context.Context, schoolID int64) ([]Tax, error)
	Update(ctx context.Context, t Tax) error
	Delete(ctx context.Context, schoolID, id int64) error
}

type repository struct {
	pool *pgxpool.Pool
}

// NewRepository builds the pgx-backed repository.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{pool: pool}
}

func (r *repository) Create(ctx context.Context, t Tax) (Tax, error) {
	err := r.pool.QueryRow(ctx, `INSERT INTO taxes (school_id, code, name, rate) VALUES ($1,$2,$3,$4) RETURNING id`,
		t.SchoolID, t.Code, t.Name, t.Rate).Scan(&t.ID)
	return t, err
}

func (r *repository) Get(ctx context.Context, schoolID, id int64) (Tax, error) {
	var t Tax
	err := r.pool.QueryRow(ctx, `SELECT id, school_id, code, name, rate FROM taxes WHERE school_id=$1 AND id=$2`, schoolID, id).
		Scan(&t.ID, &t.SchoolID, &t.Code, &t.Name, &t.Rate)
	if errors.Is(err, pgx.ErrNoRows) {
		return Tax{}, fmt.Errorf("taxes: tax %d: %w", id, httpx.ErrNotFound)
	}
	return t, err
}

func (r *repository) List(ctx context.Context, schoolID int64) ([]Tax, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, school_id, code, name, rate FROM taxes WHERE school_id=$1 ORDER BY code ASC`, schoolID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Tax
	for rows.Next() {
		var t Tax
		if err := rows.Scan(&t.ID, &t.SchoolID, &t.Code, &t.Name, &t.Rate); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (r *repository) Update(ctx context.Context, t Tax) error {
	cmd, err := r.pool.Exec(ctx, `UPDATE taxes SET code=$3, name=$4, rate=$5, updated_at=NOW() WHERE school_id=$1 AND id=$2`,
		t.SchoolID, t.ID, t.Code, t.Name, t.Rate)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return fmt.Errorf("taxes: tax %d: %w", t.ID, httpx.ErrNotFound)
	}
	return nil
}

func (r *repository) Delete(ctx context.Context, schoolID, id int64) error {
	cmd, err := r.pool.Exec(ctx, `DELETE FROM taxes WHERE school_id=$1 AND id=$2`, schoolID, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return fmt.Errorf("taxes: tax %d: %w", id, httpx.ErrNotFound)
	}
	return nil
}
