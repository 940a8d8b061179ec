package accounts

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/classbridge-erp/classbridge-erp/internal/platform/httpx"
)

// Repository persists chart-of-accounts rows.
type Repository interface {
	Create(ctx context.Context, acc Account) (Account, error)
	Update(ctx context.Context, acc Account) error
	Get(ctx context.Context, schoolID, id int64) (Account, error)
	GetByCode(ctx context.Context, schoolID int64, code string) (Account, error)
	List(ctx context.Context, schoolID int64) ([]Account, error)
	IsReferenced(ctx context.Context, schoolID, id int64) (bool, error)
	SetActive(ctx context.Context, schoolID, id int64, active bool) error
}

type repository struct {
	pool *pgxpool.Pool
}

// NewRepository builds the pgx-backed repository.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{pool: pool}
}

const accountColumns = `id, school_id, code, name, type, parent_id, is_active, created_at, updated_at`

func scanAccount(row pgx.Row) (Account, error) {
	var a Account
	err := row.Scan(&a.ID, &a.SchoolID, &a.Code, &a.Name, &a.Type, &a.ParentID, &a.IsActive, &a.CreatedAt, &a.UpdatedAt)
	return a, err
}

func (r *repository) Create(ctx context.Context, acc Account) (Account, error) {
	row := r.pool.QueryRow(ctx, `INSERT INTO accounts (school_id, code, name, type, parent_id, is_active)
VALUES ($1,$2,$3,$4,$5,$6) RETURNING `+accountColumns,
		acc.SchoolID, acc.Code, acc.Name, acc.Type, acc.ParentID, acc.IsActive)
	created, err := scanAccount(row)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return Account{}, fmt.Errorf("accounts: code %s already exists: %w", acc.Code, httpx.ErrConflict)
		}
		return Account{}, err
	}
	return created, nil
}

func (r *repository) Update(ctx context.Context, acc Account) error {
	cmd, err := r.pool.Exec(ctx, `UPDATE accounts SET code=$3, name=$4, type=$5, parent_id=$6, updated_at=NOW()
WHERE school_id=$1 AND id=$2`, acc.SchoolID, acc.ID, acc.Code, acc.Name, acc.Type, acc.ParentID)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return fmt.Errorf("accounts: account %d: %w", acc.ID, httpx.ErrNotFound)
	}
	return nil
}

func (r *repository) Get(ctx context.Context, schoolID, id int64) (Account, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+accountColumns+` FROM accounts WHERE school_id=$1 AND id=$2`, schoolID, id)
	acc, err := scanAccount(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Account{}, fmt.Errorf("accounts: account %d: %w", id, httpx.ErrNotFound)
	}
	return acc, err
}

func (r *repository) GetByCode(ctx context.Context, schoolID int64, code string) (Account, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+accountColumns+` FROM accounts WHERE school_id=$1 AND code=$2`, schoolID, code)
	acc, err := scanAccount(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Account{}, fmt.Errorf("accounts: account %s: %w", code, httpx.ErrNotFound)
	}
	return acc, err
}

func (r *repository) List(ctx context.Context, schoolID int64) ([]Account, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+accountColumns+` FROM accounts WHERE school_id=$1 ORDER BY code ASC`, schoolID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Account
	for rows.Next() {
		acc, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, acc)
	}
	return out, rows.Err()
}

// IsReferenced reports whether any posted journal line uses the account.
func (r *repository) IsReferenced(ctx context.Context, schoolID, id int64) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, `SELECT EXISTS (
SELECT 1 FROM journal_lines jl
JOIN journal_entries je ON je.id = jl.journal_entry_id
WHERE je.school_id=$1 AND jl.account_id=$2 AND je.status <> 'DRAFT')`, schoolID, id).Scan(&exists)
	return exists, err
}

func (r *repository) SetActive(ctx context.Context, schoolID, id int64, active bool) error {
	cmd, err := r.pool.Exec(ctx, `UPDATE accounts SET is_active=$3, updated_at=NOW() WHERE school_id=$1 AND id=$2`, schoolID, id, active)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return fmt.Errorf("accounts: account %d: %w", id, httpx.ErrNotFound)
	}
	return nil
}
