package parties

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/classbridge-erp/classbridge-erp/internal/platform/httpx"
)

// Repository persists parties.
type Repository interface {
	Create(ctx context.Context, p Party) (Party, error)
	Get(ctx context.Context, schoolID, id int64) (Party, error)
	List(ctx context.Context, schoolID int64, kind PartyKind) ([]Party, error)
	Update(ctx context.Context, p Party) error
}

type repository struct {
	pool *pgxpool.Pool
}

// NewRepository builds the pgx-backed repository.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{pool: pool}
}

const partyColumns = `id, school_id, kind, code, name, email, phone, created_at, updated_at`

func scanParty(row pgx.Row) (Party, error) {
	var p Party
	err := row.Scan(&p.ID, &p.SchoolID, &p.Kind, &p.Code, &p.Name, &p.Email, &p.Phone, &p.CreatedAt, &p.UpdatedAt)
	return p, err
}

func (r *repository) Create(ctx context.Context, p Party) (Party, error) {
	row := r.pool.QueryRow(ctx, `INSERT INTO parties (school_id, kind, code, name, email, phone)
VALUES ($1,$2,$3,$4,$5,$6) RETURNING `+partyColumns, p.SchoolID, p.Kind, p.Code, p.Name, p.Email, p.Phone)
	created, err := scanParty(row)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return Party{}, fmt.Errorf("parties: code %s already exists: %w", p.Code, httpx.ErrConflict)
		}
		return Party{}, err
	}
	return created, nil
}

func (r *repository) Get(ctx context.Context, schoolID, id int64) (Party, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+partyColumns+` FROM parties WHERE school_id=$1 AND id=$2`, schoolID, id)
	p, err := scanParty(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Party{}, fmt.Errorf("parties: party %d: %w", id, httpx.ErrNotFound)
	}
	return p, err
}

func (r *repository) List(ctx context.Context, schoolID int64, kind PartyKind) ([]Party, error) {
	query := `SELECT ` + partyColumns + ` FROM parties WHERE school_id=$1`
	args := []any{schoolID}
	if kind != "" {
		query += ` AND kind=$2`
		args = append(args, kind)
	}
	query += ` ORDER BY code ASC`
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Party
	for rows.Next() {
		p, err := scanParty(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (r *repository) Update(ctx context.Context, p Party) error {
	cmd, err := r.pool.Exec(ctx, `UPDATE parties SET name=$3, email=$4, phone=$5, updated_at=NOW()
WHERE school_id=$1 AND id=$2`, p.SchoolID, p.ID, p.Name, p.Email, p.Phone)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return fmt.Errorf("parties: party %d: %w", p.ID, httpx.ErrNotFound)
	}
	return nil
}
