package periods

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/classbridge-erp/classbridge-erp/internal/platform/httpx"
)

// Repository persists fiscal periods.
type Repository interface {
	Create(ctx context.Context, p Period) (Period, error)
	Get(ctx context.Context, schoolID, id int64) (Period, error)
	GetByDate(ctx context.Context, schoolID int64, date time.Time) (Period, error)
	List(ctx context.Context, schoolID int64) ([]Period, error)
	SetStatus(ctx context.Context, schoolID, id int64, status PeriodStatus, actorID int64) error
	CountDraftJournals(ctx context.Context, schoolID, periodID int64) (int, error)
}

type repository struct {
	pool *pgxpool.Pool
}

// NewRepository builds the pgx-backed repository.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{pool: pool}
}

const periodColumns = `id, school_id, code, start_date, end_date, status, closed_at, closed_by, created_at, updated_at`

func scanPeriod(row pgx.Row) (Period, error) {
	var p Period
	err := row.Scan(&p.ID, &p.SchoolID, &p.Code, &p.StartDate, &p.EndDate, &p.Status, &p.ClosedAt, &p.ClosedBy, &p.CreatedAt, &p.UpdatedAt)
	return p, err
}

func (r *repository) Create(ctx context.Context, p Period) (Period, error) {
	row := r.pool.QueryRow(ctx, `INSERT INTO periods (school_id, code, start_date, end_date, status)
VALUES ($1,$2,$3,$4,$5) RETURNING `+periodColumns, p.SchoolID, p.Code, p.StartDate, p.EndDate, p.Status)
	created, err := scanPeriod(row)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return Period{}, fmt.Errorf("periods: period %s already exists: %w", p.Code, httpx.ErrConflict)
		}
		return Period{}, err
	}
	return created, nil
}

func (r *repository) Get(ctx context.Context, schoolID, id int64) (Period, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+periodColumns+` FROM periods WHERE school_id=$1 AND id=$2`, schoolID, id)
	p, err := scanPeriod(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Period{}, fmt.Errorf("periods: period %d: %w", id, httpx.ErrNotFound)
	}
	return p, err
}

func (r *repository) GetByDate(ctx context.Context, schoolID int64, date time.Time) (Period, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+periodColumns+` FROM periods
WHERE school_id=$1 AND start_date <= $2 AND end_date >= $2 ORDER BY start_date ASC LIMIT 1`, schoolID, date)
	p, err := scanPeriod(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Period{}, fmt.Errorf("periods: no period covers %s: %w", date.Format("2006-01-02"), httpx.ErrNotFound)
	}
	return p, err
}

func (r *repository) List(ctx context.Context, schoolID int64) ([]Period, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+periodColumns+` FROM periods WHERE school_id=$1 ORDER BY start_date ASC`, schoolID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Period
	for rows.Next() {
		p, err := scanPeriod(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (r *repository) SetStatus(ctx context.Context, schoolID, id int64, status PeriodStatus, actorID int64) error {
	var cmd pgconn.CommandTag
	var err error
	if status == StatusClosed {
		cmd, err = r.pool.Exec(ctx, `UPDATE periods SET status=$3, closed_at=NOW(), closed_by=$4, updated_at=NOW()
WHERE school_id=$1 AND id=$2`, schoolID, id, status, actorID)
	} else {
		cmd, err = r.pool.Exec(ctx, `UPDATE periods SET status=$3, closed_at=NULL, closed_by=NULL, updated_at=NOW()
WHERE school_id=$1 AND id=$2`, schoolID, id, status)
	}
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return fmt.Errorf("periods: period %d: %w", id, httpx.ErrNotFound)
	}
	return nil
}

func (r *repository) CountDraftJournals(ctx context.Context, schoolID, periodID int64) (int, error) {
	var n int
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM journal_entries
WHERE school_id=$1 AND period_id=$2 AND status='DRAFT'`, schoolID, periodID).Scan(&n)
	return n, err
}
