package payroll

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/classbridge-erp/classbridge-erp/internal/platform/db"
)

// Repository persists salary structures and payroll runs.
type Repository interface {
	UpsertStructure(ctx context.Context, st SalaryStructure) (SalaryStructure, error)
	ListActiveStructures(ctx context.Context, schoolID int64) ([]SalaryStructure, error)
	CreateRun(ctx context.Context, run Run) (Run, error)
	GetRun(ctx context.Context, schoolID, id int64) (Run, error)
	ListRuns(ctx context.Context, schoolID int64) ([]Run, error)
	ReplaceLines(ctx context.Context, run Run) (Run, error)
	SetRunStatus(ctx context.Context, schoolID, id int64, from, to RunStatus, lockedBy *int64) error
	SetRunPosted(ctx context.Context, schoolID, id, journalEntryID int64) error
}

type repository struct {
	pool *pgxpool.Pool
}

// NewRepository builds the pgx-backed repository.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{pool: pool}
}

const structureColumns = `id, school_id, employee_id, basic, allowances, deductions, tax,
is_active, effective_from, created_at, updated_at`

const runColumns = `id, school_id, period_label, run_date, status, total_gross, total_deductions,
total_tax, total_net, locked_by, journal_entry_id, created_at, updated_at`

func scanStructure(row pgx.Row) (SalaryStructure, error) {
	var st SalaryStructure
	err := row.Scan(&st.ID, &st.SchoolID, &st.EmployeeID, &st.Basic, &st.Allowances, &st.Deductions,
		&st.Tax, &st.IsActive, &st.EffectiveFrom, &st.CreatedAt, &st.UpdatedAt)
	return st, err
}

func scanRun(row pgx.Row) (Run, error) {
	var run Run
	err := row.Scan(&run.ID, &run.SchoolID, &run.PeriodLabel, &run.RunDate, &run.Status,
		&run.TotalGross, &run.TotalDeductions, &run.TotalTax, &run.TotalNet,
		&run.LockedBy, &run.JournalEntryID, &run.CreatedAt, &run.UpdatedAt)
	return run, err
}

func (r *repository) UpsertStructure(ctx context.Context, st SalaryStructure) (SalaryStructure, error) {
	row := r.pool.QueryRow(ctx, `INSERT INTO salary_structures
(school_id, employee_id, basic, allowances, deductions, tax, is_active, effective_from)
VALUES ($1,$2,$3,$4,$5,$6,TRUE,$7)
ON CONFLICT (school_id, employee_id)
DO UPDATE SET basic=EXCLUDED.basic, allowances=EXCLUDED.allowances, deductions=EXCLUDED.deductions,
tax=EXCLUDED.tax, is_active=TRUE, effective_from=EXCLUDED.effective_from, updated_at=NOW()
RETURNING `+structureColumns,
		st.SchoolID, st.EmployeeID, st.Basic, st.Allowances, st.Deductions, st.Tax, st.EffectiveFrom)
	return scanStructure(row)
}

func (r *repository) ListActiveStructures(ctx context.Context, schoolID int64) ([]SalaryStructure, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+structureColumns+` FROM salary_structures
WHERE school_id=$1 AND is_active ORDER BY employee_id`, schoolID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []SalaryStructure
	for rows.Next() {
		st, err := scanStructure(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, st)
	}
	return out, rows.Err()
}

func (r *repository) CreateRun(ctx context.Context, run Run) (Run, error) {
	row := r.pool.QueryRow(ctx, `INSERT INTO payroll_runs (school_id, period_label, run_date, status)
VALUES ($1,$2,$3,$4) RETURNING id, created_at, updated_at`,
		run.SchoolID, run.PeriodLabel, run.RunDate, run.Status)
	if err := row.Scan(&run.ID, &run.CreatedAt, &run.UpdatedAt); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return Run{}, ErrDuplicatePeriod
		}
		return Run{}, err
	}
	return run, nil
}

func (r *repository) GetRun(ctx context.Context, schoolID, id int64) (Run, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+runColumns+` FROM payroll_runs WHERE school_id=$1 AND id=$2`, schoolID, id)
	run, err := scanRun(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Run{}, ErrRunNotFound
	}
	if err != nil {
		return Run{}, err
	}
	rows, err := r.pool.Query(ctx, `SELECT id, run_id, employee_id, basic, allowances, deductions, tax, gross, net
FROM payroll_run_lines WHERE run_id=$1 ORDER BY employee_id`, id)
	if err != nil {
		return Run{}, err
	}
	defer rows.Close()
	for rows.Next() {
		var line RunLine
		if err := rows.Scan(&line.ID, &line.RunID, &line.EmployeeID, &line.Basic, &line.Allowances,
			&line.Deductions, &line.Tax, &line.Gross, &line.Net); err != nil {
			return Run{}, err
		}
		run.Lines = append(run.Lines, line)
	}
	return run, rows.Err()
}

func (r *repository) ListRuns(ctx context.Context, schoolID int64) ([]Run, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+runColumns+` FROM payroll_runs
WHERE school_id=$1 ORDER BY run_date DESC, id DESC`, schoolID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, run)
	}
	return out, rows.Err()
}

// ReplaceLines swaps the run's line snapshot and totals in one transaction.
// The status guard keeps a locked or posted run immutable.
func (r *repository) ReplaceLines(ctx context.Context, run Run) (Run, error) {
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `UPDATE payroll_runs SET
status=$1, total_gross=$2, total_deductions=$3, total_tax=$4, total_net=$5, updated_at=NOW()
WHERE school_id=$6 AND id=$7 AND status IN ($8, $9)`,
			StatusGenerated, run.TotalGross, run.TotalDeductions, run.TotalTax, run.TotalNet,
			run.SchoolID, run.ID, StatusDraft, StatusGenerated)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return ErrBadTransition
		}
		if _, err := tx.Exec(ctx, `DELETE FROM payroll_run_lines WHERE run_id=$1`, run.ID); err != nil {
			return err
		}
		for idx := range run.Lines {
			line := &run.Lines[idx]
			line.RunID = run.ID
			row := tx.QueryRow(ctx, `INSERT INTO payroll_run_lines
(run_id, employee_id, basic, allowances, deductions, tax, gross, net)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8) RETURNING id`,
				line.RunID, line.EmployeeID, line.Basic, line.Allowances, line.Deductions,
				line.Tax, line.Gross, line.Net)
			if err := row.Scan(&line.ID); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return Run{}, err
	}
	run.Status = StatusGenerated
	return run, nil
}

func (r *repository) SetRunStatus(ctx context.Context, schoolID, id int64, from, to RunStatus, lockedBy *int64) error {
	tag, err := r.pool.Exec(ctx, `UPDATE payroll_runs SET status=$1, locked_by=COALESCE($2, locked_by), updated_at=NOW()
WHERE school_id=$3 AND id=$4 AND status=$5`, to, lockedBy, schoolID, id, from)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrBadTransition
	}
	return nil
}

func (r *repository) SetRunPosted(ctx context.Context, schoolID, id, journalEntryID int64) error {
	tag, err := r.pool.Exec(ctx, `UPDATE payroll_runs SET status=$1, journal_entry_id=$2, updated_at=NOW()
WHERE school_id=$3 AND id=$4 AND status=$5`, StatusPosted, journalEntryID, schoolID, id, StatusLocked)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrBadTransition
	}
	return nil
}
