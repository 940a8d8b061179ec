package ledger

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/classbridge-erp/classbridge-erp/internal/masterdata/periods"
	"github.com/classbridge-erp/classbridge-erp/internal/platform/db"
	"github.com/classbridge-erp/classbridge-erp/internal/platform/httpx"
)

// Repository encapsulates DB operations for the journal ledger.
type Repository interface {
	Get(ctx context.Context, schoolID, id int64) (JournalEntry, error)
	List(ctx context.Context, schoolID int64, filter ListFilter) ([]JournalEntry, error)
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
}

// TxRepository exposes ledger operations available within one transaction.
// Period reads are included so posting checks see transaction-consistent
// state, mirroring the insert they guard.
type TxRepository interface {
	GetPeriodForPosting(ctx context.Context, schoolID, periodID int64) (periods.Period, error)
	GetPeriodByDate(ctx context.Context, schoolID int64, date time.Time) (periods.Period, error)
	NextJournalNo(ctx context.Context, schoolID int64, prefix string) (string, error)
	InsertEntry(ctx context.Context, entry JournalEntry) (JournalEntry, error)
	InsertLines(ctx context.Context, entryID int64, lines []JournalLine) error
	GetEntryForUpdate(ctx context.Context, schoolID, id int64) (JournalEntry, error)
	GetLines(ctx context.Context, entryID int64) ([]JournalLine, error)
	MarkPosted(ctx context.Context, id, postedBy int64, at time.Time) error
	MarkReversed(ctx context.Context, originalID, reversalID int64) error
	ResolveAccount(ctx context.Context, schoolID int64, code string) (int64, error)
	EnsureAccountsActive(ctx context.Context, schoolID int64, ids []int64) error
}

type repository struct {
	pool *pgxpool.Pool
}

// NewRepository builds the pgx-backed repository.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{pool: pool}
}

const entryColumns = `id, school_id, journal_no, entry_date, period_id, description, reference, status,
total_debit, total_credit, reversed_entry_id, reversal_of_id, posted_by, posted_at, created_at, updated_at`

func scanEntry(row pgx.Row) (JournalEntry, error) {
	var e JournalEntry
	err := row.Scan(&e.ID, &e.SchoolID, &e.JournalNo, &e.EntryDate, &e.PeriodID, &e.Description, &e.Reference,
		&e.Status, &e.TotalDebit, &e.TotalCredit, &e.ReversedEntryID, &e.ReversalOfID, &e.PostedBy, &e.PostedAt,
		&e.CreatedAt, &e.UpdatedAt)
	return e, err
}

func (r *repository) Get(ctx context.Context, schoolID, id int64) (JournalEntry, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+entryColumns+` FROM journal_entries WHERE school_id=$1 AND id=$2`, schoolID, id)
	entry, err := scanEntry(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return JournalEntry{}, ErrJournalNotFound
		}
		return JournalEntry{}, err
	}
	lines, err := queryLines(ctx, r.pool, id)
	if err != nil {
		return JournalEntry{}, err
	}
	entry.Lines = lines
	return entry, nil
}

func (r *repository) List(ctx context.Context, schoolID int64, filter ListFilter) ([]JournalEntry, error) {
	query := `SELECT ` + entryColumns + ` FROM journal_entries WHERE school_id=$1`
	args := []any{schoolID}
	if filter.Status != "" {
		args = append(args, filter.Status)
		query += ` AND status=$` + strconv.Itoa(len(args))
	}
	if filter.PeriodID != 0 {
		args = append(args, filter.PeriodID)
		query += ` AND period_id=$` + strconv.Itoa(len(args))
	}
	if !filter.DateFrom.IsZero() {
		args = append(args, filter.DateFrom)
		query += ` AND entry_date >= $` + strconv.Itoa(len(args))
	}
	if !filter.DateTo.IsZero() {
		args = append(args, filter.DateTo)
		query += ` AND entry_date <= $` + strconv.Itoa(len(args))
	}
	query += ` ORDER BY journal_no DESC`
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += ` LIMIT $` + strconv.Itoa(len(args))
	}
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var entries []JournalEntry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func (r *repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, NewTxRepository(tx))
	})
}

type txRepository struct {
	tx pgx.Tx
}

// NewTxRepository wraps a pgx transaction with ledger operations. Exposed so
// the posting engine can compose journal inserts with its idempotency event
// inside one transaction.
func NewTxRepository(tx pgx.Tx) TxRepository {
	return &txRepository{tx: tx}
}

func (r *txRepository) GetPeriodForPosting(ctx context.Context, schoolID, periodID int64) (periods.Period, error) {
	var p periods.Period
	err := r.tx.QueryRow(ctx, `SELECT id, school_id, code, start_date, end_date, status FROM periods
WHERE school_id=$1 AND id=$2 FOR SHARE`, schoolID, periodID).
		Scan(&p.ID, &p.SchoolID, &p.Code, &p.StartDate, &p.EndDate, &p.Status)
	if errors.Is(err, pgx.ErrNoRows) {
		return periods.Period{}, fmt.Errorf("ledger: period %d: %w", periodID, httpx.ErrNotFound)
	}
	return p, err
}

func (r *txRepository) GetPeriodByDate(ctx context.Context, schoolID int64, date time.Time) (periods.Period, error) {
	var p periods.Period
	err := r.tx.QueryRow(ctx, `SELECT id, school_id, code, start_date, end_date, status FROM periods
WHERE school_id=$1 AND start_date <= $2 AND end_date >= $2 ORDER BY start_date ASC LIMIT 1 FOR SHARE`, schoolID, date).
		Scan(&p.ID, &p.SchoolID, &p.Code, &p.StartDate, &p.EndDate, &p.Status)
	if errors.Is(err, pgx.ErrNoRows) {
		return periods.Period{}, fmt.Errorf("ledger: no period covers %s: %w", date.Format("2006-01-02"), httpx.ErrNotFound)
	}
	return p, err
}

// NextJournalNo serialises on a per-school-day advisory lock, then reads the
// greatest existing number under the prefix and increments it.
func (r *txRepository) NextJournalNo(ctx context.Context, schoolID int64, prefix string) (string, error) {
	if err := db.AdvisoryLockTx(ctx, r.tx, NumberingLockKey(schoolID, prefix)); err != nil {
		return "", err
	}
	var last string
	err := r.tx.QueryRow(ctx, `SELECT journal_no FROM journal_entries
WHERE school_id=$1 AND journal_no LIKE $2 ORDER BY journal_no DESC LIMIT 1`, schoolID, prefix+"%").Scan(&last)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return "", err
	}
	seq := 1
	if last != "" {
		if n, convErr := strconv.Atoi(strings.TrimPrefix(last, prefix)); convErr == nil {
			seq = n + 1
		}
	}
	return FormatNumber(prefix, seq), nil
}

func (r *txRepository) InsertEntry(ctx context.Context, entry JournalEntry) (JournalEntry, error) {
	row := r.tx.QueryRow(ctx, `INSERT INTO journal_entries
(school_id, journal_no, entry_date, period_id, description, reference, status, total_debit, total_credit, reversal_of_id, posted_by, posted_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
RETURNING id, created_at, updated_at`,
		entry.SchoolID, entry.JournalNo, entry.EntryDate, entry.PeriodID, entry.Description, entry.Reference,
		entry.Status, entry.TotalDebit, entry.TotalCredit, entry.ReversalOfID, entry.PostedBy, entry.PostedAt)
	if err := row.Scan(&entry.ID, &entry.CreatedAt, &entry.UpdatedAt); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return JournalEntry{}, ErrDuplicateNumber
		}
		return JournalEntry{}, err
	}
	return entry, nil
}

func (r *txRepository) InsertLines(ctx context.Context, entryID int64, lines []JournalLine) error {
	for i := range lines {
		line := &lines[i]
		line.JournalEntryID = entryID
		if line.LineNo == 0 {
			line.LineNo = i + 1
		}
		err := r.tx.QueryRow(ctx, `INSERT INTO journal_lines
(journal_entry_id, line_no, account_id, description, debit, credit, cost_center_id, tax_code_id, party_id)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9) RETURNING id`,
			entryID, line.LineNo, line.AccountID, line.Description, line.Debit, line.Credit,
			line.CostCenterID, line.TaxCodeID, line.PartyID).Scan(&line.ID)
		if err != nil {
			return err
		}
	}
	return nil
}

func (r *txRepository) GetEntryForUpdate(ctx context.Context, schoolID, id int64) (JournalEntry, error) {
	row := r.tx.QueryRow(ctx, `SELECT `+entryColumns+` FROM journal_entries
WHERE school_id=$1 AND id=$2 FOR UPDATE`, schoolID, id)
	entry, err := scanEntry(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return JournalEntry{}, ErrJournalNotFound
	}
	return entry, err
}

func (r *txRepository) GetLines(ctx context.Context, entryID int64) ([]JournalLine, error) {
	return queryLines(ctx, r.tx, entryID)
}

func (r *txRepository) MarkPosted(ctx context.Context, id, postedBy int64, at time.Time) error {
	cmd, err := r.tx.Exec(ctx, `UPDATE journal_entries SET status=$2, posted_by=$3, posted_at=$4, updated_at=NOW() WHERE id=$1`,
		id, StatusPosted, postedBy, at)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrJournalNotFound
	}
	return nil
}

func (r *txRepository) MarkReversed(ctx context.Context, originalID, reversalID int64) error {
	cmd, err := r.tx.Exec(ctx, `UPDATE journal_entries SET status=$2, reversed_entry_id=$3, updated_at=NOW() WHERE id=$1`,
		originalID, StatusReversed, reversalID)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrJournalNotFound
	}
	return nil
}

func (r *txRepository) ResolveAccount(ctx context.Context, schoolID int64, code string) (int64, error) {
	var id int64
	err := r.tx.QueryRow(ctx, `SELECT id FROM accounts WHERE school_id=$1 AND code=$2`, schoolID, code).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, fmt.Errorf("ledger: account %s: %w", code, httpx.ErrNotFound)
	}
	return id, err
}

func (r *txRepository) EnsureAccountsActive(ctx context.Context, schoolID int64, ids []int64) error {
	rows, err := r.tx.Query(ctx, `SELECT id, code, is_active FROM accounts WHERE school_id=$1 AND id = ANY($2)`, schoolID, ids)
	if err != nil {
		return err
	}
	defer rows.Close()
	found := make(map[int64]bool, len(ids))
	for rows.Next() {
		var id int64
		var code string
		var active bool
		if err := rows.Scan(&id, &code, &active); err != nil {
			return err
		}
		if !active {
			return fmt.Errorf("ledger: account %s is inactive: %w", code, httpx.ErrValidation)
		}
		found[id] = true
	}
	if err := rows.Err(); err != nil {
		return err
	}
	for _, id := range ids {
		if !found[id] {
			return fmt.Errorf("ledger: account %d: %w", id, httpx.ErrNotFound)
		}
	}
	return nil
}

type queryer interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

func queryLines(ctx context.Context, q queryer, entryID int64) ([]JournalLine, error) {
	rows, err := q.Query(ctx, `SELECT id, journal_entry_id, line_no, account_id, description, debit, credit, cost_center_id, tax_code_id, party_id
FROM journal_lines WHERE journal_entry_id=$1 ORDER BY line_no ASC`, entryID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var lines []JournalLine
	for rows.Next() {
		var line JournalLine
		if err := rows.Scan(&line.ID, &line.JournalEntryID, &line.LineNo, &line.AccountID, &line.Description,
			&line.Debit, &line.Credit, &line.CostCenterID, &line.TaxCodeID, &line.PartyID); err != nil {
			return nil, err
		}
		lines = append(lines, line)
	}
	return lines, rows.Err()
}
