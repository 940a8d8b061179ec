package posting

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/classbridge-erp/classbridge-erp/internal/ledger"
	"github.com/classbridge-erp/classbridge-erp/internal/platform/db"
	"github.com/classbridge-erp/classbridge-erp/internal/platform/httpx"
)

// ErrDuplicateKey fires when the unique (school_id, idempotency_key) backstop
// catches a concurrent duplicate. Callers treat it as already-posted.
var ErrDuplicateKey = fmt.Errorf("posting: idempotency key already recorded: %w", httpx.ErrConflict)

// ErrRuleNotFound indicates no active rule covers the event.
var ErrRuleNotFound = fmt.Errorf("posting: no posting rule configured: %w", httpx.ErrConfiguration)

// Repository persists rules and idempotency events.
type Repository interface {
	GetEventByKey(ctx context.Context, schoolID int64, key string) (*Event, error)
	GetJournalNo(ctx context.Context, schoolID, entryID int64) (string, error)
	GetRule(ctx context.Context, schoolID int64, module, txnType string) (Rule, error)
	UpsertRule(ctx context.Context, rule Rule) (Rule, error)
	ListRules(ctx context.Context, schoolID int64) ([]Rule, error)
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
}

// TxRepository composes ledger journal operations with event persistence so a
// posting commits atomically: journal, lines and event all persist or none do.
type TxRepository interface {
	ledger.TxRepository
	GetEventByKey(ctx context.Context, schoolID int64, key string) (*Event, error)
	InsertEvent(ctx context.Context, event Event) (Event, error)
	GetRule(ctx context.Context, schoolID int64, module, txnType string) (Rule, error)
	GetJournalNo(ctx context.Context, schoolID, entryID int64) (string, error)
}

type repository struct {
	pool *pgxpool.Pool
}

// NewRepository builds the pgx-backed repository.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{pool: pool}
}

const eventColumns = `id, school_id, module, txn_type, source_ref, idempotency_key, amount, journal_entry_id, created_at`

const ruleColumns = `id, school_id, module, txn_type, debit_account_id, credit_account_id, is_active, created_at, updated_at`

func scanEvent(row pgx.Row) (Event, error) {
	var ev Event
	err := row.Scan(&ev.ID, &ev.SchoolID, &ev.Module, &ev.TxnType, &ev.SourceRef, &ev.IdempotencyKey,
		&ev.Amount, &ev.JournalEntryID, &ev.CreatedAt)
	return ev, err
}

func scanRule(row pgx.Row) (Rule, error) {
	var rule Rule
	err := row.Scan(&rule.ID, &rule.SchoolID, &rule.Module, &rule.TxnType, &rule.DebitAccountID,
		&rule.CreditAccountID, &rule.IsActive, &rule.CreatedAt, &rule.UpdatedAt)
	return rule, err
}

func getEventByKey(ctx context.Context, q pgxQueryRower, schoolID int64, key string) (*Event, error) {
	row := q.QueryRow(ctx, `SELECT `+eventColumns+` FROM posting_events WHERE school_id=$1 AND idempotency_key=$2`, schoolID, key)
	ev, err := scanEvent(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &ev, nil
}

func getRule(ctx context.Context, q pgxQueryRower, schoolID int64, module, txnType string) (Rule, error) {
	row := q.QueryRow(ctx, `SELECT `+ruleColumns+` FROM posting_rules
WHERE school_id=$1 AND module=$2 AND txn_type=$3 AND is_active`, schoolID, module, txnType)
	rule, err := scanRule(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Rule{}, fmt.Errorf("event %s/%s: %w", module, txnType, ErrRuleNotFound)
	}
	return rule, err
}

type pgxQueryRower interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func (r *repository) GetEventByKey(ctx context.Context, schoolID int64, key string) (*Event, error) {
	return getEventByKey(ctx, r.pool, schoolID, key)
}

func (r *repository) GetJournalNo(ctx context.Context, schoolID, entryID int64) (string, error) {
	return getJournalNo(ctx, r.pool, schoolID, entryID)
}

func (r *repository) GetRule(ctx context.Context, schoolID int64, module, txnType string) (Rule, error) {
	return getRule(ctx, r.pool, schoolID, module, txnType)
}

func (r *repository) UpsertRule(ctx context.Context, rule Rule) (Rule, error) {
	row := r.pool.QueryRow(ctx, `INSERT INTO posting_rules (school_id, module, txn_type, debit_account_id, credit_account_id, is_active)
VALUES ($1,$2,$3,$4,$5,$6)
ON CONFLICT (school_id, module, txn_type)
DO UPDATE SET debit_account_id=EXCLUDED.debit_account_id, credit_account_id=EXCLUDED.credit_account_id,
is_active=EXCLUDED.is_active, updated_at=NOW()
RETURNING `+ruleColumns,
		rule.SchoolID, rule.Module, rule.TxnType, rule.DebitAccountID, rule.CreditAccountID, rule.IsActive)
	return scanRule(row)
}

func (r *repository) ListRules(ctx context.Context, schoolID int64) ([]Rule, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+ruleColumns+` FROM posting_rules WHERE school_id=$1 ORDER BY module, txn_type`, schoolID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Rule
	for rows.Next() {
		rule, err := scanRule(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rule)
	}
	return out, rows.Err()
}

func (r *repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepository{TxRepository: ledger.NewTxRepository(tx), tx: tx})
	})
}

type txRepository struct {
	ledger.TxRepository
	tx pgx.Tx
}

func (r *txRepository) GetEventByKey(ctx context.Context, schoolID int64, key string) (*Event, error) {
	return getEventByKey(ctx, r.tx, schoolID, key)
}

func (r *txRepository) InsertEvent(ctx context.Context, event Event) (Event, error) {
	row := r.tx.QueryRow(ctx, `INSERT INTO posting_events (school_id, module, txn_type, source_ref, idempotency_key, amount, journal_entry_id)
VALUES ($1,$2,$3,$4,$5,$6,$7) RETURNING id, created_at`,
		event.SchoolID, event.Module, event.TxnType, event.SourceRef, event.IdempotencyKey, event.Amount, event.JournalEntryID)
	if err := row.Scan(&event.ID, &event.CreatedAt); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return Event{}, ErrDuplicateKey
		}
		return Event{}, err
	}
	return event, nil
}

func (r *txRepository) GetRule(ctx context.Context, schoolID int64, module, txnType string) (Rule, error) {
	return getRule(ctx, r.tx, schoolID, module, txnType)
}

func (r *txRepository) GetJournalNo(ctx context.Context, schoolID, entryID int64) (string, error) {
	return getJournalNo(ctx, r.tx, schoolID, entryID)
}

func getJournalNo(ctx context.Context, q pgxQueryRower, schoolID, entryID int64) (string, error) {
	var no string
	err := q.QueryRow(ctx, `SELECT journal_no FROM journal_entries WHERE school_id=$1 AND id=$2`, schoolID, entryID).Scan(&no)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", ledger.ErrJournalNotFound
	}
	return no, err
}
