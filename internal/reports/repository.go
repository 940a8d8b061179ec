package reports

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository aggregates posted journal lines per account. Reversed entries
// stay in the aggregation: their effect is cancelled by the reversal entry,
// not by hiding the original.
type Repository interface {
	Balances(ctx context.Context, schoolID int64, filter Filter) ([]AccountBalance, error)
	ControlBalance(ctx context.Context, schoolID int64, accountCode string) (float64, error)
}

type repository struct {
	pool *pgxpool.Pool
}

// NewRepository builds the pgx-backed repository.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{pool: pool}
}

func (r *repository) Balances(ctx context.Context, schoolID int64, filter Filter) ([]AccountBalance, error) {
	query := `SELECT a.id, a.code, a.name, a.type,
COALESCE(SUM(l.debit), 0), COALESCE(SUM(l.credit), 0)
FROM journal_lines l
JOIN journal_entries e ON e.id = l.journal_entry_id
JOIN accounts a ON a.id = l.account_id
WHERE e.school_id = $1 AND e.status <> 'DRAFT'`
	args := []any{schoolID}
	if filter.PeriodID != 0 {
		args = append(args, filter.PeriodID)
		query += fmt.Sprintf(" AND e.period_id = $%d", len(args))
	}
	if !filter.DateFrom.IsZero() {
		args = append(args, filter.DateFrom)
		query += fmt.Sprintf(" AND e.entry_date >= $%d", len(args))
	}
	if !filter.DateTo.IsZero() {
		args = append(args, filter.DateTo)
		query += fmt.Sprintf(" AND e.entry_date <= $%d", len(args))
	}
	query += " GROUP BY a.id, a.code, a.name, a.type ORDER BY a.code"

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []AccountBalance
	for rows.Next() {
		var b AccountBalance
		if err := rows.Scan(&b.AccountID, &b.Code, &b.Name, &b.Type, &b.Debit, &b.Credit); err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

// ControlBalance returns the signed GL balance of one account by code,
// debit minus credit. Callers flip the sign for credit-natured controls.
func (r *repository) ControlBalance(ctx context.Context, schoolID int64, accountCode string) (float64, error) {
	var balance float64
	err := r.pool.QueryRow(ctx, `SELECT COALESCE(SUM(l.debit - l.credit), 0)
FROM journal_lines l
JOIN journal_entries e ON e.id = l.journal_entry_id
JOIN accounts a ON a.id = l.account_id
WHERE e.school_id = $1 AND e.status <> 'DRAFT' AND a.code = $2`, schoolID, accountCode).Scan(&balance)
	return balance, err
}
