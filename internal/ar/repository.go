package ar

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/classbridge-erp/classbridge-erp/internal/platform/db"
)

// Repository persists invoices and receipts.
type Repository interface {
	CreateInvoice(ctx context.Context, inv Invoice) (Invoice, error)
	GetInvoice(ctx context.Context, schoolID, id int64) (Invoice, error)
	ListInvoices(ctx context.Context, schoolID int64, filter InvoiceFilter) ([]Invoice, error)
	SetInvoicePosted(ctx context.Context, schoolID, id, journalEntryID int64) error
	CreateReceipt(ctx context.Context, rec Receipt) (Receipt, error)
	GetReceipt(ctx context.Context, schoolID, id int64) (Receipt, error)
	ListReceipts(ctx context.Context, schoolID, customerID int64) ([]Receipt, error)
	ApplyReceipt(ctx context.Context, rec Receipt, journalEntryID int64) error
	Aging(ctx context.Context, schoolID int64, asOf time.Time) (AgingBucket, error)
	Statement(ctx context.Context, schoolID, customerID int64, from, to time.Time) ([]StatementRow, error)
	OutstandingTotal(ctx context.Context, schoolID int64) (float64, error)
}

// InvoiceFilter narrows invoice listings.
type InvoiceFilter struct {
	CustomerID int64
	Status     InvoiceStatus
	Limit      int
}

type repository struct {
	pool *pgxpool.Pool
}

// NewRepository builds the pgx-backed repository.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{pool: pool}
}

const invoiceColumns = `id, school_id, number, customer_id, invoice_date, due_date,
subtotal, tax_total, total, paid_amount, status, journal_entry_id, created_at, updated_at`

const receiptColumns = `id, school_id, number, customer_id, invoice_id, amount,
receipt_date, method, reference, journal_entry_id, created_at`

func scanInvoice(row pgx.Row) (Invoice, error) {
	var inv Invoice
	err := row.Scan(&inv.ID, &inv.SchoolID, &inv.Number, &inv.CustomerID, &inv.InvoiceDate, &inv.DueDate,
		&inv.Subtotal, &inv.TaxTotal, &inv.Total, &inv.PaidAmount, &inv.Status, &inv.JournalEntryID,
		&inv.CreatedAt, &inv.UpdatedAt)
	return inv, err
}

func scanReceipt(row pgx.Row) (Receipt, error) {
	var rec Receipt
	err := row.Scan(&rec.ID, &rec.SchoolID, &rec.Number, &rec.CustomerID, &rec.InvoiceID, &rec.Amount,
		&rec.ReceiptDate, &rec.Method, &rec.Reference, &rec.JournalEntryID, &rec.CreatedAt)
	return rec, err
}

func (r *repository) CreateInvoice(ctx context.Context, inv Invoice) (Invoice, error) {
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		row := tx.QueryRow(ctx, `INSERT INTO ar_invoices
(school_id, number, customer_id, invoice_date, due_date, subtotal, tax_total, total, paid_amount, status)
VALUES ($1,'',$2,$3,$4,$5,$6,$7,0,$8)
RETURNING id, created_at, updated_at`,
			inv.SchoolID, inv.CustomerID, inv.InvoiceDate, inv.DueDate,
			inv.Subtotal, inv.TaxTotal, inv.Total, inv.Status)
		if err := row.Scan(&inv.ID, &inv.CreatedAt, &inv.UpdatedAt); err != nil {
			return err
		}
		inv.Number = fmt.Sprintf("INV-%06d", inv.ID)
		if _, err := tx.Exec(ctx, `UPDATE ar_invoices SET number=$1 WHERE id=$2`, inv.Number, inv.ID); err != nil {
			return err
		}
		for idx := range inv.Lines {
			line := &inv.Lines[idx]
			line.InvoiceID = inv.ID
			row := tx.QueryRow(ctx, `INSERT INTO ar_invoice_lines
(invoice_id, description, quantity, unit_price, tax_rate, subtotal, tax_amount, total)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8) RETURNING id`,
				line.InvoiceID, line.Description, line.Quantity, line.UnitPrice,
				line.TaxRate, line.Subtotal, line.TaxAmount, line.Total)
			if err := row.Scan(&line.ID); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return Invoice{}, err
	}
	return inv, nil
}

func (r *repository) GetInvoice(ctx context.Context, schoolID, id int64) (Invoice, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+invoiceColumns+` FROM ar_invoices WHERE school_id=$1 AND id=$2`, schoolID, id)
	inv, err := scanInvoice(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Invoice{}, ErrInvoiceNotFound
	}
	if err != nil {
		return Invoice{}, err
	}
	rows, err := r.pool.Query(ctx, `SELECT id, invoice_id, description, quantity, unit_price, tax_rate, subtotal, tax_amount, total
FROM ar_invoice_lines WHERE invoice_id=$1 ORDER BY id`, id)
	if err != nil {
		return Invoice{}, err
	}
	defer rows.Close()
	for rows.Next() {
		var line InvoiceLine
		if err := rows.Scan(&line.ID, &line.InvoiceID, &line.Description, &line.Quantity, &line.UnitPrice,
			&line.TaxRate, &line.Subtotal, &line.TaxAmount, &line.Total); err != nil {
			return Invoice{}, err
		}
		inv.Lines = append(inv.Lines, line)
	}
	return inv, rows.Err()
}

func (r *repository) ListInvoices(ctx context.Context, schoolID int64, filter InvoiceFilter) ([]Invoice, error) {
	query := `SELECT ` + invoiceColumns + ` FROM ar_invoices WHERE school_id=$1`
	args := []any{schoolID}
	if filter.CustomerID != 0 {
		args = append(args, filter.CustomerID)
		query += fmt.Sprintf(" AND customer_id=$%d", len(args))
	}
	if filter.Status != "" {
		args = append(args, filter.Status)
		query += fmt.Sprintf(" AND status=$%d", len(args))
	}
	query += " ORDER BY invoice_date DESC, id DESC"
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Invoice
	for rows.Next() {
		inv, err := scanInvoice(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, inv)
	}
	return out, rows.Err()
}

func (r *repository) SetInvoicePosted(ctx context.Context, schoolID, id, journalEntryID int64) error {
	tag, err := r.pool.Exec(ctx, `UPDATE ar_invoices SET status=$1, journal_entry_id=$2, updated_at=NOW()
WHERE school_id=$3 AND id=$4 AND status=$5`,
		StatusPosted, journalEntryID, schoolID, id, StatusDraft)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotDraft
	}
	return nil
}

// CreateReceipt inserts the receipt row and stamps its number. The invoice
// stays untouched; application happens in ApplyReceipt once the GL entry
// exists, so a failed posting never leaves an invoice marked paid.
func (r *repository) CreateReceipt(ctx context.Context, rec Receipt) (Receipt, error) {
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		row := tx.QueryRow(ctx, `INSERT INTO ar_receipts
(school_id, number, customer_id, invoice_id, amount, receipt_date, method, reference)
VALUES ($1,'',$2,$3,$4,$5,$6,$7)
RETURNING id, created_at`,
			rec.SchoolID, rec.CustomerID, rec.InvoiceID, rec.Amount, rec.ReceiptDate, rec.Method, rec.Reference)
		if err := row.Scan(&rec.ID, &rec.CreatedAt); err != nil {
			return err
		}
		rec.Number = fmt.Sprintf("RCT-%06d", rec.ID)
		if _, err := tx.Exec(ctx, `UPDATE ar_receipts SET number=$1 WHERE id=$2`, rec.Number, rec.ID); err != nil {
			return err
		}
		return nil
	})
	if err != nil {
		return Receipt{}, err
	}
	return rec, nil
}

// ApplyReceipt stamps the journal entry on the receipt and applies the amount
// to the target invoice in one transaction. The journal stamp doubles as the
// apply-once guard; the conditional invoice UPDATE protects against concurrent
// receipts overdrawing the outstanding balance.
func (r *repository) ApplyReceipt(ctx context.Context, rec Receipt, journalEntryID int64) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `UPDATE ar_receipts SET journal_entry_id=$1
WHERE school_id=$2 AND id=$3 AND journal_entry_id IS NULL`, journalEntryID, rec.SchoolID, rec.ID)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return ErrReceiptPosted
		}
		if rec.InvoiceID == nil {
			return nil
		}
		tag, err = tx.Exec(ctx, `UPDATE ar_invoices SET
paid_amount = paid_amount + $1,
status = CASE WHEN paid_amount + $1 >= total - 0.01 THEN $2::text ELSE $3::text END,
updated_at = NOW()
WHERE school_id=$4 AND id=$5 AND status IN ($6, $7) AND paid_amount + $1 <= total + 0.01`,
			rec.Amount, StatusPaid, StatusPartiallyPaid,
			rec.SchoolID, *rec.InvoiceID, StatusPosted, StatusPartiallyPaid)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return ErrOverpayment
		}
		return nil
	})
}

func (r *repository) GetReceipt(ctx context.Context, schoolID, id int64) (Receipt, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+receiptColumns+` FROM ar_receipts WHERE school_id=$1 AND id=$2`, schoolID, id)
	rec, err := scanReceipt(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Receipt{}, ErrReceiptNotFound
	}
	return rec, err
}

func (r *repository) ListReceipts(ctx context.Context, schoolID, customerID int64) ([]Receipt, error) {
	query := `SELECT ` + receiptColumns + ` FROM ar_receipts WHERE school_id=$1`
	args := []any{schoolID}
	if customerID != 0 {
		args = append(args, customerID)
		query += fmt.Sprintf(" AND customer_id=$%d", len(args))
	}
	query += " ORDER BY receipt_date DESC, id DESC"
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Receipt
	for rows.Next() {
		rec, err := scanReceipt(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (r *repository) Aging(ctx context.Context, schoolID int64, asOf time.Time) (AgingBucket, error) {
	var b AgingBucket
	err := r.pool.QueryRow(ctx, `SELECT
COALESCE(SUM(CASE WHEN $2::date - due_date <= 30 THEN total - paid_amount ELSE 0 END), 0),
COALESCE(SUM(CASE WHEN $2::date - due_date BETWEEN 31 AND 60 THEN total - paid_amount ELSE 0 END), 0),
COALESCE(SUM(CASE WHEN $2::date - due_date BETWEEN 61 AND 90 THEN total - paid_amount ELSE 0 END), 0),
COALESCE(SUM(CASE WHEN $2::date - due_date > 90 THEN total - paid_amount ELSE 0 END), 0),
COALESCE(SUM(total - paid_amount), 0)
FROM ar_invoices
WHERE school_id=$1 AND status IN ('POSTED','PARTIALLY_PAID')`,
		schoolID, asOf).Scan(&b.Current, &b.Bucket60, &b.Bucket90, &b.Bucket90P, &b.Total)
	return b, err
}

func (r *repository) Statement(ctx context.Context, schoolID, customerID int64, from, to time.Time) ([]StatementRow, error) {
	rows, err := r.pool.Query(ctx, `SELECT invoice_date AS doc_date, 'INVOICE' AS doc_type, number, total AS debit, 0 AS credit, '' AS reference
FROM ar_invoices
WHERE school_id=$1 AND customer_id=$2 AND status <> 'DRAFT' AND invoice_date BETWEEN $3 AND $4
UNION ALL
SELECT receipt_date, 'RECEIPT', number, 0, amount, reference
FROM ar_receipts
WHERE school_id=$1 AND customer_id=$2 AND receipt_date BETWEEN $3 AND $4
ORDER BY doc_date, number`, schoolID, customerID, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []StatementRow
	for rows.Next() {
		var row StatementRow
		if err := rows.Scan(&row.Date, &row.DocType, &row.Number, &row.Debit, &row.Credit, &row.Reference); err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

// OutstandingTotal sums unpaid invoice balances, the sub-ledger side of the
// receivables control reconciliation.
func (r *repository) OutstandingTotal(ctx context.Context, schoolID int64) (float64, error) {
	var total float64
	err := r.pool.QueryRow(ctx, `SELECT COALESCE(SUM(total - paid_amount), 0)
FROM ar_invoices WHERE school_id=$1 AND status IN ('POSTED','PARTIALLY_PAID')`, schoolID).Scan(&total)
	return total, err
}
