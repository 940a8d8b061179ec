package ap

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/classbridge-erp/classbridge-erp/internal/platform/db"
)

// Repository persists bills and payments.
type Repository interface {
	CreateBill(ctx context.Context, bill Bill) (Bill, error)
	GetBill(ctx context.Context, schoolID, id int64) (Bill, error)
	ListBills(ctx context.Context, schoolID int64, filter BillFilter) ([]Bill, error)
	SetBillPosted(ctx context.Context, schoolID, id, journalEntryID int64) error
	CreatePayment(ctx context.Context, pay Payment) (Payment, error)
	GetPayment(ctx context.Context, schoolID, id int64) (Payment, error)
	ListPayments(ctx context.Context, schoolID, vendorID int64) ([]Payment, error)
	ApplyPayment(ctx context.Context, pay Payment, journalEntryID int64) error
	Aging(ctx context.Context, schoolID int64, asOf time.Time) (AgingBucket, error)
	Statement(ctx context.Context, schoolID, vendorID int64, from, to time.Time) ([]StatementRow, error)
	OutstandingTotal(ctx context.Context, schoolID int64) (float64, error)
}

// BillFilter narrows bill listings.
type BillFilter struct {
	VendorID int64
	Status   BillStatus
	Limit    int
}

type repository struct {
	pool *pgxpool.Pool
}

// NewRepository builds the pgx-backed repository.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{pool: pool}
}

const billColumns = `id, school_id, number, vendor_id, vendor_ref, bill_date, due_date,
subtotal, tax_total, total, paid_amount, status, journal_entry_id, created_at, updated_at`

const paymentColumns = `id, school_id, number, vendor_id, bill_id, amount,
payment_date, method, reference, journal_entry_id, created_at`

func scanBill(row pgx.Row) (Bill, error) {
	var b Bill
	err := row.Scan(&b.ID, &b.SchoolID, &b.Number, &b.VendorID, &b.VendorRef, &b.BillDate, &b.DueDate,
		&b.Subtotal, &b.TaxTotal, &b.Total, &b.PaidAmount, &b.Status, &b.JournalEntryID,
		&b.CreatedAt, &b.UpdatedAt)
	return b, err
}

func scanPayment(row pgx.Row) (Payment, error) {
	var p Payment
	err := row.Scan(&p.ID, &p.SchoolID, &p.Number, &p.VendorID, &p.BillID, &p.Amount,
		&p.PaymentDate, &p.Method, &p.Reference, &p.JournalEntryID, &p.CreatedAt)
	return p, err
}

func (r *repository) CreateBill(ctx context.Context, bill Bill) (Bill, error) {
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		row := tx.QueryRow(ctx, `INSERT INTO ap_bills
(school_id, number, vendor_id, vendor_ref, bill_date, due_date, subtotal, tax_total, total, paid_amount, status)
VALUES ($1,'',$2,$3,$4,$5,$6,$7,$8,0,$9)
RETURNING id, created_at, updated_at`,
			bill.SchoolID, bill.VendorID, bill.VendorRef, bill.BillDate, bill.DueDate,
			bill.Subtotal, bill.TaxTotal, bill.Total, bill.Status)
		if err := row.Scan(&bill.ID, &bill.CreatedAt, &bill.UpdatedAt); err != nil {
			return err
		}
		bill.Number = fmt.Sprintf("BILL-%06d", bill.ID)
		if _, err := tx.Exec(ctx, `UPDATE ap_bills SET number=$1 WHERE id=$2`, bill.Number, bill.ID); err != nil {
			return err
		}
		for idx := range bill.Lines {
			line := &bill.Lines[idx]
			line.BillID = bill.ID
			row := tx.QueryRow(ctx, `INSERT INTO ap_bill_lines
(bill_id, description, quantity, unit_price, tax_rate, subtotal, tax_amount, total, expense_account_id)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9) RETURNING id`,
				line.BillID, line.Description, line.Quantity, line.UnitPrice,
				line.TaxRate, line.Subtotal, line.TaxAmount, line.Total, line.ExpenseAccountID)
			if err := row.Scan(&line.ID); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return Bill{}, err
	}
	return bill, nil
}

func (r *repository) GetBill(ctx context.Context, schoolID, id int64) (Bill, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+billColumns+` FROM ap_bills WHERE school_id=$1 AND id=$2`, schoolID, id)
	bill, err := scanBill(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Bill{}, ErrBillNotFound
	}
	if err != nil {
		return Bill{}, err
	}
	rows, err := r.pool.Query(ctx, `SELECT id, bill_id, description, quantity, unit_price, tax_rate, subtotal, tax_amount, total, expense_account_id
FROM ap_bill_lines WHERE bill_id=$1 ORDER BY id`, id)
	if err != nil {
		return Bill{}, err
	}
	defer rows.Close()
	for rows.Next() {
		var line BillLine
		if err := rows.Scan(&line.ID, &line.BillID, &line.Description, &line.Quantity, &line.UnitPrice,
			&line.TaxRate, &line.Subtotal, &line.TaxAmount, &line.Total, &line.ExpenseAccountID); err != nil {
			return Bill{}, err
		}
		bill.Lines = append(bill.Lines, line)
	}
	return bill, rows.Err()
}

func (r *repository) ListBills(ctx context.Context, schoolID int64, filter BillFilter) ([]Bill, error) {
	query := `SELECT ` + billColumns + ` FROM ap_bills WHERE school_id=$1`
	args := []any{schoolID}
	if filter.VendorID != 0 {
		args = append(args, filter.VendorID)
		query += fmt.Sprintf(" AND vendor_id=$%d", len(args))
	}
	if filter.Status != "" {
		args = append(args, filter.Status)
		query += fmt.Sprintf(" AND status=$%d", len(args))
	}
	query += " ORDER BY bill_date DESC, id DESC"
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Bill
	for rows.Next() {
		bill, err := scanBill(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, bill)
	}
	return out, rows.Err()
}

func (r *repository) SetBillPosted(ctx context.Context, schoolID, id, journalEntryID int64) error {
	tag, err := r.pool.Exec(ctx, `UPDATE ap_bills SET status=$1, journal_entry_id=$2, updated_at=NOW()
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

// CreatePayment inserts the payment row and stamps its number. The bill
// stays untouched; application happens in ApplyPayment once the GL entry
// exists, so a failed posting never leaves a bill marked paid.
func (r *repository) CreatePayment(ctx context.Context, pay Payment) (Payment, error) {
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		row := tx.QueryRow(ctx, `INSERT INTO ap_payments
(school_id, number, vendor_id, bill_id, amount, payment_date, method, reference)
VALUES ($1,'',$2,$3,$4,$5,$6,$7)
RETURNING id, created_at`,
			pay.SchoolID, pay.VendorID, pay.BillID, pay.Amount, pay.PaymentDate, pay.Method, pay.Reference)
		if err := row.Scan(&pay.ID, &pay.CreatedAt); err != nil {
			return err
		}
		pay.Number = fmt.Sprintf("PAY-%06d", pay.ID)
		if _, err := tx.Exec(ctx, `UPDATE ap_payments SET number=$1 WHERE id=$2`, pay.Number, pay.ID); err != nil {
			return err
		}
		return nil
	})
	if err != nil {
		return Payment{}, err
	}
	return pay, nil
}

// ApplyPayment stamps the journal entry on the payment and applies the
// amount to the target bill in one transaction. The journal stamp doubles as
// the apply-once guard; the conditional bill UPDATE protects against
// concurrent payments overdrawing the outstanding balance.
func (r *repository) ApplyPayment(ctx context.Context, pay Payment, journalEntryID int64) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `UPDATE ap_payments SET journal_entry_id=$1
WHERE school_id=$2 AND id=$3 AND journal_entry_id IS NULL`, journalEntryID, pay.SchoolID, pay.ID)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return ErrPaymentPosted
		}
		if pay.BillID == nil {
			return nil
		}
		tag, err = tx.Exec(ctx, `UPDATE ap_bills SET
paid_amount = paid_amount + $1,
status = CASE WHEN paid_amount + $1 >= total - 0.01 THEN $2::text ELSE $3::text END,
updated_at = NOW()
WHERE school_id=$4 AND id=$5 AND status IN ($6, $7) AND paid_amount + $1 <= total + 0.01`,
			pay.Amount, StatusPaid, StatusPartiallyPaid,
			pay.SchoolID, *pay.BillID, StatusPosted, StatusPartiallyPaid)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return ErrOverpayment
		}
		return nil
	})
}

func (r *repository) GetPayment(ctx context.Context, schoolID, id int64) (Payment, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+paymentColumns+` FROM ap_payments WHERE school_id=$1 AND id=$2`, schoolID, id)
	pay, err := scanPayment(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Payment{}, ErrPaymentNotFound
	}
	return pay, err
}

func (r *repository) ListPayments(ctx context.Context, schoolID, vendorID int64) ([]Payment, error) {
	query := `SELECT ` + paymentColumns + ` FROM ap_payments WHERE school_id=$1`
	args := []any{schoolID}
	if vendorID != 0 {
		args = append(args, vendorID)
		query += fmt.Sprintf(" AND vendor_id=$%d", len(args))
	}
	query += " ORDER BY payment_date DESC, id DESC"
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Payment
	for rows.Next() {
		pay, err := scanPayment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, pay)
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
FROM ap_bills
WHERE school_id=$1 AND status IN ('POSTED','PARTIALLY_PAID')`,
		schoolID, asOf).Scan(&b.Current, &b.Bucket60, &b.Bucket90, &b.Bucket90P, &b.Total)
	return b, err
}

func (r *repository) Statement(ctx context.Context, schoolID, vendorID int64, from, to time.Time) ([]StatementRow, error) {
	rows, err := r.pool.Query(ctx, `SELECT bill_date AS doc_date, 'BILL' AS doc_type, number, 0 AS debit, total AS credit, vendor_ref AS reference
FROM ap_bills
WHERE school_id=$1 AND vendor_id=$2 AND status <> 'DRAFT' AND bill_date BETWEEN $3 AND $4
UNION ALL
SELECT payment_date, 'PAYMENT', number, amount, 0, reference
FROM ap_payments
WHERE school_id=$1 AND vendor_id=$2 AND payment_date BETWEEN $3 AND $4
ORDER BY doc_date, number`, schoolID, vendorID, from, to)
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

// OutstandingTotal sums unpaid bill balances, the sub-ledger side of the
// payables control reconciliation.
func (r *repository) OutstandingTotal(ctx context.Context, schoolID int64) (float64, error) {
	var total float64
	err := r.pool.QueryRow(ctx, `SELECT COALESCE(SUM(total - paid_amount), 0)
FROM ap_bills WHERE school_id=$1 AND status IN ('POSTED','PARTIALLY_PAID')`, schoolID).Scan(&total)
	return total, err
}
