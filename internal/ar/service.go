package ar

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/classbridge-erp/classbridge-erp/internal/ledger"
	"github.com/classbridge-erp/classbridge-erp/internal/masterdata/accounts"
	"github.com/classbridge-erp/classbridge-erp/internal/masterdata/parties"
	"github.com/classbridge-erp/classbridge-erp/internal/platform/httpx"
	"github.com/classbridge-erp/classbridge-erp/internal/posting"
	"github.com/classbridge-erp/classbridge-erp/internal/shared"
)

// Config names the control accounts the receivables ledger posts against.
// Codes refer to the school's chart of accounts.
type Config struct {
	ReceivableAccount string
	RevenueAccount    string
	TaxAccount        string
	CashAccount       string
}

// DefaultConfig matches the seeded chart of accounts.
func DefaultConfig() Config {
	return Config{
		ReceivableAccount: "1200",
		RevenueAccount:    "4000",
		TaxAccount:        "2150",
		CashAccount:       "1010",
	}
}

// PartyPort resolves and validates parties.
type PartyPort interface {
	Require(ctx context.Context, schoolID, id int64, kind parties.PartyKind) (parties.Party, error)
}

// AccountPort resolves control accounts by code.
type AccountPort interface {
	GetByCode(ctx context.Context, schoolID int64, code string) (accounts.Account, error)
}

// PosterPort is the slice of the posting engine AR uses.
type PosterPort interface {
	Post(ctx context.Context, req posting.PostRequest) (posting.PostResult, error)
	PostLines(ctx context.Context, req posting.PostLinesRequest) (posting.PostResult, error)
}

// AuditPort abstracts audit logging.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service handles the receivables sub-ledger: invoices, receipts, aging and
// customer statements.
type Service struct {
	repo     Repository
	parties  PartyPort
	accounts AccountPort
	poster   PosterPort
	audit    AuditPort
	cfg      Config
	now      func() time.Time
}

// NewService builds Service instance.
func NewService(repo Repository, parties PartyPort, accounts AccountPort, poster PosterPort, audit AuditPort, cfg Config) *Service {
	return &Service{repo: repo, parties: parties, accounts: accounts, poster: poster, audit: audit, cfg: cfg, now: time.Now}
}

// WithNow overrides the clock, used in tests.
func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// CreateInvoice validates the request, computes line amounts and stores the
// invoice in DRAFT. Amounts are always derived server-side: subtotal is
// quantity times unit price, tax is subtotal times rate, each rounded to 2
// decimals per line so the document total matches the GL posting exactly.
func (s *Service) CreateInvoice(ctx context.Context, in CreateInvoiceInput) (Invoice, error) {
	if len(in.Lines) == 0 {
		return Invoice{}, ErrNoLines
	}
	if in.InvoiceDate.IsZero() {
		return Invoice{}, fmt.Errorf("ar: invoice date is required: %w", httpx.ErrValidation)
	}
	if in.DueDate.IsZero() {
		in.DueDate = in.InvoiceDate.AddDate(0, 0, 30)
	}
	if in.DueDate.Before(in.InvoiceDate) {
		return Invoice{}, fmt.Errorf("ar: due date precedes invoice date: %w", httpx.ErrValidation)
	}
	if _, err := s.parties.Require(ctx, in.SchoolID, in.CustomerID, parties.KindCustomer); err != nil {
		return Invoice{}, err
	}

	inv := Invoice{
		SchoolID:    in.SchoolID,
		CustomerID:  in.CustomerID,
		InvoiceDate: in.InvoiceDate,
		DueDate:     in.DueDate,
		Status:      StatusDraft,
	}
	subtotal, taxTotal := decimal.Zero, decimal.Zero
	for idx, l := range in.Lines {
		if l.Quantity <= 0 {
			return Invoice{}, lineErr(idx+1, "quantity must be positive")
		}
		if l.UnitPrice < 0 {
			return Invoice{}, lineErr(idx+1, "unit price cannot be negative")
		}
		if l.TaxRate < 0 || l.TaxRate > 100 {
			return Invoice{}, lineErr(idx+1, "tax rate must be between 0 and 100")
		}
		lineSub := shared.Round2(decimal.NewFromFloat(l.Quantity).Mul(decimal.NewFromFloat(l.UnitPrice)))
		lineTax := shared.Round2(lineSub.Mul(decimal.NewFromFloat(l.TaxRate)).Div(decimal.NewFromInt(100)))
		subtotal = subtotal.Add(lineSub)
		taxTotal = taxTotal.Add(lineTax)
		inv.Lines = append(inv.Lines, InvoiceLine{
			Description: l.Description,
			Quantity:    l.Quantity,
			UnitPrice:   l.UnitPrice,
			TaxRate:     l.TaxRate,
			Subtotal:    shared.Float2(lineSub),
			TaxAmount:   shared.Float2(lineTax),
			Total:       shared.Float2(lineSub.Add(lineTax)),
		})
	}
	inv.Subtotal = shared.Float2(subtotal)
	inv.TaxTotal = shared.Float2(taxTotal)
	inv.Total = shared.Float2(subtotal.Add(taxTotal))
	if inv.Total <= 0 {
		return Invoice{}, fmt.Errorf("ar: invoice total must be positive: %w", httpx.ErrValidation)
	}

	inv, err := s.repo.CreateInvoice(ctx, inv)
	if err != nil {
		return Invoice{}, err
	}
	s.record(ctx, in.SchoolID, in.ActorID, "ar.invoice.create", inv.ID, map[string]any{
		"number": inv.Number, "customer_id": inv.CustomerID, "total": inv.Total,
	})
	return inv, nil
}

// PostInvoice posts a DRAFT invoice to the ledger: debit receivables for the
// total, credit revenue for the subtotal and tax payable for the tax. Safe to
// retry; the posting engine replays the idempotency key. The returned
// PostResult carries the journal reference and whether it was a replay.
func (s *Service) PostInvoice(ctx context.Context, schoolID, actorID, invoiceID int64) (Invoice, posting.PostResult, error) {
	inv, err := s.repo.GetInvoice(ctx, schoolID, invoiceID)
	if err != nil {
		return Invoice{}, posting.PostResult{}, err
	}
	if inv.Status != StatusDraft {
		return Invoice{}, posting.PostResult{}, ErrNotDraft
	}
	recvAcc, err := s.accounts.GetByCode(ctx, schoolID, s.cfg.ReceivableAccount)
	if err != nil {
		return Invoice{}, posting.PostResult{}, fmt.Errorf("ar: receivable control account %s: %w", s.cfg.ReceivableAccount, err)
	}
	revAcc, err := s.accounts.GetByCode(ctx, schoolID, s.cfg.RevenueAccount)
	if err != nil {
		return Invoice{}, posting.PostResult{}, fmt.Errorf("ar: revenue account %s: %w", s.cfg.RevenueAccount, err)
	}
	customerID := inv.CustomerID
	lines := []ledger.JournalLine{
		{LineNo: 1, AccountID: recvAcc.ID, Description: inv.Number, Debit: inv.Total, PartyID: &customerID},
		{LineNo: 2, AccountID: revAcc.ID, Description: inv.Number, Credit: inv.Subtotal},
	}
	if inv.TaxTotal > 0 {
		taxAcc, err := s.accounts.GetByCode(ctx, schoolID, s.cfg.TaxAccount)
		if err != nil {
			return Invoice{}, posting.PostResult{}, fmt.Errorf("ar: tax payable account %s: %w", s.cfg.TaxAccount, err)
		}
		lines = append(lines, ledger.JournalLine{LineNo: 3, AccountID: taxAcc.ID, Description: inv.Number, Credit: inv.TaxTotal})
	}
	result, err := s.poster.PostLines(ctx, posting.PostLinesRequest{
		SchoolID:       schoolID,
		ActorID:        actorID,
		Module:         posting.ModuleAR,
		TxnType:        posting.TxnARInvoice,
		SourceRef:      inv.Number,
		IdempotencyKey: fmt.Sprintf("ARINV:%d", inv.ID),
		Amount:         inv.Total,
		Description:    fmt.Sprintf("Invoice %s", inv.Number),
		EntryDate:      inv.InvoiceDate,
		Lines:          lines,
	})
	if err != nil {
		return Invoice{}, posting.PostResult{}, err
	}
	if err := s.repo.SetInvoicePosted(ctx, schoolID, inv.ID, result.JournalEntryID); err != nil {
		// A replayed posting may find the invoice already flipped; that is
		// the desired end state, not a failure.
		if !result.AlreadyPosted {
			return Invoice{}, result, err
		}
	}
	inv, err = s.repo.GetInvoice(ctx, schoolID, invoiceID)
	return inv, result, err
}

// CreateReceipt stores a customer payment, posts cash against the receivables
// control and then applies the amount to the target invoice. The invoice is
// only touched once the GL entry exists; if posting fails the stored receipt
// can be retried through PostReceipt.
func (s *Service) CreateReceipt(ctx context.Context, in CreateReceiptInput) (Receipt, posting.PostResult, error) {
	if in.Amount <= 0 {
		return Receipt{}, posting.PostResult{}, fmt.Errorf("ar: receipt amount must be positive: %w", httpx.ErrValidation)
	}
	if in.ReceiptDate.IsZero() {
		return Receipt{}, posting.PostResult{}, fmt.Errorf("ar: receipt date is required: %w", httpx.ErrValidation)
	}
	if _, err := s.parties.Require(ctx, in.SchoolID, in.CustomerID, parties.KindCustomer); err != nil {
		return Receipt{}, posting.PostResult{}, err
	}
	amount := shared.Float2(shared.Money2(in.Amount))
	if in.InvoiceID != nil {
		inv, err := s.repo.GetInvoice(ctx, in.SchoolID, *in.InvoiceID)
		if err != nil {
			return Receipt{}, posting.PostResult{}, err
		}
		if inv.CustomerID != in.CustomerID {
			return Receipt{}, posting.PostResult{}, fmt.Errorf("ar: invoice %s belongs to another customer: %w", inv.Number, httpx.ErrValidation)
		}
		switch inv.Status {
		case StatusPosted, StatusPartiallyPaid:
		default:
			return Receipt{}, posting.PostResult{}, ErrInvoiceNotOpen
		}
		if amount > inv.Outstanding()+0.01 {
			return Receipt{}, posting.PostResult{}, ErrOverpayment
		}
	}
	rec, err := s.repo.CreateReceipt(ctx, Receipt{
		SchoolID:    in.SchoolID,
		CustomerID:  in.CustomerID,
		InvoiceID:   in.InvoiceID,
		Amount:      amount,
		ReceiptDate: in.ReceiptDate,
		Method:      in.Method,
		Reference:   in.Reference,
	})
	if err != nil {
		return Receipt{}, posting.PostResult{}, err
	}
	s.record(ctx, in.SchoolID, in.ActorID, "ar.receipt.create", rec.ID, map[string]any{
		"number": rec.Number, "customer_id": rec.CustomerID, "amount": rec.Amount,
	})
	return s.PostReceipt(ctx, in.SchoolID, in.ActorID, rec.ID)
}

// PostReceipt posts the GL entry for a stored receipt and applies it to the
// invoice. Exposed separately so a receipt whose posting failed (closed
// period, missing account) can be retried without registering the payment
// twice: the posting engine replays the idempotency key and the apply step
// is guarded by the journal stamp.
func (s *Service) PostReceipt(ctx context.Context, schoolID, actorID, receiptID int64) (Receipt, posting.PostResult, error) {
	rec, err := s.repo.GetReceipt(ctx, schoolID, receiptID)
	if err != nil {
		return Receipt{}, posting.PostResult{}, err
	}
	cashAcc, err := s.accounts.GetByCode(ctx, schoolID, s.cfg.CashAccount)
	if err != nil {
		return Receipt{}, posting.PostResult{}, fmt.Errorf("ar: cash account %s: %w", s.cfg.CashAccount, err)
	}
	recvAcc, err := s.accounts.GetByCode(ctx, schoolID, s.cfg.ReceivableAccount)
	if err != nil {
		return Receipt{}, posting.PostResult{}, fmt.Errorf("ar: receivable control account %s: %w", s.cfg.ReceivableAccount, err)
	}
	customerID := rec.CustomerID
	result, err := s.poster.Post(ctx, posting.PostRequest{
		SchoolID:        schoolID,
		ActorID:         actorID,
		Module:          posting.ModuleAR,
		TxnType:         posting.TxnARReceipt,
		SourceRef:       rec.Number,
		IdempotencyKey:  fmt.Sprintf("ARRCT:%d", rec.ID),
		Amount:          rec.Amount,
		Description:     fmt.Sprintf("Receipt %s", rec.Number),
		EntryDate:       rec.ReceiptDate,
		DebitAccountID:  cashAcc.ID,
		CreditAccountID: recvAcc.ID,
		PartyID:         &customerID,
	})
	if err != nil {
		return Receipt{}, posting.PostResult{}, err
	}
	if err := s.repo.ApplyReceipt(ctx, rec, result.JournalEntryID); err != nil {
		// ErrReceiptPosted means a concurrent retry already applied it.
		if !errors.Is(err, ErrReceiptPosted) {
			return Receipt{}, result, err
		}
	}
	rec, err = s.repo.GetReceipt(ctx, schoolID, receiptID)
	return rec, result, err
}

// GetInvoice fetches one invoice with its lines.
func (s *Service) GetInvoice(ctx context.Context, schoolID, id int64) (Invoice, error) {
	return s.repo.GetInvoice(ctx, schoolID, id)
}

// ListInvoices lists invoices, newest first.
func (s *Service) ListInvoices(ctx context.Context, schoolID int64, filter InvoiceFilter) ([]Invoice, error) {
	return s.repo.ListInvoices(ctx, schoolID, filter)
}

// ListReceipts lists receipts, optionally for one customer.
func (s *Service) ListReceipts(ctx context.Context, schoolID, customerID int64) ([]Receipt, error) {
	return s.repo.ListReceipts(ctx, schoolID, customerID)
}

// Aging buckets outstanding balances by days past due as of today.
func (s *Service) Aging(ctx context.Context, schoolID int64) (AgingBucket, error) {
	return s.repo.Aging(ctx, schoolID, s.now())
}

// Statement lists a customer's invoices and receipts within a date range.
func (s *Service) Statement(ctx context.Context, schoolID, customerID int64, from, to time.Time) ([]StatementRow, error) {
	if _, err := s.parties.Require(ctx, schoolID, customerID, parties.KindCustomer); err != nil {
		return nil, err
	}
	return s.repo.Statement(ctx, schoolID, customerID, from, to)
}

// OutstandingTotal is the sub-ledger total used by reconciliation.
func (s *Service) OutstandingTotal(ctx context.Context, schoolID int64) (float64, error) {
	return s.repo.OutstandingTotal(ctx, schoolID)
}

func (s *Service) record(ctx context.Context, schoolID, actorID int64, action string, entityID int64, meta map[string]any) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(ctx, shared.AuditLog{
		SchoolID: schoolID,
		ActorID:  actorID,
		Action:   action,
		Entity:   "ar_document",
		EntityID: fmt.Sprintf("%d", entityID),
		Meta:     meta,
		At:       s.now(),
	})
}
