package ap

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

// Config names the control accounts the payables ledger posts against.
type Config struct {
	PayableAccount  string
	ExpenseAccount  string
	InputTaxAccount string
	CashAccount     string
}

// DefaultConfig matches the seeded chart of accounts.
func DefaultConfig() Config {
	return Config{
		PayableAccount:  "2100",
		ExpenseAccount:  "5100",
		InputTaxAccount: "1150",
		CashAccount:     "1010",
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

// PosterPort is the slice of the posting engine AP uses.
type PosterPort interface {
	Post(ctx context.Context, req posting.PostRequest) (posting.PostResult, error)
	PostLines(ctx context.Context, req posting.PostLinesRequest) (posting.PostResult, error)
}

// AuditPort abstracts audit logging.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service handles the payables sub-ledger.
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

// CreateBill validates the request, computes line amounts server-side and
// stores the bill in DRAFT.
func (s *Service) CreateBill(ctx context.Context, in CreateBillInput) (Bill, error) {
	if len(in.Lines) == 0 {
		return Bill{}, ErrNoLines
	}
	if in.BillDate.IsZero() {
		return Bill{}, fmt.Errorf("ap: bill date is required: %w", httpx.ErrValidation)
	}
	if in.DueDate.IsZero() {
		in.DueDate = in.BillDate.AddDate(0, 0, 30)
	}
	if in.DueDate.Before(in.BillDate) {
		return Bill{}, fmt.Errorf("ap: due date precedes bill date: %w", httpx.ErrValidation)
	}
	if _, err := s.parties.Require(ctx, in.SchoolID, in.VendorID, parties.KindVendor); err != nil {
		return Bill{}, err
	}

	bill := Bill{
		SchoolID:  in.SchoolID,
		VendorID:  in.VendorID,
		VendorRef: in.VendorRef,
		BillDate:  in.BillDate,
		DueDate:   in.DueDate,
		Status:    StatusDraft,
	}
	subtotal, taxTotal := decimal.Zero, decimal.Zero
	for idx, l := range in.Lines {
		if l.Quantity <= 0 {
			return Bill{}, lineErr(idx+1, "quantity must be positive")
		}
		if l.UnitPrice < 0 {
			return Bill{}, lineErr(idx+1, "unit price cannot be negative")
		}
		if l.TaxRate < 0 || l.TaxRate > 100 {
			return Bill{}, lineErr(idx+1, "tax rate must be between 0 and 100")
		}
		lineSub := shared.Round2(decimal.NewFromFloat(l.Quantity).Mul(decimal.NewFromFloat(l.UnitPrice)))
		lineTax := shared.Round2(lineSub.Mul(decimal.NewFromFloat(l.TaxRate)).Div(decimal.NewFromInt(100)))
		subtotal = subtotal.Add(lineSub)
		taxTotal = taxTotal.Add(lineTax)
		bill.Lines = append(bill.Lines, BillLine{
			Description:      l.Description,
			Quantity:         l.Quantity,
			UnitPrice:        l.UnitPrice,
			TaxRate:          l.TaxRate,
			Subtotal:         shared.Float2(lineSub),
			TaxAmount:        shared.Float2(lineTax),
			Total:            shared.Float2(lineSub.Add(lineTax)),
			ExpenseAccountID: l.ExpenseAccountID,
		})
	}
	bill.Subtotal = shared.Float2(subtotal)
	bill.TaxTotal = shared.Float2(taxTotal)
	bill.Total = shared.Float2(subtotal.Add(taxTotal))
	if bill.Total <= 0 {
		return Bill{}, fmt.Errorf("ap: bill total must be positive: %w", httpx.ErrValidation)
	}

	bill, err := s.repo.CreateBill(ctx, bill)
	if err != nil {
		return Bill{}, err
	}
	s.record(ctx, in.SchoolID, in.ActorID, "ap.bill.create", bill.ID, map[string]any{
		"number": bill.Number, "vendor_id": bill.VendorID, "total": bill.Total,
	})
	return bill, nil
}

// PostBill posts a DRAFT bill: debit each line's expense account (falling
// back to the configured default) and input tax, credit the payables control
// for the total. The returned PostResult carries the journal reference and
// whether it was a replay.
func (s *Service) PostBill(ctx context.Context, schoolID, actorID, billID int64) (Bill, posting.PostResult, error) {
	bill, err := s.repo.GetBill(ctx, schoolID, billID)
	if err != nil {
		return Bill{}, posting.PostResult{}, err
	}
	if bill.Status != StatusDraft {
		return Bill{}, posting.PostResult{}, ErrNotDraft
	}
	payAcc, err := s.accounts.GetByCode(ctx, schoolID, s.cfg.PayableAccount)
	if err != nil {
		return Bill{}, posting.PostResult{}, fmt.Errorf("ap: payable control account %s: %w", s.cfg.PayableAccount, err)
	}
	defaultExp, err := s.accounts.GetByCode(ctx, schoolID, s.cfg.ExpenseAccount)
	if err != nil {
		return Bill{}, posting.PostResult{}, fmt.Errorf("ap: default expense account %s: %w", s.cfg.ExpenseAccount, err)
	}

	// Group expense debits by account so a ten-line bill against one
	// account still posts a compact journal.
	expense := map[int64]decimal.Decimal{}
	var order []int64
	for _, line := range bill.Lines {
		accID := defaultExp.ID
		if line.ExpenseAccountID != nil {
			accID = *line.ExpenseAccountID
		}
		if _, seen := expense[accID]; !seen {
			order = append(order, accID)
		}
		expense[accID] = expense[accID].Add(decimal.NewFromFloat(line.Subtotal))
	}

	vendorID := bill.VendorID
	var lines []ledger.JournalLine
	lineNo := 1
	for _, accID := range order {
		lines = append(lines, ledger.JournalLine{
			LineNo: lineNo, AccountID: accID, Description: bill.Number,
			Debit: shared.Float2(expense[accID]),
		})
		lineNo++
	}
	if bill.TaxTotal > 0 {
		taxAcc, err := s.accounts.GetByCode(ctx, schoolID, s.cfg.InputTaxAccount)
		if err != nil {
			return Bill{}, posting.PostResult{}, fmt.Errorf("ap: input tax account %s: %w", s.cfg.InputTaxAccount, err)
		}
		lines = append(lines, ledger.JournalLine{
			LineNo: lineNo, AccountID: taxAcc.ID, Description: bill.Number, Debit: bill.TaxTotal,
		})
		lineNo++
	}
	lines = append(lines, ledger.JournalLine{
		LineNo: lineNo, AccountID: payAcc.ID, Description: bill.Number,
		Credit: bill.Total, PartyID: &vendorID,
	})

	result, err := s.poster.PostLines(ctx, posting.PostLinesRequest{
		SchoolID:       schoolID,
		ActorID:        actorID,
		Module:         posting.ModuleAP,
		TxnType:        posting.TxnAPBill,
		SourceRef:      bill.Number,
		IdempotencyKey: fmt.Sprintf("APBILL:%d", bill.ID),
		Amount:         bill.Total,
		Description:    fmt.Sprintf("Bill %s", bill.Number),
		EntryDate:      bill.BillDate,
		Lines:          lines,
	})
	if err != nil {
		return Bill{}, posting.PostResult{}, err
	}
	if err := s.repo.SetBillPosted(ctx, schoolID, bill.ID, result.JournalEntryID); err != nil {
		// A replayed posting may find the bill already flipped; that is
		// the desired end state, not a failure.
		if !result.AlreadyPosted {
			return Bill{}, result, err
		}
	}
	bill, err = s.repo.GetBill(ctx, schoolID, billID)
	return bill, result, err
}

// CreatePayment stores a vendor payment, posts payables against cash and
// then applies the amount to the target bill. The bill is only touched once
// the GL entry exists; if posting fails the stored payment can be retried
// through PostPayment.
func (s *Service) CreatePayment(ctx context.Context, in CreatePaymentInput) (Payment, posting.PostResult, error) {
	if in.Amount <= 0 {
		return Payment{}, posting.PostResult{}, fmt.Errorf("ap: payment amount must be positive: %w", httpx.ErrValidation)
	}
	if in.PaymentDate.IsZero() {
		return Payment{}, posting.PostResult{}, fmt.Errorf("ap: payment date is required: %w", httpx.ErrValidation)
	}
	if _, err := s.parties.Require(ctx, in.SchoolID, in.VendorID, parties.KindVendor); err != nil {
		return Payment{}, posting.PostResult{}, err
	}
	amount := shared.Float2(shared.Money2(in.Amount))
	if in.BillID != nil {
		bill, err := s.repo.GetBill(ctx, in.SchoolID, *in.BillID)
		if err != nil {
			return Payment{}, posting.PostResult{}, err
		}
		if bill.VendorID != in.VendorID {
			return Payment{}, posting.PostResult{}, fmt.Errorf("ap: bill %s belongs to another vendor: %w", bill.Number, httpx.ErrValidation)
		}
		switch bill.Status {
		case StatusPosted, StatusPartiallyPaid:
		default:
			return Payment{}, posting.PostResult{}, ErrBillNotOpen
		}
		if amount > bill.Outstanding()+0.01 {
			return Payment{}, posting.PostResult{}, ErrOverpayment
		}
	}
	pay, err := s.repo.CreatePayment(ctx, Payment{
		SchoolID:    in.SchoolID,
		VendorID:    in.VendorID,
		BillID:      in.BillID,
		Amount:      amount,
		PaymentDate: in.PaymentDate,
		Method:      in.Method,
		Reference:   in.Reference,
	})
	if err != nil {
		return Payment{}, posting.PostResult{}, err
	}
	s.record(ctx, in.SchoolID, in.ActorID, "ap.payment.create", pay.ID, map[string]any{
		"number": pay.Number, "vendor_id": pay.VendorID, "amount": pay.Amount,
	})
	return s.PostPayment(ctx, in.SchoolID, in.ActorID, pay.ID)
}

// PostPayment posts the GL entry for a stored payment and applies it to the
// bill. Retryable when the first attempt failed on a closed period or
// missing account: the posting engine replays the idempotency key and the
// apply step is guarded by the journal stamp.
func (s *Service) PostPayment(ctx context.Context, schoolID, actorID, paymentID int64) (Payment, posting.PostResult, error) {
	pay, err := s.repo.GetPayment(ctx, schoolID, paymentID)
	if err != nil {
		return Payment{}, posting.PostResult{}, err
	}
	payAcc, err := s.accounts.GetByCode(ctx, schoolID, s.cfg.PayableAccount)
	if err != nil {
		return Payment{}, posting.PostResult{}, fmt.Errorf("ap: payable control account %s: %w", s.cfg.PayableAccount, err)
	}
	cashAcc, err := s.accounts.GetByCode(ctx, schoolID, s.cfg.CashAccount)
	if err != nil {
		return Payment{}, posting.PostResult{}, fmt.Errorf("ap: cash account %s: %w", s.cfg.CashAccount, err)
	}
	vendorID := pay.VendorID
	result, err := s.poster.Post(ctx, posting.PostRequest{
		SchoolID:        schoolID,
		ActorID:         actorID,
		Module:          posting.ModuleAP,
		TxnType:         posting.TxnAPPayment,
		SourceRef:       pay.Number,
		IdempotencyKey:  fmt.Sprintf("APPAY:%d", pay.ID),
		Amount:          pay.Amount,
		Description:     fmt.Sprintf("Payment %s", pay.Number),
		EntryDate:       pay.PaymentDate,
		DebitAccountID:  payAcc.ID,
		CreditAccountID: cashAcc.ID,
		PartyID:         &vendorID,
	})
	if err != nil {
		return Payment{}, posting.PostResult{}, err
	}
	if err := s.repo.ApplyPayment(ctx, pay, result.JournalEntryID); err != nil {
		// ErrPaymentPosted means a concurrent retry already applied it.
		if !errors.Is(err, ErrPaymentPosted) {
			return Payment{}, result, err
		}
	}
	pay, err = s.repo.GetPayment(ctx, schoolID, paymentID)
	return pay, result, err
}

func (s *Service) GetBill(ctx context.Context, schoolID, id int64) (Bill, error) {
	return s.repo.GetBill(ctx, schoolID, id)
}

func (s *Service) ListBills(ctx context.Context, schoolID int64, filter BillFilter) ([]Bill, error) {
	return s.repo.ListBills(ctx, schoolID, filter)
}

func (s *Service) ListPayments(ctx context.Context, schoolID, vendorID int64) ([]Payment, error) {
	return s.repo.ListPayments(ctx, schoolID, vendorID)
}

// Aging buckets outstanding payables by days past due as of today.
func (s *Service) Aging(ctx context.Context, schoolID int64) (AgingBucket, error) {
	return s.repo.Aging(ctx, schoolID, s.now())
}

// Statement lists a vendor's bills and payments within a date range.
func (s *Service) Statement(ctx context.Context, schoolID, vendorID int64, from, to time.Time) ([]StatementRow, error) {
	if _, err := s.parties.Require(ctx, schoolID, vendorID, parties.KindVendor); err != nil {
		return nil, err
	}
	return s.repo.Statement(ctx, schoolID, vendorID, from, to)
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
		Entity:   "ap_document",
		EntityID: fmt.Sprintf("%d", entityID),
		Meta:     meta,
		At:       s.now(),
	})
}
