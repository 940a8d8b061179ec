package posting

import (
	"fmt"
	"math"
	"time"

	"github.com/classbridge-erp/classbridge-erp/internal/ledger"
	"github.com/classbridge-erp/classbridge-erp/internal/platform/httpx"
)

// PostRequest describes a two-line sub-ledger posting. Accounts may be left
// zero to resolve through the configured rule for (Module, TxnType).
type PostRequest struct {
	SchoolID        int64
	ActorID         int64
	Module          string
	TxnType         string
	SourceRef       string
	IdempotencyKey  string
	Amount          float64
	Description     string
	EntryDate       time.Time
	DebitAccountID  int64
	CreditAccountID int64
	PartyID         *int64
}

// Validate checks request shape before any DB work.
func (r PostRequest) Validate() error {
	if r.SchoolID == 0 {
		return fmt.Errorf("posting: school scope required: %w", httpx.ErrValidation)
	}
	if !KnownEvent(r.Module, r.TxnType) {
		return fmt.Errorf("posting: unknown event %s/%s: %w", r.Module, r.TxnType, httpx.ErrValidation)
	}
	if r.IdempotencyKey == "" {
		return fmt.Errorf("posting: idempotency key required: %w", httpx.ErrValidation)
	}
	if r.Amount <= 0 {
		return fmt.Errorf("posting: amount must be positive: %w", httpx.ErrValidation)
	}
	if r.EntryDate.IsZero() {
		return fmt.Errorf("posting: entry date required: %w", httpx.ErrValidation)
	}
	if (r.DebitAccountID == 0) != (r.CreditAccountID == 0) {
		return fmt.Errorf("posting: debit and credit accounts must both be set or both omitted: %w", httpx.ErrValidation)
	}
	return nil
}

// PostLinesRequest describes a multi-line posting for events whose GL effect
// is wider than one debit/credit pair (tax-aware invoices, payroll runs).
// Accounts must be explicit; rules only resolve two-line events.
type PostLinesRequest struct {
	SchoolID       int64
	ActorID        int64
	Module         string
	TxnType        string
	SourceRef      string
	IdempotencyKey string
	Amount         float64
	Description    string
	EntryDate      time.Time
	Lines          []ledger.JournalLine
}

// Validate checks the line set balances before any DB work.
func (r PostLinesRequest) Validate() error {
	if r.SchoolID == 0 {
		return fmt.Errorf("posting: school scope required: %w", httpx.ErrValidation)
	}
	if !KnownEvent(r.Module, r.TxnType) {
		return fmt.Errorf("posting: unknown event %s/%s: %w", r.Module, r.TxnType, httpx.ErrValidation)
	}
	if r.IdempotencyKey == "" {
		return fmt.Errorf("posting: idempotency key required: %w", httpx.ErrValidation)
	}
	if r.EntryDate.IsZero() {
		return fmt.Errorf("posting: entry date required: %w", httpx.ErrValidation)
	}
	if len(r.Lines) < 2 {
		return ledger.ErrTooFewLines
	}
	var debit, credit float64
	for idx, line := range r.Lines {
		if line.AccountID == 0 {
			return fmt.Errorf("posting: line %d missing account: %w", idx+1, httpx.ErrValidation)
		}
		if line.Debit < 0 || line.Credit < 0 {
			return fmt.Errorf("posting: line %d has a negative amount: %w", idx+1, httpx.ErrValidation)
		}
		if line.Debit > 0 && line.Credit > 0 {
			return fmt.Errorf("posting: line %d cannot carry both debit and credit: %w", idx+1, httpx.ErrValidation)
		}
		debit += line.Debit
		credit += line.Credit
	}
	if math.Abs(debit-credit) > ledger.BalanceTolerance {
		return ledger.ErrUnbalanced
	}
	return nil
}

// PostResult reports the journal a posting produced. AlreadyPosted is true
// when the idempotency key had been processed before; replays are successes.
type PostResult struct {
	JournalEntryID int64  `json:"journal_entry_id"`
	JournalNo      string `json:"journal_no"`
	AlreadyPosted  bool   `json:"already_posted"`
}
