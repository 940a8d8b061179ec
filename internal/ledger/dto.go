package ledger

import (
	"fmt"
	"math"
	"time"

	"github.com/classbridge-erp/classbridge-erp/internal/platform/httpx"
)

// LineInput describes a journal line in a create request. Accounts may be
// given by id or by code; codes are resolved before insert.
type LineInput struct {
	AccountID    int64   `json:"account_id"`
	AccountCode  string  `json:"account_code"`
	Description  string  `json:"description"`
	Debit        float64 `json:"debit"`
	Credit       float64 `json:"credit"`
	CostCenterID *int64  `json:"cost_center_id"`
	TaxCodeID    *int64  `json:"tax_code_id"`
	PartyID      *int64  `json:"party_id"`
}

// CreateJournalInput groups fields required to create a manual journal entry.
type CreateJournalInput struct {
	SchoolID    int64
	ActorID     int64
	EntryDate   time.Time
	PeriodID    *int64
	Description string
	Reference   string
	Lines       []LineInput
}

// Validate ensures the line set forms a balanced double-entry candidate. The
// offending line number is part of the error so callers can fix their input.
func (in CreateJournalInput) Validate() error {
	if in.SchoolID == 0 {
		return fmt.Errorf("ledger: school scope required: %w", httpx.ErrValidation)
	}
	if in.EntryDate.IsZero() {
		return fmt.Errorf("ledger: entry date required: %w", httpx.ErrValidation)
	}
	if len(in.Lines) < 2 {
		return ErrTooFewLines
	}
	var debit, credit float64
	for idx, line := range in.Lines {
		no := idx + 1
		if line.AccountID == 0 && line.AccountCode == "" {
			return lineErr(no, "missing account")
		}
		if line.Debit < 0 || line.Credit < 0 {
			return lineErr(no, "has a negative amount")
		}
		if line.Debit > 0 && line.Credit > 0 {
			return lineErr(no, "cannot carry both debit and credit")
		}
		if line.Debit == 0 && line.Credit == 0 {
			return lineErr(no, "must carry a debit or a credit")
		}
		debit += line.Debit
		credit += line.Credit
	}
	if math.Abs(debit-credit) > BalanceTolerance {
		return ErrUnbalanced
	}
	return nil
}

// Totals returns the summed debit and credit of the input lines.
func (in CreateJournalInput) Totals() (debit, credit float64) {
	for _, line := range in.Lines {
		debit += line.Debit
		credit += line.Credit
	}
	return debit, credit
}

// ReverseJournalInput wraps parameters for reversal.
type ReverseJournalInput struct {
	SchoolID     int64
	ActorID      int64
	EntryID      int64
	ReversalDate *time.Time
	Reason       string
}

// ListFilter narrows journal listings.
type ListFilter struct {
	Status   JournalStatus
	PeriodID int64
	DateFrom time.Time
	DateTo   time.Time
	Limit    int
}
