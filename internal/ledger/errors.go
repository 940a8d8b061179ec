package ledger

import (
	"fmt"

	"github.com/classbridge-erp/classbridge-erp/internal/platform/httpx"
)

var (
	// ErrUnbalanced indicates debit != credit.
	ErrUnbalanced = fmt.Errorf("ledger: journal lines must balance: %w", httpx.ErrValidation)
	// ErrTooFewLines indicates less than two lines.
	ErrTooFewLines = fmt.Errorf("ledger: journal requires at least two lines: %w", httpx.ErrValidation)
	// ErrNotDraft indicates an attempt to post a non-draft entry.
	ErrNotDraft = fmt.Errorf("ledger: only draft journals can be posted: %w", httpx.ErrConflict)
	// ErrNotPosted indicates an attempt to reverse an entry that is not posted.
	ErrNotPosted = fmt.Errorf("ledger: only posted journals can be reversed: %w", httpx.ErrConflict)
	// ErrAlreadyReversed indicates the entry already has a reversal.
	ErrAlreadyReversed = fmt.Errorf("ledger: journal already reversed: %w", httpx.ErrConflict)
	// ErrIsReversal indicates the entry is itself a reversal and cannot be reversed again.
	ErrIsReversal = fmt.Errorf("ledger: reversal journals cannot be reversed: %w", httpx.ErrConflict)
	// ErrPeriodClosed indicates the target period accepts no postings.
	ErrPeriodClosed = fmt.Errorf("ledger: period is closed: %w", httpx.ErrState)
	// ErrNoLines indicates an entry without lines.
	ErrNoLines = fmt.Errorf("ledger: journal has no lines: %w", httpx.ErrValidation)
	// ErrJournalNotFound indicates a missing entry.
	ErrJournalNotFound = fmt.Errorf("ledger: journal entry not found: %w", httpx.ErrNotFound)
	// ErrDuplicateNumber indicates the per-school journal number backstop fired.
	ErrDuplicateNumber = fmt.Errorf("ledger: journal number already taken: %w", httpx.ErrConflict)
)

func lineErr(lineNo int, msg string) error {
	return fmt.Errorf("ledger: line %d %s: %w", lineNo, msg, httpx.ErrValidation)
}
