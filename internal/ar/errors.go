package ar

import (
	"fmt"

	"github.com/classbridge-erp/classbridge-erp/internal/platform/httpx"
)

var (
	// ErrInvoiceNotFound indicates the invoice does not exist in this school.
	ErrInvoiceNotFound = fmt.Errorf("ar: invoice not found: %w", httpx.ErrNotFound)
	// ErrReceiptNotFound indicates the receipt does not exist in this school.
	ErrReceiptNotFound = fmt.Errorf("ar: receipt not found: %w", httpx.ErrNotFound)
	// ErrNoLines rejects an invoice without billed items.
	ErrNoLines = fmt.Errorf("ar: invoice needs at least one line: %w", httpx.ErrValidation)
	// ErrNotDraft rejects posting an invoice that already left DRAFT.
	ErrNotDraft = fmt.Errorf("ar: invoice is not in DRAFT status: %w", httpx.ErrState)
	// ErrInvoiceNotOpen rejects a receipt against an invoice that is not
	// posted or is already fully paid.
	ErrInvoiceNotOpen = fmt.Errorf("ar: invoice is not open for payment: %w", httpx.ErrState)
	// ErrOverpayment rejects a receipt larger than the invoice outstanding.
	ErrOverpayment = fmt.Errorf("ar: receipt exceeds outstanding balance: %w", httpx.ErrValidation)
	// ErrReceiptPosted rejects reposting a receipt that already has a journal.
	ErrReceiptPosted = fmt.Errorf("ar: receipt already posted: %w", httpx.ErrState)
)

func lineErr(lineNo int, msg string) error {
	return fmt.Errorf("ar: line %d %s: %w", lineNo, msg, httpx.ErrValidation)
}
