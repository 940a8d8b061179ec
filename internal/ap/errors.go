package ap

import (
	"fmt"

	"github.com/classbridge-erp/classbridge-erp/internal/platform/httpx"
)

var (
	ErrBillNotFound    = fmt.Errorf("ap: bill not found: %w", httpx.ErrNotFound)
	ErrPaymentNotFound = fmt.Errorf("ap: payment not found: %w", httpx.ErrNotFound)
	ErrNoLines         = fmt.Errorf("ap: bill needs at least one line: %w", httpx.ErrValidation)
	ErrNotDraft        = fmt.Errorf("ap: bill is not in DRAFT status: %w", httpx.ErrState)
	ErrBillNotOpen     = fmt.Errorf("ap: bill is not open for payment: %w", httpx.ErrState)
	ErrOverpayment     = fmt.Errorf("ap: payment exceeds outstanding balance: %w", httpx.ErrValidation)
	ErrPaymentPosted   = fmt.Errorf("ap: payment already posted: %w", httpx.ErrState)
)

func lineErr(lineNo int, msg string) error {
	return fmt.Errorf("ap: line %d %s: %w", lineNo, msg, httpx.ErrValidation)
}
