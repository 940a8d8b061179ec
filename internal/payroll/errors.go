package payroll

import (
	"fmt"

	"github.com/classbridge-erp/classbridge-erp/internal/platform/httpx"
)

var (
	// ErrRunNotFound indicates the run does not exist in this school.
	ErrRunNotFound = fmt.Errorf("payroll: run not found: %w", httpx.ErrNotFound)
	// ErrNoStructures rejects generating a run when no employee has an
	// active salary structure.
	ErrNoStructures = fmt.Errorf("payroll: no active salary structures: %w", httpx.ErrConfiguration)
	// ErrBadTransition rejects a lifecycle move the state machine forbids.
	ErrBadTransition = fmt.Errorf("payroll: invalid run state for this operation: %w", httpx.ErrState)
	// ErrDuplicatePeriod indicates a run already exists for the period.
	ErrDuplicatePeriod = fmt.Errorf("payroll: run already exists for period: %w", httpx.ErrConflict)
)
