package inventory

import (
	"fmt"

	"github.com/classbridge-erp/classbridge-erp/internal/platform/httpx"
)

var (
	// ErrInsufficientStock rejects an outbound move larger than on hand.
	ErrInsufficientStock = fmt.Errorf("inventory: insufficient stock: %w", httpx.ErrState)
	// ErrMoveNotFound indicates the move does not exist in this school.
	ErrMoveNotFound = fmt.Errorf("inventory: move not found: %w", httpx.ErrNotFound)
	// ErrSameWarehouse rejects a transfer within one warehouse.
	ErrSameWarehouse = fmt.Errorf("inventory: transfer needs two distinct warehouses: %w", httpx.ErrValidation)
	// ErrMovePosted rejects reposting a move that already has a journal.
	ErrMovePosted = fmt.Errorf("inventory: move already posted: %w", httpx.ErrState)
)
