package assets

import (
	"fmt"

	"github.com/classbridge-erp/classbridge-erp/internal/platform/httpx"
)

var (
	// ErrAssetNotFound indicates the asset does not exist in this school.
	ErrAssetNotFound = fmt.Errorf("assets: asset not found: %w", httpx.ErrNotFound)
	// ErrDisposed rejects operating on a disposed asset; disposal is terminal.
	ErrDisposed = fmt.Errorf("assets: asset is disposed: %w", httpx.ErrState)
	// ErrFullyDepreciated rejects a run that would take accumulated
	// depreciation past cost minus residual.
	ErrFullyDepreciated = fmt.Errorf("assets: asset is fully depreciated: %w", httpx.ErrState)
	// ErrDuplicateCode indicates the asset code is taken.
	ErrDuplicateCode = fmt.Errorf("assets: asset code already exists: %w", httpx.ErrConflict)
)
