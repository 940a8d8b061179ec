package assets

import "time"

// AssetStatus enumerates the asset lifecycle.
type AssetStatus string

const (
	StatusActive   AssetStatus = "ACTIVE"
	StatusDisposed AssetStatus = "DISPOSED"
)

// Asset is a capitalized fixed asset: a school bus, lab equipment, a
// building. Carrying amount is always cost minus accumulated depreciation.
type Asset struct {
	ID               int64       `json:"id"`
	SchoolID         int64       `json:"school_id"`
	Code             string      `json:"code"`
	Name             string      `json:"name"`
	Category         string      `json:"category,omitempty"`
	Cost             float64     `json:"cost"`
	ResidualValue    float64     `json:"residual_value"`
	UsefulLifeMonths int         `json:"useful_life_months"`
	AccumulatedDep   float64     `json:"accumulated_depreciation"`
	CarryingAmount   float64     `json:"carrying_amount"`
	AcquiredAt       time.Time   `json:"acquired_at"`
	DisposedAt       *time.Time  `json:"disposed_at,omitempty"`
	DisposalAmount   *float64    `json:"disposal_amount,omitempty"`
	Status           AssetStatus `json:"status"`
	JournalEntryID   *int64      `json:"journal_entry_id,omitempty"`
	CreatedAt        time.Time   `json:"created_at"`
	UpdatedAt        time.Time   `json:"updated_at"`
}

// MonthlyDepreciation is the straight-line default:
// max((cost - residual) / useful life, 0). A fully depreciated asset yields
// zero.
func (a Asset) MonthlyDepreciation() float64 {
	if a.UsefulLifeMonths <= 0 {
		return 0
	}
	amount := (a.Cost - a.ResidualValue) / float64(a.UsefulLifeMonths)
	if amount < 0 {
		return 0
	}
	return amount
}

// ScheduleRow records one depreciation run against one asset.
type ScheduleRow struct {
	ID             int64     `json:"id"`
	SchoolID       int64     `json:"school_id"`
	AssetID        int64     `json:"asset_id"`
	RunDate        time.Time `json:"run_date"`
	Amount         float64   `json:"amount"`
	AccumulatedDep float64   `json:"accumulated_after"`
	CarryingAmount float64   `json:"carrying_after"`
	JournalEntryID *int64    `json:"journal_entry_id,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

// CapitalizeInput describes an asset acquisition.
type CapitalizeInput struct {
	SchoolID         int64
	ActorID          int64
	Code             string
	Name             string
	Category         string
	Cost             float64
	ResidualValue    float64
	UsefulLifeMonths int
	AcquiredAt       time.Time
}

// DepreciateInput runs one depreciation period for an asset. Amount zero
// means the straight-line monthly default; callers override it for other
// methods.
type DepreciateInput struct {
	SchoolID int64
	ActorID  int64
	AssetID  int64
	RunDate  time.Time
	Amount   float64
}

// DisposeInput retires an asset. Proceeds nil disposes at carrying amount.
type DisposeInput struct {
	SchoolID   int64
	ActorID    int64
	AssetID    int64
	DisposedAt time.Time
	Proceeds   *float64
}

// RegisterRow is one line of the asset register report.
type RegisterRow struct {
	Asset
	MonthlyAmount float64 `json:"monthly_depreciation"`
}
