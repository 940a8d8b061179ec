package inventory

import "time"

// MoveType enumerates stock movement kinds.
type MoveType string

const (
	MovePurchaseReceipt MoveType = "purchase_receipt"
	MoveIssueSale       MoveType = "issue_sale"
	MoveTransferIn      MoveType = "transfer_in"
	MoveTransferOut     MoveType = "transfer_out"
	MoveAdjustment      MoveType = "adjustment"
)

// Inbound reports whether the type adds stock. Adjustments carry their own
// direction flag on the request.
func (t MoveType) Inbound() bool {
	return t == MovePurchaseReceipt || t == MoveTransferIn
}

// Valid reports whether t is a known move type.
func (t MoveType) Valid() bool {
	switch t {
	case MovePurchaseReceipt, MoveIssueSale, MoveTransferIn, MoveTransferOut, MoveAdjustment:
		return true
	}
	return false
}

// Move is one stock movement. CostMoved is the absolute value the move
// carried through the GL: qty at unit cost for inbound, qty at the running
// average for outbound. AvgCostAfter and QtyAfter snapshot the stock level
// after the move, forming the stock card.
type Move struct {
	ID             int64     `json:"id"`
	SchoolID       int64     `json:"school_id"`
	ItemID         int64     `json:"item_id"`
	WarehouseID    int64     `json:"warehouse_id"`
	MoveType       MoveType  `json:"move_type"`
	Quantity       float64   `json:"quantity"`
	UnitCost       float64   `json:"unit_cost"`
	CostMoved      float64   `json:"cost_moved"`
	QtyAfter       float64   `json:"qty_after"`
	AvgCostAfter   float64   `json:"avg_cost_after"`
	MoveDate       time.Time `json:"move_date"`
	Reference      string    `json:"reference,omitempty"`
	JournalEntryID *int64    `json:"journal_entry_id,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

// Stock is the current level and moving-average cost of one item in one
// warehouse. Valuation is always qty times average, rounded to 2 decimals.
type Stock struct {
	SchoolID    int64     `json:"school_id"`
	ItemID      int64     `json:"item_id"`
	WarehouseID int64     `json:"warehouse_id"`
	Quantity    float64   `json:"quantity"`
	AvgCost     float64   `json:"avg_cost"`
	Valuation   float64   `json:"valuation"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// RecordMoveInput describes a purchase receipt, sale issue or adjustment.
// Transfers go through TransferInput. Outbound adjustments set Outbound.
type RecordMoveInput struct {
	SchoolID    int64
	ActorID     int64
	ItemID      int64
	WarehouseID int64
	MoveType    MoveType
	Quantity    float64
	UnitCost    float64
	Outbound    bool
	MoveDate    time.Time
	Reference   string
}

// TransferInput moves stock between two warehouses at the source's running
// average cost.
type TransferInput struct {
	SchoolID        int64
	ActorID         int64
	ItemID          int64
	FromWarehouseID int64
	ToWarehouseID   int64
	Quantity        float64
	MoveDate        time.Time
	Reference       string
}
