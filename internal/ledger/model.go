package ledger

import "time"

// JournalStatus enumerates journal lifecycle values.
type JournalStatus string

const (
	StatusDraft    JournalStatus = "DRAFT"
	StatusPosted   JournalStatus = "POSTED"
	StatusReversed JournalStatus = "REVERSED"
)

// BalanceTolerance is the maximum accepted |debit-credit| difference on an
// entry. Amounts are stored at 2 decimals; the tolerance absorbs float noise.
const BalanceTolerance = 0.0001

// JournalEntry is the atomic ledger unit: a balanced set of lines.
type JournalEntry struct {
	ID              int64         `json:"id"`
	SchoolID        int64         `json:"school_id"`
	JournalNo       string        `json:"journal_no"`
	EntryDate       time.Time     `json:"entry_date"`
	PeriodID        int64         `json:"period_id"`
	Description     string        `json:"description,omitempty"`
	Reference       string        `json:"reference,omitempty"`
	Status          JournalStatus `json:"status"`
	TotalDebit      float64       `json:"total_debit"`
	TotalCredit     float64       `json:"total_credit"`
	ReversedEntryID *int64        `json:"reversed_entry_id,omitempty"`
	ReversalOfID    *int64        `json:"reversal_of_id,omitempty"`
	PostedBy        *int64        `json:"posted_by,omitempty"`
	PostedAt        *time.Time    `json:"posted_at,omitempty"`
	CreatedAt       time.Time     `json:"created_at"`
	UpdatedAt       time.Time     `json:"updated_at"`
	Lines           []JournalLine `json:"lines,omitempty"`
}

// JournalLine stores a debit or credit amount for an account. A line carries
// exactly one of debit/credit, never both and never negative.
type JournalLine struct {
	ID             int64   `json:"id"`
	JournalEntryID int64   `json:"journal_entry_id"`
	LineNo         int     `json:"line_no"`
	AccountID      int64   `json:"account_id"`
	Description    string  `json:"description,omitempty"`
	Debit          float64 `json:"debit"`
	Credit         float64 `json:"credit"`
	CostCenterID   *int64  `json:"cost_center_id,omitempty"`
	TaxCodeID      *int64  `json:"tax_code_id,omitempty"`
	PartyID        *int64  `json:"party_id,omitempty"`
}
