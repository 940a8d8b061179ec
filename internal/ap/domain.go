package ap

import "time"

// BillStatus enumerates AP bill statuses.
type BillStatus string

const (
	StatusDraft         BillStatus = "DRAFT"
	StatusPosted        BillStatus = "POSTED"
	StatusPartiallyPaid BillStatus = "PARTIALLY_PAID"
	StatusPaid          BillStatus = "PAID"
)

// Bill is a payable document from a vendor.
type Bill struct {
	ID             int64      `json:"id"`
	SchoolID       int64      `json:"school_id"`
	Number         string     `json:"number"`
	VendorID       int64      `json:"vendor_id"`
	VendorRef      string     `json:"vendor_ref,omitempty"`
	BillDate       time.Time  `json:"bill_date"`
	DueDate        time.Time  `json:"due_date"`
	Subtotal       float64    `json:"subtotal"`
	TaxTotal       float64    `json:"tax_total"`
	Total          float64    `json:"total"`
	PaidAmount     float64    `json:"paid_amount"`
	Status         BillStatus `json:"status"`
	JournalEntryID *int64     `json:"journal_entry_id,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
	Lines          []BillLine `json:"lines,omitempty"`
}

// Outstanding returns the unpaid remainder.
func (b Bill) Outstanding() float64 {
	return b.Total - b.PaidAmount
}

// BillLine is one billed cost. ExpenseAccountID lets a line hit a specific
// expense account instead of the configured default.
type BillLine struct {
	ID               int64   `json:"id"`
	BillID           int64   `json:"bill_id"`
	Description      string  `json:"description"`
	Quantity         float64 `json:"quantity"`
	UnitPrice        float64 `json:"unit_price"`
	TaxRate          float64 `json:"tax_rate"`
	Subtotal         float64 `json:"subtotal"`
	TaxAmount        float64 `json:"tax_amount"`
	Total            float64 `json:"total"`
	ExpenseAccountID *int64  `json:"expense_account_id,omitempty"`
}

// Payment records money paid to a vendor, optionally allocated to one bill.
type Payment struct {
	ID             int64     `json:"id"`
	SchoolID       int64     `json:"school_id"`
	Number         string    `json:"number"`
	VendorID       int64     `json:"vendor_id"`
	BillID         *int64    `json:"bill_id,omitempty"`
	Amount         float64   `json:"amount"`
	PaymentDate    time.Time `json:"payment_date"`
	Method         string    `json:"method,omitempty"`
	Reference      string    `json:"reference,omitempty"`
	JournalEntryID *int64    `json:"journal_entry_id,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

// CreateBillInput describes a bill creation request.
type CreateBillInput struct {
	SchoolID  int64
	ActorID   int64
	VendorID  int64
	VendorRef string
	BillDate  time.Time
	DueDate   time.Time
	Lines     []CreateBillLineInput
}

// CreateBillLineInput describes one billed cost.
type CreateBillLineInput struct {
	Description      string  `json:"description"`
	Quantity         float64 `json:"quantity"`
	UnitPrice        float64 `json:"unit_price"`
	TaxRate          float64 `json:"tax_rate"`
	ExpenseAccountID *int64  `json:"expense_account_id,omitempty"`
}

// CreatePaymentInput describes a payment registration request.
type CreatePaymentInput struct {
	SchoolID    int64
	ActorID     int64
	VendorID    int64
	BillID      *int64
	Amount      float64
	PaymentDate time.Time
	Method      string
	Reference   string
}

// AgingBucket summarises outstanding payables by days past due.
type AgingBucket struct {
	Current   float64 `json:"bucket_0_30"`
	Bucket60  float64 `json:"bucket_31_60"`
	Bucket90  float64 `json:"bucket_61_90"`
	Bucket90P float64 `json:"bucket_90_plus"`
	Total     float64 `json:"total"`
}

// StatementRow is one line of a vendor statement.
type StatementRow struct {
	Date      time.Time `json:"date"`
	DocType   string    `json:"doc_type"`
	Number    string    `json:"number"`
	Debit     float64   `json:"debit"`
	Credit    float64   `json:"credit"`
	Reference string    `json:"reference,omitempty"`
}
