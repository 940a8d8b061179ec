package ar

import (
	"time"
)

// InvoiceStatus enumerates AR invoice statuses.
type InvoiceStatus string

const (
	StatusDraft         InvoiceStatus = "DRAFT"
	StatusPosted        InvoiceStatus = "POSTED"
	StatusPartiallyPaid InvoiceStatus = "PARTIALLY_PAID"
	StatusPaid          InvoiceStatus = "PAID"
)

// Invoice is a receivable document, typically a tuition or fee invoice.
type Invoice struct {
	ID             int64         `json:"id"`
	SchoolID       int64         `json:"school_id"`
	Number         string        `json:"number"`
	CustomerID     int64         `json:"customer_id"`
	InvoiceDate    time.Time     `json:"invoice_date"`
	DueDate        time.Time     `json:"due_date"`
	Subtotal       float64       `json:"subtotal"`
	TaxTotal       float64       `json:"tax_total"`
	Total          float64       `json:"total"`
	PaidAmount     float64       `json:"paid_amount"`
	Status         InvoiceStatus `json:"status"`
	JournalEntryID *int64        `json:"journal_entry_id,omitempty"`
	CreatedAt      time.Time     `json:"created_at"`
	UpdatedAt      time.Time     `json:"updated_at"`
	Lines          []InvoiceLine `json:"lines,omitempty"`
}

// Outstanding returns the unpaid remainder.
func (i Invoice) Outstanding() float64 {
	return i.Total - i.PaidAmount
}

// InvoiceLine is one billed item. Amounts are computed, never taken from the
// caller: subtotal = qty * unit price, tax = subtotal * rate.
type InvoiceLine struct {
	ID          int64   `json:"id"`
	InvoiceID   int64   `json:"invoice_id"`
	Description string  `json:"description"`
	Quantity    float64 `json:"quantity"`
	UnitPrice   float64 `json:"unit_price"`
	TaxRate     float64 `json:"tax_rate"`
	Subtotal    float64 `json:"subtotal"`
	TaxAmount   float64 `json:"tax_amount"`
	Total       float64 `json:"total"`
}

// Receipt records money received from a customer, optionally allocated to one
// invoice.
type Receipt struct {
	ID             int64     `json:"id"`
	SchoolID       int64     `json:"school_id"`
	Number         string    `json:"number"`
	CustomerID     int64     `json:"customer_id"`
	InvoiceID      *int64    `json:"invoice_id,omitempty"`
	Amount         float64   `json:"amount"`
	ReceiptDate    time.Time `json:"receipt_date"`
	Method         string    `json:"method,omitempty"`
	Reference      string    `json:"reference,omitempty"`
	JournalEntryID *int64    `json:"journal_entry_id,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

// CreateInvoiceInput describes an invoice creation request.
type CreateInvoiceInput struct {
	SchoolID    int64
	ActorID     int64
	CustomerID  int64
	InvoiceDate time.Time
	DueDate     time.Time
	Lines       []CreateInvoiceLineInput
}

// CreateInvoiceLineInput describes one billed item.
type CreateInvoiceLineInput struct {
	Description string  `json:"description"`
	Quantity    float64 `json:"quantity"`
	UnitPrice   float64 `json:"unit_price"`
	TaxRate     float64 `json:"tax_rate"`
}

// CreateReceiptInput describes a receipt registration request.
type CreateReceiptInput struct {
	SchoolID    int64
	ActorID     int64
	CustomerID  int64
	InvoiceID   *int64
	Amount      float64
	ReceiptDate time.Time
	Method      string
	Reference   string
}

// AgingBucket summarises outstanding balances by days past due.
type AgingBucket struct {
	Current   float64 `json:"bucket_0_30"`
	Bucket60  float64 `json:"bucket_31_60"`
	Bucket90  float64 `json:"bucket_61_90"`
	Bucket90P float64 `json:"bucket_90_plus"`
	Total     float64 `json:"total"`
}

// StatementRow is one line of a customer statement: an invoice or a receipt.
type StatementRow struct {
	Date      time.Time `json:"date"`
	DocType   string    `json:"doc_type"`
	Number    string    `json:"number"`
	Debit     float64   `json:"debit"`
	Credit    float64   `json:"credit"`
	Reference string    `json:"reference,omitempty"`
}
