package posting

import "time"

// Source modules feeding the posting engine.
const (
	ModuleGL        = "GL"
	ModuleAR        = "AR"
	ModuleAP        = "AP"
	ModuleInventory = "INVENTORY"
	ModuleAssets    = "ASSETS"
	ModulePayroll   = "PAYROLL"
)

// Transaction types per module. The set is closed: unknown combinations are
// rejected at configuration time, not discovered at posting time.
const (
	TxnARInvoice        = "AR_INVOICE"
	TxnARReceipt        = "AR_RECEIPT"
	TxnAPBill           = "AP_BILL"
	TxnAPPayment        = "AP_PAYMENT"
	TxnPurchaseReceipt  = "PURCHASE_RECEIPT"
	TxnIssueSale        = "ISSUE_SALE"
	TxnStockAdjustment  = "ADJUSTMENT"
	TxnAssetCapitalize  = "CAPITALIZE"
	TxnAssetDepreciate  = "DEPRECIATE"
	TxnAssetDispose     = "DISPOSE"
	TxnPayrollRun       = "PAYROLL_RUN"
	TxnManualAdjustment = "MANUAL"
)

var knownEvents = map[string]map[string]bool{
	ModuleGL:        {TxnManualAdjustment: true},
	ModuleAR:        {TxnARInvoice: true, TxnARReceipt: true},
	ModuleAP:        {TxnAPBill: true, TxnAPPayment: true},
	ModuleInventory: {TxnPurchaseReceipt: true, TxnIssueSale: true, TxnStockAdjustment: true},
	ModuleAssets:    {TxnAssetCapitalize: true, TxnAssetDepreciate: true, TxnAssetDispose: true},
	ModulePayroll:   {TxnPayrollRun: true},
}

// KnownEvent reports whether (module, txnType) is a recognised combination.
func KnownEvent(module, txnType string) bool {
	return knownEvents[module][txnType]
}

// Rule maps a (module, transaction type) event to its default debit/credit
// account pair. One active rule per combination per school.
type Rule struct {
	ID              int64     `json:"id"`
	SchoolID        int64     `json:"school_id"`
	Module          string    `json:"module"`
	TxnType         string    `json:"txn_type"`
	DebitAccountID  int64     `json:"debit_account_id"`
	CreditAccountID int64     `json:"credit_account_id"`
	IsActive        bool      `json:"is_active"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// Event is the append-only idempotency log row. The unique key per school
// guarantees at most one journal per logical business event.
type Event struct {
	ID             int64     `json:"id"`
	SchoolID       int64     `json:"school_id"`
	Module         string    `json:"module"`
	TxnType        string    `json:"txn_type"`
	SourceRef      string    `json:"source_ref"`
	IdempotencyKey string    `json:"idempotency_key"`
	Amount         float64   `json:"amount"`
	JournalEntryID int64     `json:"journal_entry_id"`
	CreatedAt      time.Time `json:"created_at"`
}
