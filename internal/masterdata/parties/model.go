package parties

import "time"

// PartyKind separates the counterparty roles the sub-ledgers use.
type PartyKind string

const (
	KindCustomer PartyKind = "CUSTOMER"
	KindVendor   PartyKind = "VENDOR"
	KindEmployee PartyKind = "EMPLOYEE"
)

// Valid reports whether k is a known kind.
func (k PartyKind) Valid() bool {
	switch k {
	case KindCustomer, KindVendor, KindEmployee:
		return true
	}
	return false
}

// Party is a customer, vendor or employee referenced by sub-ledger documents.
// Students' guardians appear as customers for tuition billing.
type Party struct {
	ID        int64     `json:"id"`
	SchoolID  int64     `json:"school_id"`
	Kind      PartyKind `json:"kind"`
	Code      string    `json:"code"`
	Name      string    `json:"name"`
	Email     string    `json:"email,omitempty"`
	Phone     string    `json:"phone,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
