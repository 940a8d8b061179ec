package payroll

import "time"

// RunStatus enumerates the payroll run lifecycle. Locked is the approval
// gate: a locked run is immutable and eligible for posting.
type RunStatus string

const (
	StatusDraft     RunStatus = "DRAFT"
	StatusGenerated RunStatus = "GENERATED"
	StatusLocked    RunStatus = "LOCKED"
	StatusPosted    RunStatus = "POSTED"
)

// SalaryStructure is the active pay definition for one employee. Net pay is
// basic plus allowances minus deductions and tax.
type SalaryStructure struct {
	ID            int64     `json:"id"`
	SchoolID      int64     `json:"school_id"`
	EmployeeID    int64     `json:"employee_id"`
	Basic         float64   `json:"basic"`
	Allowances    float64   `json:"allowances"`
	Deductions    float64   `json:"deductions"`
	Tax           float64   `json:"tax"`
	IsActive      bool      `json:"is_active"`
	EffectiveFrom time.Time `json:"effective_from"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// Gross returns basic plus allowances.
func (s SalaryStructure) Gross() float64 {
	return s.Basic + s.Allowances
}

// Net returns gross minus deductions and tax.
func (s SalaryStructure) Net() float64 {
	return s.Gross() - s.Deductions - s.Tax
}

// Run is one payroll cycle, usually a month.
type Run struct {
	ID              int64     `json:"id"`
	SchoolID        int64     `json:"school_id"`
	PeriodLabel     string    `json:"period_label"`
	RunDate         time.Time `json:"run_date"`
	Status          RunStatus `json:"status"`
	TotalGross      float64   `json:"total_gross"`
	TotalDeductions float64   `json:"total_deductions"`
	TotalTax        float64   `json:"total_tax"`
	TotalNet        float64   `json:"total_net"`
	LockedBy        *int64    `json:"locked_by,omitempty"`
	JournalEntryID  *int64    `json:"journal_entry_id,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
	Lines           []RunLine `json:"lines,omitempty"`
}

// RunLine snapshots one employee's pay for the run. The snapshot keeps the
// run stable even when the structure changes afterwards.
type RunLine struct {
	ID         int64   `json:"id"`
	RunID      int64   `json:"run_id"`
	EmployeeID int64   `json:"employee_id"`
	Basic      float64 `json:"basic"`
	Allowances float64 `json:"allowances"`
	Deductions float64 `json:"deductions"`
	Tax        float64 `json:"tax"`
	Gross      float64 `json:"gross"`
	Net        float64 `json:"net"`
}

// UpsertStructureInput creates or replaces an employee's salary structure.
type UpsertStructureInput struct {
	SchoolID      int64
	ActorID       int64
	EmployeeID    int64
	Basic         float64
	Allowances    float64
	Deductions    float64
	Tax           float64
	EffectiveFrom time.Time
}
