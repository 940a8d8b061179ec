package periods

import "time"

// PeriodStatus gates postability of a fiscal period.
type PeriodStatus string

const (
	StatusOpen   PeriodStatus = "OPEN"
	StatusClosed PeriodStatus = "CLOSED"
)

// Period is a fiscal period, e.g. one month of a school year.
type Period struct {
	ID        int64        `json:"id"`
	SchoolID  int64        `json:"school_id"`
	Code      string       `json:"code"`
	StartDate time.Time    `json:"start_date"`
	EndDate   time.Time    `json:"end_date"`
	Status    PeriodStatus `json:"status"`
	ClosedAt  *time.Time   `json:"closed_at,omitempty"`
	ClosedBy  *int64       `json:"closed_by,omitempty"`
	CreatedAt time.Time    `json:"created_at"`
	UpdatedAt time.Time    `json:"updated_at"`
}

// Contains reports whether d falls inside the period date range.
func (p Period) Contains(d time.Time) bool {
	day := d.Truncate(24 * time.Hour)
	return !day.Before(p.StartDate.Truncate(24*time.Hour)) && !day.After(p.EndDate.Truncate(24*time.Hour))
}
