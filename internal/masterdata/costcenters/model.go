package costcenters

// CostCenter tags journal lines for management reporting.
type CostCenter struct {
	ID       int64  `json:"id"`
	SchoolID int64  `json:"school_id"`
	Code     string `json:"code"`
	Name     string `json:"name"`
}
