package taxes

// Tax represents a tax code configuration.
type Tax struct {
	ID       int64   `json:"id"`
	SchoolID int64   `json:"school_id"`
	Code     string  `json:"code"`
	Name     string  `json:"name"`
	Rate     float64 `json:"rate"`
}
