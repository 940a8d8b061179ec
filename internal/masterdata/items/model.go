package items

// Item is a stock-kept item (uniforms, books, lab supplies).
type Item struct {
	ID       int64  `json:"id"`
	SchoolID int64  `json:"school_id"`
	Code     string `json:"code"`
	Name     string `json:"name"`
	UoM      string `json:"uom"`
}
