package warehouses

// Warehouse is a storage location (store room, lab, canteen).
type Warehouse struct {
	ID       int64  `json:"id"`
	SchoolID int64  `json:"school_id"`
	Code     string `json:"code"`
	Name     string `json:"name"`
}
