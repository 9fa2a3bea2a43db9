package models

// Profile holds the baby's details. It is persisted as a small JSON file per user,
// not in the database.
type Profile struct {
	Name  string `json:"name"`
	Birth string `json:"birth"` // YYYY-MM-DD, empty when unknown
}
