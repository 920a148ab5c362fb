package domain

// Medication is one catalog row. The color marker names the container the
// robot has to look for.
type Medication struct {
	ID       int64   `db:"id" json:"id"`
	Name     string  `db:"name" json:"name"`
	Dosage   string  `db:"dosage" json:"dosage"`
	Color    string  `db:"color" json:"color"`
	Location *string `db:"location" json:"location,omitempty"`
}
