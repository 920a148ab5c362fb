package domain

import "time"

// DispenseEvent is written once per container the arm actually picked.
type DispenseEvent struct {
	ID             int64     `db:"id" json:"id"`
	MedicationName string    `db:"medication_name" json:"medication_name"`
	Dosage         string    `db:"dosage" json:"dosage"`
	DispensedAt    time.Time `db:"dispense_timestamp" json:"dispense_timestamp"`
}

// RequestItem is one row of a dispense form.
type RequestItem struct {
	MedicationName string `json:"medication_name"`
	Dosage         string `json:"dosage"`
	Quantity       int    `json:"quantity"`
}
