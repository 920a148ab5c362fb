package migrations

import (
	"fmt"

	"github.com/jmoiron/sqlx"
)

var sqliteSchema = []string{
	`CREATE TABLE IF NOT EXISTS medications (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            name TEXT NOT NULL,
            dosage TEXT NOT NULL,
            color TEXT NOT NULL,
            location TEXT
        );`,
	`CREATE TABLE IF NOT EXISTS dispensing_log (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            medication_name TEXT NOT NULL,
            dosage TEXT NOT NULL,
            dispense_timestamp TEXT NOT NULL
        );`,
	`CREATE INDEX IF NOT EXISTS idx_medications_name_dosage ON medications (name, dosage);`,
}

var postgresSchema = []string{
	`CREATE TABLE IF NOT EXISTS medications (
            id BIGSERIAL PRIMARY KEY,
            name TEXT NOT NULL,
            dosage TEXT NOT NULL,
            color TEXT NOT NULL,
            location TEXT
        );`,
	`CREATE TABLE IF NOT EXISTS dispensing_log (
            id BIGSERIAL PRIMARY KEY,
            medication_name TEXT NOT NULL,
            dosage TEXT NOT NULL,
            dispense_timestamp TEXT NOT NULL
        );`,
	`CREATE INDEX IF NOT EXISTS idx_medications_name_dosage ON medications (name, dosage);`,
}

// Run creates the catalog and dispensing log tables. It is safe to call on
// an existing schema.
func Run(db *sqlx.DB) error {
	schema := sqliteSchema
	if db.DriverName() == "pgx" {
		schema = postgresSchema
	}

	for _, stmt := range schema {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
	}
	return nil
}
