package seed

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"meddispense/m/domain"
	"meddispense/m/internal/migrations"
)

func strPtr(s string) *string { return &s }

// Starter is the catalog installed on an empty database.
var Starter = []domain.Medication{
	{Name: "Paracetamol", Dosage: "500mg", Color: "red", Location: strPtr("shelf_A")},
	{Name: "Ibuprofen", Dosage: "200mg", Color: "blue", Location: strPtr("shelf_B")},
	{Name: "Amoxicillin", Dosage: "250mg", Color: "green", Location: strPtr("shelf_C")},
}

// Catalog creates the schema and, only when the medications table is empty,
// inserts the given entries. Running it again is a no-op.
func Catalog(ctx context.Context, db *sqlx.DB, logger *zap.Logger, entries []domain.Medication) error {
	if err := migrations.Run(db); err != nil {
		return err
	}

	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("unable to start catalog transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var existing int64
	if err := tx.GetContext(ctx, &existing, `SELECT COUNT(*) FROM medications`); err != nil {
		return fmt.Errorf("unable to count medications: %w", err)
	}
	if existing > 0 {
		logger.Debug("catalog already seeded", zap.Int64("rows", existing))
		return nil
	}

	stmt, err := tx.PreparexContext(ctx, tx.Rebind(`INSERT INTO medications (name, dosage, color, location) VALUES (?, ?, ?, ?)`))
	if err != nil {
		return fmt.Errorf("unable to prepare medication insert: %w", err)
	}
	defer stmt.Close()

	for _, med := range entries {
		if _, err := stmt.ExecContext(ctx, med.Name, med.Dosage, med.Color, med.Location); err != nil {
			return fmt.Errorf("unable to insert medication %s %s: %w", med.Name, med.Dosage, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("unable to commit catalog seed: %w", err)
	}
	logger.Info("seeded medication catalog", zap.Int("rows", len(entries)))
	return nil
}

// LoadCSV reads catalog entries from a CSV file with the header
// name,dosage,color,location. Rows missing a name, dosage or color are skipped.
func LoadCSV(path string, logger *zap.Logger) ([]domain.Medication, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("unable to open catalog %s: %w", path, err)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.FieldsPerRecord = -1
	// Skip header
	if _, err := reader.Read(); err != nil {
		return nil, fmt.Errorf("unable to read catalog header: %w", err)
	}

	var entries []domain.Medication
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			logger.Warn("unable to read catalog row", zap.Error(err))
			continue
		}
		if len(record) < 3 {
			continue
		}
		med := domain.Medication{
			Name:   strings.TrimSpace(record[0]),
			Dosage: strings.TrimSpace(record[1]),
			Color:  strings.TrimSpace(record[2]),
		}
		if med.Name == "" || med.Dosage == "" || med.Color == "" {
			continue
		}
		if len(record) > 3 && strings.TrimSpace(record[3]) != "" {
			med.Location = strPtr(strings.TrimSpace(record[3]))
		}
		entries = append(entries, med)
	}
	if len(entries) == 0 {
		return nil, fmt.Errorf("catalog %s has no usable rows", path)
	}
	return entries, nil
}
