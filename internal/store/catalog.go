package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"meddispense/m/domain"
)

// Catalog reads the medications table.
type Catalog struct {
	db *sqlx.DB
}

// NewCatalog constructs a Catalog.
func NewCatalog(db *sqlx.DB) *Catalog {
	return &Catalog{db: db}
}

// Lookup returns the color marker stored for an exact (name, dosage) pair.
// A missing row is reported through found, not as an error.
func (c *Catalog) Lookup(ctx context.Context, name, dosage string) (string, bool, error) {
	var color string
	err := c.db.GetContext(ctx, &color, c.db.Rebind(`SELECT color FROM medications WHERE name = ? AND dosage = ? ORDER BY id LIMIT 1`), name, dosage)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("lookup %s %s: %w", name, dosage, err)
	}
	return color, true, nil
}

// List returns every catalog entry ordered by name and dosage.
func (c *Catalog) List(ctx context.Context) ([]domain.Medication, error) {
	medications := []domain.Medication{}
	if err := c.db.SelectContext(ctx, &medications, `SELECT id, name, dosage, color, location FROM medications ORDER BY name, dosage`); err != nil {
		return nil, fmt.Errorf("list medications: %w", err)
	}
	return medications, nil
}
