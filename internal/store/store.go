package store

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// TimestampLayout is how dispense timestamps are persisted (UTC).
const TimestampLayout = "2006-01-02 15:04:05"

// withTx runs fn inside a transaction that is committed when fn returns nil
// and rolled back otherwise.
func withTx(ctx context.Context, db *sqlx.DB, fn func(tx *sqlx.Tx) error) error {
	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}
