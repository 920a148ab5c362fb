package store

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"meddispense/m/domain"
)

// DispenseLog is the append-only dispensing_log table.
type DispenseLog struct {
	db *sqlx.DB
}

// NewDispenseLog constructs a DispenseLog.
func NewDispenseLog(db *sqlx.DB) *DispenseLog {
	return &DispenseLog{db: db}
}

type logRow struct {
	ID             int64  `db:"id"`
	MedicationName string `db:"medication_name"`
	Dosage         string `db:"dosage"`
	Timestamp      string `db:"dispense_timestamp"`
}

func (r logRow) event() domain.DispenseEvent {
	at, err := time.ParseInLocation(TimestampLayout, r.Timestamp, time.UTC)
	if err != nil {
		// Rows written by other tools may carry RFC 3339 timestamps.
		at, _ = time.Parse(time.RFC3339, r.Timestamp)
	}
	return domain.DispenseEvent{
		ID:             r.ID,
		MedicationName: r.MedicationName,
		Dosage:         r.Dosage,
		DispensedAt:    at,
	}
}

// Record appends one dispense event in its own transaction.
func (l *DispenseLog) Record(ctx context.Context, name, dosage string, at time.Time) (domain.DispenseEvent, error) {
	at = at.UTC().Truncate(time.Second)
	event := domain.DispenseEvent{MedicationName: name, Dosage: dosage, DispensedAt: at}

	err := withTx(ctx, l.db, func(tx *sqlx.Tx) error {
		return tx.QueryRowxContext(ctx,
			tx.Rebind(`INSERT INTO dispensing_log (medication_name, dosage, dispense_timestamp) VALUES (?, ?, ?) RETURNING id`),
			name, dosage, at.Format(TimestampLayout)).Scan(&event.ID)
	})
	if err != nil {
		return domain.DispenseEvent{}, fmt.Errorf("record dispense of %s %s: %w", name, dosage, err)
	}
	return event, nil
}

// Recent returns up to limit events, newest first.
func (l *DispenseLog) Recent(ctx context.Context, limit int) ([]domain.DispenseEvent, error) {
	var rows []logRow
	if err := l.db.SelectContext(ctx, &rows,
		l.db.Rebind(`SELECT id, medication_name, dosage, dispense_timestamp FROM dispensing_log ORDER BY id DESC LIMIT ?`), limit); err != nil {
		return nil, fmt.Errorf("list dispense log: %w", err)
	}
	events := make([]domain.DispenseEvent, len(rows))
	for i, row := range rows {
		events[i] = row.event()
	}
	return events, nil
}

// Count returns the number of recorded events.
func (l *DispenseLog) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := l.db.GetContext(ctx, &n, `SELECT COUNT(*) FROM dispensing_log`); err != nil {
		return 0, fmt.Errorf("count dispense log: %w", err)
	}
	return n, nil
}
