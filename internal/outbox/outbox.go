// Package outbox implements the transactional outbox pattern: side
// effects (e.g. "file reindexed", "file deleted") are appended in the
// same transaction as the aggregate write that caused them, then
// dispatched separately so a crash between commit and delivery never
// loses or duplicates the effect at the storage layer (delivery
// exactly-once is the dispatcher's job via idempotency keys).
package outbox

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"veriado/internal/logging"
)

// Append records one event inside tx, alongside whatever aggregate
// write produced it.
func Append(tx *sql.Tx, eventType string, payload interface{}, now time.Time) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("outbox: marshal payload: %w", err)
	}
	_, err = tx.Exec(
		`INSERT INTO outbox_events(type, payload_json, created_utc) VALUES (?, ?, ?)`,
		eventType, string(data), now.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("outbox: append: %w", err)
	}
	return nil
}

// Event is one unprocessed outbox row.
type Event struct {
	Seq         int64
	Type        string
	PayloadJSON string
	CreatedUTC  time.Time
}

// ListUnprocessed returns up to limit oldest unprocessed events (FIFO
// by seq), for the dispatcher to hand to subscribers in order.
func ListUnprocessed(db *sql.DB, limit int) ([]Event, error) {
	rows, err := db.Query(
		`SELECT seq, type, payload_json, created_utc FROM outbox_events
		 WHERE processed_utc IS NULL ORDER BY seq ASC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("outbox: list unprocessed: %w", err)
	}
	defer rows.Close()

	var out []Event
	for rows.Next() {
		var e Event
		var created string
		if err := rows.Scan(&e.Seq, &e.Type, &e.PayloadJSON, &created); err != nil {
			return nil, fmt.Errorf("outbox: scan: %w", err)
		}
		e.CreatedUTC, _ = time.Parse(time.RFC3339Nano, created)
		out = append(out, e)
	}
	return out, rows.Err()
}

// MarkProcessed stamps an event as delivered. Safe to call more than
// once for the same seq.
func MarkProcessed(tx *sql.Tx, seq int64, now time.Time) error {
	_, err := tx.Exec(
		`UPDATE outbox_events SET processed_utc = ? WHERE seq = ? AND processed_utc IS NULL`,
		now.UTC().Format(time.RFC3339Nano), seq,
	)
	if err != nil {
		return fmt.Errorf("outbox: mark processed: %w", err)
	}
	logging.OutboxDebug("marked outbox event seq=%d processed", seq)
	return nil
}
