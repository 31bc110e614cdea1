package outbox

import (
	"database/sql"
	"fmt"
	"time"

	"veriado/internal/logging"
	"veriado/internal/model"
)

// ClaimIdempotencyKey attempts to record requestID as seen. Returns
// ok=false (no error) if the key was already present, so the caller
// can treat the request as a no-op duplicate rather than redo its
// side effects — the INSERT OR IGNORE idiom for an idempotency guard.
func ClaimIdempotencyKey(tx *sql.Tx, requestID string, now time.Time) (ok bool, err error) {
	res, err := tx.Exec(
		`INSERT OR IGNORE INTO idempotency_keys(request_id, created_utc) VALUES (?, ?)`,
		requestID, now.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return false, model.Transient("outbox.ClaimIdempotencyKey", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, model.Transient("outbox.ClaimIdempotencyKey", err)
	}
	return n > 0, nil
}

// SweepExpiredKeys deletes idempotency keys older than ttl. Nothing in
// this module schedules it; callers invoke it directly.
func SweepExpiredKeys(db *sql.DB, ttl time.Duration, now time.Time) (int64, error) {
	cutoff := now.Add(-ttl).UTC().Format(time.RFC3339Nano)
	res, err := db.Exec(`DELETE FROM idempotency_keys WHERE created_utc < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("outbox: sweep expired keys: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("outbox: sweep rows affected: %w", err)
	}
	if n > 0 {
		logging.Outbox("swept %d expired idempotency keys", n)
	}
	return n, nil
}
