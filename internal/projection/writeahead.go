package projection

import (
	"database/sql"
	"fmt"
	"time"

	"veriado/internal/logging"
	"veriado/internal/model"
)

// Enqueue appends a write-ahead record when an inline projection write
// failed for a retryable reason (SQLITE_BUSY, a transient I/O error).
// Called from the same transaction as the aggregate write that
// triggered it, so the intent to reconcile survives even if the
// process crashes before the background drain runs.
func Enqueue(tx *sql.Tx, id model.FileID, op model.WriteAheadOp, contentHash, tokenHash string, now time.Time) error {
	_, err := tx.Exec(
		`INSERT INTO fts_write_ahead(file_id, op, content_hash, token_hash, enqueued_utc, attempts)
		 VALUES (?, ?, ?, ?, ?, 0)`,
		id.String(), string(op), contentHash, tokenHash, now.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return model.Transient("projection.Enqueue", err)
	}
	logging.ProjectionWarn("enqueued write-ahead record for %s op=%s", id, op)
	return nil
}

// PendingRecord is one row read back off the write-ahead queue.
type PendingRecord struct {
	Seq         int64
	FileID      string
	Op          model.WriteAheadOp
	ContentHash string
	TokenHash   string
	Attempts    int
}

// ListPending returns up to limit oldest write-ahead records (FIFO by
// seq), for the drain loop to process in order.
func ListPending(db *sql.DB, limit int) ([]PendingRecord, error) {
	rows, err := db.Query(
		`SELECT seq, file_id, op, COALESCE(content_hash,''), COALESCE(token_hash,''), attempts
		 FROM fts_write_ahead ORDER BY seq ASC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("projection: list pending: %w", err)
	}
	defer rows.Close()

	var out []PendingRecord
	for rows.Next() {
		var r PendingRecord
		var op string
		if err := rows.Scan(&r.Seq, &r.FileID, &op, &r.ContentHash, &r.TokenHash, &r.Attempts); err != nil {
			return nil, fmt.Errorf("projection: scan pending: %w", err)
		}
		r.Op = model.WriteAheadOp(op)
		out = append(out, r)
	}
	return out, rows.Err()
}

// Complete removes a successfully reconciled write-ahead record.
func Complete(tx *sql.Tx, seq int64) error {
	_, err := tx.Exec(`DELETE FROM fts_write_ahead WHERE seq = ?`, seq)
	return err
}

// Retry increments a record's attempt counter and records the error
// that caused this attempt to fail, or dead-letters it if maxAttempts
// has now been reached.
func Retry(tx *sql.Tx, rec PendingRecord, cause error, maxAttempts int, now time.Time) error {
	attempts := rec.Attempts + 1
	if attempts >= maxAttempts {
		return deadLetter(tx, rec, attempts, cause, now)
	}
	_, err := tx.Exec(
		`UPDATE fts_write_ahead SET attempts = ?, last_error = ? WHERE seq = ?`,
		attempts, cause.Error(), rec.Seq,
	)
	if err != nil {
		return fmt.Errorf("projection: update retry count: %w", err)
	}
	logging.ProjectionWarn("write-ahead record seq=%d for %s failed (attempt %d/%d): %v",
		rec.Seq, rec.FileID, attempts, maxAttempts, cause)
	return nil
}

func deadLetter(tx *sql.Tx, rec PendingRecord, attempts int, cause error, now time.Time) error {
	_, err := tx.Exec(
		`INSERT INTO fts_write_ahead_dead_letter(
		    seq, original_seq, file_id, op, content_hash, token_hash,
		    enqueued_utc, attempts, dead_lettered_utc, error
		 ) SELECT seq, seq, file_id, op, content_hash, token_hash,
		          enqueued_utc, ?, ?, ?
		   FROM fts_write_ahead WHERE seq = ?`,
		attempts, now.UTC().Format(time.RFC3339Nano), cause.Error(), rec.Seq,
	)
	if err != nil {
		return fmt.Errorf("projection: insert dead letter: %w", err)
	}
	if _, err := tx.Exec(`DELETE FROM fts_write_ahead WHERE seq = ?`, rec.Seq); err != nil {
		return fmt.Errorf("projection: remove dead-lettered record: %w", err)
	}
	logging.ProjectionWarn("dead-lettered write-ahead record seq=%d for %s after %d attempts: %v",
		rec.Seq, rec.FileID, attempts, cause)
	return nil
}
