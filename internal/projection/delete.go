package projection

import (
	"database/sql"
	"fmt"

	"veriado/internal/logging"
	"veriado/internal/model"
)

// Delete removes every projection row for id. Idempotent: deleting a
// file with no projection row is not an error, matching the outbox's
// at-least-once redelivery semantics (a delete can be replayed safely).
func Delete(tx *sql.Tx, id model.FileID) error {
	fid := id.String()
	stmts := []string{
		`DELETE FROM file_search_fts WHERE file_id = ?`,
		`DELETE FROM file_trigram WHERE file_id = ?`,
		`DELETE FROM file_search_map WHERE file_id = ?`,
		`DELETE FROM file_search_state WHERE file_id = ?`,
	}
	for _, stmt := range stmts {
		if _, err := tx.Exec(stmt, fid); err != nil {
			return model.Transient("projection.Delete", fmt.Errorf("%s: %w", stmt, err))
		}
	}
	logging.ProjectionDebug("deleted projection for %s", id)
	return nil
}
