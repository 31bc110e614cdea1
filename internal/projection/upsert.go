// Package projection maintains the search projection (file_search_fts,
// file_trigram, file_search_map, file_search_state) derived from each
// File aggregate's authoritative content. Writes go through a
// compare-and-set upsert executed inside the caller's own transaction
// (spec.md §4.6), so the projection never observably lags the
// aggregate it describes except via the write-ahead fallback path.
package projection

import (
	"database/sql"
	"fmt"
	"time"

	"veriado/internal/analyzer"
	"veriado/internal/emit"
	"veriado/internal/logging"
	"veriado/internal/model"
)

// Input is everything Upsert needs about one file's current content.
type Input struct {
	FileID      model.FileID
	Title       string
	Body        string
	ContentHash string
}

// Upsert runs the five-step CAS projection write inside tx:
//  1. read the current file_search_state row (if any)
//  2. compute the new signature from title+body via profile
//  3. if a row exists and its indexed_content_hash matches the file's
//     current content_hash but the freshly computed token_hash
//     differs, the content changed under us mid-transaction: raise
//     AnalyzerOrContentDrift rather than overwrite silently
//  4. otherwise upsert file_search_fts / file_trigram / file_search_map
//     and confirm file_search_state with the new signature
//  5. return the signature so the caller can log/telemeter it
//
// ForceReplace bypasses step 3's drift check entirely; the indexing
// coordinator uses it when draining a write-ahead record hits drift,
// where overwriting the stale rows is the point.
func Upsert(tx *sql.Tx, profile *analyzer.Profile, schemaVersion int, in Input, now time.Time) (analyzer.Signature, error) {
	return upsert(tx, profile, schemaVersion, in, now, false)
}

// ForceReplace is Upsert without the compare-and-set drift check.
func ForceReplace(tx *sql.Tx, profile *analyzer.Profile, schemaVersion int, in Input, now time.Time) (analyzer.Signature, error) {
	return upsert(tx, profile, schemaVersion, in, now, true)
}

func upsert(tx *sql.Tx, profile *analyzer.Profile, schemaVersion int, in Input, now time.Time, force bool) (analyzer.Signature, error) {
	sig := profile.Compute(in.Title, in.Body)

	if !force {
		var existingHash, existingTokenHash sql.NullString
		err := tx.QueryRow(
			`SELECT indexed_content_hash, token_hash FROM file_search_state WHERE file_id = ?`,
			in.FileID.String(),
		).Scan(&existingHash, &existingTokenHash)
		switch {
		case err == sql.ErrNoRows:
			// no prior projection row: nothing to drift against
		case err != nil:
			return sig, model.Transient("projection.Upsert", err)
		default:
			if existingHash.Valid && existingHash.String == in.ContentHash &&
				existingTokenHash.Valid && existingTokenHash.String != sig.TokenHash {
				return sig, model.ErrAnalyzerOrContentDrift
			}
		}
	}

	if err := replaceFTS(tx, in.FileID, sig.NormalizedTitle, in.Body); err != nil {
		return sig, model.Transient("projection.Upsert", err)
	}
	if err := replaceTrigram(tx, in.FileID, sig.NormalizedTitle+" "+in.Body); err != nil {
		return sig, model.Transient("projection.Upsert", err)
	}
	if err := upsertSearchMap(tx, in.FileID, in.ContentHash, sig.TokenHash, now); err != nil {
		return sig, model.Transient("projection.Upsert", err)
	}
	if err := confirmState(tx, in.FileID, schemaVersion, now, sig, in.ContentHash); err != nil {
		return sig, model.Transient("projection.Upsert", err)
	}

	logging.ProjectionDebug("upserted projection for %s (token_hash=%s analyzer_version=%d)",
		in.FileID, sig.TokenHash, sig.AnalyzerVersion)
	return sig, nil
}

func replaceFTS(tx *sql.Tx, id model.FileID, title, body string) error {
	if _, err := tx.Exec(`DELETE FROM file_search_fts WHERE file_id = ?`, id.String()); err != nil {
		return fmt.Errorf("delete fts row: %w", err)
	}
	_, err := tx.Exec(
		`INSERT INTO file_search_fts(file_id, title, body) VALUES (?, ?, ?)`,
		id.String(), title, body,
	)
	if err != nil {
		return fmt.Errorf("insert fts row: %w", err)
	}
	return nil
}

func replaceTrigram(tx *sql.Tx, id model.FileID, text string) error {
	if _, err := tx.Exec(`DELETE FROM file_trigram WHERE file_id = ?`, id.String()); err != nil {
		return fmt.Errorf("delete trigram rows: %w", err)
	}
	grams := emit.EmitTrigramIndexEntry(text)
	stmt, err := tx.Prepare(`INSERT INTO file_trigram(file_id, gram) VALUES (?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare trigram insert: %w", err)
	}
	defer stmt.Close()
	for _, g := range grams {
		if _, err := stmt.Exec(id.String(), g); err != nil {
			return fmt.Errorf("insert trigram row: %w", err)
		}
	}
	return nil
}

func upsertSearchMap(tx *sql.Tx, id model.FileID, contentHash, tokenHash string, now time.Time) error {
	_, err := tx.Exec(
		`INSERT INTO file_search_map(file_id, content_hash, token_hash, updated_utc)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT(file_id) DO UPDATE SET
		   content_hash = excluded.content_hash,
		   token_hash = excluded.token_hash,
		   updated_utc = excluded.updated_utc`,
		id.String(), contentHash, tokenHash, now.UTC().Format(time.RFC3339Nano),
	)
	return err
}

func confirmState(tx *sql.Tx, id model.FileID, schemaVersion int, now time.Time, sig analyzer.Signature, contentHash string) error {
	_, err := tx.Exec(
		`INSERT INTO file_search_state(
		    file_id, schema_version, is_stale, last_indexed_utc,
		    indexed_content_hash, indexed_title, analyzer_version, token_hash
		 ) VALUES (?, ?, 0, ?, ?, ?, ?, ?)
		 ON CONFLICT(file_id) DO UPDATE SET
		   schema_version = excluded.schema_version,
		   is_stale = 0,
		   last_indexed_utc = excluded.last_indexed_utc,
		   indexed_content_hash = excluded.indexed_content_hash,
		   indexed_title = excluded.indexed_title,
		   analyzer_version = excluded.analyzer_version,
		   token_hash = excluded.token_hash`,
		id.String(), schemaVersion, now.UTC().Format(time.RFC3339Nano),
		contentHash, sig.NormalizedTitle, sig.AnalyzerVersion, sig.TokenHash,
	)
	return err
}
