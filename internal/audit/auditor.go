// Package audit verifies that the search projection (file_search_map)
// stays in lockstep with the authoritative `files` table, classifying
// discrepancies as missing, drift, or extra (spec.md §4.7), and can
// repair them by re-enqueuing write-ahead records or deleting
// orphaned projection rows.
package audit

import (
	"database/sql"
	"fmt"
	"sort"
	"time"

	"veriado/internal/logging"
	"veriado/internal/model"
	"veriado/internal/projection"
	"veriado/internal/store"
	"veriado/internal/telemetry"
)

// Summary classifies every id the audit examined.
type Summary struct {
	Missing []string // authoritative id with no projection row
	Drift   []string // projection row present but stale/out of date
	Extra   []string // projection row with no matching authoritative id
}

// NeedsRepair reports whether Summary has anything to fix.
func (s Summary) NeedsRepair() bool {
	return len(s.Missing) > 0 || len(s.Drift) > 0 || len(s.Extra) > 0
}

// Verify enumerates authoritative ids against file_search_map/
// file_search_state and classifies each discrepancy.
func Verify(st *store.Store) (Summary, error) {
	timer := logging.StartTimer(logging.CategoryAudit, "Verify")
	defer timer.Stop()

	st.RLock()
	defer st.RUnlock()
	db := st.DB()

	authoritative, err := authoritativeIDs(db)
	if err != nil {
		return Summary{}, fmt.Errorf("audit: %w", err)
	}
	projected, err := projectedState(db)
	if err != nil {
		return Summary{}, fmt.Errorf("audit: %w", err)
	}

	var summary Summary
	for id, row := range authoritative {
		proj, ok := projected[id]
		if !ok {
			summary.Missing = append(summary.Missing, id)
			continue
		}
		if needsReindex(row, proj) {
			summary.Drift = append(summary.Drift, id)
		}
	}
	for id := range projected {
		if _, ok := authoritative[id]; !ok {
			summary.Extra = append(summary.Extra, id)
		}
	}

	sort.Strings(summary.Missing)
	sort.Strings(summary.Drift)
	sort.Strings(summary.Extra)

	for range summary.Drift {
		telemetry.IncDrift()
	}
	logging.Audit("verify complete: missing=%d drift=%d extra=%d",
		len(summary.Missing), len(summary.Drift), len(summary.Extra))
	return summary, nil
}

type authoritativeRow struct {
	contentHash string
}

type projectedRow struct {
	contentHash     string
	isStale         bool
	analyzerVersion sql.NullInt64
}

func authoritativeIDs(db *sql.DB) (map[string]authoritativeRow, error) {
	rows, err := db.Query(`SELECT id, content_hash FROM files`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[string]authoritativeRow)
	for rows.Next() {
		var id, hash string
		if err := rows.Scan(&id, &hash); err != nil {
			return nil, err
		}
		out[id] = authoritativeRow{contentHash: hash}
	}
	return out, rows.Err()
}

func projectedState(db *sql.DB) (map[string]projectedRow, error) {
	rows, err := db.Query(
		`SELECT m.file_id, m.content_hash, COALESCE(s.is_stale, 1), s.analyzer_version
		 FROM file_search_map m LEFT JOIN file_search_state s ON s.file_id = m.file_id`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[string]projectedRow)
	for rows.Next() {
		var id, hash string
		var stale int
		var av sql.NullInt64
		if err := rows.Scan(&id, &hash, &stale, &av); err != nil {
			return nil, err
		}
		out[id] = projectedRow{contentHash: hash, isStale: stale != 0, analyzerVersion: av}
	}
	return out, rows.Err()
}

// needsReindex applies the Open Question 1 resolution: a row is drift
// if it's flagged stale, if its projected content_hash no longer
// matches the authoritative hash, or if it was confirmed via the
// legacy ConfirmIndexed contract (non-stale but analyzer_version never
// set).
func needsReindex(auth authoritativeRow, proj projectedRow) bool {
	if proj.isStale {
		return true
	}
	if proj.contentHash != auth.contentHash {
		return true
	}
	if !proj.analyzerVersion.Valid {
		return true
	}
	return false
}

// Repair re-enqueues write-ahead upserts for every missing/drifted id
// (deduplicated, in lexicographic order so repeated repairs are
// deterministic) and deletes projection rows for every extra id.
func Repair(st *store.Store, summary Summary) error {
	timer := logging.StartTimer(logging.CategoryAudit, "Repair")
	defer timer.Stop()

	toReindex := dedupeSorted(append(append([]string{}, summary.Missing...), summary.Drift...))

	err := st.WithTx(func(tx *sql.Tx) error {
		now := time.Now()
		for _, idStr := range toReindex {
			id, err := model.ParseFileID(idStr)
			if err != nil {
				return fmt.Errorf("audit: repair: %w", err)
			}
			if err := projection.Enqueue(tx, id, model.OpUpsert, "", "", now); err != nil {
				return err
			}
		}
		for _, idStr := range summary.Extra {
			id, err := model.ParseFileID(idStr)
			if err != nil {
				return fmt.Errorf("audit: repair: %w", err)
			}
			if err := projection.Delete(tx, id); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("audit: repair: %w", err)
	}

	logging.Audit("repair complete: reindexed=%d deleted=%d", len(toReindex), len(summary.Extra))
	return nil
}

func dedupeSorted(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}
