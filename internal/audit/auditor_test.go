package audit

import (
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"veriado/internal/store"
)

func openTestStore(t *testing.T) *store.Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "audit_test.db")
	st, err := store.Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	return st
}

func insertFile(t *testing.T, st *store.Store, id, contentHash string) {
	t.Helper()
	db := st.DB()
	_, err := db.Exec(
		`INSERT INTO files(id, name, extension, mime, author, size_bytes, content_hash, created_utc, modified_utc, is_read_only, version)
		 VALUES (?, 'name', 'txt', 'text/plain', 'author', 10, ?, '2026-01-01T00:00:00Z', '2026-01-01T00:00:00Z', 0, 1)`,
		id, contentHash,
	)
	require.NoError(t, err)
}

func insertProjected(t *testing.T, st *store.Store, id, contentHash string, stale bool, analyzerVersion *int) {
	t.Helper()
	db := st.DB()
	_, err := db.Exec(
		`INSERT INTO file_search_map(file_id, content_hash, token_hash, updated_utc) VALUES (?, ?, 'tok', '2026-01-01T00:00:00Z')`,
		id, contentHash,
	)
	require.NoError(t, err)
	staleInt := 0
	if stale {
		staleInt = 1
	}
	_, err = db.Exec(
		`INSERT INTO file_search_state(file_id, schema_version, is_stale, last_indexed_utc, indexed_content_hash, indexed_title, analyzer_version, token_hash)
		 VALUES (?, 1, ?, '2026-01-01T00:00:00Z', ?, 'title', ?, 'tok')`,
		id, staleInt, contentHash, analyzerVersion,
	)
	require.NoError(t, err)
}

// deleteFile removes the authoritative row for id; the foreign key on
// file_search_state cascades, while the file_search_map row stays
// behind as an orphaned projection.
func deleteFile(t *testing.T, st *store.Store, id string) {
	t.Helper()
	_, err := st.DB().Exec(`DELETE FROM files WHERE id = ?`, id)
	require.NoError(t, err)
}

func TestVerifyDetectsMissingProjection(t *testing.T) {
	st := openTestStore(t)
	id := uuid.New().String()
	insertFile(t, st, id, "hash1")

	summary, err := Verify(st)
	require.NoError(t, err)
	require.Contains(t, summary.Missing, id)
	require.Empty(t, summary.Drift)
	require.Empty(t, summary.Extra)
}

func TestVerifyDetectsExtraProjection(t *testing.T) {
	st := openTestStore(t)
	av := 1
	id := uuid.New().String()
	insertFile(t, st, id, "hash1")
	insertProjected(t, st, id, "hash1", false, &av)
	deleteFile(t, st, id)

	summary, err := Verify(st)
	require.NoError(t, err)
	require.Contains(t, summary.Extra, id)
}

func TestVerifyDetectsDriftOnStaleFlag(t *testing.T) {
	st := openTestStore(t)
	av := 1
	id := uuid.New().String()
	insertFile(t, st, id, "hash2")
	insertProjected(t, st, id, "hash2", true, &av)

	summary, err := Verify(st)
	require.NoError(t, err)
	require.Contains(t, summary.Drift, id)
}

func TestVerifyDetectsDriftOnLegacyConfirm(t *testing.T) {
	st := openTestStore(t)
	id := uuid.New().String()
	insertFile(t, st, id, "hash3")
	insertProjected(t, st, id, "hash3", false, nil)

	summary, err := Verify(st)
	require.NoError(t, err)
	require.Contains(t, summary.Drift, id)
}

func TestVerifyCleanStateNeedsNoRepair(t *testing.T) {
	st := openTestStore(t)
	av := 1
	id := uuid.New().String()
	insertFile(t, st, id, "hash4")
	insertProjected(t, st, id, "hash4", false, &av)

	summary, err := Verify(st)
	require.NoError(t, err)
	require.False(t, summary.NeedsRepair())
}

func TestRepairEnqueuesMissingAndDriftAndDeletesExtra(t *testing.T) {
	st := openTestStore(t)
	av := 1
	missingID := uuid.New().String()
	driftID := uuid.New().String()
	extraID := uuid.New().String()
	insertFile(t, st, missingID, "hash5")
	insertFile(t, st, driftID, "hash6")
	insertProjected(t, st, driftID, "hash6", true, &av)
	insertFile(t, st, extraID, "hashX")
	insertProjected(t, st, extraID, "hashX", false, &av)
	deleteFile(t, st, extraID)

	summary, err := Verify(st)
	require.NoError(t, err)
	require.NoError(t, Repair(st, summary))

	db := st.DB()
	var pendingCount int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM fts_write_ahead`).Scan(&pendingCount))
	require.Equal(t, 2, pendingCount)

	var extraCount int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM file_search_map WHERE file_id = ?`, extraID).Scan(&extraCount))
	require.Equal(t, 0, extraCount)
}
