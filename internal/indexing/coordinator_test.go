package indexing

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"veriado/internal/analyzer"
	"veriado/internal/config"
	"veriado/internal/model"
	"veriado/internal/store"
)

type fakeContentSource struct {
	title, body, hash string
	err               error
}

func (f *fakeContentSource) Load(ctx context.Context, id model.FileID) (string, string, string, error) {
	return f.title, f.body, f.hash, f.err
}

func openTestStore(t *testing.T) *store.Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "indexing_test.db")
	st, err := store.Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	return st
}

func TestDrainOnceReconcilesPendingUpsert(t *testing.T) {
	defer goleak.VerifyNone(t)

	st := openTestStore(t)
	registry := analyzer.NewRegistry(config.DefaultConfig().Analyzer)
	content := &fakeContentSource{title: "Report", body: "alpha beta", hash: "hash1"}
	cfg := config.DefaultConfig().WriteAhead
	coord := New(st, content, registry, "cs", cfg, store.CurrentSchemaVersion)

	id := uuid.New()
	insertFileRow(t, st, id.String())
	_, dbErr := st.DB().Exec(
		`INSERT INTO fts_write_ahead(file_id, op, content_hash, token_hash, enqueued_utc, attempts)
		 VALUES (?, 'upsert', '', '', ?, 0)`,
		id.String(), time.Now().UTC().Format(time.RFC3339Nano),
	)
	require.NoError(t, dbErr)

	reconciled, err := coord.DrainOnce(context.Background(), 10)
	require.NoError(t, err)
	require.Equal(t, 1, reconciled)

	var remaining int
	require.NoError(t, st.DB().QueryRow(`SELECT COUNT(*) FROM fts_write_ahead`).Scan(&remaining))
	require.Equal(t, 0, remaining)
}

// insertFileRow adds the authoritative files row that file_search_state's
// foreign key requires before a projection can be confirmed for id.
func insertFileRow(t *testing.T, st *store.Store, id string) {
	t.Helper()
	_, err := st.DB().Exec(
		`INSERT INTO files(id, name, extension, mime, author, size_bytes, content_hash, created_utc, modified_utc, is_read_only, version)
		 VALUES (?, 'Report', 'txt', 'text/plain', 'author', 10, 'hash1', '2026-01-01T00:00:00Z', '2026-01-01T00:00:00Z', 0, 1)`,
		id,
	)
	require.NoError(t, err)
}

func TestPauseStopsNewDrainIterations(t *testing.T) {
	defer goleak.VerifyNone(t)

	st := openTestStore(t)
	registry := analyzer.NewRegistry(config.DefaultConfig().Analyzer)
	content := &fakeContentSource{title: "Report", body: "alpha", hash: "hash1"}
	cfg := config.DefaultConfig().WriteAhead
	coord := New(st, content, registry, "cs", cfg, store.CurrentSchemaVersion)

	coord.Pause()
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := coord.DrainOnce(ctx, 10)
	require.ErrorIs(t, err, context.DeadlineExceeded)

	coord.Resume()
	reconciled, err := coord.DrainOnce(context.Background(), 10)
	require.NoError(t, err)
	require.Equal(t, 0, reconciled)
}

// TestDrainOnceForceReplacesOnAnalyzerDrift covers the CAS upsert
// hitting AnalyzerOrContentDrift (a projection row on disk already
// carries this file's exact content_hash but a different token_hash,
// as if two writers raced): reconciliation must force the overwrite
// instead of shunting the record into the retry/dead-letter path.
func TestDrainOnceForceReplacesOnAnalyzerDrift(t *testing.T) {
	defer goleak.VerifyNone(t)

	st := openTestStore(t)
	registry := analyzer.NewRegistry(config.DefaultConfig().Analyzer)
	content := &fakeContentSource{title: "Report", body: "alpha beta", hash: "hash1"}
	cfg := config.DefaultConfig().WriteAhead
	coord := New(st, content, registry, "cs", cfg, store.CurrentSchemaVersion)

	id := uuid.New()
	_, dbErr := st.DB().Exec(
		`INSERT INTO fts_write_ahead(file_id, op, content_hash, token_hash, enqueued_utc, attempts)
		 VALUES (?, 'upsert', '', '', ?, 0)`,
		id.String(), time.Now().UTC().Format(time.RFC3339Nano),
	)
	require.NoError(t, dbErr)

	insertFileRow(t, st, id.String())
	_, dbErr = st.DB().Exec(
		`INSERT INTO file_search_state(
		    file_id, schema_version, is_stale, last_indexed_utc,
		    indexed_content_hash, indexed_title, analyzer_version, token_hash
		 ) VALUES (?, ?, 0, ?, 'hash1', 'stale', 1, 'stale-token-hash')`,
		id.String(), store.CurrentSchemaVersion, time.Now().UTC().Format(time.RFC3339Nano),
	)
	require.NoError(t, dbErr)

	reconciled, err := coord.DrainOnce(context.Background(), 10)
	require.NoError(t, err)
	require.Equal(t, 1, reconciled)

	var remaining int
	require.NoError(t, st.DB().QueryRow(`SELECT COUNT(*) FROM fts_write_ahead`).Scan(&remaining))
	require.Equal(t, 0, remaining)

	var tokenHash string
	require.NoError(t, st.DB().QueryRow(`SELECT token_hash FROM file_search_state WHERE file_id = ?`, id.String()).Scan(&tokenHash))
	require.NotEqual(t, "stale-token-hash", tokenHash)
}
