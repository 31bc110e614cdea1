package projection

import (
	"database/sql"
	"errors"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/require"

	"veriado/internal/analyzer"
	"veriado/internal/config"
	"veriado/internal/model"
)

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	stmts := []string{
		`CREATE TABLE file_search_fts (file_id TEXT, title TEXT, body TEXT)`,
		`CREATE TABLE file_trigram (file_id TEXT, gram TEXT)`,
		`CREATE TABLE file_search_map (file_id TEXT PRIMARY KEY, content_hash TEXT, token_hash TEXT, updated_utc TEXT)`,
		`CREATE TABLE file_search_state (
			file_id TEXT PRIMARY KEY, schema_version INTEGER, is_stale INTEGER,
			last_indexed_utc TEXT, indexed_content_hash TEXT, indexed_title TEXT,
			analyzer_version INTEGER, token_hash TEXT
		)`,
		`CREATE TABLE fts_write_ahead (
			seq INTEGER PRIMARY KEY AUTOINCREMENT, file_id TEXT, op TEXT,
			content_hash TEXT, token_hash TEXT, enqueued_utc TEXT,
			attempts INTEGER DEFAULT 0, last_error TEXT
		)`,
		`CREATE TABLE fts_write_ahead_dead_letter (
			seq INTEGER PRIMARY KEY, original_seq INTEGER, file_id TEXT, op TEXT,
			content_hash TEXT, token_hash TEXT, enqueued_utc TEXT, attempts INTEGER,
			dead_lettered_utc TEXT, error TEXT
		)`,
	}
	for _, s := range stmts {
		_, err := db.Exec(s)
		require.NoError(t, err)
	}
	return db
}

func testProfile(t *testing.T) *analyzer.Profile {
	t.Helper()
	reg := analyzer.NewRegistry(config.DefaultConfig().Analyzer)
	p, ok := reg.Get("cs")
	require.True(t, ok)
	return p
}

func TestUpsertInsertsNewProjectionRow(t *testing.T) {
	db := openTestDB(t)
	profile := testProfile(t)
	id := model.FileID{}
	id[0] = 1

	tx, err := db.Begin()
	require.NoError(t, err)
	sig, err := Upsert(tx, profile, 1, Input{FileID: id, Title: "Report", Body: "alpha beta", ContentHash: "hash1"}, time.Now())
	require.NoError(t, err)
	require.NoError(t, tx.Commit())
	require.NotEmpty(t, sig.TokenHash)

	var stale int
	require.NoError(t, db.QueryRow(`SELECT is_stale FROM file_search_state WHERE file_id = ?`, id.String()).Scan(&stale))
	require.Equal(t, 0, stale)
}

func TestUpsertDetectsDriftOnStaleTokenHash(t *testing.T) {
	db := openTestDB(t)
	profile := testProfile(t)
	id := model.FileID{}
	id[0] = 2

	tx, err := db.Begin()
	require.NoError(t, err)
	_, err = Upsert(tx, profile, 1, Input{FileID: id, Title: "Report", Body: "alpha beta", ContentHash: "hash1"}, time.Now())
	require.NoError(t, err)
	require.NoError(t, tx.Commit())

	// Content hash unchanged (still "hash1") but body differs, so the
	// freshly computed token_hash will not match what's stored.
	tx2, err := db.Begin()
	require.NoError(t, err)
	_, err = Upsert(tx2, profile, 1, Input{FileID: id, Title: "Report", Body: "gamma delta", ContentHash: "hash1"}, time.Now())
	require.Error(t, err)
	require.True(t, errors.Is(err, model.ErrAnalyzerOrContentDrift))
	require.NoError(t, tx2.Rollback())
}

func TestForceReplaceBypassesDriftCheck(t *testing.T) {
	db := openTestDB(t)
	profile := testProfile(t)
	id := model.FileID{}
	id[0] = 3

	tx, err := db.Begin()
	require.NoError(t, err)
	_, err = Upsert(tx, profile, 1, Input{FileID: id, Title: "Report", Body: "alpha beta", ContentHash: "hash1"}, time.Now())
	require.NoError(t, err)
	require.NoError(t, tx.Commit())

	tx2, err := db.Begin()
	require.NoError(t, err)
	_, err = ForceReplace(tx2, profile, 1, Input{FileID: id, Title: "Report", Body: "gamma delta", ContentHash: "hash1"}, time.Now())
	require.NoError(t, err)
	require.NoError(t, tx2.Commit())
}

func TestDeleteIsIdempotent(t *testing.T) {
	db := openTestDB(t)
	id := model.FileID{}
	id[0] = 4

	tx, err := db.Begin()
	require.NoError(t, err)
	require.NoError(t, Delete(tx, id))
	require.NoError(t, tx.Commit())

	tx2, err := db.Begin()
	require.NoError(t, err)
	require.NoError(t, Delete(tx2, id))
	require.NoError(t, tx2.Commit())
}

func TestWriteAheadEnqueueAndDrain(t *testing.T) {
	db := openTestDB(t)
	id := model.FileID{}
	id[0] = 5

	tx, err := db.Begin()
	require.NoError(t, err)
	require.NoError(t, Enqueue(tx, id, model.OpUpsert, "hash1", "tok1", time.Now()))
	require.NoError(t, tx.Commit())

	pending, err := ListPending(db, 10)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	require.Equal(t, model.OpUpsert, pending[0].Op)

	tx2, err := db.Begin()
	require.NoError(t, err)
	require.NoError(t, Complete(tx2, pending[0].Seq))
	require.NoError(t, tx2.Commit())

	remaining, err := ListPending(db, 10)
	require.NoError(t, err)
	require.Empty(t, remaining)
}

func TestWriteAheadDeadLettersAfterMaxAttempts(t *testing.T) {
	db := openTestDB(t)
	id := model.FileID{}
	id[0] = 6

	tx, err := db.Begin()
	require.NoError(t, err)
	require.NoError(t, Enqueue(tx, id, model.OpUpsert, "hash1", "tok1", time.Now()))
	require.NoError(t, tx.Commit())

	pending, err := ListPending(db, 10)
	require.NoError(t, err)
	require.Len(t, pending, 1)

	tx2, err := db.Begin()
	require.NoError(t, err)
	require.NoError(t, Retry(tx2, pending[0], errors.New("boom"), 1, time.Now()))
	require.NoError(t, tx2.Commit())

	remaining, err := ListPending(db, 10)
	require.NoError(t, err)
	require.Empty(t, remaining)

	var count int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM fts_write_ahead_dead_letter`).Scan(&count))
	require.Equal(t, 1, count)
}
