package outbox

import (
	"database/sql"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/require"
)

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	stmts := []string{
		`CREATE TABLE outbox_events (seq INTEGER PRIMARY KEY AUTOINCREMENT, type TEXT, payload_json TEXT, created_utc TEXT, processed_utc TEXT)`,
		`CREATE TABLE idempotency_keys (request_id TEXT PRIMARY KEY, created_utc TEXT)`,
	}
	for _, s := range stmts {
		_, err := db.Exec(s)
		require.NoError(t, err)
	}
	return db
}

func TestAppendAndListUnprocessed(t *testing.T) {
	db := openTestDB(t)
	tx, err := db.Begin()
	require.NoError(t, err)
	require.NoError(t, Append(tx, "file.reindexed", map[string]string{"file_id": "f1"}, time.Now()))
	require.NoError(t, tx.Commit())

	events, err := ListUnprocessed(db, 10)
	require.NoError(t, err)
	require.Len(t, events, 1)
	require.Equal(t, "file.reindexed", events[0].Type)
}

func TestMarkProcessedRemovesFromUnprocessedList(t *testing.T) {
	db := openTestDB(t)
	tx, err := db.Begin()
	require.NoError(t, err)
	require.NoError(t, Append(tx, "file.deleted", map[string]string{"file_id": "f2"}, time.Now()))
	require.NoError(t, tx.Commit())

	events, err := ListUnprocessed(db, 10)
	require.NoError(t, err)
	require.Len(t, events, 1)

	tx2, err := db.Begin()
	require.NoError(t, err)
	require.NoError(t, MarkProcessed(tx2, events[0].Seq, time.Now()))
	require.NoError(t, tx2.Commit())

	remaining, err := ListUnprocessed(db, 10)
	require.NoError(t, err)
	require.Empty(t, remaining)
}

func TestClaimIdempotencyKeyOnlySucceedsOnce(t *testing.T) {
	db := openTestDB(t)
	now := time.Now()

	tx, err := db.Begin()
	require.NoError(t, err)
	ok, err := ClaimIdempotencyKey(tx, "req-1", now)
	require.NoError(t, err)
	require.True(t, ok)
	require.NoError(t, tx.Commit())

	tx2, err := db.Begin()
	require.NoError(t, err)
	ok2, err := ClaimIdempotencyKey(tx2, "req-1", now)
	require.NoError(t, err)
	require.False(t, ok2)
	require.NoError(t, tx2.Commit())
}

func TestSweepExpiredKeysRemovesOnlyOldEntries(t *testing.T) {
	db := openTestDB(t)
	now := time.Now()

	tx, err := db.Begin()
	require.NoError(t, err)
	_, err = ClaimIdempotencyKey(tx, "old-key", now.Add(-48*time.Hour))
	require.NoError(t, err)
	_, err = ClaimIdempotencyKey(tx, "fresh-key", now)
	require.NoError(t, err)
	require.NoError(t, tx.Commit())

	swept, err := SweepExpiredKeys(db, 24*time.Hour, now)
	require.NoError(t, err)
	require.Equal(t, int64(1), swept)

	var remaining int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM idempotency_keys`).Scan(&remaining))
	require.Equal(t, 1, remaining)
}
