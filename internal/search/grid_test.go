package search

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"veriado/internal/analyzer"
	"veriado/internal/config"
	"veriado/internal/store"
)

func testGridProfile(t *testing.T) *analyzer.Profile {
	t.Helper()
	cfg := config.DefaultConfig()
	return analyzer.NewRegistry(cfg.Analyzer).MustGet(cfg.Analyzer.DefaultProfile)
}

func openTestStore(t *testing.T) *store.Store {
	t.Helper()
	dir := t.TempDir()
	st, err := store.Open(dir + "/grid_test.db")
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	return st
}

func insertGridFile(t *testing.T, st *store.Store, id, ext, author, mime string, modified time.Time) {
	t.Helper()
	_, err := st.DB().Exec(
		`INSERT INTO files(id, name, extension, mime, author, size_bytes, content_hash, created_utc, modified_utc)
		 VALUES (?, ?, ?, ?, ?, 1, ?, ?, ?)`,
		id, "doc-"+id, ext, mime, author, "hash-"+id,
		modified.UTC().Format(time.RFC3339Nano), modified.UTC().Format(time.RFC3339Nano),
	)
	require.NoError(t, err)
}

func TestSearchGridItemsNeverExceedLimit(t *testing.T) {
	st := openTestStore(t)
	now := time.Now()
	for i := 0; i < 25; i++ {
		insertGridFile(t, st, fmt.Sprintf("11111111-1111-1111-1111-%012d", i), "txt", "alice", "text/plain", now.Add(time.Duration(i)*time.Minute))
	}

	svc := New(st, config.SearchConfig{MaxPageSize: 10, MaxCandidateResults: 2000}, testGridProfile(t))
	res, err := svc.SearchGrid(context.Background(), GridRequest{Limit: 10, Today: now})
	require.NoError(t, err)
	require.LessOrEqual(t, len(res.Items), 10)
	require.Equal(t, 25, res.TotalCount)
	require.True(t, res.HasMore)
	require.False(t, res.IsTruncated)
}

func TestSearchGridTotalCountIsCappedAtMaxCandidateResults(t *testing.T) {
	st := openTestStore(t)
	now := time.Now()
	for i := 0; i < 12; i++ {
		insertGridFile(t, st, fmt.Sprintf("22222222-2222-2222-2222-%012d", i), "txt", "bob", "text/plain", now.Add(time.Duration(i)*time.Minute))
	}

	svc := New(st, config.SearchConfig{MaxPageSize: 50, MaxCandidateResults: 5}, testGridProfile(t))
	res, err := svc.SearchGrid(context.Background(), GridRequest{Limit: 50, Today: now})
	require.NoError(t, err)
	require.Equal(t, 5, res.TotalCount)
	require.True(t, res.IsTruncated)
}

func TestSearchGridHasMoreReflectsOffsetPlusReturned(t *testing.T) {
	st := openTestStore(t)
	now := time.Now()
	for i := 0; i < 3; i++ {
		insertGridFile(t, st, fmt.Sprintf("33333333-3333-3333-3333-%012d", i), "txt", "carol", "text/plain", now.Add(time.Duration(i)*time.Minute))
	}

	svc := New(st, config.SearchConfig{MaxPageSize: 10, MaxCandidateResults: 2000}, testGridProfile(t))
	res, err := svc.SearchGrid(context.Background(), GridRequest{Limit: 10, Offset: 0, Today: now})
	require.NoError(t, err)
	require.Equal(t, 3, len(res.Items))
	require.False(t, res.HasMore)

	res2, err := svc.SearchGrid(context.Background(), GridRequest{Limit: 2, Offset: 0, Today: now})
	require.NoError(t, err)
	require.Equal(t, 2, len(res2.Items))
	require.True(t, res2.HasMore)
}

func TestSearchGridFiltersByExtension(t *testing.T) {
	st := openTestStore(t)
	now := time.Now()
	insertGridFile(t, st, "44444444-4444-4444-4444-000000000001", "pdf", "dan", "application/pdf", now)
	insertGridFile(t, st, "44444444-4444-4444-4444-000000000002", "txt", "dan", "text/plain", now)

	svc := New(st, config.SearchConfig{MaxPageSize: 10, MaxCandidateResults: 2000}, testGridProfile(t))
	res, err := svc.SearchGrid(context.Background(), GridRequest{
		Limit:  10,
		Today:  now,
		Params: GridParams{Extension: "pdf"},
	})
	require.NoError(t, err)
	require.Len(t, res.Items, 1)
	require.Equal(t, "pdf", res.Items[0].Secondary["extension"])
}
