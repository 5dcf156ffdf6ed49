package state

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store, err := OpenSQLiteStore(filepath.Join(t.TempDir(), "state.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestSQLiteStoreSessionLifecycle(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	sess := Session{
		ID:         "sess-1",
		StartURL:   "https://docs.example.com/",
		BaseDomain: "https://docs.example.com",
		StartedAt:  time.Now(),
	}
	require.NoError(t, store.CreateSession(ctx, sess))
	require.NoError(t, store.SaveState(ctx, sess.ID, sampleSnapshot(5)))

	got, snap, ok, err := store.LoadLatestRunning(ctx, sess.BaseDomain)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, sess.ID, got.ID)
	require.Len(t, snap.VisitedURLs, 5)
	require.Equal(t, 5, snap.TotalCrawled)

	totals := SessionTotals{Total: 5, Succeeded: 4, Failed: 1}
	require.NoError(t, store.FinishSession(ctx, sess.ID, SessionCompleted, totals))
	_, _, ok, err = store.LoadLatestRunning(ctx, sess.BaseDomain)
	require.NoError(t, err)
	require.False(t, ok)

	sessions, err := store.Sessions(ctx)
	require.NoError(t, err)
	require.Len(t, sessions, 1)
	require.Equal(t, SessionCompleted, sessions[0].Status)
	require.Equal(t, totals, sessions[0].Totals)
	require.False(t, sessions[0].EndedAt.IsZero())
}

func TestSQLiteStoreSaveStateIsIdempotent(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	sess := Session{ID: "sess-1", StartURL: "https://docs.example.com/", BaseDomain: "https://docs.example.com", StartedAt: time.Now()}
	require.NoError(t, store.CreateSession(ctx, sess))

	require.NoError(t, store.SaveState(ctx, sess.ID, sampleSnapshot(3)))
	require.NoError(t, store.SaveState(ctx, sess.ID, sampleSnapshot(7)))

	_, snap, ok, err := store.LoadLatestRunning(ctx, sess.BaseDomain)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, 7, snap.TotalCrawled)
	require.Len(t, snap.VisitedURLs, 7)
}

func TestSQLiteStoreLoadPrefersNewestRunningSession(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	for _, id := range []string{"old", "new"} {
		sess := Session{ID: id, StartURL: "https://docs.example.com/", BaseDomain: "https://docs.example.com", StartedAt: time.Now()}
		require.NoError(t, store.CreateSession(ctx, sess))
		require.NoError(t, store.SaveState(ctx, id, sampleSnapshot(2)))
	}

	got, _, ok, err := store.LoadLatestRunning(ctx, "https://docs.example.com")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "new", got.ID)
}

func TestSQLiteStoreNoRunningSession(t *testing.T) {
	store := openTestStore(t)
	_, _, ok, err := store.LoadLatestRunning(context.Background(), "https://docs.example.com")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestSQLiteStoreRecordURLUpserts(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	const url = "https://docs.example.com/guide"

	require.NoError(t, store.RecordURL(ctx, URLRecord{URL: url, Status: URLStatusFailed, ErrorMessage: "http status 503"}))
	require.NoError(t, store.RecordURL(ctx, URLRecord{URL: url, Status: URLStatusSuccess, ContentType: "text/html", ContentLength: 1234, ResponseTime: 0.2}))

	counters, err := store.Stats(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, counters.Total)
	require.Equal(t, 1, counters.Succeeded)
	require.Equal(t, 0, counters.Failed)
	require.InDelta(t, 0.2, counters.AvgTime, 1e-9)
}
