package state

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func sampleSnapshot(n int) Snapshot {
	snap := Snapshot{
		StartURL:     "https://docs.example.com/",
		BaseDomain:   "https://docs.example.com",
		TotalCrawled: n,
		StartTime:    time.Date(2026, 1, 10, 9, 0, 0, 0, time.UTC),
		LastUpdated:  time.Date(2026, 1, 10, 9, 30, 0, 0, time.UTC),
	}
	for i := 0; i < n; i++ {
		u := fmt.Sprintf("https://docs.example.com/page-%04d", i)
		snap.VisitedURLs = append(snap.VisitedURLs, u)
		snap.UniqueURLs = append(snap.UniqueURLs, u)
	}
	snap.URLQueue = []string{"https://docs.example.com/pending"}
	return snap
}

func TestFileStoreRoundTrip(t *testing.T) {
	store := NewFileStore(filepath.Join(t.TempDir(), "state.json"))
	want := sampleSnapshot(1000)

	require.NoError(t, store.Save(want))
	got, found, err := store.Load()
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, want.StartURL, got.StartURL)
	require.Equal(t, want.VisitedURLs, got.VisitedURLs)
	require.Equal(t, want.URLQueue, got.URLQueue)
	require.Equal(t, want.TotalCrawled, got.TotalCrawled)
	require.True(t, want.StartTime.Equal(got.StartTime))
}

func TestFileStoreSaveIsIdempotent(t *testing.T) {
	store := NewFileStore(filepath.Join(t.TempDir(), "state.json"))
	snap := sampleSnapshot(10)

	require.NoError(t, store.Save(snap))
	first, err := os.ReadFile(store.Path())
	require.NoError(t, err)
	require.NoError(t, store.Save(snap))
	second, err := os.ReadFile(store.Path())
	require.NoError(t, err)
	require.Equal(t, first, second)
}

func TestFileStoreMissingFile(t *testing.T) {
	store := NewFileStore(filepath.Join(t.TempDir(), "absent.json"))
	_, found, err := store.Load()
	require.NoError(t, err)
	require.False(t, found)
}

func TestFileStoreCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))

	store := NewFileStore(path)
	_, _, err := store.Load()
	require.Error(t, err)
}

func TestFileStoreFieldNames(t *testing.T) {
	store := NewFileStore(filepath.Join(t.TempDir(), "state.json"))
	require.NoError(t, store.Save(sampleSnapshot(1)))

	data, err := os.ReadFile(store.Path())
	require.NoError(t, err)
	for _, field := range []string{
		`"start_url"`, `"base_domain"`, `"visited_urls"`, `"url_queue"`,
		`"unique_urls"`, `"total_crawled"`, `"start_time"`, `"last_updated"`,
	} {
		require.Contains(t, string(data), field)
	}
}
