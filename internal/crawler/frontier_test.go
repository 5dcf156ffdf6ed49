package crawler

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFrontierPushDeduplicates(t *testing.T) {
	f := NewFrontier(0)
	require.True(t, f.Push("https://example.com/a", 0))
	require.False(t, f.Push("https://example.com/a", 3))

	entry, ok := f.Next()
	require.True(t, ok)
	require.Equal(t, "https://example.com/a", entry.URL)
	require.Equal(t, 0, entry.Depth)
	f.Done()

	_, ok = f.Next()
	require.False(t, ok)
}

func TestFrontierDepthIsWriteOnce(t *testing.T) {
	f := NewFrontier(0)
	f.Push("https://example.com/a", 2)
	f.Push("https://example.com/a", 5)

	depth, ok := f.Depth("https://example.com/a")
	require.True(t, ok)
	require.Equal(t, 2, depth)
}

func TestFrontierClaimIsFirstWins(t *testing.T) {
	f := NewFrontier(0)
	const url = "https://example.com/a"

	const workers = 32
	wins := make(chan bool, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			wins <- f.Claim(url)
		}()
	}
	wg.Wait()
	close(wins)

	count := 0
	for won := range wins {
		if won {
			count++
		}
	}
	require.Equal(t, 1, count)
}

func TestFrontierDispatchCap(t *testing.T) {
	f := NewFrontier(3)
	urls := []string{"a", "b", "c", "d", "e"}
	granted := 0
	for _, u := range urls {
		if f.TryDispatch(u) {
			granted++
		}
	}
	require.Equal(t, 3, granted)
	require.Equal(t, 3, f.Stats().Dispatched)
}

func TestFrontierNextBlocksUntilOutstandingDrains(t *testing.T) {
	f := NewFrontier(0)
	f.Push("https://example.com/a", 0)

	entry, ok := f.Next()
	require.True(t, ok)

	// a second consumer must not see an empty frontier as drained while
	// the first item is still being processed
	done := make(chan struct{})
	go func() {
		defer close(done)
		second, ok := f.Next()
		require.True(t, ok)
		require.Equal(t, "https://example.com/b", second.URL)
		f.Done()
	}()

	f.Push("https://example.com/b", entry.Depth+1)
	f.Done()
	<-done

	_, ok = f.Next()
	require.False(t, ok)
}

func TestFrontierRestoreSkipsVisited(t *testing.T) {
	f := NewFrontier(0)
	visited := []string{"https://example.com/a", "https://example.com/b"}
	queue := []string{"https://example.com/a", "https://example.com/c"}
	f.Restore(visited, append(visited, "https://example.com/c"), queue, 2)

	stats := f.Stats()
	require.Equal(t, 1, stats.QueueLen)
	require.Equal(t, 2, stats.Dispatched)

	entry, ok := f.Next()
	require.True(t, ok)
	require.Equal(t, "https://example.com/c", entry.URL)
	require.Equal(t, 0, entry.Depth)
	require.False(t, f.Push("https://example.com/a", 1))
	f.Done()
}

func TestFrontierExportIsSortedAndAdmittedOnly(t *testing.T) {
	f := NewFrontier(0)
	for _, u := range []string{"https://example.com/c", "https://example.com/a", "https://example.com/b"} {
		f.Push(u, 0)
		f.Claim(u)
	}
	// only two of the three are admitted past robots/validation
	f.TryDispatch("https://example.com/c")
	f.TryDispatch("https://example.com/a")

	st := f.Export()
	require.Equal(t, []string{
		"https://example.com/a",
		"https://example.com/c",
	}, st.Unique)
	require.Equal(t, []string{
		"https://example.com/a",
		"https://example.com/b",
		"https://example.com/c",
	}, st.Visited)
	require.Len(t, st.Queue, 3)
}

func TestFrontierCloseWakesBlockedConsumers(t *testing.T) {
	f := NewFrontier(0)
	done := make(chan struct{})
	go func() {
		defer close(done)
		_, ok := f.Next()
		require.False(t, ok)
	}()
	f.Close()
	<-done
}
