package crawler

import (
	"sort"
	"sync"
)

// Entry is one unit of frontier work: a URL and the BFS depth at which it
// was first discovered. Entries are created once and never mutated.
type Entry struct {
	URL   string
	Depth int
}

// Frontier owns every piece of shared mutable crawl state: the pending
// queue, the dedup set of claimed URLs, the set of admitted URLs, the
// depth index, and the dispatched counter. All mutations run under one
// mutex so every check-and-act step (claim, dispatch against the budget,
// duplicate-dropping insert) is a single atomic operation under true
// parallelism.
type Frontier struct {
	mu   sync.Mutex
	cond *sync.Cond

	queue    []Entry
	enqueued map[string]struct{}
	claimed  map[string]struct{} // every URL handed to a worker, whatever the outcome
	admitted map[string]struct{} // validated + robots-allowed URLs, subset of claimed
	depths   map[string]int      // write-once depth at first discovery

	dispatched  int
	maxURLs     int
	outstanding int
	closed      bool
}

// NewFrontier creates an empty frontier. maxURLs of zero means unbounded.
func NewFrontier(maxURLs int) *Frontier {
	f := &Frontier{
		enqueued: make(map[string]struct{}),
		claimed:  make(map[string]struct{}),
		admitted: make(map[string]struct{}),
		depths:   make(map[string]int),
		maxURLs:  maxURLs,
	}
	f.cond = sync.NewCond(&f.mu)
	return f
}

// Push queues a discovered URL. Duplicate discoveries are dropped here, at
// insertion, so a URL enters the queue at most once per crawl.
func (f *Frontier) Push(url string, depth int) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed || url == "" {
		return false
	}
	if _, ok := f.enqueued[url]; ok {
		return false
	}
	if _, ok := f.claimed[url]; ok {
		return false
	}
	f.enqueued[url] = struct{}{}
	if _, ok := f.depths[url]; !ok {
		f.depths[url] = depth
	}
	f.queue = append(f.queue, Entry{URL: url, Depth: depth})
	f.cond.Signal()
	return true
}

// Next blocks until an entry is available and returns it, incrementing the
// outstanding counter. It returns ok=false once the frontier is closed or
// fully drained: queue empty and no entry still being processed. Callers
// must pair every successful Next with exactly one Done.
func (f *Frontier) Next() (Entry, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for {
		if f.closed {
			return Entry{}, false
		}
		if len(f.queue) > 0 {
			e := f.queue[0]
			f.queue = f.queue[1:]
			f.outstanding++
			return e, true
		}
		if f.outstanding == 0 {
			return Entry{}, false
		}
		f.cond.Wait()
	}
}

// Done marks one dequeued entry as fully processed. When the last
// outstanding entry finishes against an empty queue the frontier is
// drained and every blocked Next caller is released.
func (f *Frontier) Done() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.outstanding > 0 {
		f.outstanding--
	}
	if f.outstanding == 0 && len(f.queue) == 0 {
		f.cond.Broadcast()
	}
}

// Claim records that a worker has taken ownership of the URL. The
// membership test and insert are one critical section: under racing
// workers exactly one claim succeeds.
func (f *Frontier) Claim(url string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.claimed[url]; ok {
		return false
	}
	f.claimed[url] = struct{}{}
	return true
}

// TryDispatch admits a claimed URL against the max-URL budget. The counter
// increment and the limit comparison share the lock so the budget is never
// overshot however many workers race. Reaching the budget closes the
// frontier, which stops all workers.
func (f *Frontier) TryDispatch(url string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return false
	}
	if f.maxURLs > 0 && f.dispatched >= f.maxURLs {
		return false
	}
	f.dispatched++
	f.admitted[url] = struct{}{}
	if f.maxURLs > 0 && f.dispatched >= f.maxURLs {
		f.closeLocked()
	}
	return true
}

// Close releases all blocked workers and rejects further pushes. Safe to
// call more than once.
func (f *Frontier) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closeLocked()
}

func (f *Frontier) closeLocked() {
	if f.closed {
		return
	}
	f.closed = true
	f.cond.Broadcast()
}

// FrontierState is a consistent copy of the frontier's shared state, taken
// for snapshots. String slices come back sorted so repeated snapshots of
// the same state are byte-identical.
type FrontierState struct {
	Visited    []string
	Queue      []string
	Unique     []string
	Depths     map[string]int
	Dispatched int
}

// Export copies the frontier state under the lock.
func (f *Frontier) Export() FrontierState {
	f.mu.Lock()
	defer f.mu.Unlock()
	st := FrontierState{
		Visited:    setToSorted(f.claimed),
		Unique:     setToSorted(f.admitted),
		Queue:      make([]string, 0, len(f.queue)),
		Depths:     make(map[string]int, len(f.depths)),
		Dispatched: f.dispatched,
	}
	for _, e := range f.queue {
		st.Queue = append(st.Queue, e.URL)
	}
	for u, d := range f.depths {
		st.Depths[u] = d
	}
	return st
}

// Restore repopulates the frontier from a persisted snapshot: visited URLs
// become claimed (so they are never re-dispatched), unique URLs are
// re-admitted, the dispatched counter resumes, and queued URLs not already
// claimed are re-enqueued. The wire format carries no depths for queued
// URLs, so restored entries resume at depth zero.
func (f *Frontier) Restore(visited, unique, queue []string, dispatched int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range visited {
		f.claimed[u] = struct{}{}
	}
	for _, u := range unique {
		f.admitted[u] = struct{}{}
	}
	f.dispatched = dispatched
	for _, u := range queue {
		if _, ok := f.claimed[u]; ok {
			continue
		}
		if _, ok := f.enqueued[u]; ok {
			continue
		}
		f.enqueued[u] = struct{}{}
		if _, ok := f.depths[u]; !ok {
			f.depths[u] = 0
		}
		f.queue = append(f.queue, Entry{URL: u, Depth: 0})
	}
	f.cond.Broadcast()
}

// Stats reports queue and counter sizes for progress observation.
type Stats struct {
	QueueLen    int
	Visited     int
	URLsFound   int
	Dispatched  int
	Outstanding int
}

// Stats returns a point-in-time view of the frontier counters.
func (f *Frontier) Stats() Stats {
	f.mu.Lock()
	defer f.mu.Unlock()
	return Stats{
		QueueLen:    len(f.queue),
		Visited:     len(f.claimed),
		URLsFound:   len(f.admitted),
		Dispatched:  f.dispatched,
		Outstanding: f.outstanding,
	}
}

// Depth returns the recorded first-discovery depth for a URL.
func (f *Frontier) Depth(url string) (int, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	d, ok := f.depths[url]
	return d, ok
}

func setToSorted(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for u := range set {
		out = append(out, u)
	}
	sort.Strings(out)
	return out
}
