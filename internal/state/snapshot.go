// Package state persists crawl progress in two formats: a JSON snapshot
// file for portability and a SQLite database for per-URL history and
// resumable sessions. Resumption prefers the database and falls back to
// the snapshot file.
package state

import "time"

// SessionStatus tracks the lifecycle of a crawl session.
type SessionStatus string

const (
	SessionRunning   SessionStatus = "running"
	SessionCompleted SessionStatus = "completed"
	SessionFailed    SessionStatus = "failed"
)

// URL record statuses.
const (
	URLStatusSuccess = "success"
	URLStatusFailed  = "failed"
)

// Snapshot is the portable on-disk image of crawl progress. Field names
// are part of the wire format; snapshots written by older runs must keep
// loading.
type Snapshot struct {
	StartURL     string    `json:"start_url"`
	BaseDomain   string    `json:"base_domain"`
	VisitedURLs  []string  `json:"visited_urls"`
	URLQueue     []string  `json:"url_queue"`
	UniqueURLs   []string  `json:"unique_urls"`
	TotalCrawled int       `json:"total_crawled"`
	StartTime    time.Time `json:"start_time"`
	LastUpdated  time.Time `json:"last_updated"`
}

// SessionTotals are the final URL counters persisted when a session ends.
type SessionTotals struct {
	Total     int
	Succeeded int
	Failed    int
}

// Session identifies one crawl run in the database.
type Session struct {
	ID         string
	StartURL   string
	BaseDomain string
	StartedAt  time.Time
	EndedAt    time.Time
	Status     SessionStatus
	Totals     SessionTotals
}

// URLRecord is the per-URL fetch outcome stored in the database.
type URLRecord struct {
	URL           string
	Status        string
	ContentType   string
	ContentLength int64
	ResponseTime  float64
	ErrorMessage  string
	CrawledAt     time.Time
}

// Counters summarizes the urls table for reporting.
type Counters struct {
	Total     int
	Succeeded int
	Failed    int
	AvgTime   float64
}
