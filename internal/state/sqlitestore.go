package state

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS urls (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	url TEXT UNIQUE NOT NULL,
	status TEXT NOT NULL,
	crawled_at TEXT NOT NULL,
	content_type TEXT,
	content_length INTEGER,
	response_time REAL,
	error_message TEXT
);

CREATE TABLE IF NOT EXISTS crawl_sessions (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	session_id TEXT UNIQUE NOT NULL,
	start_url TEXT NOT NULL,
	base_domain TEXT NOT NULL,
	start_time TEXT NOT NULL,
	end_time TEXT,
	total_urls INTEGER NOT NULL DEFAULT 0,
	successful_urls INTEGER NOT NULL DEFAULT 0,
	failed_urls INTEGER NOT NULL DEFAULT 0,
	status TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS crawl_state (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	session_id TEXT UNIQUE NOT NULL,
	visited_urls TEXT NOT NULL,
	url_queue TEXT NOT NULL,
	unique_urls TEXT NOT NULL,
	total_crawled INTEGER NOT NULL,
	last_updated TEXT NOT NULL
);
`

// SQLiteStore keeps per-URL history and resumable session state in a
// local SQLite database.
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLiteStore opens or creates the database at path and ensures the
// schema exists.
func OpenSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", "file:"+path+"?mode=rwc")
	if err != nil {
		return nil, fmt.Errorf("opening state database: %w", err)
	}
	// sqlite handles one writer; a single connection avoids SQLITE_BUSY
	db.SetMaxOpenConns(1)
	if _, err := db.Exec("PRAGMA journal_mode=WAL;"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Close() error { return s.db.Close() }

// CreateSession registers a new running session.
func (s *SQLiteStore) CreateSession(ctx context.Context, sess Session) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO crawl_sessions (session_id, start_url, base_domain, start_time, status)
		VALUES (?, ?, ?, ?, ?)`,
		sess.ID, sess.StartURL, sess.BaseDomain,
		sess.StartedAt.UTC().Format(time.RFC3339), string(SessionRunning),
	)
	if err != nil {
		return fmt.Errorf("creating session %s: %w", sess.ID, err)
	}
	return nil
}

// SaveState upserts the session's progress snapshot. Repeated saves for
// the same session replace the previous row, so crash-then-retry is
// idempotent.
func (s *SQLiteStore) SaveState(ctx context.Context, sessionID string, snap Snapshot) error {
	visited, err := json.Marshal(snap.VisitedURLs)
	if err != nil {
		return fmt.Errorf("encoding visited urls: %w", err)
	}
	queue, err := json.Marshal(snap.URLQueue)
	if err != nil {
		return fmt.Errorf("encoding url queue: %w", err)
	}
	unique, err := json.Marshal(snap.UniqueURLs)
	if err != nil {
		return fmt.Errorf("encoding unique urls: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO crawl_state (session_id, visited_urls, url_queue, unique_urls, total_crawled, last_updated)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(session_id) DO UPDATE SET
			visited_urls = excluded.visited_urls,
			url_queue = excluded.url_queue,
			unique_urls = excluded.unique_urls,
			total_crawled = excluded.total_crawled,
			last_updated = excluded.last_updated`,
		sessionID, string(visited), string(queue), string(unique),
		snap.TotalCrawled, snap.LastUpdated.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("saving state for session %s: %w", sessionID, err)
	}
	return nil
}

// LoadLatestRunning returns the most recent running session for
// baseDomain along with its saved progress, or ok=false when there is
// nothing to resume.
func (s *SQLiteStore) LoadLatestRunning(ctx context.Context, baseDomain string) (Session, Snapshot, bool, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT session_id, start_url, base_domain, start_time
		FROM crawl_sessions
		WHERE base_domain = ? AND status = ?
		ORDER BY id DESC LIMIT 1`,
		baseDomain, string(SessionRunning),
	)
	var sess Session
	var startTime string
	err := row.Scan(&sess.ID, &sess.StartURL, &sess.BaseDomain, &startTime)
	if errors.Is(err, sql.ErrNoRows) {
		return Session{}, Snapshot{}, false, nil
	}
	if err != nil {
		return Session{}, Snapshot{}, false, fmt.Errorf("loading session: %w", err)
	}
	sess.Status = SessionRunning
	sess.StartedAt, _ = time.Parse(time.RFC3339, startTime)

	row = s.db.QueryRowContext(ctx, `
		SELECT visited_urls, url_queue, unique_urls, total_crawled, last_updated
		FROM crawl_state WHERE session_id = ?`, sess.ID)
	var visited, queue, unique, lastUpdated string
	var snap Snapshot
	err = row.Scan(&visited, &queue, &unique, &snap.TotalCrawled, &lastUpdated)
	if errors.Is(err, sql.ErrNoRows) {
		// session row without progress; nothing useful to resume
		return Session{}, Snapshot{}, false, nil
	}
	if err != nil {
		return Session{}, Snapshot{}, false, fmt.Errorf("loading state for session %s: %w", sess.ID, err)
	}
	if err := json.Unmarshal([]byte(visited), &snap.VisitedURLs); err != nil {
		return Session{}, Snapshot{}, false, fmt.Errorf("decoding visited urls: %w", err)
	}
	if err := json.Unmarshal([]byte(queue), &snap.URLQueue); err != nil {
		return Session{}, Snapshot{}, false, fmt.Errorf("decoding url queue: %w", err)
	}
	if err := json.Unmarshal([]byte(unique), &snap.UniqueURLs); err != nil {
		return Session{}, Snapshot{}, false, fmt.Errorf("decoding unique urls: %w", err)
	}
	snap.StartURL = sess.StartURL
	snap.BaseDomain = sess.BaseDomain
	snap.StartTime = sess.StartedAt
	snap.LastUpdated, _ = time.Parse(time.RFC3339, lastUpdated)
	return sess, snap, true, nil
}

// FinishSession marks the session ended with the given status and final
// URL totals.
func (s *SQLiteStore) FinishSession(ctx context.Context, sessionID string, status SessionStatus, totals SessionTotals) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE crawl_sessions
		SET status = ?, end_time = ?, total_urls = ?, successful_urls = ?, failed_urls = ?
		WHERE session_id = ?`,
		string(status), time.Now().UTC().Format(time.RFC3339),
		totals.Total, totals.Succeeded, totals.Failed, sessionID,
	)
	if err != nil {
		return fmt.Errorf("finishing session %s: %w", sessionID, err)
	}
	return nil
}

// RecordURL upserts the fetch outcome for a URL. Re-fetching a URL in a
// resumed session overwrites the older row.
func (s *SQLiteStore) RecordURL(ctx context.Context, rec URLRecord) error {
	crawledAt := rec.CrawledAt
	if crawledAt.IsZero() {
		crawledAt = time.Now()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO urls (url, status, crawled_at, content_type, content_length, response_time, error_message)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(url) DO UPDATE SET
			status = excluded.status,
			crawled_at = excluded.crawled_at,
			content_type = excluded.content_type,
			content_length = excluded.content_length,
			response_time = excluded.response_time,
			error_message = excluded.error_message`,
		rec.URL, rec.Status, crawledAt.UTC().Format(time.RFC3339),
		rec.ContentType, rec.ContentLength, rec.ResponseTime, rec.ErrorMessage,
	)
	if err != nil {
		return fmt.Errorf("recording url %s: %w", rec.URL, err)
	}
	return nil
}

// Stats aggregates the urls table.
func (s *SQLiteStore) Stats(ctx context.Context) (Counters, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*),
		       COALESCE(SUM(CASE WHEN status = ? THEN 1 ELSE 0 END), 0),
		       COALESCE(SUM(CASE WHEN status = ? THEN 1 ELSE 0 END), 0),
		       COALESCE(AVG(response_time), 0)
		FROM urls`, URLStatusSuccess, URLStatusFailed)
	var c Counters
	if err := row.Scan(&c.Total, &c.Succeeded, &c.Failed, &c.AvgTime); err != nil {
		return Counters{}, fmt.Errorf("aggregating url stats: %w", err)
	}
	return c, nil
}

// Sessions lists all sessions, newest first.
func (s *SQLiteStore) Sessions(ctx context.Context) ([]Session, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT session_id, start_url, base_domain, start_time, COALESCE(end_time, ''),
		       total_urls, successful_urls, failed_urls, status
		FROM crawl_sessions ORDER BY id DESC`)
	if err != nil {
		return nil, fmt.Errorf("listing sessions: %w", err)
	}
	defer rows.Close()
	var out []Session
	for rows.Next() {
		var sess Session
		var startTime, endTime, status string
		if err := rows.Scan(&sess.ID, &sess.StartURL, &sess.BaseDomain, &startTime, &endTime,
			&sess.Totals.Total, &sess.Totals.Succeeded, &sess.Totals.Failed, &status); err != nil {
			return nil, fmt.Errorf("scanning session: %w", err)
		}
		sess.Status = SessionStatus(status)
		sess.StartedAt, _ = time.Parse(time.RFC3339, startTime)
		if endTime != "" {
			sess.EndedAt, _ = time.Parse(time.RFC3339, endTime)
		}
		out = append(out, sess)
	}
	return out, rows.Err()
}
