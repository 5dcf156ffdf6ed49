package state

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Manager coordinates the two persistence formats. Persistence failures
// during a crawl are logged and swallowed; losing a snapshot must never
// abort in-flight work.
type Manager struct {
	files   *FileStore
	db      *SQLiteStore
	logger  *zap.Logger
	session Session
}

func NewManager(files *FileStore, db *SQLiteStore, logger *zap.Logger) *Manager {
	return &Manager{files: files, db: db, logger: logger}
}

func (m *Manager) Session() Session { return m.session }

// Resume loads prior progress for startURL's domain, preferring the
// database over the snapshot file, and either adopts the running session
// or registers a new one. resumed is false when starting fresh.
func (m *Manager) Resume(ctx context.Context, startURL, baseDomain string) (Snapshot, bool, error) {
	sess, snap, ok, err := m.db.LoadLatestRunning(ctx, baseDomain)
	if err != nil {
		m.logger.Warn("database resume failed, trying snapshot file", zap.Error(err))
	}
	if ok {
		m.session = sess
		m.logger.Info("resuming crawl session",
			zap.String("session_id", sess.ID),
			zap.Int("visited", len(snap.VisitedURLs)),
			zap.Int("queued", len(snap.URLQueue)),
		)
		return snap, true, nil
	}

	snap, found, err := m.files.Load()
	if err != nil {
		m.logger.Warn("snapshot file unreadable, starting fresh", zap.Error(err))
		found = false
	}
	if found && snap.BaseDomain != baseDomain {
		m.logger.Info("snapshot file is for a different domain, starting fresh",
			zap.String("snapshot_domain", snap.BaseDomain),
			zap.String("domain", baseDomain),
		)
		found = false
	}

	m.session = Session{
		ID:         uuid.NewString(),
		StartURL:   startURL,
		BaseDomain: baseDomain,
		StartedAt:  time.Now(),
		Status:     SessionRunning,
	}
	if found {
		m.session.StartedAt = snap.StartTime
	}
	if err := m.db.CreateSession(ctx, m.session); err != nil {
		return Snapshot{}, false, err
	}
	if found {
		m.logger.Info("resuming from snapshot file",
			zap.String("session_id", m.session.ID),
			zap.Int("visited", len(snap.VisitedURLs)),
			zap.Int("queued", len(snap.URLQueue)),
		)
		return snap, true, nil
	}
	return Snapshot{StartURL: startURL, BaseDomain: baseDomain, StartTime: m.session.StartedAt}, false, nil
}

// SaveSnapshot writes progress to both formats. Failures are logged, not
// returned.
func (m *Manager) SaveSnapshot(ctx context.Context, snap Snapshot) {
	if err := m.files.Save(snap); err != nil {
		m.logger.Error("snapshot file save failed", zap.Error(err))
	}
	if err := m.db.SaveState(ctx, m.session.ID, snap); err != nil {
		m.logger.Error("database state save failed", zap.Error(err))
	}
}

// RecordURL persists a per-URL outcome. Failures are logged, not
// returned.
func (m *Manager) RecordURL(ctx context.Context, rec URLRecord) {
	if err := m.db.RecordURL(ctx, rec); err != nil {
		m.logger.Error("url record save failed", zap.String("url", rec.URL), zap.Error(err))
	}
}

// Complete marks the session finished with its final URL totals. An
// interrupted crawl skips this, leaving the session running so the next
// run resumes it.
func (m *Manager) Complete(ctx context.Context, status SessionStatus, totals SessionTotals) error {
	return m.db.FinishSession(ctx, m.session.ID, status, totals)
}
