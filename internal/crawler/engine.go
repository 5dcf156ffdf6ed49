package crawler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/docsite-crawler/internal/state"
)

// StateManager is the persistence surface the engine depends on.
// Snapshot and record saves must not fail the crawl; implementations log
// and swallow those errors.
type StateManager interface {
	Resume(ctx context.Context, startURL, baseDomain string) (state.Snapshot, bool, error)
	SaveSnapshot(ctx context.Context, snap state.Snapshot)
	RecordURL(ctx context.Context, rec state.URLRecord)
	Complete(ctx context.Context, status state.SessionStatus, totals state.SessionTotals) error
}

// Config bounds one crawl run. Zero MaxURLs and MaxDepth mean unlimited.
type Config struct {
	StartURL         string
	Concurrency      int
	MaxURLs          int
	MaxDepth         int
	Delay            time.Duration
	SnapshotInterval time.Duration
}

// Summary reports how a crawl run ended. Status is SessionRunning when
// the crawl was interrupted and left resumable.
type Summary struct {
	StartURL     string
	BaseDomain   string
	Status       state.SessionStatus
	TotalCrawled int
	UniqueURLs   int
	Failed       int
	Rendered     int
	Resumed      bool
	Interrupted  bool
	Elapsed      time.Duration
}

// Engine runs a breadth-first crawl of a single domain: a shared frontier
// feeds a fixed pool of workers, each of which fetches, extracts, and
// enqueues same-domain links until the frontier drains, a ceiling is hit,
// or the context is canceled.
type Engine struct {
	cfg       Config
	frontier  *Frontier
	pipeline  *FetchPipeline
	extractor *LinkExtractor
	renderer  Renderer
	robots    RobotsPolicy
	states    StateManager
	observer  Observer
	logger    *zap.Logger

	baseDomain string
	startTime  time.Time

	mu       sync.Mutex
	failed   int
	rendered int
}

func NewEngine(
	cfg Config,
	pipeline *FetchPipeline,
	extractor *LinkExtractor,
	renderer Renderer,
	robots RobotsPolicy,
	states StateManager,
	observer Observer,
	logger *zap.Logger,
) (*Engine, error) {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 1
	}
	if renderer == nil {
		renderer = NopRenderer{}
	}
	if observer == nil {
		observer = NopObserver{}
	}
	base, err := BaseDomain(cfg.StartURL)
	if err != nil {
		return nil, fmt.Errorf("invalid start url %q: %w", cfg.StartURL, err)
	}
	return &Engine{
		cfg:        cfg,
		frontier:   NewFrontier(cfg.MaxURLs),
		pipeline:   pipeline,
		extractor:  extractor,
		renderer:   renderer,
		robots:     robots,
		states:     states,
		observer:   observer,
		logger:     logger,
		baseDomain: base,
	}, nil
}

// Run executes the crawl to completion or cancellation. The returned
// Summary is valid in both cases; cancellation leaves the session
// resumable and is not an error.
func (e *Engine) Run(ctx context.Context) (Summary, error) {
	startURL, err := NormalizeURL(e.cfg.StartURL)
	if err != nil {
		return Summary{}, fmt.Errorf("normalizing start url: %w", err)
	}

	snap, resumed, err := e.states.Resume(ctx, startURL, e.baseDomain)
	if err != nil {
		return Summary{}, fmt.Errorf("resuming crawl state: %w", err)
	}
	e.startTime = time.Now()
	if resumed {
		e.frontier.Restore(snap.VisitedURLs, snap.UniqueURLs, snap.URLQueue, snap.TotalCrawled)
		if e.frontier.Stats().QueueLen == 0 {
			e.frontier.Push(startURL, 0)
		}
	} else {
		e.frontier.Push(startURL, 0)
	}

	// cond-based Next cannot observe ctx; translate cancellation into a
	// frontier close so blocked workers wake up
	stopWatch := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			e.frontier.Close()
		case <-stopWatch:
		}
	}()

	var snapWG sync.WaitGroup
	stopSnap := make(chan struct{})
	if e.cfg.SnapshotInterval > 0 {
		snapWG.Add(1)
		go func() {
			defer snapWG.Done()
			ticker := time.NewTicker(e.cfg.SnapshotInterval)
			defer ticker.Stop()
			for {
				select {
				case <-ticker.C:
					e.saveSnapshot(snap.StartTime)
				case <-stopSnap:
					return
				}
			}
		}()
	}

	var wg sync.WaitGroup
	for i := 0; i < e.cfg.Concurrency; i++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			e.workerLoop(ctx, worker)
		}(i)
	}
	wg.Wait()

	close(stopWatch)
	close(stopSnap)
	snapWG.Wait()

	// the final snapshot must survive cancellation, so it never uses the
	// run context
	e.saveSnapshot(snap.StartTime)

	stats := e.frontier.Stats()
	e.mu.Lock()
	failed, rendered := e.failed, e.rendered
	e.mu.Unlock()

	interrupted := ctx.Err() != nil
	status := state.SessionRunning
	if !interrupted {
		// a drained crawl in which nothing was fetched successfully is a
		// failed crawl, not an empty success
		status = state.SessionCompleted
		if stats.Dispatched > 0 && failed >= stats.Dispatched {
			status = state.SessionFailed
		}
		totals := state.SessionTotals{
			Total:     stats.Dispatched,
			Succeeded: stats.Dispatched - failed,
			Failed:    failed,
		}
		if err := e.states.Complete(context.Background(), status, totals); err != nil {
			e.logger.Error("marking session finished failed", zap.Error(err))
		}
	}

	switch {
	case interrupted:
		e.logger.Info("crawl interrupted, session left resumable",
			zap.Int("total_crawled", stats.Dispatched),
			zap.Int("queued", stats.QueueLen),
		)
	default:
		e.logger.Info("crawl finished",
			zap.String("status", string(status)),
			zap.Int("total_crawled", stats.Dispatched),
			zap.Int("unique_urls", stats.URLsFound),
			zap.Int("failed", failed),
		)
	}

	return Summary{
		StartURL:     startURL,
		BaseDomain:   e.baseDomain,
		Status:       status,
		TotalCrawled: stats.Dispatched,
		UniqueURLs:   stats.URLsFound,
		Failed:       failed,
		Rendered:     rendered,
		Resumed:      resumed,
		Interrupted:  interrupted,
		Elapsed:      time.Since(e.startTime),
	}, nil
}

func (e *Engine) workerLoop(ctx context.Context, worker int) {
	log := e.logger.With(zap.Int("worker", worker))
	for {
		entry, ok := e.frontier.Next()
		if !ok {
			return
		}
		e.crawlOne(ctx, log, entry)
		e.frontier.Done()
	}
}

func (e *Engine) crawlOne(ctx context.Context, log *zap.Logger, entry Entry) {
	if !e.frontier.Claim(entry.URL) {
		e.observer.PageSkipped("duplicate")
		return
	}
	if !e.robots.Allowed(entry.URL) {
		e.observer.PageSkipped("robots")
		log.Debug("disallowed by robots.txt", zap.String("url", entry.URL))
		return
	}
	if !e.frontier.TryDispatch(entry.URL) {
		e.observer.PageSkipped("max_urls")
		return
	}

	result := e.pipeline.Fetch(ctx, entry.URL)
	if result.Outcome == OutcomeSuccess {
		e.handleFetched(ctx, log, entry, result.Page)
	} else {
		e.observer.PageFailed(result.Class)
		e.mu.Lock()
		e.failed++
		e.mu.Unlock()
	}

	// the delay follows every dispatched fetch, failed ones included, so
	// a run of dead links never hits the site unthrottled
	if e.cfg.Delay > 0 {
		pause(ctx, e.cfg.Delay)
	}
}

func (e *Engine) handleFetched(ctx context.Context, log *zap.Logger, entry Entry, page Page) {
	e.observer.PageFetched(page.StatusCode, page.Duration)
	log.Info("crawled",
		zap.String("url", entry.URL),
		zap.Int("depth", entry.Depth),
		zap.Int("status", page.StatusCode),
		zap.Duration("duration", page.Duration),
	)

	body := page.Body
	contentType := page.ContentType()
	if verdict := e.extractor.ClassifyContent(body, contentType); verdict.NeedsRendering {
		if html, err := e.renderPage(ctx, entry.URL); err == nil {
			body = []byte(html)
		} else if !errors.Is(err, ErrRendererDisabled) {
			log.Warn("render failed, using static content",
				zap.String("url", entry.URL),
				zap.Error(err),
			)
		}
	}

	for _, link := range e.extractor.Extract(body, contentType, page.FinalURL) {
		if !SameDomain(link, e.baseDomain) {
			continue
		}
		if e.cfg.MaxDepth > 0 && entry.Depth >= e.cfg.MaxDepth {
			continue
		}
		e.frontier.Push(link, entry.Depth+1)
	}
}

func (e *Engine) renderPage(ctx context.Context, rawURL string) (string, error) {
	start := time.Now()
	html, err := e.renderer.Render(ctx, rawURL)
	if err != nil {
		return "", err
	}
	e.observer.PageRendered(time.Since(start))
	e.mu.Lock()
	e.rendered++
	e.mu.Unlock()
	return html, nil
}

func (e *Engine) saveSnapshot(startTime time.Time) {
	fs := e.frontier.Export()
	e.states.SaveSnapshot(context.Background(), state.Snapshot{
		StartURL:     e.cfg.StartURL,
		BaseDomain:   e.baseDomain,
		VisitedURLs:  fs.Visited,
		URLQueue:     fs.Queue,
		UniqueURLs:   fs.Unique,
		TotalCrawled: fs.Dispatched,
		StartTime:    startTime,
		LastUpdated:  time.Now(),
	})
}

// Discovered returns every unique URL seen so far with its discovery
// depth, for the final report.
func (e *Engine) Discovered() map[string]int {
	fs := e.frontier.Export()
	out := make(map[string]int, len(fs.Unique))
	for _, u := range fs.Unique {
		out[u] = fs.Depths[u]
	}
	return out
}

// Stats exposes live frontier counters for the status endpoint.
func (e *Engine) Stats() Stats { return e.frontier.Stats() }
