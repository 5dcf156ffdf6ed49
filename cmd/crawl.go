package cmd

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/docsite-crawler/internal/api"
	"github.com/JakeFAU/docsite-crawler/internal/config"
	"github.com/JakeFAU/docsite-crawler/internal/crawler"
	"github.com/JakeFAU/docsite-crawler/internal/logging"
	"github.com/JakeFAU/docsite-crawler/internal/report"
	"github.com/JakeFAU/docsite-crawler/internal/state"
)

// newCrawlCmd creates and configures the 'crawl' subcommand. It builds
// the full crawl pipeline from configuration and runs it until the site
// is mapped or the process is interrupted.
func newCrawlCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "crawl [start-url]",
		Short: "Starts crawling a documentation site",
		Long: `Starts a breadth-first crawl from the given URL (or crawler.start_url
in the config file). Progress is checkpointed to a JSON snapshot and a
SQLite database; re-running the same crawl resumes it.`,
		Args: cobra.MaximumNArgs(1),
		RunE: runCrawlCommand,
	}
	return cmd
}

func runCrawlCommand(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return err
	}
	if len(args) > 0 {
		cfg.Crawler.StartURL = args[0]
	}
	if cfg.Crawler.StartURL == "" {
		return fmt.Errorf("a start url is required, as an argument or crawler.start_url")
	}

	logger, err := logging.New(cfg.Logging.Development, cfg.Logging.Level)
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck
	logger = logger.With(zap.String("run_id", uuid.NewString()))

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	engine, cleanup, err := buildEngine(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer cleanup()

	var server *api.Server
	if cfg.API.Enabled {
		server = api.NewServer(cfg.API.Addr, &engineStatus{
			engine:  engine,
			domain:  cfg.Crawler.StartURL,
			started: time.Now(),
		}, logger)
		server.Start()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			server.Shutdown(shutdownCtx) //nolint:errcheck
		}()
	}

	summary, err := engine.Run(ctx)
	if err != nil {
		return fmt.Errorf("run crawler: %w", err)
	}

	if err := report.Write(
		cfg.Output.ReportFile,
		summary.BaseDomain,
		summary.StartURL,
		engine.Discovered(),
		time.Now(),
		summary.Elapsed,
	); err != nil {
		logger.Error("writing report failed", zap.Error(err))
	}

	printSummary(summary, cfg.Output.ReportFile)
	return nil
}

func buildEngine(ctx context.Context, cfg config.Config, logger *zap.Logger) (*crawler.Engine, func(), error) {
	fetcher, err := crawler.NewCollyFetcher(crawler.FetcherConfig{
		UserAgent:   cfg.Crawler.UserAgent,
		Timeout:     cfg.Timeout(),
		Concurrency: cfg.Crawler.Concurrency,
	}, logger)
	if err != nil {
		return nil, nil, fmt.Errorf("init fetcher: %w", err)
	}

	baseDomain, err := crawler.BaseDomain(cfg.Crawler.StartURL)
	if err != nil {
		return nil, nil, fmt.Errorf("invalid start url: %w", err)
	}
	robots := crawler.NewRobotsGovernor(
		ctx, baseDomain, cfg.Crawler.UserAgent, cfg.Robots.Respect,
		&http.Client{Timeout: cfg.Timeout()}, logger,
	)

	gate := crawler.NewAdmissionGate(
		cfg.RateLimit.MaxInFlight,
		cfg.RateLimit.RequestsPerSecond,
		cfg.RateLimit.Burst,
	)

	db, err := state.OpenSQLiteStore(cfg.Output.DatabaseFile)
	if err != nil {
		return nil, nil, fmt.Errorf("open state database: %w", err)
	}
	states := state.NewManager(state.NewFileStore(cfg.Output.StateFile), db, logger)

	observer := crawler.NewPrometheusObserver(nil)

	var renderer crawler.Renderer = crawler.NopRenderer{}
	if cfg.Render.Enabled {
		renderer = crawler.NewChromedpRenderer(crawler.RendererConfig{
			MaxSessions: cfg.Render.MaxSessions,
			NavTimeout:  time.Duration(cfg.Render.NavTimeoutSecs) * time.Second,
			SettleDelay: time.Duration(cfg.Render.SettleDelaySec) * time.Second,
		}, logger)
	}

	pipeline := crawler.NewFetchPipeline(
		fetcher, gate, states, observer,
		cfg.Retry.MaxRetries,
		time.Duration(cfg.Retry.BaseDelaySecs*float64(time.Second)),
		time.Duration(cfg.Retry.MaxDelaySecs*float64(time.Second)),
		logger,
	)

	engine, err := crawler.NewEngine(crawler.Config{
		StartURL:         cfg.Crawler.StartURL,
		Concurrency:      cfg.Crawler.Concurrency,
		MaxURLs:          cfg.Crawler.MaxURLs,
		MaxDepth:         cfg.Crawler.MaxDepth,
		Delay:            cfg.Delay(),
		SnapshotInterval: time.Duration(cfg.Output.SnapshotIntervalSecs) * time.Second,
	}, pipeline, crawler.NewLinkExtractor(logger), renderer, robots, states, observer, logger)
	if err != nil {
		return nil, nil, err
	}

	cleanup := func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if cerr := renderer.Close(closeCtx); cerr != nil {
			logger.Warn("closing renderer", zap.Error(cerr))
		}
		if cerr := db.Close(); cerr != nil {
			logger.Warn("closing state database", zap.Error(cerr))
		}
	}
	return engine, cleanup, nil
}

// engineStatus adapts the engine to the api.StatusProvider interface.
type engineStatus struct {
	engine  *crawler.Engine
	domain  string
	started time.Time
}

func (s *engineStatus) Status() api.Status {
	stats := s.engine.Stats()
	return api.Status{
		Domain:       s.domain,
		QueueLength:  stats.QueueLen,
		Visited:      stats.Visited,
		UniqueURLs:   stats.URLsFound,
		TotalCrawled: stats.Dispatched,
		InFlight:     stats.Outstanding,
		UptimeSecs:   int64(time.Since(s.started).Seconds()),
	}
}

func printSummary(s crawler.Summary, reportFile string) {
	fmt.Println()
	switch {
	case s.Interrupted:
		fmt.Println("Crawl interrupted; progress saved, re-run to resume.")
	case s.Status == state.SessionFailed:
		fmt.Println("Crawl failed: no pages could be fetched.")
	default:
		fmt.Println("Crawl complete.")
	}
	fmt.Printf("  Domain:        %s\n", s.BaseDomain)
	fmt.Printf("  Pages crawled: %d\n", s.TotalCrawled)
	fmt.Printf("  Unique URLs:   %d\n", s.UniqueURLs)
	fmt.Printf("  Failed:        %d\n", s.Failed)
	if s.Rendered > 0 {
		fmt.Printf("  Rendered:      %d\n", s.Rendered)
	}
	fmt.Printf("  Elapsed:       %s\n", s.Elapsed.Round(time.Millisecond))
	fmt.Printf("  Report:        %s\n", reportFile)
}
