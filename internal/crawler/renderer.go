package crawler

import (
	"context"
	"errors"
	"time"

	"github.com/chromedp/chromedp"
	"go.uber.org/zap"
)

// ErrRendererDisabled is returned by NopRenderer; callers fall back to
// static extraction.
var ErrRendererDisabled = errors.New("javascript rendering disabled")

// Renderer produces the post-JavaScript HTML of a page.
type Renderer interface {
	Render(ctx context.Context, rawURL string) (string, error)
	Close(ctx context.Context) error
}

// NopRenderer always reports rendering as disabled.
type NopRenderer struct{}

func (NopRenderer) Render(context.Context, string) (string, error) { return "", ErrRendererDisabled }
func (NopRenderer) Close(context.Context) error                    { return nil }

// ChromedpRenderer drives headless Chrome sessions to render
// JavaScript-heavy pages. Concurrent renders are capped because each one
// holds a browser tab.
type ChromedpRenderer struct {
	allocCtx    context.Context
	allocCancel context.CancelFunc
	slots       chan struct{}
	navTimeout  time.Duration
	settle      time.Duration
	logger      *zap.Logger
}

// RendererConfig bounds the renderer.
type RendererConfig struct {
	MaxSessions int
	NavTimeout  time.Duration
	SettleDelay time.Duration
}

func NewChromedpRenderer(cfg RendererConfig, logger *zap.Logger) *ChromedpRenderer {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
	)
	allocCtx, cancel := chromedp.NewExecAllocator(context.Background(), opts...)
	if cfg.MaxSessions <= 0 {
		cfg.MaxSessions = 1
	}
	if cfg.NavTimeout <= 0 {
		cfg.NavTimeout = 30 * time.Second
	}
	if cfg.SettleDelay <= 0 {
		cfg.SettleDelay = 2 * time.Second
	}
	return &ChromedpRenderer{
		allocCtx:    allocCtx,
		allocCancel: cancel,
		slots:       make(chan struct{}, cfg.MaxSessions),
		navTimeout:  cfg.NavTimeout,
		settle:      cfg.SettleDelay,
		logger:      logger,
	}
}

// Render navigates to rawURL in a fresh tab, waits for the body plus a
// settle delay, and returns the resulting HTML.
func (r *ChromedpRenderer) Render(ctx context.Context, rawURL string) (string, error) {
	select {
	case r.slots <- struct{}{}:
	case <-ctx.Done():
		return "", ctx.Err()
	}
	defer func() { <-r.slots }()

	tabCtx, cancelTab := chromedp.NewContext(r.allocCtx)
	defer cancelTab()
	tabCtx, cancelTimeout := context.WithTimeout(tabCtx, r.navTimeout)
	defer cancelTimeout()

	// stop the tab if the caller's context dies first
	stop := context.AfterFunc(ctx, cancelTab)
	defer stop()

	start := time.Now()
	var html string
	err := chromedp.Run(tabCtx,
		chromedp.Navigate(rawURL),
		chromedp.WaitReady("body"),
		chromedp.Sleep(r.settle),
		chromedp.OuterHTML("html", &html),
	)
	if err != nil {
		return "", err
	}
	r.logger.Debug("rendered page",
		zap.String("url", rawURL),
		zap.Duration("duration", time.Since(start)),
	)
	return html, nil
}

func (r *ChromedpRenderer) Close(context.Context) error {
	r.allocCancel()
	return nil
}
