package crawler

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gocolly/colly/v2"
	"go.uber.org/zap"
)

// Page is the result of one successful HTTP exchange.
type Page struct {
	URL        string
	FinalURL   string
	StatusCode int
	Headers    http.Header
	Body       []byte
	Duration   time.Duration
}

// ContentType returns the response content type, empty when unknown.
func (p Page) ContentType() string {
	return p.Headers.Get("Content-Type")
}

// Fetcher performs a single HTTP fetch. Responses with error status codes
// come back as a Page with that status and a nil error; only transport
// failures (DNS, refused connections, timeouts) return an error.
type Fetcher interface {
	Fetch(ctx context.Context, rawURL string) (Page, error)
}

// FetcherConfig holds the transport knobs for the Colly-backed Fetcher.
type FetcherConfig struct {
	UserAgent   string
	Timeout     time.Duration
	Concurrency int
}

// CollyFetcher implements Fetcher with a cloned Colly collector per fetch.
type CollyFetcher struct {
	base   *colly.Collector
	logger *zap.Logger
}

// NewCollyFetcher constructs the shared base collector. Robots handling is
// disabled here: the politeness governor is the single robots authority.
func NewCollyFetcher(cfg FetcherConfig, logger *zap.Logger) (*CollyFetcher, error) {
	base := colly.NewCollector(
		colly.UserAgent(cfg.UserAgent),
		colly.IgnoreRobotsTxt(),
	)
	base.AllowURLRevisit = true
	base.WithTransport(&http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		MaxIdleConns:          64,
		MaxIdleConnsPerHost:   maxInt(2, cfg.Concurrency),
		MaxConnsPerHost:       maxInt(2, cfg.Concurrency*2),
		IdleConnTimeout:       30 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: cfg.Timeout,
		ForceAttemptHTTP2:     true,
	})
	base.SetRequestTimeout(cfg.Timeout)
	return &CollyFetcher{base: base, logger: logger}, nil
}

// Fetch retrieves one page through a cloned collector. The retry pipeline
// above decides what to do with the outcome; this layer only reports it.
func (f *CollyFetcher) Fetch(ctx context.Context, rawURL string) (Page, error) {
	collector := f.base.Clone()
	resultCh := make(chan fetchResult, 1)
	var once sync.Once
	send := func(res fetchResult) {
		once.Do(func() { resultCh <- res })
	}
	start := time.Now()

	collector.OnResponse(func(r *colly.Response) {
		send(fetchResult{page: pageFromResponse(rawURL, r, time.Since(start))})
	})
	collector.OnError(func(r *colly.Response, err error) {
		// Colly routes HTTP error statuses here with the response
		// attached; surface those as pages so the pipeline can
		// classify 4xx vs 5xx.
		if r != nil && r.StatusCode != 0 {
			send(fetchResult{page: pageFromResponse(rawURL, r, time.Since(start))})
			return
		}
		if err == nil {
			err = errors.New("colly reported an unknown error")
		}
		send(fetchResult{err: err})
	})

	if err := collector.Visit(rawURL); err != nil {
		return Page{}, err
	}
	collector.Wait()

	select {
	case res := <-resultCh:
		if err := ctx.Err(); err != nil {
			return Page{}, err
		}
		return res.page, res.err
	default:
		return Page{}, errors.New("fetch produced no result")
	}
}

func pageFromResponse(rawURL string, r *colly.Response, elapsed time.Duration) Page {
	headers := http.Header{}
	if r.Headers != nil {
		for k, v := range *r.Headers {
			cp := make([]string, len(v))
			copy(cp, v)
			headers[k] = cp
		}
	}
	finalURL := rawURL
	if r.Request != nil && r.Request.URL != nil {
		finalURL = r.Request.URL.String()
	}
	return Page{
		URL:        rawURL,
		FinalURL:   finalURL,
		StatusCode: r.StatusCode,
		Headers:    headers,
		Body:       append([]byte{}, r.Body...),
		Duration:   elapsed,
	}
}

type fetchResult struct {
	page Page
	err  error
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
