package crawler

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/docsite-crawler/internal/state"
)

// Outcome is the terminal state of one logical page fetch.
type Outcome int

const (
	// OutcomeSuccess means a page body was retrieved.
	OutcomeSuccess Outcome = iota
	// OutcomeTerminalFailure means the fetch will not be retried further.
	OutcomeTerminalFailure
)

// FailureClass categorizes fetch failures; the class decides the retry
// policy.
type FailureClass string

const (
	ClassNone            FailureClass = ""
	ClassTransientNet    FailureClass = "transient_network"
	ClassTransientServer FailureClass = "transient_server"
	ClassClientRejected  FailureClass = "client_rejected"
	ClassUnexpected      FailureClass = "unexpected"
	ClassCanceled        FailureClass = "canceled"
)

// retryable reports whether the class may be retried with backoff.
func (c FailureClass) retryable() bool {
	return c == ClassTransientNet || c == ClassTransientServer
}

// FetchResult is the typed outcome of the pipeline. The pipeline never
// propagates a fetch failure as an error; failure is a value here.
type FetchResult struct {
	Outcome  Outcome
	Page     Page
	Class    FailureClass
	Err      error
	Attempts int
}

// URLRecorder persists the final outcome of each fetched URL.
type URLRecorder interface {
	RecordURL(ctx context.Context, rec state.URLRecord)
}

// FetchPipeline runs the per-URL fetch state machine:
// Pending -> Fetching -> {Success | RetryableFailure | TerminalFailure},
// with exponential backoff between retryable attempts. Connection-level
// errors, timeouts, and HTTP 5xx are retried until the budget is spent;
// HTTP 4xx and anything unexpected fail terminally on the first attempt.
type FetchPipeline struct {
	fetcher    Fetcher
	gate       *AdmissionGate
	recorder   URLRecorder
	observer   Observer
	maxRetries int
	baseDelay  time.Duration
	maxDelay   time.Duration
	logger     *zap.Logger
}

// NewFetchPipeline wires the pipeline. maxRetries counts additional
// attempts after the first.
func NewFetchPipeline(
	fetcher Fetcher,
	gate *AdmissionGate,
	recorder URLRecorder,
	observer Observer,
	maxRetries int,
	baseDelay, maxDelay time.Duration,
	logger *zap.Logger,
) *FetchPipeline {
	if observer == nil {
		observer = NopObserver{}
	}
	return &FetchPipeline{
		fetcher:    fetcher,
		gate:       gate,
		recorder:   recorder,
		observer:   observer,
		maxRetries: maxRetries,
		baseDelay:  baseDelay,
		maxDelay:   maxDelay,
		logger:     logger,
	}
}

// Fetch performs one logical page fetch with classified retries. The final
// outcome, success or terminal failure, is recorded exactly once.
func (p *FetchPipeline) Fetch(ctx context.Context, rawURL string) FetchResult {
	var (
		lastClass FailureClass
		lastErr   error
	)
	for attempt := 0; attempt <= p.maxRetries; attempt++ {
		if ctx.Err() != nil {
			return p.terminal(ctx, rawURL, ClassCanceled, ctx.Err(), attempt)
		}
		if attempt > 0 {
			p.observer.FetchRetried(rawURL, attempt)
			pause(ctx, p.backoff(attempt-1))
			if ctx.Err() != nil {
				return p.terminal(ctx, rawURL, ClassCanceled, ctx.Err(), attempt)
			}
		}

		page, fetchErr := p.doFetch(ctx, rawURL)
		class := Classify(fetchErr, page.StatusCode)
		switch {
		case class == ClassNone:
			p.recorder.RecordURL(ctx, state.URLRecord{
				URL:           rawURL,
				Status:        state.URLStatusSuccess,
				ContentType:   page.ContentType(),
				ContentLength: int64(len(page.Body)),
				ResponseTime:  page.Duration.Seconds(),
			})
			return FetchResult{Outcome: OutcomeSuccess, Page: page, Attempts: attempt + 1}
		case class == ClassCanceled:
			return p.terminal(ctx, rawURL, class, fetchErr, attempt+1)
		case class.retryable():
			lastClass, lastErr = class, failureError(fetchErr, page.StatusCode)
			p.logger.Warn("fetch attempt failed",
				zap.String("url", rawURL),
				zap.Int("attempt", attempt+1),
				zap.String("class", string(class)),
				zap.Error(lastErr),
			)
		default:
			return p.terminal(ctx, rawURL, class, failureError(fetchErr, page.StatusCode), attempt+1)
		}
	}
	return p.terminal(ctx, rawURL, lastClass, lastErr, p.maxRetries+1)
}

func (p *FetchPipeline) doFetch(ctx context.Context, rawURL string) (Page, error) {
	if err := p.gate.Acquire(ctx); err != nil {
		return Page{}, err
	}
	defer p.gate.Release()
	return p.fetcher.Fetch(ctx, rawURL)
}

func (p *FetchPipeline) terminal(ctx context.Context, rawURL string, class FailureClass, err error, attempts int) FetchResult {
	msg := "fetch failed"
	if err != nil {
		msg = err.Error()
	}
	p.recorder.RecordURL(ctx, state.URLRecord{
		URL:          rawURL,
		Status:       state.URLStatusFailed,
		ErrorMessage: msg,
	})
	p.logger.Error("fetch terminally failed",
		zap.String("url", rawURL),
		zap.String("class", string(class)),
		zap.Int("attempts", attempts),
		zap.Error(err),
	)
	return FetchResult{Outcome: OutcomeTerminalFailure, Class: class, Err: err, Attempts: attempts}
}

// backoff returns min(baseDelay * 2^attempt, maxDelay).
func (p *FetchPipeline) backoff(attempt int) time.Duration {
	delay := p.baseDelay << uint(attempt)
	if p.maxDelay > 0 && delay > p.maxDelay {
		delay = p.maxDelay
	}
	return delay
}

// Classify maps a fetch error or HTTP status onto the failure taxonomy.
// A nil error with a 2xx/3xx status is ClassNone.
func Classify(err error, status int) FailureClass {
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return ClassCanceled
		}
		if isTimeout(err) || isConnectionError(err) {
			return ClassTransientNet
		}
		return ClassUnexpected
	}
	switch {
	case status >= 200 && status < 400:
		return ClassNone
	case status >= 500:
		return ClassTransientServer
	case status >= 400:
		return ClassClientRejected
	default:
		return ClassUnexpected
	}
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

func isConnectionError(err error) bool {
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return true
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return true
	}
	return errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.EPIPE)
}

func failureError(err error, status int) error {
	if err != nil {
		return err
	}
	return &HTTPStatusError{StatusCode: status}
}

// HTTPStatusError marks a fetch rejected by the server with an HTTP error
// status rather than a transport failure.
type HTTPStatusError struct {
	StatusCode int
}

func (e *HTTPStatusError) Error() string {
	return fmt.Sprintf("http status %d %s", e.StatusCode, http.StatusText(e.StatusCode))
}
