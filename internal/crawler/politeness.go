package crawler

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/time/rate"
)

// AdmissionGate bounds in-flight network fetches with a counting semaphore
// and paces request starts with a token bucket. Every fetch, including
// retries, must Acquire before touching the network and Release afterwards
// on all paths.
type AdmissionGate struct {
	slots   chan struct{}
	limiter *rate.Limiter
}

// NewAdmissionGate builds a gate admitting at most maxInFlight concurrent
// fetches. rps of zero disables pacing; the semaphore alone bounds load.
func NewAdmissionGate(maxInFlight int, rps float64, burst int) *AdmissionGate {
	if maxInFlight <= 0 {
		maxInFlight = 1
	}
	var limiter *rate.Limiter
	if rps > 0 {
		if burst <= 0 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
	return &AdmissionGate{
		slots:   make(chan struct{}, maxInFlight),
		limiter: limiter,
	}
}

// Acquire blocks until a fetch slot and a rate token are available, or the
// context ends. On success the caller owns one slot and must Release it.
func (g *AdmissionGate) Acquire(ctx context.Context) error {
	select {
	case g.slots <- struct{}{}:
	case <-ctx.Done():
		return fmt.Errorf("acquire fetch slot: %w", ctx.Err())
	}
	if g.limiter != nil {
		if err := g.limiter.Wait(ctx); err != nil {
			<-g.slots
			return fmt.Errorf("rate limit wait: %w", err)
		}
	}
	return nil
}

// Release returns a fetch slot to the gate.
func (g *AdmissionGate) Release() {
	<-g.slots
}

// InFlight reports how many slots are currently held.
func (g *AdmissionGate) InFlight() int {
	return len(g.slots)
}

// pause sleeps for delay unless the context ends first. Used for the
// inter-request delay and retry backoff so shutdown is observed during
// every sleep.
func pause(ctx context.Context, delay time.Duration) {
	if delay <= 0 {
		return
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}
