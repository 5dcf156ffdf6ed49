package crawler

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestAdmissionGateBoundsInFlight(t *testing.T) {
	g := NewAdmissionGate(2, 0, 0)
	ctx := context.Background()

	require.NoError(t, g.Acquire(ctx))
	require.NoError(t, g.Acquire(ctx))
	require.Equal(t, 2, g.InFlight())

	blocked, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
	defer cancel()
	err := g.Acquire(blocked)
	require.Error(t, err)

	g.Release()
	require.NoError(t, g.Acquire(ctx))
	g.Release()
	g.Release()
	require.Equal(t, 0, g.InFlight())
}

func TestAdmissionGateReleasesSlotOnRateError(t *testing.T) {
	// one token per hour so the second acquire must wait on the limiter
	g := NewAdmissionGate(2, 1.0/3600, 1)
	require.NoError(t, g.Acquire(context.Background()))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := g.Acquire(ctx)
	require.Error(t, err)
	require.Equal(t, 1, g.InFlight())
}

func TestPauseReturnsAfterDelay(t *testing.T) {
	start := time.Now()
	pause(context.Background(), 10*time.Millisecond)
	require.GreaterOrEqual(t, time.Since(start), 10*time.Millisecond)
}

func TestPauseObservesCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	start := time.Now()
	pause(ctx, time.Hour)
	require.Less(t, time.Since(start), time.Second)
}

func TestPauseZeroDelayIsImmediate(t *testing.T) {
	pause(context.Background(), 0)
}
