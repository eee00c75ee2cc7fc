package ratelimit_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonesrussell/merchantcrawl/internal/ratelimit"
)

func TestLimiter_FirstCallNeverBlocks(t *testing.T) {
	t.Parallel()

	l := ratelimit.New(500*time.Millisecond, time.Second)

	start := time.Now()
	require.NoError(t, l.Wait(context.Background()))
	assert.Less(t, time.Since(start), 100*time.Millisecond)
}

func TestLimiter_PacesSuccessiveCalls(t *testing.T) {
	t.Parallel()

	const n = 4
	minWait := 30 * time.Millisecond
	maxWait := 60 * time.Millisecond
	l := ratelimit.New(minWait, maxWait)

	start := time.Now()
	for range n {
		require.NoError(t, l.Wait(context.Background()))
	}
	elapsed := time.Since(start)

	// N calls pace N-1 gaps. Allow scheduler slack on the upper bound.
	assert.GreaterOrEqual(t, elapsed, (n-1)*minWait)
	assert.Less(t, elapsed, (n-1)*maxWait+150*time.Millisecond)
}

func TestLimiter_ResetClearsLastCall(t *testing.T) {
	t.Parallel()

	l := ratelimit.New(300*time.Millisecond, 400*time.Millisecond)
	require.NoError(t, l.Wait(context.Background()))

	l.Reset()

	start := time.Now()
	require.NoError(t, l.Wait(context.Background()))
	assert.Less(t, time.Since(start), 100*time.Millisecond)
}

func TestLimiter_WaitHonorsContextCancellation(t *testing.T) {
	t.Parallel()

	l := ratelimit.New(5*time.Second, 10*time.Second)
	require.NoError(t, l.Wait(context.Background()))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	start := time.Now()
	err := l.Wait(ctx)
	require.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), time.Second)
}

func TestNewPerSecond_DerivesJitterWindow(t *testing.T) {
	t.Parallel()

	l := ratelimit.NewPerSecond(2)

	assert.Equal(t, 400*time.Millisecond, l.MinWait())
	assert.Equal(t, 600*time.Millisecond, l.MaxWait())
}

func TestNewPerSecond_DefaultsInvalidRate(t *testing.T) {
	t.Parallel()

	l := ratelimit.NewPerSecond(0)

	assert.Equal(t, 800*time.Millisecond, l.MinWait())
	assert.Equal(t, 1200*time.Millisecond, l.MaxWait())
}

func TestNew_SwapsInvertedBounds(t *testing.T) {
	t.Parallel()

	l := ratelimit.New(time.Second, 500*time.Millisecond)

	assert.Equal(t, time.Second, l.MinWait())
	assert.Equal(t, time.Second, l.MaxWait())
}
