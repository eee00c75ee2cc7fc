// Package ratelimit paces successive outbound requests with a jittered
// inter-request delay. The jitter avoids a perfectly periodic request
// signature and smooths load on the upstream server.
package ratelimit

import (
	"context"
	"math/rand/v2"
	"sync"
	"time"
)

// Factors applied when deriving the wait window from a requests-per-second
// target.
const (
	rpsMinFactor = 0.8
	rpsMaxFactor = 1.2
)

// Limiter blocks callers until a randomly chosen interval in
// [MinWait, MaxWait] has elapsed since the previous call completed.
// The first call never blocks.
type Limiter struct {
	mu      sync.Mutex
	minWait time.Duration
	maxWait time.Duration
	last    time.Time
}

// New creates a limiter with an explicit wait window.
func New(minWait, maxWait time.Duration) *Limiter {
	if maxWait < minWait {
		maxWait = minWait
	}
	return &Limiter{minWait: minWait, maxWait: maxWait}
}

// NewPerSecond creates a limiter from a requests-per-second target.
// The window is widened around 1/rps so successive waits still jitter.
func NewPerSecond(rps float64) *Limiter {
	if rps <= 0 {
		rps = 1
	}
	interval := float64(time.Second) / rps
	return New(
		time.Duration(interval*rpsMinFactor),
		time.Duration(interval*rpsMaxFactor),
	)
}

// MinWait returns the lower bound of the wait window.
func (l *Limiter) MinWait() time.Duration { return l.minWait }

// MaxWait returns the upper bound of the wait window.
func (l *Limiter) MaxWait() time.Duration { return l.maxWait }

// Wait blocks until the jittered interval has elapsed since the previous
// call completed. It returns early with the context's error if the
// context is cancelled while waiting.
func (l *Limiter) Wait(ctx context.Context) error {
	l.mu.Lock()
	last := l.last
	l.mu.Unlock()

	if !last.IsZero() {
		target := l.minWait
		if l.maxWait > l.minWait {
			target += time.Duration(rand.Int64N(int64(l.maxWait - l.minWait)))
		}
		if remaining := target - time.Since(last); remaining > 0 {
			timer := time.NewTimer(remaining)
			defer timer.Stop()
			select {
			case <-timer.C:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}

	l.mu.Lock()
	l.last = time.Now()
	l.mu.Unlock()
	return nil
}

// Reset clears the last-call timestamp. Used when switching target
// sources, so the first request against the new source is not delayed.
func (l *Limiter) Reset() {
	l.mu.Lock()
	l.last = time.Time{}
	l.mu.Unlock()
}
