// Package ratelimit implements a sliding window rate limiter shared by all
// exchange calls in the process.
package ratelimit

import (
	"context"
	"sync"
	"time"

	apperrors "delta-trader/internal/errors"
)

// Limiter admits at most maxRequests calls per rolling window. Admission is
// recorded before the request is issued, so a request that later fails still
// consumes capacity.
type Limiter struct {
	mu          sync.Mutex
	maxRequests int
	window      time.Duration
	timestamps  []time.Time

	// now is swapped out in tests.
	now func() time.Time
}

// New creates a Limiter allowing maxRequests per window.
func New(maxRequests int, window time.Duration) *Limiter {
	return &Limiter{
		maxRequests: maxRequests,
		window:      window,
		timestamps:  make([]time.Time, 0, maxRequests),
		now:         time.Now,
	}
}

// prune drops timestamps older than the window. Caller holds mu.
func (l *Limiter) prune(now time.Time) {
	cutoff := now.Add(-l.window)
	i := 0
	for i < len(l.timestamps) && !l.timestamps[i].After(cutoff) {
		i++
	}
	if i > 0 {
		l.timestamps = l.timestamps[i:]
	}
}

// InWindow returns the number of requests recorded in the current window.
func (l *Limiter) InWindow() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.prune(l.now())
	return len(l.timestamps)
}

// tryAcquire records a slot if capacity exists, otherwise returns the wait
// until the oldest timestamp leaves the window.
func (l *Limiter) tryAcquire() (bool, time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	l.prune(now)

	if len(l.timestamps) < l.maxRequests {
		l.timestamps = append(l.timestamps, now)
		return true, 0
	}

	wait := l.timestamps[0].Add(l.window).Sub(now)
	if wait < 0 {
		wait = 0
	}
	return false, wait
}

// Acquire blocks until a request slot is available or ctx is done. The wait
// is bounded by the window length; if no slot frees up within it, a
// RateLimitTimeoutError is returned instead of blocking forever.
func (l *Limiter) Acquire(ctx context.Context) error {
	deadline := l.now().Add(l.window)

	for {
		ok, wait := l.tryAcquire()
		if ok {
			return nil
		}

		now := l.now()
		if !now.Add(wait).Before(deadline) {
			return apperrors.NewRateLimitTimeoutError(l.window, l.InWindow())
		}

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}
