// Package utils provides shared utility functions.
package utils

import (
	"context"
	"math"
	"math/rand"
	"time"
)

// BackoffConfig holds exponential backoff configuration.
type BackoffConfig struct {
	Base   time.Duration
	Cap    time.Duration
	Factor float64
	Jitter float64 // fraction of the delay added as random jitter, 0..1
}

// DefaultBackoffConfig returns the default backoff configuration.
func DefaultBackoffConfig() BackoffConfig {
	return BackoffConfig{
		Base:   2 * time.Second,
		Cap:    60 * time.Second,
		Factor: 2.0,
		Jitter: 0.1,
	}
}

// Backoff calculates the delay before retry number attempt (0-based):
// min(base * factor^attempt, cap), plus jitter so concurrent clients do not
// retry in lockstep.
func Backoff(attempt int, cfg BackoffConfig) time.Duration {
	delay := float64(cfg.Base) * math.Pow(cfg.Factor, float64(attempt))
	if delay > float64(cfg.Cap) {
		delay = float64(cfg.Cap)
	}
	if cfg.Jitter > 0 {
		delay += delay * cfg.Jitter * rand.Float64()
	}
	return time.Duration(delay)
}

// SleepContext sleeps for d or until the context ends, whichever comes
// first. Returns the context error when interrupted.
func SleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
