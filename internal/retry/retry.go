// Package retry provides exponential backoff with jitter for transient
// provider API failures.
package retry

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"
)

// Config holds retry behavior.
type Config struct {
	// MaxAttempts is the total number of tries, including the first.
	MaxAttempts int
	// BaseDelay is the delay before the second attempt.
	BaseDelay time.Duration
	// MaxDelay caps the delay between attempts.
	MaxDelay time.Duration
	// Multiplier grows the delay after every failed attempt.
	Multiplier float64
	// Jitter is the fraction of the delay randomized each sleep (0..1).
	Jitter float64
}

// DefaultConfig returns the defaults used by the provider clients.
func DefaultConfig() Config {
	return Config{
		MaxAttempts: 4,
		BaseDelay:   500 * time.Millisecond,
		MaxDelay:    10 * time.Second,
		Multiplier:  2.0,
		Jitter:      0.2,
	}
}

// Do runs fn until it succeeds, the error is not retryable, or attempts run
// out. A nil retryable treats every error except context cancellation as
// transient.
func Do(ctx context.Context, cfg Config, retryable func(error) bool, fn func(context.Context) error) error {
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = 1
	}

	var lastErr error
	delay := cfg.BaseDelay

	for attempt := 1; attempt <= cfg.MaxAttempts; attempt++ {
		err := fn(ctx)
		if err == nil {
			return nil
		}
		lastErr = err

		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return err
		}
		if retryable != nil && !retryable(err) {
			return err
		}
		if attempt == cfg.MaxAttempts {
			break
		}

		sleep := delay + jitter(delay, cfg.Jitter)
		if sleep > cfg.MaxDelay {
			sleep = cfg.MaxDelay
		}
		select {
		case <-time.After(sleep):
		case <-ctx.Done():
			return ctx.Err()
		}

		delay = time.Duration(float64(delay) * cfg.Multiplier)
		if delay > cfg.MaxDelay {
			delay = cfg.MaxDelay
		}
	}

	return fmt.Errorf("giving up after %d attempts: %w", cfg.MaxAttempts, lastErr)
}

// jitter returns a random duration in [-fraction*d, +fraction*d].
func jitter(d time.Duration, fraction float64) time.Duration {
	if fraction <= 0 {
		return 0
	}
	spread := float64(d) * fraction
	return time.Duration((rand.Float64() - 0.5) * 2 * spread)
}
