// Package resilience provides retry and circuit breaker patterns for calls
// to external providers such as the embedding model.
package resilience

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// SleepFunc waits for the given duration or until the context is done.
// Injectable so tests can simulate elapsed time without real delays.
type SleepFunc func(ctx context.Context, d time.Duration) error

// RealSleep is the production SleepFunc.
func RealSleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// RetryConfig controls bounded retry behavior.
type RetryConfig struct {
	// MaxAttempts is the total number of attempts (including the first try).
	// A value of 1 means no retries. Default: 3.
	MaxAttempts int

	// DefaultWait is the delay between attempts when the failing call does
	// not carry a provider-suggested RetryAfter hint. Default: 5s.
	DefaultWait time.Duration

	// Sleep waits between attempts. Defaults to RealSleep.
	Sleep SleepFunc

	// ShouldRetry optionally overrides the default transient-error check.
	// If nil, IsTransient is used.
	ShouldRetry func(err error) bool

	// OnRetry is called before each retry sleep with attempt number and error.
	OnRetry func(attempt int, err error)
}

// DefaultRetryConfig returns the retry configuration used for provider calls.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts: 3,
		DefaultWait: 5 * time.Second,
	}
}

func (cfg RetryConfig) withDefaults() RetryConfig {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	if cfg.DefaultWait <= 0 {
		cfg.DefaultWait = 5 * time.Second
	}
	if cfg.Sleep == nil {
		cfg.Sleep = RealSleep
	}
	if cfg.ShouldRetry == nil {
		cfg.ShouldRetry = IsTransient
	}
	return cfg
}

// Do executes fn with bounded retries. It retries only transient errors,
// waiting the provider-suggested delay when the error carries one and
// cfg.DefaultWait otherwise. Context cancellation stops retries immediately.
func Do(ctx context.Context, cfg RetryConfig, fn func(ctx context.Context) error) error {
	_, err := DoVal(ctx, cfg, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx)
	})
	return err
}

// DoVal executes fn returning a value with the same semantics as Do.
func DoVal[T any](ctx context.Context, cfg RetryConfig, fn func(ctx context.Context) (T, error)) (T, error) {
	cfg = cfg.withDefaults()

	var zero T
	var lastErr error
	for attempt := 0; attempt < cfg.MaxAttempts; attempt++ {
		val, err := fn(ctx)
		if err == nil {
			return val, nil
		}
		lastErr = err

		if ctx.Err() != nil {
			return zero, lastErr
		}

		if !cfg.ShouldRetry(lastErr) {
			return zero, lastErr
		}

		// Don't sleep after the last attempt.
		if attempt >= cfg.MaxAttempts-1 {
			break
		}

		if cfg.OnRetry != nil {
			cfg.OnRetry(attempt+1, lastErr)
		}

		wait := cfg.DefaultWait
		if hint, ok := RetryAfterHint(lastErr); ok {
			wait = hint
		}
		if err := cfg.Sleep(ctx, wait); err != nil {
			return zero, lastErr
		}
	}

	return zero, lastErr
}

// RetryLogger returns an OnRetry callback that logs each retry attempt.
func RetryLogger(service, operation string) func(int, error) {
	return func(attempt int, err error) {
		zap.L().Warn("retrying operation",
			zap.String("service", service),
			zap.String("operation", operation),
			zap.Int("attempt", attempt),
			zap.Error(err),
		)
	}
}
