// Package retry runs an operation repeatedly with exponential backoff.
//
// Between attempts the caller sleeps BackoffFactor^attempt + jitter seconds,
// where attempt counts from zero and jitter is uniform in [0, 1). No sleep
// follows the final attempt; its error is returned unchanged.
package retry

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"time"
)

const (
	DefaultMaxRetries    = 3
	DefaultBackoffFactor = 2.0
)

type Policy struct {
	// MaxRetries is the total number of attempts, not the number of retries
	// after the first one.
	MaxRetries    int
	BackoffFactor float64

	// Retryable decides whether a failure is worth another attempt.
	// Nil retries every error.
	Retryable func(error) bool

	Jitter  func() float64
	Sleep   func(ctx context.Context, d time.Duration) error
	OnRetry func(attempt int, wait time.Duration, err error)
}

func Default() Policy {
	return Policy{MaxRetries: DefaultMaxRetries, BackoffFactor: DefaultBackoffFactor}
}

// Only returns a copy of p that retries errors matching pred.
func (p Policy) Only(pred func(error) bool) Policy {
	p.Retryable = pred
	return p
}

// Wait is the pause after the given zero-based attempt.
func (p Policy) Wait(attempt int) time.Duration {
	factor := p.BackoffFactor
	if factor <= 0 {
		factor = DefaultBackoffFactor
	}
	jitter := rand.Float64
	if p.Jitter != nil {
		jitter = p.Jitter
	}
	secs := math.Pow(factor, float64(attempt)) + jitter()
	return time.Duration(secs * float64(time.Second))
}

func Do[T any](ctx context.Context, p Policy, fn func(ctx context.Context) (T, error)) (T, error) {
	attempts := p.MaxRetries
	if attempts <= 0 {
		attempts = DefaultMaxRetries
	}
	sleep := p.Sleep
	if sleep == nil {
		sleep = SleepContext
	}

	var zero T
	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		v, err := fn(ctx)
		if err == nil {
			return v, nil
		}
		lastErr = err
		if p.Retryable != nil && !p.Retryable(err) {
			return zero, err
		}
		if attempt == attempts-1 {
			break
		}
		wait := p.Wait(attempt)
		if p.OnRetry != nil {
			p.OnRetry(attempt+1, wait, err)
		}
		if serr := sleep(ctx, wait); serr != nil {
			return zero, fmt.Errorf("%w (last error: %v)", serr, lastErr)
		}
	}
	return zero, lastErr
}

// SleepContext blocks for d or until ctx is done.
func SleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
