// Package retry implements the single bounded-retry policy shared by the
// inventory client and the change-stream worker's message dispatch
// (spec §5: "max 5 attempts, exponential backoff, only on
// transient codes"), grounded on the rate-limiting idiom of
// internal/github/client.go.
package retry

import (
	"context"
	"time"

	"golang.org/x/time/rate"

	"github.com/avataa-hq/avataa-graphs/internal/config"
	graphErrors "github.com/avataa-hq/avataa-graphs/internal/errors"
)

// Policy is the retry shape: bounded attempts, exponential backoff, and a
// classifier deciding whether an error is worth retrying at all.
type Policy struct {
	MaxAttempts       int
	InitialBackoff    time.Duration
	MaxBackoff        time.Duration
	BackoffMultiplier float64
	Retryable         func(error) bool
}

// FromConfig builds a Policy from the shared RetryConfig, defaulting
// Retryable to the taxonomy's transient classifier.
func FromConfig(c config.RetryConfig) Policy {
	return Policy{
		MaxAttempts:       c.MaxAttempts,
		InitialBackoff:    c.InitialBackoff,
		MaxBackoff:        c.MaxBackoff,
		BackoffMultiplier: c.BackoffMultiplier,
		Retryable:         graphErrors.IsTransient,
	}
}

// Do runs fn, retrying on errors the policy's Retryable predicate accepts,
// until MaxAttempts is exhausted or the context is cancelled.
func Do(ctx context.Context, p Policy, fn func(context.Context) error) error {
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = 1
	}
	retryable := p.Retryable
	if retryable == nil {
		retryable = func(error) bool { return false }
	}

	backoff := p.InitialBackoff
	if backoff <= 0 {
		backoff = 100 * time.Millisecond
	}

	var lastErr error
	for attempt := 1; attempt <= p.MaxAttempts; attempt++ {
		lastErr = fn(ctx)
		if lastErr == nil {
			return nil
		}
		if attempt == p.MaxAttempts || !retryable(lastErr) {
			return lastErr
		}

		timer := time.NewTimer(backoff)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}

		backoff = time.Duration(float64(backoff) * p.BackoffMultiplier)
		if p.MaxBackoff > 0 && backoff > p.MaxBackoff {
			backoff = p.MaxBackoff
		}
	}
	return lastErr
}

// Limiter wraps golang.org/x/time/rate for callers that need to cap a
// steady-state request rate in addition to retry backoff (e.g. the
// inventory client's chunked MO stream).
type Limiter struct {
	limiter *rate.Limiter
}

func NewLimiter(requestsPerSecond float64, burst int) *Limiter {
	return &Limiter{limiter: rate.NewLimiter(rate.Limit(requestsPerSecond), burst)}
}

func (l *Limiter) Wait(ctx context.Context) error {
	return l.limiter.Wait(ctx)
}
