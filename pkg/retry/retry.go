// Package retry implements bounded exponential backoff with jitter. One
// policy value is shared by clone, model and store calls; there is no
// ambient retry state.
package retry

import (
	"context"
	"errors"
	"math/rand/v2"
	"time"
)

// Policy describes a bounded retry schedule.
type Policy struct {
	Attempts   int           // total attempts, including the first
	Base       time.Duration // delay before the second attempt
	Factor     float64       // multiplier per attempt
	Jitter     float64       // ± fraction of the delay, e.g. 0.2
	MaxElapsed time.Duration // 0 = unbounded
}

// Default matches the schedule used for clone, model and store retries:
// 3 attempts, base 1s, factor 2, jitter ±20%.
func Default() Policy {
	return Policy{Attempts: 3, Base: time.Second, Factor: 2, Jitter: 0.2}
}

// Permanent wraps an error that must not be retried.
type Permanent struct{ Err error }

func (p *Permanent) Error() string { return p.Err.Error() }
func (p *Permanent) Unwrap() error { return p.Err }

// MarkPermanent marks err as non-retryable.
func MarkPermanent(err error) error {
	if err == nil {
		return nil
	}
	return &Permanent{Err: err}
}

// Delay returns the backoff delay before the given attempt (1-based; attempt 1
// has no delay).
func (p Policy) Delay(attempt int) time.Duration {
	if attempt <= 1 {
		return 0
	}
	d := float64(p.Base)
	for i := 2; i < attempt; i++ {
		d *= p.Factor
	}
	if p.Jitter > 0 {
		// Uniform in [1-jitter, 1+jitter].
		d *= 1 - p.Jitter + 2*p.Jitter*rand.Float64()
	}
	return time.Duration(d)
}

// Do runs fn up to p.Attempts times, sleeping between attempts. It stops
// early on success, on context cancellation, on a Permanent error, or when
// MaxElapsed is exceeded. The last error is returned.
func (p Policy) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	start := time.Now()
	var lastErr error

	for attempt := 1; attempt <= p.Attempts; attempt++ {
		if delay := p.Delay(attempt); delay > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}
		if p.MaxElapsed > 0 && time.Since(start) > p.MaxElapsed {
			break
		}

		lastErr = fn(ctx)
		if lastErr == nil {
			return nil
		}

		var perm *Permanent
		if errors.As(lastErr, &perm) {
			return perm.Err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
	return lastErr
}
