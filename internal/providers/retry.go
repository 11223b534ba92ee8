// Package providers holds the shared retry/backoff helper every per-source
// provider (exchangeprov, onchain, externalmarket, sentiment) builds on, so
// the exponential-backoff policy of spec.md §7 is implemented exactly once.
package providers

import (
	"context"
	"math"
	"math/rand"
	"time"

	"github.com/aristath/aegis/internal/errs"
)

// RetryPolicy bounds how many attempts a provider makes and how long it
// waits between them before giving up and falling back.
type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
}

// DefaultRetryPolicy backs off from 200ms, doubling, capped at 3s, over at
// most 4 attempts — kept short since every fetch sits inside a bundle
// timeout (spec.md §4.4) and a stuck retry loop is worse than an early
// fallback.
var DefaultRetryPolicy = RetryPolicy{
	MaxAttempts: 4,
	BaseDelay:   200 * time.Millisecond,
	MaxDelay:    3 * time.Second,
}

// RateLimitRetryPolicy is used instead of DefaultRetryPolicy when the prior
// attempt returned a RateLimit-kind error: fewer attempts, longer backoff
// (spec.md §7: "treat as transient but with longer backoff").
var RateLimitRetryPolicy = RetryPolicy{
	MaxAttempts: 3,
	BaseDelay:   2 * time.Second,
	MaxDelay:    20 * time.Second,
}

// Do runs fn with exponential backoff + jitter until it succeeds, the
// policy's attempt budget is exhausted, or ctx is canceled. A RateLimit
// error on any attempt switches the remaining retries to the longer
// rate-limit policy. The last error is returned on exhaustion; callers
// convert that into a reduced-confidence fallback rather than propagating
// it past the provider boundary (spec.md §7).
func Do(ctx context.Context, policy RetryPolicy, fn func(ctx context.Context) error) error {
	var lastErr error
	delay := policy.BaseDelay
	for attempt := 0; attempt < policy.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		err := fn(ctx)
		if err == nil {
			return nil
		}
		lastErr = err

		if errs.Is(err, errs.KindRateLimit) {
			policy = RateLimitRetryPolicy
			delay = policy.BaseDelay
		}
		if errs.Is(err, errs.KindAuth) || errs.Is(err, errs.KindValidation) {
			// Not retryable: auth needs operator intervention, validation
			// won't change on retry.
			return err
		}

		if attempt == policy.MaxAttempts-1 {
			break
		}
		jittered := time.Duration(float64(delay) * (0.5 + rand.Float64()))
		if jittered > policy.MaxDelay {
			jittered = policy.MaxDelay
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(jittered):
		}
		delay = time.Duration(math.Min(float64(delay*2), float64(policy.MaxDelay)))
	}
	return lastErr
}
