// Package wrapstack implements the fixed wrapper composition spec §4.6
// requires around every concrete Storage or Index: Traced, Validated,
// Retryable, Cached, Buffered, each wrapping the next down to the base
// implementation. The index wrappers in index.go omit the Cached layer.
package wrapstack

import (
	"context"
	"math/rand"
	"time"

	"golang.org/x/time/rate"

	"github.com/kotadb/kotadb/pkg/kotaerr"
	"github.com/kotadb/kotadb/pkg/metrics"
)

// RetryPolicy tunes the Retryable layer (spec §6.4
// retry_{max_attempts,base_delay,max_delay}).
type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
}

// DefaultRetryPolicy matches spec §4.6's stated defaults: 3 attempts,
// 100ms base, 5s cap.
var DefaultRetryPolicy = RetryPolicy{
	MaxAttempts: 3,
	BaseDelay:   100 * time.Millisecond,
	MaxDelay:    5 * time.Second,
}

// backoffWait blocks for roughly the exponential-backoff delay due for
// attempt (0-indexed), jittered by +/-20%. The pacing itself is driven
// by a golang.org/x/time/rate.Limiter rather than a bare time.Sleep: a
// fresh limiter's initial burst token is consumed immediately so the
// very next Wait blocks for approximately one token interval, giving
// the same interval-pacing behavior a rate limiter gives a bursty
// caller, repurposed here as a single-shot delay source instead of a
// request throttle.
func backoffWait(ctx context.Context, policy RetryPolicy, attempt int) error {
	delay := policy.BaseDelay * time.Duration(int64(1)<<uint(attempt))
	if delay > policy.MaxDelay || delay <= 0 {
		delay = policy.MaxDelay
	}
	jittered := jitter(delay)

	lim := rate.NewLimiter(rate.Every(jittered), 1)
	lim.Allow() // drain the initial burst token
	return lim.Wait(ctx)
}

func jitter(base time.Duration) time.Duration {
	if base <= 0 {
		return 0
	}
	spread := float64(base) * 0.2
	delta := (rand.Float64()*2 - 1) * spread
	d := time.Duration(float64(base) + delta)
	if d < 0 {
		return 0
	}
	return d
}

// retryDo runs fn up to policy.MaxAttempts times, retrying only when fn
// returns a kotaerr.IOTransient error (spec §7: "IO(transient): Retried
// by the Retryable wrapper with exponential backoff. Non-transient
// errors... are not retried").
func retryDo[T any](ctx context.Context, policy RetryPolicy, op string, fn func() (T, error)) (T, error) {
	var zero T
	var lastErr error
	for attempt := 0; attempt < policy.MaxAttempts; attempt++ {
		result, err := fn()
		if err == nil {
			if attempt > 0 {
				metrics.RetryAttemptsTotal.WithLabelValues(op, "succeeded").Inc()
			}
			return result, nil
		}
		lastErr = err
		if !kotaerr.IsRetryable(err) {
			return zero, err
		}
		metrics.RetryAttemptsTotal.WithLabelValues(op, "retried").Inc()
		if attempt == policy.MaxAttempts-1 {
			break
		}
		if waitErr := backoffWait(ctx, policy, attempt); waitErr != nil {
			return zero, waitErr
		}
	}
	metrics.RetryAttemptsTotal.WithLabelValues(op, "exhausted").Inc()
	return zero, lastErr
}

// retryDoErr is retryDo for fn shapes that return only an error.
func retryDoErr(ctx context.Context, policy RetryPolicy, op string, fn func() error) error {
	_, err := retryDo(ctx, policy, op, func() (struct{}, error) {
		return struct{}{}, fn()
	})
	return err
}
