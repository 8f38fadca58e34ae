package application

import (
	"context"
	"errors"
	"time"
)

// BackoffFunc returns the delay before the next attempt; attempt starts at 1.
type BackoffFunc func(attempt int) time.Duration

// ExponentialBackoff doubles the delay per attempt: base, 2*base, 4*base...
func ExponentialBackoff(base time.Duration) BackoffFunc {
	return func(attempt int) time.Duration {
		if attempt < 1 {
			attempt = 1
		}
		return base << (attempt - 1)
	}
}

// RetryPolicy bounds an operation by attempt count with a backoff between
// failures. The sleep function is injectable so tests run on a fake clock.
type RetryPolicy struct {
	MaxAttempts int
	Backoff     BackoffFunc
	Sleep       func(ctx context.Context, d time.Duration) error
}

// NewRetryPolicy builds a policy with a real clock.
func NewRetryPolicy(maxAttempts int, backoff BackoffFunc) RetryPolicy {
	return RetryPolicy{MaxAttempts: maxAttempts, Backoff: backoff, Sleep: sleepContext}
}

// Do runs op until it succeeds or attempts are exhausted, waiting the
// backoff delay after each failure except the last. The last error is
// returned after exhaustion.
func (p RetryPolicy) Do(ctx context.Context, op func(ctx context.Context) error) error {
	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}
	sleep := p.Sleep
	if sleep == nil {
		sleep = sleepContext
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		lastErr = op(ctx)
		if lastErr == nil {
			return nil
		}
		if attempt == attempts {
			break
		}
		var delay time.Duration
		if p.Backoff != nil {
			delay = p.Backoff(attempt)
		}
		if err := sleep(ctx, delay); err != nil {
			return errors.Join(lastErr, err)
		}
	}
	return lastErr
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
