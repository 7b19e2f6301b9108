package gateway

import (
	"context"
	"errors"
	"math/rand"
	"net"
	"net/url"
	"time"
)

// RetryPolicy bounds attempts and spaces them with exponential backoff plus
// jitter. Independent of the breaker so each can be tested on its own.
type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
}

func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxAttempts: 3, BaseDelay: 150 * time.Millisecond, MaxDelay: 2 * time.Second}
}

// Backoff computes the wait before the given retry (attempt is 1-based and
// counts the attempt that just failed).
func (p RetryPolicy) Backoff(attempt int) time.Duration {
	d := p.BaseDelay << (attempt - 1)
	if d > p.MaxDelay {
		d = p.MaxDelay
	}
	// Full jitter keeps concurrent retries from aligning.
	return time.Duration(rand.Int63n(int64(d) + 1))
}

// Wait sleeps for the backoff of the given attempt, abandoning early when the
// context ends.
func (p RetryPolicy) Wait(ctx context.Context, attempt int) error {
	select {
	case <-time.After(p.Backoff(attempt)):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// transientError reports whether an error is a network error or timeout, the
// only error kinds reads retry on and writes count toward the breaker.
func transientError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	var urlErr *url.Error
	return errors.As(err, &urlErr)
}
