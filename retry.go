package bylawsearch

import (
	"context"
	"time"
)

// RetryPolicy runs an operation up to MaxAttempts times, sleeping
// Backoff(attempt) between failures. The same policy backs both the
// embedding client and the index writer.
type RetryPolicy struct {
	MaxAttempts int
	Backoff     func(attempt int) time.Duration
}

// DefaultRetryPolicy makes three attempts with 2^attempt-second backoff.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: 3,
		Backoff:     ExponentialBackoff,
	}
}

// ExponentialBackoff waits 2^attempt seconds after the given zero-based
// attempt.
func ExponentialBackoff(attempt int) time.Duration {
	return time.Duration(1<<uint(attempt+1)) * time.Second
}

// Do runs fn until it succeeds, attempts are exhausted, or the context is
// canceled. The last error is returned on exhaustion.
func (p RetryPolicy) Do(ctx context.Context, fn func() error) error {
	var err error

	for attempt := 0; attempt < p.MaxAttempts; attempt++ {
		if err = fn(); err == nil {
			return nil
		}

		if attempt == p.MaxAttempts-1 {
			break
		}

		timer := time.NewTimer(p.Backoff(attempt))
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()

		case <-timer.C:
		}
	}

	return err
}
