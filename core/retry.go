package core

import (
	"context"
	"math/rand"
	"time"
)

// RetryOnConflict runs fn until it succeeds, fails with anything other than ErrConflict,
// or conf.MaxAttempts is exhausted. It waits with exponential backoff and jitter between
// attempts.
func RetryOnConflict(ctx context.Context, conf RetryConfig, fn func(ctx context.Context) error) error {
	maxAttempts := conf.MaxAttempts
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	var err error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		if err = fn(ctx); err == nil || !IsConflict(err) {
			return err
		}
		if attempt == maxAttempts-1 {
			break
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff(conf.BaseDelay, attempt)):
		}
	}
	return err
}

func backoff(base time.Duration, attempt int) time.Duration {
	if base <= 0 {
		return 0
	}
	d := base << uint(attempt)
	jitter := time.Duration(rand.Int63n(int64(d)/2 + 1))
	return d + jitter
}
