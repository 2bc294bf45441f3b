// Package retry provides an explicit retry policy for flaky external calls.
package retry

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// Policy describes how often and how long to wait before retrying.
// The first retry waits InitialDelay; later retries multiply the delay by
// Multiplier up to MaxDelay.
type Policy struct {
	MaxRetries   int
	InitialDelay time.Duration
	Multiplier   float64
	MaxDelay     time.Duration
}

// DefaultPolicy retries once after one second.
func DefaultPolicy() Policy {
	return Policy{
		MaxRetries:   1,
		InitialDelay: time.Second,
		Multiplier:   2,
		MaxDelay:     30 * time.Second,
	}
}

// NoRetry runs an operation exactly once.
func NoRetry() Policy {
	return Policy{}
}

// Permanent marks err as not worth retrying.
func Permanent(err error) error {
	return backoff.Permanent(err)
}

func (p Policy) backOff(ctx context.Context) backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = p.InitialDelay
	b.Multiplier = p.Multiplier
	if b.Multiplier < 1 {
		b.Multiplier = 1
	}
	b.MaxInterval = p.MaxDelay
	if b.MaxInterval < b.InitialInterval {
		b.MaxInterval = b.InitialInterval
	}
	b.RandomizationFactor = 0
	b.MaxElapsedTime = 0
	b.Reset()

	retries := p.MaxRetries
	if retries < 0 {
		retries = 0
	}
	return backoff.WithContext(backoff.WithMaxRetries(b, uint64(retries)), ctx)
}

// Do runs op until it succeeds, returns a Permanent error, the retries are
// used up, or ctx is done. onRetry, if set, is called before each wait with
// the 1-based retry number.
func (p Policy) Do(ctx context.Context, op func(ctx context.Context) error, onRetry func(attempt int, err error, wait time.Duration)) error {
	attempt := 0
	notify := func(err error, wait time.Duration) {
		attempt++
		if onRetry != nil {
			onRetry(attempt, err, wait)
		}
	}

	return backoff.RetryNotify(func() error {
		return op(ctx)
	}, p.backOff(ctx), notify)
}
