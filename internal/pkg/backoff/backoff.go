package backoff

import (
	"context"
	"errors"
	"net"
	"time"

	retry "github.com/cenkalti/backoff/v5"
)

// Temporary reports whether err is worth another attempt: deadline and
// network timeouts, or anything in the chain that says so itself.
func Temporary(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	var temp interface{ Temporary() bool }
	return errors.As(err, &temp) && temp.Temporary()
}

type Policy struct {
	Attempts int
	// Base is the first wait; later waits grow exponentially up to MaxWait.
	Base    time.Duration
	MaxWait time.Duration
	// OnRetry is called before each wait. Optional.
	OnRetry func(attempt int, wait time.Duration, err error)
}

func (p Policy) backOff() *retry.ExponentialBackOff {
	b := retry.NewExponentialBackOff()
	if p.Base > 0 {
		b.InitialInterval = p.Base
	}
	b.RandomizationFactor = 0.2
	b.MaxInterval = p.MaxWait
	if b.MaxInterval < b.InitialInterval {
		b.MaxInterval = 10 * b.InitialInterval
	}
	return b
}

// Do calls fn until it succeeds, returns a non-temporary error, ctx ends or
// the attempts run out.
func (p Policy) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	attempt := 0
	_, err := retry.Retry(ctx, func() (struct{}, error) {
		err := fn(ctx)
		if err != nil && (ctx.Err() != nil || !Temporary(err)) {
			return struct{}{}, retry.Permanent(err)
		}
		return struct{}{}, err
	},
		retry.WithBackOff(p.backOff()),
		retry.WithMaxTries(uint(max(p.Attempts, 1))),
		retry.WithNotify(func(err error, wait time.Duration) {
			attempt++
			if p.OnRetry != nil {
				p.OnRetry(attempt, wait, err)
			}
		}),
	)
	var perm *retry.PermanentError
	if errors.As(err, &perm) {
		return perm.Err
	}
	return err
}
