// Package retry implements the downloader's backoff policy (C7): exponential
// backoff with full jitter, retried only for dsnaperr.KindTransient failures.
package retry

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/RhinoSecurityLabs/dsnap/internal/logger"
	"github.com/RhinoSecurityLabs/dsnap/pkg/dsnaperr"
)

// Policy holds the tunables for a backoff schedule.
type Policy struct {
	MaxAttempts  int           // total attempts including the first, default 5
	InitialDelay time.Duration // default 200ms
	MaxDelay     time.Duration // default 5s
}

// DefaultPolicy matches spec.md's C7 design: 5 attempts, 200ms base, 5s cap,
// full jitter.
var DefaultPolicy = Policy{
	MaxAttempts:  5,
	InitialDelay: 200 * time.Millisecond,
	MaxDelay:     5 * time.Second,
}

func (p Policy) backOff() backoff.BackOff {
	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = p.InitialDelay
	eb.MaxInterval = p.MaxDelay
	eb.Multiplier = 2.0
	eb.RandomizationFactor = 1.0 // full jitter: interval in [0, 2*computed)
	eb.MaxElapsedTime = 0        // bounded by attempt count, not wall time
	return backoff.WithMaxRetries(eb, uint64(p.MaxAttempts-1))
}

// Do runs fn, retrying according to p whenever fn returns a
// *dsnaperr.Error of KindTransient. Any other error (including a context
// cancellation) is returned immediately without further attempts. label is
// used only for log messages (e.g. "get_block(snap-123, 42)").
func Do(ctx context.Context, p Policy, label string, fn func(ctx context.Context) error) error {
	attempt := 0
	operation := func() error {
		attempt++
		err := fn(ctx)
		if err == nil {
			return nil
		}
		if !dsnaperr.IsTransient(err) {
			return backoff.Permanent(err)
		}
		logger.Warn("retrying after transient error",
			"operation", label,
			logger.Attempt(attempt),
			logger.MaxRetries(p.MaxAttempts),
			logger.Err(err),
		)
		return err
	}

	err := backoff.Retry(operation, backoff.WithContext(p.backOff(), ctx))
	if err == nil {
		return nil
	}

	var permanent *backoff.PermanentError
	if errors.As(err, &permanent) {
		return permanent.Err
	}
	if ctx.Err() != nil {
		return dsnaperr.New(dsnaperr.KindCancelled, ctx.Err())
	}
	return err
}
