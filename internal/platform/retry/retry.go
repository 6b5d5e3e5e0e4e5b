// Package retry runs operations with doubling backoff on top of juju/retry.
package retry

import (
	"context"
	"errors"
	"time"

	"github.com/juju/clock"
	jujuretry "github.com/juju/retry"
)

var (
	errMissingFunc     = errors.New("retry: func is required")
	errInvalidAttempts = errors.New("retry: max attempts must be positive")
)

// Policy describes how many times to attempt an operation and how long to wait between attempts.
type Policy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	Clock       clock.Clock
}

// Do invokes fn until it succeeds, fatal reports true, attempts run out or ctx is done.
// The wait before attempt n+1 is BaseDelay*2^(n-1), capped by MaxDelay when set.
// Failures surface the last error returned by fn, unwrapped.
func Do(ctx context.Context, policy Policy, fn func(attempt int) error, fatal func(error) bool, notify func(err error, attempt int)) error {
	if fn == nil {
		return errMissingFunc
	}
	if policy.MaxAttempts <= 0 {
		return errInvalidAttempts
	}
	if ctx == nil {
		ctx = context.Background()
	}
	if policy.Clock == nil {
		policy.Clock = clock.WallClock
	}
	if policy.BaseDelay <= 0 {
		policy.BaseDelay = time.Millisecond
	}
	if fatal == nil {
		fatal = func(error) bool { return false }
	}

	attempt := 0
	var last error
	err := jujuretry.Call(jujuretry.CallArgs{
		Func: func() error {
			attempt++
			if err := ctx.Err(); err != nil {
				last = err
				return err
			}
			last = fn(attempt)
			return last
		},
		IsFatalError: func(err error) bool {
			return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) || fatal(err)
		},
		NotifyFunc:  notify,
		Attempts:    policy.MaxAttempts,
		Delay:       policy.BaseDelay,
		MaxDelay:    policy.MaxDelay,
		BackoffFunc: jujuretry.DoubleDelay,
		Clock:       policy.Clock,
		Stop:        ctx.Done(),
	})
	switch {
	case err == nil:
		return nil
	case ctx.Err() != nil:
		return ctx.Err()
	case last != nil:
		return last
	default:
		return err
	}
}
