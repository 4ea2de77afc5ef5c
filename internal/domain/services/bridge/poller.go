package bridge

import (
	"context"
	"errors"
	"time"
)

// errPollTimeout is returned when a poll reaches its ceiling without a result
var errPollTimeout = errors.New("poll ceiling reached")

// pollFunc reports done=true with a value, or done=false to be polled again.
// A non-nil error stops polling.
type pollFunc[T any] func(ctx context.Context) (T, bool, error)

// poll calls check immediately and then every interval until it is done,
// ctx is cancelled (ctx.Err()) or timeout elapses (errPollTimeout).
func poll[T any](ctx context.Context, interval, timeout time.Duration, check pollFunc[T]) (T, error) {
	var zero T

	pctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		v, done, err := check(pctx)
		if err == nil && done {
			return v, nil
		}
		if err != nil && pctx.Err() == nil {
			return zero, err
		}

		select {
		case <-pctx.Done():
			if ctx.Err() != nil {
				return zero, ctx.Err()
			}
			return zero, errPollTimeout
		case <-ticker.C:
		}
	}
}
