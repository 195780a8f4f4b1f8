package misc

import (
	"context"
	"time"
)

// DefaultBackoff is the delay schedule between attempts: three retries.
var DefaultBackoff = []time.Duration{
	1 * time.Second,
	3 * time.Second,
	5 * time.Second,
}

// Retry runs op until it succeeds, fails with an error isRetryable rejects,
// or the delays are used up. Context cancellation wins over the op error.
func Retry(ctx context.Context, delays []time.Duration, isRetryable func(error) bool, op func() error) error {
	return RetryNotify(ctx, delays, isRetryable, op, nil)
}

// RetryNotify is Retry with a hook called before every sleep with the
// 1-based attempt that failed, the upcoming delay and the error.
func RetryNotify(ctx context.Context, delays []time.Duration, isRetryable func(error) bool, op func() error, notify func(attempt int, next time.Duration, err error)) error {
	for attempt := 0; ; attempt++ {
		err := op()
		switch {
		case err == nil:
			return nil
		case ctx.Err() != nil:
			return ctx.Err()
		case attempt >= len(delays) || isRetryable == nil || !isRetryable(err):
			return err
		}

		if notify != nil {
			notify(attempt+1, delays[attempt], err)
		}
		if err := sleep(ctx, delays[attempt]); err != nil {
			return err
		}
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
