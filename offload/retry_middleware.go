package offload

import (
	"context"
	"time"

	"molt-accel/accelerr"
)

// RetryMiddleware retries an invocation that failed with WorkerUnavailable,
// with exponential backoff. Attach it only to entries that are known
// idempotent: the client itself never retries, and whether a re-send is safe
// is a property of the entry, not of the transport.
//
// Only WorkerUnavailable is retried. Timeout is not (the first attempt may
// still be executing in the worker), and application rejections (Busy,
// InvalidInput, ...) would fail identically on a re-send or must be decided
// by the host.
func RetryMiddleware(maxRetries int, baseDelay time.Duration) Middleware {
	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, params map[string]string) (*Result, error) {
			result, err := next(ctx, params)
			for attempt := 0; attempt < maxRetries; attempt++ {
				if err == nil || accelerr.KindOf(err) != accelerr.KindWorkerUnavailable {
					return result, err
				}
				select {
				case <-time.After(baseDelay * time.Duration(1<<attempt)):
				case <-ctx.Done():
					return nil, accelerr.Wrap(accelerr.KindCancelled, "retry wait cancelled", ctx.Err())
				}
				result, err = next(ctx, params)
			}
			return result, err
		}
	}
}
