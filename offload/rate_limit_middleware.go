package offload

import (
	"context"

	"golang.org/x/time/rate"

	"molt-accel/accelerr"
)

// RateLimitMiddleware bounds the host's own offload call rate with a token
// bucket, refusing excess invocations before any payload is built or sent.
// The refusal surfaces as Busy so callers handle it exactly like a
// worker-side load rejection.
func RateLimitMiddleware(r float64, burst int) Middleware {
	limiter := rate.NewLimiter(rate.Limit(r), burst)
	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, params map[string]string) (*Result, error) {
			if !limiter.Allow() {
				return nil, accelerr.New(accelerr.KindBusy, "client-side rate limit exceeded")
			}
			return next(ctx, params)
		}
	}
}
