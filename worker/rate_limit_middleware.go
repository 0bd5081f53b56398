package worker

import (
	"context"

	"golang.org/x/time/rate"

	"molt-accel/message"
)

// RateLimitMiddleware rejects requests above a token-bucket rate with a Busy
// response. Busy is an application-level rejection: the connection stays
// usable and a well-behaved client backs off instead of reconnecting.
func RateLimitMiddleware(r float64, burst int) Middleware {
	limiter := rate.NewLimiter(rate.Limit(r), burst)
	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, req *message.Request) *message.Response {
			if !limiter.Allow() {
				return &message.Response{
					RequestID: req.RequestID,
					Status:    message.StatusBusy,
					Error:     "rate limit exceeded",
				}
			}
			return next(ctx, req)
		}
	}
}
