package worker

import (
	"context"
	"time"

	"molt-accel/message"
)

// TimeoutMiddleware bounds entry execution by the request's own timeout_ms
// (capped by maxTimeout, which also applies when a request carries none).
// A handler that overruns produces a Timeout response; the goroutine it runs
// in finishes in the background and its result is dropped.
func TimeoutMiddleware(maxTimeout time.Duration) Middleware {
	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, req *message.Request) *message.Response {
			timeout := maxTimeout
			if req.TimeoutMS > 0 {
				if d := time.Duration(req.TimeoutMS) * time.Millisecond; d < timeout {
					timeout = d
				}
			}
			ctx, cancel := context.WithTimeout(ctx, timeout)
			defer cancel()

			done := make(chan *message.Response, 1)
			go func() {
				done <- next(ctx, req)
			}()

			select {
			case resp := <-done:
				return resp
			case <-ctx.Done():
				return &message.Response{
					RequestID: req.RequestID,
					Status:    message.StatusTimeout,
					Error:     "entry execution timed out",
				}
			}
		}
	}
}
