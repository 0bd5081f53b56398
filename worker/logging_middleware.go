package worker

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"molt-accel/message"
)

// LoggingMiddleware logs one line per request with entry, status, and
// duration. Non-Ok statuses log at warn level so they stand out.
func LoggingMiddleware(log zerolog.Logger) Middleware {
	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, req *message.Request) *message.Response {
			start := time.Now()
			resp := next(ctx, req)
			evt := log.Info()
			if resp.Status != message.StatusOk {
				evt = log.Warn().Str("error", resp.Error)
			}
			evt.Str("entry", req.Entry).
				Str("status", resp.Status).
				Uint64("request_id", req.RequestID).
				Dur("duration", time.Since(start)).
				Msg("entry handled")
			return resp
		}
	}
}
