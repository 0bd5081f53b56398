package worker

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"molt-accel/message"
)

// RecoveryMiddleware converts a panicking entry into an InternalError
// response. Without it a panic tears down the frame loop and the client sees
// WorkerUnavailable instead of the real failure.
func RecoveryMiddleware(log zerolog.Logger) Middleware {
	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, req *message.Request) (resp *message.Response) {
			defer func() {
				if r := recover(); r != nil {
					log.Error().Str("entry", req.Entry).Interface("panic", r).Msg("entry panicked")
					resp = &message.Response{
						RequestID: req.RequestID,
						Status:    message.StatusInternal,
						Error:     fmt.Sprintf("entry %q panicked: %v", req.Entry, r),
					}
				}
			}()
			return next(ctx, req)
		}
	}
}
