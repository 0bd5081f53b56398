package offload

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// LoggingMiddleware logs one line per invocation with a fresh correlation id,
// so a host request can be matched to worker-side logs and metrics.
func LoggingMiddleware(log zerolog.Logger, entry string) Middleware {
	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, params map[string]string) (*Result, error) {
			callID := uuid.NewString()
			start := time.Now()
			result, err := next(ctx, params)
			evt := log.Info()
			if err != nil {
				evt = log.Warn().Err(err)
			}
			evt.Str("entry", entry).
				Str("call_id", callID).
				Dur("duration", time.Since(start)).
				Msg("offload invocation")
			return result, err
		}
	}
}
