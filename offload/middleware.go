// Host-side middleware chain for offload handlers.
//
// This mirrors the worker-side chain but wraps host handlers: functions from
// untyped request parameters to a host-native result. The interceptor's
// offload path sits at the center of the onion.
package offload

import "context"

// Result is the host-native success value of an offload handler: a response
// body plus its content type, ready for the surrounding host integration to
// send (e.g. as an HTTP response body).
type Result struct {
	ContentType string
	Body        []byte
}

// HandlerFunc is a host-side handler over untyped string parameters
// (typically query or form values).
type HandlerFunc func(ctx context.Context, params map[string]string) (*Result, error)

// Middleware wraps a HandlerFunc with cross-cutting behavior.
type Middleware func(next HandlerFunc) HandlerFunc

// Chain composes middlewares into one. The first middleware listed becomes
// the outermost layer.
func Chain(middlewares ...Middleware) Middleware {
	return func(next HandlerFunc) HandlerFunc {
		for i := len(middlewares) - 1; i >= 0; i-- {
			next = middlewares[i](next)
		}
		return next
	}
}
