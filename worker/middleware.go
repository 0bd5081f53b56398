// Worker-side middleware chain.
//
// Middlewares wrap the entry dispatch handler in an onion:
//
//	Chain(A, B, C)(handler) → A(B(C(handler)))
//	Execution order: A.before → B.before → C.before → handler → C.after → ...
package worker

import (
	"context"

	"molt-accel/message"
)

// HandlerFunc processes one decoded request envelope and produces the
// response envelope. The frame loop owns framing and wire serialization;
// handlers and middlewares only see envelopes.
type HandlerFunc func(ctx context.Context, req *message.Request) *message.Response

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
