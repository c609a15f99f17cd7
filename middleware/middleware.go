// Package middleware wraps the server's dispatch path in an onion of
// handlers: Chain(A, B, C)(handler) executes A.before → B.before → C.before →
// handler → C.after → B.after → A.after.
package middleware

import (
	"context"

	"github.com/denfromufa/msl-loadlib/message"
)

type HandlerFunc func(ctx context.Context, req *message.Request) *message.Response

type Middleware func(next HandlerFunc) HandlerFunc

// Chain combines multiple middlewares into one. Wrapping happens in reverse
// order so the first middleware in the list runs outermost.
func Chain(middlewares ...Middleware) Middleware {
	return func(next HandlerFunc) HandlerFunc {
		for i := len(middlewares) - 1; i >= 0; i-- {
			next = middlewares[i](next)
		}
		return next
	}
}
