package middleware

import (
	"context"

	"golang.org/x/time/rate"

	"github.com/denfromufa/msl-loadlib/message"
)

// RateLimit applies a token-bucket limiter to the dispatch path. The bridge
// itself serializes calls per client, but nothing stops a misbehaving
// collaborator from pointing many clients at one server; the limiter keeps
// the loopback listener from being saturated.
func RateLimit(r float64, burst int) Middleware {
	limiter := rate.NewLimiter(rate.Limit(r), burst)
	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, req *message.Request) *message.Response {
			if !limiter.Allow() {
				return message.Failed(&message.ErrorRecord{
					Kind:    "RateLimited",
					Message: "rate limit exceeded",
				})
			}
			return next(ctx, req)
		}
	}
}
