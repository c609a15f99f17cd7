package middleware

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/denfromufa/msl-loadlib/message"
)

// Logging records every dispatched method with its duration and outcome.
// With a zap.NewNop() logger this is free, which is how the quiet flag is
// implemented: verbosity changes console noise, never protocol behaviour.
func Logging(logger *zap.Logger) Middleware {
	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, req *message.Request) *message.Response {
			start := time.Now()
			resp := next(ctx, req)
			duration := time.Since(start)

			if resp.Status == message.StatusFailed {
				logger.Warn("request failed",
					zap.String("method", req.Method),
					zap.Duration("duration", duration),
					zap.String("kind", resp.Err.Kind),
					zap.String("error", resp.Err.Message))
			} else {
				logger.Info("request served",
					zap.String("method", req.Method),
					zap.Duration("duration", duration))
			}
			return resp
		}
	}
}
