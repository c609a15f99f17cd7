package middleware

import (
	"context"
	"fmt"
	"runtime"
	"strings"

	"github.com/denfromufa/msl-loadlib/message"
)

// Recovery converts a panic anywhere below it in the chain into a failure
// response carrying an ErrorRecord, so a panicking handler never takes the
// server process down with it.
//
// The reported source location is the innermost non-runtime frame of the
// panic, which is the statement that panicked inside user code. skip drops
// that many additional innermost frames — useful when handlers funnel their
// panics through a shared helper whose frame would otherwise be reported.
func Recovery(skip int) Middleware {
	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, req *message.Request) (resp *message.Response) {
			defer func() {
				if r := recover(); r != nil {
					resp = message.Failed(capturePanic(r, skip))
				}
			}()
			return next(ctx, req)
		}
	}
}

func capturePanic(v any, skip int) *message.ErrorRecord {
	rec := &message.ErrorRecord{
		Kind:    message.KindOf(v),
		Message: panicMessage(v),
	}

	pcs := make([]uintptr, 64)
	n := runtime.Callers(3, pcs) // drop Callers, capturePanic, and the deferred closure
	frames := runtime.CallersFrames(pcs[:n])

	// Walk outward from the panic site, dropping the runtime's own panic
	// machinery, then skip more frames as configured.
	remaining := skip
	for {
		frame, more := frames.Next()
		if !strings.HasPrefix(frame.Function, "runtime.") {
			if remaining == 0 {
				rec.File = frame.File
				rec.Line = frame.Line
				rec.Func = frame.Function
				break
			}
			remaining--
		}
		if !more {
			break
		}
	}
	return rec
}

func panicMessage(v any) string {
	if err, ok := v.(error); ok {
		return err.Error()
	}
	return fmt.Sprint(v)
}
