// Package message defines the call envelope exchanged between the client and
// server halves of the bridge.
//
// A Request is the "envelope" for every remote call: the method name plus the
// positional and keyword arguments, in a form any codec can serialize. A
// Response carries either the return value or an ErrorRecord — never both.
// An ErrorRecord is the only representation of a failure that ever crosses
// the process boundary; live error values stay inside the process that
// produced them.
package message

import "fmt"

// Request carries the data for a single remote call.
//
//   - Method is the name the server resolves in its handler registry.
//   - Args are the positional arguments, Kwargs the keyword arguments.
//     Both must hold only codec-serializable values.
type Request struct {
	Method string
	Args   []any
	Kwargs map[string]any
}

// Status distinguishes a successful dispatch from a failed one.
type Status byte

const (
	StatusOK     Status = 0 // Handler returned a value
	StatusFailed Status = 1 // Decode, lookup, or handler failure — Err is set
)

// Response is the in-process result of dispatching a Request.
//
// Result travels out-of-band through the exchange file, not inline in the
// HTTP response, so large return values never hit the line-oriented transport.
type Response struct {
	Status Status
	Result any          // Set when Status == StatusOK
	Err    *ErrorRecord // Set when Status == StatusFailed
}

// Result wraps the single return value of a call for serialization.
// Codecs need a concrete top-level type; a bare interface value is not one.
type Result struct {
	Value any
}

// Reserved error kinds produced by the bridge itself rather than user code.
const (
	KindMethodNotFound  = "MethodNotFound"
	KindDeserialization = "DeserializationFailed"
	KindPanic           = "Panic"
)

// ErrorRecord is the structured description of a server-side failure.
// Only (kind, message, location) cross the process boundary.
type ErrorRecord struct {
	File    string
	Line    int
	Func    string
	Kind    string
	Message string
}

// Error formats the record like a single-frame traceback, matching what the
// server writes as the plain-text body of a failure response.
func (e *ErrorRecord) Error() string {
	if e.File == "" {
		return fmt.Sprintf("%s: %s", e.Kind, e.Message)
	}
	return fmt.Sprintf("\n  File %q, line %d, in %s\n%s: %s",
		e.File, e.Line, e.Func, e.Kind, e.Message)
}

// OK builds a success response around a return value.
func OK(v any) *Response {
	return &Response{Status: StatusOK, Result: v}
}

// Failed builds a failure response around an error record.
func Failed(rec *ErrorRecord) *Response {
	return &Response{Status: StatusFailed, Err: rec}
}
