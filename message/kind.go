package message

import "reflect"

// KindOf derives the exception-kind token for a failure value: the concrete
// type name for errors and panic values, or KindPanic for untyped panics.
// Only this string crosses the process boundary, never the value itself.
func KindOf(v any) string {
	if rec, ok := v.(*ErrorRecord); ok && rec.Kind != "" {
		return rec.Kind
	}
	t := reflect.TypeOf(v)
	if t == nil {
		return KindPanic
	}
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if name := t.String(); name != "" {
		return name
	}
	return KindPanic
}
