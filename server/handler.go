package server

import (
	"context"
	"fmt"
	"reflect"
	"runtime"
	"sort"
	"strings"

	"github.com/denfromufa/msl-loadlib/protocol"
)

// HandlerFunc is the shape of a remotely callable method: positional plus
// keyword arguments in, one serializable value out. The bridge imposes no
// other constraint on collaborator methods.
type HandlerFunc func(ctx context.Context, args []any, kwargs map[string]any) (any, error)

// Handler is a registered method together with its introspectable signature
// record. The definition site is captured at registration time so a handler
// that returns an error can be reported with a meaningful source location.
type Handler struct {
	Name string
	Fn   HandlerFunc
	File string
	Line int
}

// Register adds a remotely callable method to the server. Registration must
// finish before Serve is called; the registry is read without locking on the
// dispatch path.
func (s *Server) Register(name string, fn HandlerFunc) error {
	if name == protocol.MethodShutdown || name == protocol.MethodLibPath {
		return fmt.Errorf("method name %q is reserved by the bridge", name)
	}
	if strings.Contains(name, ":") {
		return fmt.Errorf("method name %q: the request line uses ':' as a separator", name)
	}
	if _, ok := s.handlers[name]; ok {
		return fmt.Errorf("method %q is already registered", name)
	}

	h := &Handler{Name: name, Fn: fn}
	if pc := reflect.ValueOf(fn).Pointer(); pc != 0 {
		if f := runtime.FuncForPC(pc); f != nil {
			h.File, h.Line = f.FileLine(pc)
		}
	}
	s.handlers[name] = h
	return nil
}

// Methods returns the registered method names, sorted. Used by the
// interactive console and handy for collaborator diagnostics.
func (s *Server) Methods() []string {
	names := make([]string, 0, len(s.handlers))
	for name := range s.handlers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
