// Command loadlib-server hosts a shared library behind the bridge protocol.
// The library to load and the calling convention come from the -lib and
// -libtype flags; register wrappers for the exported symbols you need in
// the factory below.
package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/denfromufa/msl-loadlib/server"
)

func main() {
	server.Main(newServer)
}

func newServer(cfg server.MainConfig) (*server.Server, error) {
	if cfg.LibPath == "" {
		return nil, errors.New("a library path is required: -lib <path>")
	}
	srv, err := server.New(cfg.LibPath, cfg.LibType, cfg.Host, cfg.Port, cfg.Quiet)
	if err != nil {
		return nil, err
	}

	// Diagnostics that exercise a round trip without touching the library.
	if err := srv.Register("echo", echo); err != nil {
		return nil, err
	}
	if err := srv.Register("add", add); err != nil {
		return nil, err
	}
	return srv, nil
}

// echo returns its positional arguments, and its keyword arguments when any
// were sent.
func echo(ctx context.Context, args []any, kwargs map[string]any) (any, error) {
	if len(kwargs) > 0 {
		return map[string]any{"args": args, "kwargs": kwargs}, nil
	}
	return args, nil
}

func add(ctx context.Context, args []any, kwargs map[string]any) (any, error) {
	if len(args) != 2 {
		return nil, errors.New("add expects exactly two arguments")
	}
	a, err := toFloat(args[0])
	if err != nil {
		return nil, err
	}
	b, err := toFloat(args[1])
	if err != nil {
		return nil, err
	}
	return a + b, nil
}

func toFloat(v any) (float64, error) {
	switch n := v.(type) {
	case int:
		return float64(n), nil
	case int64:
		return float64(n), nil
	case float64:
		return n, nil
	default:
		return 0, fmt.Errorf("cannot use %T as a number", v)
	}
}
