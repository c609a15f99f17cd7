//go:build !cgo && !windows

package loadlib

import "fmt"

// nativeLibrary stub for builds without cgo: the dlopen path needs the C
// toolchain, so native loads report ErrUnsupported instead of failing at
// link time.
type nativeLibrary struct{}

func openNative(path string) (*nativeLibrary, error) {
	return nil, fmt.Errorf("%w: native loading requires cgo on this platform", ErrUnsupported)
}

func (l *nativeLibrary) Symbol(name string) (uintptr, error) {
	return 0, fmt.Errorf("%w: native loading requires cgo on this platform", ErrUnsupported)
}

func (l *nativeLibrary) Close() error { return nil }
