//go:build windows

package loadlib

import (
	"fmt"

	"golang.org/x/sys/windows"
)

// nativeLibrary wraps a LoadLibrary handle. The same loader serves cdll,
// windll and oledll: the calling-convention difference only matters at
// invocation time, not at load time.
type nativeLibrary struct {
	dll *windows.DLL
}

func openNative(path string) (*nativeLibrary, error) {
	dll, err := windows.LoadDLL(path)
	if err != nil {
		return nil, fmt.Errorf("LoadLibrary: %w", err)
	}
	return &nativeLibrary{dll: dll}, nil
}

func (l *nativeLibrary) Symbol(name string) (uintptr, error) {
	proc, err := l.dll.FindProc(name)
	if err != nil {
		return 0, fmt.Errorf("GetProcAddress %q: %w", name, err)
	}
	return proc.Addr(), nil
}

func (l *nativeLibrary) Close() error {
	if l.dll == nil {
		return nil
	}
	err := l.dll.Release()
	l.dll = nil
	return err
}
