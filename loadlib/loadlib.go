// Package loadlib opens a native shared library so a server process can host
// it for remote callers.
//
// A Library is exclusively owned by the server process that loaded it; the
// handle is never shared across processes, even when several servers load the
// same binary. Path resolution happens before the load: a missing extension
// gets the platform default appended, and the path is made absolute so that
// clients asking the server which binary it loaded get an unambiguous answer.
package loadlib

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
)

// LibType selects the calling-convention family used when the library's
// exported functions are invoked. It mirrors the -libtype token of the
// server executable.
type LibType string

const (
	Cdecl   LibType = "cdll"   // C/C++ __cdecl or FORTRAN library
	Stdcall LibType = "windll" // __stdcall library (Windows only)
	OleCall LibType = "oledll" // __stdcall returning HRESULT (Windows only)
	Net     LibType = "net"    // Managed-runtime assembly
)

// ParseLibType converts a command-line token into a LibType.
func ParseLibType(s string) (LibType, error) {
	switch LibType(s) {
	case Cdecl, Stdcall, OleCall, Net:
		return LibType(s), nil
	default:
		return "", fmt.Errorf("invalid library type %q: want cdll, windll, oledll or net", s)
	}
}

// Load failure kinds. Callers test them with errors.Is against the returned
// *LoadError.
var (
	ErrNotFound            = errors.New("shared library not found")
	ErrRuntimeUnavailable  = errors.New("managed runtime host not available")
	ErrConfigUpdated       = errors.New("runtime config file updated, retry the load")
	ErrIncompatibleRuntime = errors.New("incompatible managed runtime image")
	ErrUnsupported         = errors.New("library type not supported on this platform")
)

// LoadError carries enough context to present an actionable message: the
// resolved path, the attempted calling-convention kind, and the underlying
// OS or runtime error.
type LoadError struct {
	Path    string
	LibType LibType
	Err     error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("load %s (libtype=%s): %v", e.Path, e.LibType, e.Err)
}

func (e *LoadError) Unwrap() error { return e.Err }

// Library is a loaded native shared library. At most one Library exists per
// server process.
type Library struct {
	path    string
	libtype LibType
	native  *nativeLibrary
	netNS   string // default exported namespace, Net assemblies only
}

// Load resolves path and opens the library with the given calling-convention
// kind. A failure never produces a partial handle.
func Load(path string, libtype LibType) (*Library, error) {
	// Assume the platform extension when none was given.
	if filepath.Ext(path) == "" {
		path += sharedLibExt()
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, &LoadError{Path: path, LibType: libtype, Err: err}
	}

	if _, err := os.Stat(abs); err != nil {
		return nil, &LoadError{Path: abs, LibType: libtype, Err: fmt.Errorf("%w: %v", ErrNotFound, err)}
	}

	lib := &Library{path: abs, libtype: libtype}

	switch libtype {
	case Cdecl, Stdcall, OleCall:
		if libtype != Cdecl && runtime.GOOS != "windows" {
			return nil, &LoadError{Path: abs, LibType: libtype,
				Err: fmt.Errorf("%w: %s requires Windows", ErrUnsupported, libtype)}
		}
		native, err := openNative(abs)
		if err != nil {
			return nil, &LoadError{Path: abs, LibType: libtype, Err: err}
		}
		lib.native = native
	case Net:
		ns, err := loadNet(abs)
		if err != nil {
			return nil, &LoadError{Path: abs, LibType: libtype, Err: err}
		}
		lib.netNS = ns
	default:
		return nil, &LoadError{Path: abs, LibType: libtype, Err: ErrUnsupported}
	}

	return lib, nil
}

// Path returns the absolute path to the loaded library file.
func (l *Library) Path() string { return l.path }

// Type returns the calling-convention kind the library was loaded with.
func (l *Library) Type() LibType { return l.libtype }

// Symbol resolves an exported symbol by name. There is no compile-time
// signature checking: the signature is established by convention between the
// caller and the library.
func (l *Library) Symbol(name string) (uintptr, error) {
	if l.native == nil {
		return 0, fmt.Errorf("library %s (libtype=%s) has no addressable symbols", l.path, l.libtype)
	}
	return l.native.Symbol(name)
}

// NetNamespace returns the default exported namespace of a managed assembly,
// or "" for native libraries.
func (l *Library) NetNamespace() string { return l.netNS }

// Close releases the native handle. Safe to call on a Net library.
func (l *Library) Close() error {
	if l.native == nil {
		return nil
	}
	return l.native.Close()
}

func sharedLibExt() string {
	switch runtime.GOOS {
	case "windows":
		return ".dll"
	case "darwin":
		return ".dylib"
	default:
		return ".so"
	}
}
