//go:build cgo && !windows

package loadlib

/*
#cgo linux LDFLAGS: -ldl
#include <dlfcn.h>
#include <stdlib.h>
*/
import "C"

import (
	"fmt"
	"unsafe"
)

// nativeLibrary wraps a dlopen handle.
type nativeLibrary struct {
	handle unsafe.Pointer
}

func openNative(path string) (*nativeLibrary, error) {
	cpath := C.CString(path)
	defer C.free(unsafe.Pointer(cpath))

	handle := C.dlopen(cpath, C.RTLD_NOW)
	if handle == nil {
		return nil, fmt.Errorf("dlopen: %s", C.GoString(C.dlerror()))
	}
	return &nativeLibrary{handle: handle}, nil
}

// Symbol resolves an exported symbol address with dlsym.
// dlerror is cleared first because a NULL symbol value is a valid result.
func (l *nativeLibrary) Symbol(name string) (uintptr, error) {
	cname := C.CString(name)
	defer C.free(unsafe.Pointer(cname))

	C.dlerror()
	sym := C.dlsym(l.handle, cname)
	if msg := C.dlerror(); msg != nil {
		return 0, fmt.Errorf("dlsym %q: %s", name, C.GoString(msg))
	}
	return uintptr(sym), nil
}

func (l *nativeLibrary) Close() error {
	if l.handle == nil {
		return nil
	}
	if C.dlclose(l.handle) != 0 {
		return fmt.Errorf("dlclose: %s", C.GoString(C.dlerror()))
	}
	l.handle = nil
	return nil
}
