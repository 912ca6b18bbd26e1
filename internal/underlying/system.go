//go:build cgo

package underlying

/*
#include <stdio.h>
#include <stdlib.h>
*/
import "C"

import (
	"fmt"
	"sync"
	"unsafe"

	"golang.org/x/sys/unix"
)

// System calls straight into libc via cgo. It is the implementation
// cmd/failinjsh links into the interposed shared object: every method
// here is the genuine primitive a wrapper falls through to once the
// engine has decided not to inject.
//
// The open-stream registry records the streams opened through System
// so Fcloseall can find and close them; it is not consulted by the
// decision or tracking packages, which key purely on the stream's
// address.
type System struct {
	mu      sync.Mutex
	streams map[uintptr]string
}

// NewSystem constructs a System primitives implementation.
func NewSystem() *System {
	return &System{streams: make(map[uintptr]string)}
}

func (s *System) Malloc(size uintptr) (uintptr, error) {
	p := C.malloc(C.size_t(size))
	if p == nil && size != 0 {
		return 0, fmt.Errorf("malloc: allocation failed")
	}
	return uintptr(p), nil
}

func (s *System) Calloc(nmemb, size uintptr) (uintptr, error) {
	p := C.calloc(C.size_t(nmemb), C.size_t(size))
	if p == nil && nmemb != 0 && size != 0 {
		return 0, fmt.Errorf("calloc: allocation failed")
	}
	return uintptr(p), nil
}

func (s *System) Realloc(ptr uintptr, size uintptr) (uintptr, error) {
	p := C.realloc(unsafe.Pointer(ptr), C.size_t(size)) //nolint:govet
	if p == nil && size != 0 {
		return 0, fmt.Errorf("realloc: allocation failed")
	}
	return uintptr(p), nil
}

func (s *System) Reallocarray(ptr uintptr, nmemb, size uintptr) (uintptr, error) {
	total := nmemb * size
	if nmemb != 0 && total/nmemb != size {
		return 0, fmt.Errorf("reallocarray: size overflow")
	}
	return s.Realloc(ptr, total)
}

func (s *System) Free(ptr uintptr) {
	C.free(unsafe.Pointer(ptr)) //nolint:govet
}

func (s *System) Open(path string, flags int, mode uint32) (int, error) {
	return unix.Open(path, flags, mode)
}

func (s *System) Openat(dirfd int, path string, flags int, mode uint32) (int, error) {
	return unix.Openat(dirfd, path, flags, mode)
}

func (s *System) Creat(path string, mode uint32) (int, error) {
	return unix.Open(path, unix.O_CREAT|unix.O_WRONLY|unix.O_TRUNC, mode)
}

func (s *System) Close(fd int) error {
	return unix.Close(fd)
}

func (s *System) Read(fd int, buf []byte) (int, error) {
	return unix.Read(fd, buf)
}

func (s *System) Write(fd int, buf []byte) (int, error) {
	return unix.Write(fd, buf)
}

func (s *System) Fopen(path, mode string) (uintptr, error) {
	cpath := C.CString(path)
	defer C.free(unsafe.Pointer(cpath))
	cmode := C.CString(mode)
	defer C.free(unsafe.Pointer(cmode))

	stream := C.fopen(cpath, cmode)
	if stream == nil {
		return 0, fmt.Errorf("fopen %s: failed", path)
	}
	addr := uintptr(unsafe.Pointer(stream))
	s.mu.Lock()
	s.streams[addr] = path
	s.mu.Unlock()
	return addr, nil
}

func (s *System) Fmemopen(buf []byte, mode string) (uintptr, error) {
	if len(buf) == 0 {
		return 0, fmt.Errorf("fmemopen: empty buffer")
	}
	cmode := C.CString(mode)
	defer C.free(unsafe.Pointer(cmode))

	stream := C.fmemopen(unsafe.Pointer(&buf[0]), C.size_t(len(buf)), cmode)
	if stream == nil {
		return 0, fmt.Errorf("fmemopen: failed")
	}
	addr := uintptr(unsafe.Pointer(stream))
	s.mu.Lock()
	s.streams[addr] = "<memory>"
	s.mu.Unlock()
	return addr, nil
}

func (s *System) Tmpfile() (uintptr, error) {
	stream := C.tmpfile()
	if stream == nil {
		return 0, fmt.Errorf("tmpfile: failed")
	}
	addr := uintptr(unsafe.Pointer(stream))
	s.mu.Lock()
	s.streams[addr] = "<tmpfile>"
	s.mu.Unlock()
	return addr, nil
}

func (s *System) Fdopen(fd int, mode string) (uintptr, error) {
	cmode := C.CString(mode)
	defer C.free(unsafe.Pointer(cmode))

	stream := C.fdopen(C.int(fd), cmode)
	if stream == nil {
		return 0, fmt.Errorf("fdopen %d: failed", fd)
	}
	addr := uintptr(unsafe.Pointer(stream))
	s.mu.Lock()
	s.streams[addr] = fmt.Sprintf("<fd %d>", fd)
	s.mu.Unlock()
	return addr, nil
}

func (s *System) Freopen(path, mode string, stream uintptr) (uintptr, error) {
	cpath := C.CString(path)
	defer C.free(unsafe.Pointer(cpath))
	cmode := C.CString(mode)
	defer C.free(unsafe.Pointer(cmode))

	newStream := C.freopen(cpath, cmode, (*C.FILE)(unsafe.Pointer(stream)))
	if newStream == nil {
		return 0, fmt.Errorf("freopen %s: failed", path)
	}

	s.mu.Lock()
	delete(s.streams, stream)
	newAddr := uintptr(unsafe.Pointer(newStream))
	s.streams[newAddr] = path
	s.mu.Unlock()
	return newAddr, nil
}

func (s *System) Fclose(stream uintptr) error {
	rc := C.fclose((*C.FILE)(unsafe.Pointer(stream)))
	s.mu.Lock()
	delete(s.streams, stream)
	s.mu.Unlock()
	if rc != 0 {
		return fmt.Errorf("fclose: failed")
	}
	return nil
}

func (s *System) Fcloseall() error {
	s.mu.Lock()
	addrs := make([]uintptr, 0, len(s.streams))
	for addr := range s.streams {
		addrs = append(addrs, addr)
	}
	s.mu.Unlock()

	var firstErr error
	for _, addr := range addrs {
		if err := s.Fclose(addr); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (s *System) Fwrite(data []byte, stream uintptr) (int, error) {
	if len(data) == 0 {
		return 0, nil
	}
	n := C.fwrite(unsafe.Pointer(&data[0]), 1, C.size_t(len(data)), (*C.FILE)(unsafe.Pointer(stream)))
	return int(n), nil
}

func (s *System) Fflush(stream uintptr) error {
	rc := C.fflush((*C.FILE)(unsafe.Pointer(stream)))
	if rc != 0 {
		return fmt.Errorf("fflush: failed")
	}
	return nil
}

var _ Primitives = (*System)(nil)
