// Command failinjsh builds the engine as a Linux shared object whose
// exported symbols shadow libc's own: link it ahead of libc with
// LD_PRELOAD and every malloc/open/fopen/... call a program makes
// resolves here first.
//
//	go build -buildmode=c-shared -o failinj.so ./cmd/failinjsh
//	LD_PRELOAD=./failinj.so ./program-under-test
//
// Build with cgo enabled (the default on Linux); the exported symbols
// and the genuine-libc delegation in internal/underlying.System both
// require it.
package main

/*
#include <stdlib.h>
#include <stdio.h>
#include <errno.h>

static void failinj_set_errno(int e) { errno = e; }
*/
import "C"

import (
	"errors"
	"os"
	"syscall"
	"unsafe"

	"github.com/fenwick-labs/failinj"
	"github.com/fenwick-labs/failinj/internal/underlying"
)

func init() {
	failinj.SetPrimitives(underlying.NewSystem())
	if tag := os.Getenv("FAILINJ_TAG"); tag != "" {
		failinj.SetTag(tag)
	}
}

// reportErrno propagates err's errno (if it carries one, per the
// wrapper contract table) to the real C errno variable, the same
// signal the genuine libc primitive would have left behind on failure.
func reportErrno(err error) {
	var ferr *failinj.Error
	if errors.As(err, &ferr) && ferr.Errno != 0 {
		C.failinj_set_errno(C.int(ferr.Errno))
		return
	}
	C.failinj_set_errno(C.int(syscall.EIO))
}

//export malloc
func malloc(size C.size_t) unsafe.Pointer {
	addr, err := failinj.Malloc(uintptr(size))
	if err != nil {
		reportErrno(err)
		return nil
	}
	return unsafe.Pointer(addr) //nolint:govet
}

//export calloc
func calloc(nmemb, size C.size_t) unsafe.Pointer {
	addr, err := failinj.Calloc(uintptr(nmemb), uintptr(size))
	if err != nil {
		reportErrno(err)
		return nil
	}
	return unsafe.Pointer(addr) //nolint:govet
}

//export realloc
func realloc(ptr unsafe.Pointer, size C.size_t) unsafe.Pointer {
	addr, err := failinj.Realloc(uintptr(ptr), uintptr(size))
	if err != nil {
		reportErrno(err)
		return nil
	}
	return unsafe.Pointer(addr) //nolint:govet
}

//export reallocarray
func reallocarray(ptr unsafe.Pointer, nmemb, size C.size_t) unsafe.Pointer {
	addr, err := failinj.Reallocarray(uintptr(ptr), uintptr(nmemb), uintptr(size))
	if err != nil {
		reportErrno(err)
		return nil
	}
	return unsafe.Pointer(addr) //nolint:govet
}

//export free
func free(ptr unsafe.Pointer) {
	failinj.Free(uintptr(ptr))
}

//export open
func open(path *C.char, flags C.int, mode C.uint) C.int {
	fd, err := failinj.Open(C.GoString(path), int(flags), uint32(mode))
	if err != nil {
		reportErrno(err)
		return -1
	}
	return C.int(fd)
}

//export openat
func openat(dirfd C.int, path *C.char, flags C.int, mode C.uint) C.int {
	fd, err := failinj.Openat(int(dirfd), C.GoString(path), int(flags), uint32(mode))
	if err != nil {
		reportErrno(err)
		return -1
	}
	return C.int(fd)
}

//export creat
func creat(path *C.char, mode C.uint) C.int {
	fd, err := failinj.Creat(C.GoString(path), uint32(mode))
	if err != nil {
		reportErrno(err)
		return -1
	}
	return C.int(fd)
}

//export close
func close(fd C.int) C.int {
	if err := failinj.Close(int(fd)); err != nil {
		reportErrno(err)
		return -1
	}
	return 0
}

//export read
func read(fd C.int, buf unsafe.Pointer, count C.size_t) C.long {
	slice := unsafe.Slice((*byte)(buf), int(count))
	n, err := failinj.Read(int(fd), slice)
	if err != nil {
		reportErrno(err)
		return -1
	}
	return C.long(n)
}

//export write
func write(fd C.int, buf unsafe.Pointer, count C.size_t) C.long {
	slice := unsafe.Slice((*byte)(buf), int(count))
	n, err := failinj.Write(int(fd), slice)
	if err != nil {
		reportErrno(err)
		return -1
	}
	return C.long(n)
}

//export fopen
func fopen(path, mode *C.char) unsafe.Pointer {
	stream, err := failinj.Fopen(C.GoString(path), C.GoString(mode))
	if err != nil {
		reportErrno(err)
		return nil
	}
	return unsafe.Pointer(stream) //nolint:govet
}

//export fmemopen
func fmemopen(buf unsafe.Pointer, size C.size_t, mode *C.char) unsafe.Pointer {
	slice := unsafe.Slice((*byte)(buf), int(size))
	stream, err := failinj.Fmemopen(slice, C.GoString(mode))
	if err != nil {
		reportErrno(err)
		return nil
	}
	return unsafe.Pointer(stream) //nolint:govet
}

//export tmpfile
func tmpfile() unsafe.Pointer {
	stream, err := failinj.Tmpfile()
	if err != nil {
		reportErrno(err)
		return nil
	}
	return unsafe.Pointer(stream) //nolint:govet
}

//export fdopen
func fdopen(fd C.int, mode *C.char) unsafe.Pointer {
	stream, err := failinj.Fdopen(int(fd), C.GoString(mode))
	if err != nil {
		reportErrno(err)
		return nil
	}
	return unsafe.Pointer(stream) //nolint:govet
}

//export freopen
func freopen(path, mode *C.char, stream unsafe.Pointer) unsafe.Pointer {
	newStream, err := failinj.Freopen(C.GoString(path), C.GoString(mode), uintptr(stream))
	if err != nil {
		reportErrno(err)
		return nil
	}
	return unsafe.Pointer(newStream) //nolint:govet
}

//export fclose
func fclose(stream unsafe.Pointer) C.int {
	if err := failinj.Fclose(uintptr(stream)); err != nil {
		reportErrno(err)
		return -1
	}
	return 0
}

//export fcloseall
func fcloseall() C.int {
	if err := failinj.Fcloseall(); err != nil {
		reportErrno(err)
		return -1
	}
	return 0
}

//export fwrite
func fwrite(ptr unsafe.Pointer, size, nmemb C.size_t, stream unsafe.Pointer) C.size_t {
	total := int(size) * int(nmemb)
	slice := unsafe.Slice((*byte)(ptr), total)
	n, err := failinj.Fwrite(slice, uintptr(stream))
	if err != nil {
		reportErrno(err)
		return 0
	}
	if int(size) == 0 {
		return 0
	}
	return C.size_t(n / int(size))
}

//export fflush
func fflush(stream unsafe.Pointer) C.int {
	if err := failinj.Fflush(uintptr(stream)); err != nil {
		reportErrno(err)
		return -1
	}
	return 0
}

func main() {}
