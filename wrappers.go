package failinj

import (
	"fmt"
	"syscall"

	"github.com/fenwick-labs/failinj/internal/config"
	"github.com/fenwick-labs/failinj/internal/decision"
	"github.com/fenwick-labs/failinj/internal/tracker"
)

// decide runs the injection decision for a named primitive and
// reports it to the active observer. A failure to load or append to
// the database is an engine-internal error: decide panics with an
// *Error, which Run recovers into the configured exit-error code.
func decide(name string) (decision.Outcome, error) {
	out, err := engineInstance().Decide(name)
	if err != nil {
		panic(WrapError("DECIDE", err))
	}
	injected := out == decision.Inject
	observer.ObserveDecision(injected, out == decision.Skip)
	if injected {
		observer.ObserveDatabaseAppend()
	}
	return out, nil
}

// destroy releases key from cat and reports an untracked release to
// the observer when the tracker never saw it created.
func destroy(cat tracker.Category, key uint64) {
	if tracked := engineInstance().Tracker().Destroy(cat, key); !tracked {
		observer.ObserveUntrackedRelease(int(cat))
	}
}

// Malloc mirrors libc malloc: on the decision to inject, returns an
// error instead of calling through; otherwise delegates to the
// installed Primitives and tracks the resulting address as a live
// allocation.
func Malloc(size uintptr) (uintptr, error) {
	out, err := decide("malloc")
	if err != nil {
		return 0, WrapError("MALLOC", err)
	}
	if out == decision.Inject {
		return 0, NewInjectedError("MALLOC", syscall.ENOMEM, "injected allocation failure")
	}

	addr, err := primitives.Malloc(size)
	if err != nil {
		return 0, WrapError("MALLOC", err)
	}
	engineInstance().Tracker().Create(tracker.Allocations, uint64(addr))
	observer.ObserveCreate(int(tracker.Allocations))
	return addr, nil
}

// Calloc mirrors libc calloc.
func Calloc(nmemb, size uintptr) (uintptr, error) {
	out, err := decide("calloc")
	if err != nil {
		return 0, WrapError("CALLOC", err)
	}
	if out == decision.Inject {
		return 0, NewInjectedError("CALLOC", syscall.ENOMEM, "injected allocation failure")
	}

	addr, err := primitives.Calloc(nmemb, size)
	if err != nil {
		return 0, WrapError("CALLOC", err)
	}
	engineInstance().Tracker().Create(tracker.Allocations, uint64(addr))
	observer.ObserveCreate(int(tracker.Allocations))
	return addr, nil
}

// Realloc mirrors libc realloc: the old address stops being tracked,
// the new one starts.
func Realloc(ptr uintptr, size uintptr) (uintptr, error) {
	out, err := decide("realloc")
	if err != nil {
		return 0, WrapError("REALLOC", err)
	}
	if out == decision.Inject {
		return 0, NewInjectedError("REALLOC", syscall.ENOMEM, "injected allocation failure")
	}

	newAddr, err := primitives.Realloc(ptr, size)
	if err != nil {
		return 0, WrapError("REALLOC", err)
	}
	if ptr != 0 {
		destroy(tracker.Allocations, uint64(ptr))
	}
	engineInstance().Tracker().Create(tracker.Allocations, uint64(newAddr))
	observer.ObserveCreate(int(tracker.Allocations))
	return newAddr, nil
}

// Reallocarray mirrors libc reallocarray.
func Reallocarray(ptr uintptr, nmemb, size uintptr) (uintptr, error) {
	out, err := decide("reallocarray")
	if err != nil {
		return 0, WrapError("REALLOCARRAY", err)
	}
	if out == decision.Inject {
		return 0, NewInjectedError("REALLOCARRAY", syscall.ENOMEM, "injected allocation failure")
	}

	newAddr, err := primitives.Reallocarray(ptr, nmemb, size)
	if err != nil {
		return 0, WrapError("REALLOCARRAY", err)
	}
	if ptr != 0 {
		destroy(tracker.Allocations, uint64(ptr))
	}
	engineInstance().Tracker().Create(tracker.Allocations, uint64(newAddr))
	observer.ObserveCreate(int(tracker.Allocations))
	return newAddr, nil
}

// Free mirrors libc free: never injected (freeing cannot fail), always
// released from tracking, flagged as an untracked release if the
// address was never seen created.
func Free(ptr uintptr) {
	if ptr == 0 {
		return
	}
	primitives.Free(ptr)
	destroy(tracker.Allocations, uint64(ptr))
	observer.ObserveDestroy(int(tracker.Allocations))
}

// Open mirrors libc open.
func Open(path string, flags int, mode uint32) (int, error) {
	out, err := decide("open")
	if err != nil {
		return -1, WrapError("OPEN", err)
	}
	if out == decision.Inject {
		return -1, NewInjectedError("OPEN", syscall.EACCES, "injected open failure")
	}

	fd, err := primitives.Open(path, flags, mode)
	if err != nil {
		return -1, WrapError("OPEN", err)
	}
	engineInstance().Tracker().Create(tracker.Descriptors, uint64(fd))
	observer.ObserveCreate(int(tracker.Descriptors))
	return fd, nil
}

// Openat mirrors libc openat.
func Openat(dirfd int, path string, flags int, mode uint32) (int, error) {
	out, err := decide("openat")
	if err != nil {
		return -1, WrapError("OPENAT", err)
	}
	if out == decision.Inject {
		return -1, NewInjectedError("OPENAT", syscall.EACCES, "injected openat failure")
	}

	fd, err := primitives.Openat(dirfd, path, flags, mode)
	if err != nil {
		return -1, WrapError("OPENAT", err)
	}
	engineInstance().Tracker().Create(tracker.Descriptors, uint64(fd))
	observer.ObserveCreate(int(tracker.Descriptors))
	return fd, nil
}

// Creat mirrors libc creat.
func Creat(path string, mode uint32) (int, error) {
	out, err := decide("creat")
	if err != nil {
		return -1, WrapError("CREAT", err)
	}
	if out == decision.Inject {
		return -1, NewInjectedError("CREAT", syscall.EACCES, "injected creat failure")
	}

	fd, err := primitives.Creat(path, mode)
	if err != nil {
		return -1, WrapError("CREAT", err)
	}
	engineInstance().Tracker().Create(tracker.Descriptors, uint64(fd))
	observer.ObserveCreate(int(tracker.Descriptors))
	return fd, nil
}

// Close mirrors libc close using the close-like injection pattern: the
// real close always happens and the descriptor always stops being
// tracked, so a program that retries on failure never leaks it; only
// afterward, if the real call succeeded, may the decision replace
// success with a synthetic failure.
func Close(fd int) error {
	realErr := primitives.Close(fd)
	destroy(tracker.Descriptors, uint64(fd))
	observer.ObserveDestroy(int(tracker.Descriptors))
	if realErr != nil {
		return WrapError("CLOSE", realErr)
	}

	out, err := decide("close")
	if err != nil {
		return WrapError("CLOSE", err)
	}
	if out == decision.Inject {
		return NewInjectedError("CLOSE", syscall.EDQUOT, "injected close failure")
	}
	return nil
}

// Read mirrors libc read: only the short-read/error path is subject
// to injection, not descriptor tracking.
func Read(fd int, buf []byte) (int, error) {
	out, err := decide("read")
	if err != nil {
		return 0, WrapError("READ", err)
	}
	if out == decision.Inject {
		return 0, NewInjectedError("READ", syscall.EIO, "injected read failure")
	}
	n, err := primitives.Read(fd, buf)
	if err != nil {
		return n, WrapError("READ", err)
	}
	return n, nil
}

// Write mirrors libc write.
func Write(fd int, buf []byte) (int, error) {
	out, err := decide("write")
	if err != nil {
		return 0, WrapError("WRITE", err)
	}
	if out == decision.Inject {
		return 0, NewInjectedError("WRITE", syscall.ENOSPC, "injected write failure")
	}
	n, err := primitives.Write(fd, buf)
	if err != nil {
		return n, WrapError("WRITE", err)
	}
	return n, nil
}

// Fopen mirrors libc fopen.
func Fopen(path, mode string) (uintptr, error) {
	out, err := decide("fopen")
	if err != nil {
		return 0, WrapError("FOPEN", err)
	}
	if out == decision.Inject {
		return 0, NewInjectedError("FOPEN", syscall.EACCES, "injected fopen failure")
	}

	stream, err := primitives.Fopen(path, mode)
	if err != nil {
		return 0, WrapError("FOPEN", err)
	}
	engineInstance().Tracker().Create(tracker.Streams, uint64(stream))
	observer.ObserveCreate(int(tracker.Streams))
	return stream, nil
}

// Fmemopen mirrors libc fmemopen.
func Fmemopen(buf []byte, mode string) (uintptr, error) {
	out, err := decide("fmemopen")
	if err != nil {
		return 0, WrapError("FMEMOPEN", err)
	}
	if out == decision.Inject {
		return 0, NewInjectedError("FMEMOPEN", syscall.ENOMEM, "injected fmemopen failure")
	}

	stream, err := primitives.Fmemopen(buf, mode)
	if err != nil {
		return 0, WrapError("FMEMOPEN", err)
	}
	engineInstance().Tracker().Create(tracker.Streams, uint64(stream))
	observer.ObserveCreate(int(tracker.Streams))
	return stream, nil
}

// Tmpfile mirrors libc tmpfile.
func Tmpfile() (uintptr, error) {
	out, err := decide("tmpfile")
	if err != nil {
		return 0, WrapError("TMPFILE", err)
	}
	if out == decision.Inject {
		return 0, NewInjectedError("TMPFILE", syscall.EROFS, "injected tmpfile failure")
	}

	stream, err := primitives.Tmpfile()
	if err != nil {
		return 0, WrapError("TMPFILE", err)
	}
	engineInstance().Tracker().Create(tracker.Streams, uint64(stream))
	observer.ObserveCreate(int(tracker.Streams))
	return stream, nil
}

// Fdopen mirrors libc fdopen: the new stream owns the descriptor from
// here on, so the fd leaves descriptor tracking; an fd the tracker
// never saw is reported through the fclose ignore filters, not the
// close ones, since fclose is what will eventually release it.
func Fdopen(fd int, mode string) (uintptr, error) {
	out, err := decide("fdopen")
	if err != nil {
		return 0, WrapError("FDOPEN", err)
	}
	if out == decision.Inject {
		return 0, NewInjectedError("FDOPEN", syscall.EPERM, "injected fdopen failure")
	}

	stream, err := primitives.Fdopen(fd, mode)
	if err != nil {
		return 0, WrapError("FDOPEN", err)
	}
	msg := fmt.Sprintf("Attempted to fdopen untracked file descriptor %d", fd)
	if tracked := engineInstance().Tracker().DestroyAs(tracker.Descriptors, uint64(fd), config.UntrackedFclose, msg); !tracked {
		observer.ObserveUntrackedRelease(int(tracker.Descriptors))
	}
	observer.ObserveDestroy(int(tracker.Descriptors))
	engineInstance().Tracker().Create(tracker.Streams, uint64(stream))
	observer.ObserveCreate(int(tracker.Streams))
	return stream, nil
}

// Freopen mirrors libc freopen: the old stream stops being tracked,
// the new one starts, same as Realloc's address handoff.
func Freopen(path, mode string, stream uintptr) (uintptr, error) {
	out, err := decide("freopen")
	if err != nil {
		return 0, WrapError("FREOPEN", err)
	}
	if out == decision.Inject {
		return 0, NewInjectedError("FREOPEN", syscall.EPERM, "injected freopen failure")
	}

	newStream, err := primitives.Freopen(path, mode, stream)
	if err != nil {
		return 0, WrapError("FREOPEN", err)
	}
	if stream != 0 {
		destroy(tracker.Streams, uint64(stream))
	}
	engineInstance().Tracker().Create(tracker.Streams, uint64(newStream))
	observer.ObserveCreate(int(tracker.Streams))
	return newStream, nil
}

// Fclose mirrors libc fclose with the same close-like pattern as
// Close: the stream is always closed and untracked first, and only
// then may the decision replace success with a synthetic failure.
func Fclose(stream uintptr) error {
	realErr := primitives.Fclose(stream)
	destroy(tracker.Streams, uint64(stream))
	observer.ObserveDestroy(int(tracker.Streams))
	if realErr != nil {
		return WrapError("FCLOSE", realErr)
	}

	out, err := decide("fclose")
	if err != nil {
		return WrapError("FCLOSE", err)
	}
	if out == decision.Inject {
		return NewInjectedError("FCLOSE", syscall.ENOSPC, "injected fclose failure")
	}
	return nil
}

// Fcloseall mirrors libc fcloseall: closes every stream this process
// still has open and drops every stream entry from tracking in one
// shot, as opposed to Fclose's one-at-a-time Destroy; close-like same
// as Fclose.
func Fcloseall() error {
	realErr := primitives.Fcloseall()
	engineInstance().Tracker().DropAll(tracker.Streams)
	if realErr != nil {
		return WrapError("FCLOSEALL", realErr)
	}

	out, err := decide("fcloseall")
	if err != nil {
		return WrapError("FCLOSEALL", err)
	}
	if out == decision.Inject {
		return NewInjectedError("FCLOSEALL", syscall.ENOSPC, "injected fcloseall failure")
	}
	return nil
}

// Fwrite mirrors libc fwrite; only the decision to fail is subject to
// injection, not stream tracking.
func Fwrite(data []byte, stream uintptr) (int, error) {
	out, err := decide("fwrite")
	if err != nil {
		return 0, WrapError("FWRITE", err)
	}
	if out == decision.Inject {
		return 0, NewInjectedError("FWRITE", syscall.ENOSPC, "injected fwrite failure")
	}
	n, err := primitives.Fwrite(data, stream)
	if err != nil {
		return n, WrapError("FWRITE", err)
	}
	return n, nil
}

// Fflush mirrors libc fflush.
func Fflush(stream uintptr) error {
	out, err := decide("fflush")
	if err != nil {
		return WrapError("FFLUSH", err)
	}
	if out == decision.Inject {
		return NewInjectedError("FFLUSH", syscall.ENOSPC, "injected fflush failure")
	}
	if err := primitives.Fflush(stream); err != nil {
		return WrapError("FFLUSH", err)
	}
	return nil
}
