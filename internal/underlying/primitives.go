// Package underlying defines the libc primitives the engine decides
// whether to bypass, and the two implementations that satisfy that
// contract: System, genuine cgo calls into libc for the linked shared
// object, and Fake, an in-memory stand-in for tests.
package underlying

// Primitives is the set of operations a loader-interposed primitive
// delegates to once the engine has decided to proceed normally. Every
// method mirrors one real libc symbol; streams and allocations are
// addressed by the same uintptr a real pointer would occupy, so the
// engine's tracking tables can use it as the key regardless of which
// implementation is in effect.
type Primitives interface {
	Malloc(size uintptr) (uintptr, error)
	Calloc(nmemb, size uintptr) (uintptr, error)
	Realloc(ptr uintptr, size uintptr) (uintptr, error)
	Reallocarray(ptr uintptr, nmemb, size uintptr) (uintptr, error)
	Free(ptr uintptr)

	Open(path string, flags int, mode uint32) (fd int, err error)
	Openat(dirfd int, path string, flags int, mode uint32) (fd int, err error)
	Creat(path string, mode uint32) (fd int, err error)
	Close(fd int) error
	Read(fd int, buf []byte) (int, error)
	Write(fd int, buf []byte) (int, error)

	Fopen(path, mode string) (stream uintptr, err error)
	Fmemopen(buf []byte, mode string) (stream uintptr, err error)
	Tmpfile() (stream uintptr, err error)
	Fdopen(fd int, mode string) (stream uintptr, err error)
	Freopen(path, mode string, stream uintptr) (uintptr, error)
	Fclose(stream uintptr) error
	Fcloseall() error
	Fwrite(data []byte, stream uintptr) (int, error)
	Fflush(stream uintptr) error
}
