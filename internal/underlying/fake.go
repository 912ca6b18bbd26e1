package underlying

import (
	"fmt"
	"sync"

	"github.com/fenwick-labs/failinj/internal/membuf"
)

// Fake is an in-memory stand-in for Primitives: allocations and
// streams are backed by membuf buffers and files by an in-process map,
// never the real heap or filesystem. No real resources, just call
// tracking and an in-memory byte store.
type Fake struct {
	mu sync.Mutex

	nextAddr uintptr
	heap     map[uintptr]*membuf.Buffer
	streams  map[uintptr]*fakeStream
	fds      map[int]*membuf.Buffer
	nextFD   int
	files    map[string][]byte

	// Method call tracking for test assertions.
	MallocCalls int
	FreeCalls   int
	OpenCalls   int
	CloseCalls  int
	FopenCalls  int
	FcloseCalls int
}

type fakeStream struct {
	buf  *membuf.Buffer
	path string
}

// NewFake constructs an empty fake primitives backend.
func NewFake() *Fake {
	return &Fake{
		nextAddr: 0x1000,
		heap:     make(map[uintptr]*membuf.Buffer),
		streams:  make(map[uintptr]*fakeStream),
		fds:      make(map[int]*membuf.Buffer),
		nextFD:   3,
		files:    make(map[string][]byte),
	}
}

func (f *Fake) allocAddr() uintptr {
	addr := f.nextAddr
	f.nextAddr += 16
	return addr
}

func (f *Fake) Malloc(size uintptr) (uintptr, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.MallocCalls++

	addr := f.allocAddr()
	f.heap[addr] = membuf.New(int(size))
	return addr, nil
}

func (f *Fake) Calloc(nmemb, size uintptr) (uintptr, error) {
	return f.Malloc(nmemb * size)
}

func (f *Fake) Realloc(ptr uintptr, size uintptr) (uintptr, error) {
	f.mu.Lock()
	old, had := f.heap[ptr]
	f.mu.Unlock()

	newAddr, err := f.Malloc(size)
	if err != nil {
		return 0, err
	}
	if had {
		f.mu.Lock()
		n := old.Len()
		if int64(size) < n {
			n = int64(size)
		}
		buf := make([]byte, n)
		old.ReadAt(buf, 0)
		f.heap[newAddr].WriteAt(buf, 0)
		delete(f.heap, ptr)
		f.mu.Unlock()
	}
	return newAddr, nil
}

func (f *Fake) Reallocarray(ptr uintptr, nmemb, size uintptr) (uintptr, error) {
	return f.Realloc(ptr, nmemb*size)
}

func (f *Fake) Free(ptr uintptr) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.FreeCalls++
	delete(f.heap, ptr)
}

func (f *Fake) Open(path string, flags int, mode uint32) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.OpenCalls++

	fd := f.nextFD
	f.nextFD++
	b := membuf.NewGrowable()
	if content, ok := f.files[path]; ok && len(content) > 0 {
		b.WriteAt(append([]byte(nil), content...), 0)
	}
	f.fds[fd] = b
	return fd, nil
}

func (f *Fake) Openat(dirfd int, path string, flags int, mode uint32) (int, error) {
	return f.Open(path, flags, mode)
}

func (f *Fake) Creat(path string, mode uint32) (int, error) {
	return f.Open(path, 0, mode)
}

func (f *Fake) Close(fd int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.CloseCalls++
	if _, ok := f.fds[fd]; !ok {
		return fmt.Errorf("close: bad file descriptor %d", fd)
	}
	delete(f.fds, fd)
	return nil
}

func (f *Fake) Read(fd int, buf []byte) (int, error) {
	f.mu.Lock()
	b, ok := f.fds[fd]
	f.mu.Unlock()
	if !ok {
		return 0, fmt.Errorf("read: bad file descriptor %d", fd)
	}
	return b.Read(buf)
}

func (f *Fake) Write(fd int, buf []byte) (int, error) {
	f.mu.Lock()
	b, ok := f.fds[fd]
	f.mu.Unlock()
	if !ok {
		return 0, fmt.Errorf("write: bad file descriptor %d", fd)
	}
	return b.Write(buf)
}

func (f *Fake) Fopen(path, mode string) (uintptr, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.FopenCalls++

	addr := f.allocAddr()
	b := membuf.NewGrowable()
	if content := f.files[path]; len(content) > 0 {
		b.WriteAt(append([]byte(nil), content...), 0)
	}
	f.streams[addr] = &fakeStream{buf: b, path: path}
	return addr, nil
}

func (f *Fake) Fmemopen(buf []byte, mode string) (uintptr, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	addr := f.allocAddr()
	f.streams[addr] = &fakeStream{buf: membuf.Wrap(buf), path: "<memory>"}
	return addr, nil
}

func (f *Fake) Tmpfile() (uintptr, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	addr := f.allocAddr()
	f.streams[addr] = &fakeStream{buf: membuf.NewGrowable(), path: "<tmpfile>"}
	return addr, nil
}

func (f *Fake) Fdopen(fd int, mode string) (uintptr, error) {
	f.mu.Lock()
	b, ok := f.fds[fd]
	if !ok {
		f.mu.Unlock()
		return 0, fmt.Errorf("fdopen: bad file descriptor %d", fd)
	}
	addr := f.allocAddr()
	f.streams[addr] = &fakeStream{buf: b, path: fmt.Sprintf("<fd %d>", fd)}
	f.mu.Unlock()
	return addr, nil
}

func (f *Fake) Freopen(path, mode string, stream uintptr) (uintptr, error) {
	f.mu.Lock()
	delete(f.streams, stream)
	f.mu.Unlock()
	return f.Fopen(path, mode)
}

func (f *Fake) Fclose(stream uintptr) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.FcloseCalls++
	if _, ok := f.streams[stream]; !ok {
		return fmt.Errorf("fclose: bad stream 0x%x", stream)
	}
	delete(f.streams, stream)
	return nil
}

func (f *Fake) Fcloseall() error {
	f.mu.Lock()
	addrs := make([]uintptr, 0, len(f.streams))
	for addr := range f.streams {
		addrs = append(addrs, addr)
	}
	f.streams = make(map[uintptr]*fakeStream)
	f.mu.Unlock()
	f.FcloseCalls += len(addrs)
	return nil
}

func (f *Fake) Fwrite(data []byte, stream uintptr) (int, error) {
	f.mu.Lock()
	s, ok := f.streams[stream]
	f.mu.Unlock()
	if !ok {
		return 0, fmt.Errorf("fwrite: bad stream 0x%x", stream)
	}
	return s.buf.Write(data)
}

func (f *Fake) Fflush(stream uintptr) error {
	f.mu.Lock()
	_, ok := f.streams[stream]
	f.mu.Unlock()
	if !ok {
		return fmt.Errorf("fflush: bad stream 0x%x", stream)
	}
	return nil
}

// PutFile seeds the fake filesystem so a later Open/Fopen observes
// existing content. Used only by tests.
func (f *Fake) PutFile(path string, content []byte) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.files[path] = content
}

var _ Primitives = (*Fake)(nil)
