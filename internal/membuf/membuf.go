// Package membuf provides a sharded, lock-striped in-memory byte
// buffer. It backs the fake Primitives implementation's fmemopen,
// tmpfile, and fopen streams, and the fake heap's allocations, so
// tests never touch the real filesystem or libc allocator.
package membuf

import (
	"fmt"
	"sync"
)

// ShardSize bounds how many bytes a single mutex protects. Mirrors the
// memory backend's sharding: keep parallel access cheap by not
// serializing an entire buffer behind one lock.
const ShardSize = 64 * 1024

// Buffer is a byte region with per-shard locking and an independent
// read/write cursor, standing in for a libc FILE* stream or a heap
// allocation. Fixed-capacity by default (malloc's size, fmemopen's
// caller-owned backing slice); growable buffers (tmpfile, which has no
// caller-supplied bound) extend their capacity on a write past the end
// instead of rejecting it.
type Buffer struct {
	mu       sync.Mutex // guards growth; shard locks below still cover steady-state reads/writes
	data     []byte
	cursor   int64
	shards   []sync.RWMutex
	growable bool
}

// New allocates a fixed-capacity buffer of the given size, zero-filled.
func New(capacity int) *Buffer {
	if capacity < 0 {
		capacity = 0
	}
	return &Buffer{data: make([]byte, capacity), shards: shardsFor(capacity)}
}

// NewGrowable allocates an initially-empty buffer that extends its
// capacity on a write past the current end, modeling tmpfile's
// unbounded-on-disk growth rather than a fixed-size region.
func NewGrowable() *Buffer {
	return &Buffer{growable: true, shards: shardsFor(0)}
}

// Wrap adapts an existing slice (the caller-supplied fmemopen buffer)
// without copying it. Fixed-capacity: fmemopen streams never grow.
func Wrap(b []byte) *Buffer {
	return &Buffer{data: b, shards: shardsFor(len(b))}
}

func shardsFor(size int) []sync.RWMutex {
	numShards := (size + ShardSize - 1) / ShardSize
	if numShards == 0 {
		numShards = 1
	}
	return make([]sync.RWMutex, numShards)
}

func (b *Buffer) shardRange(off, length int64) (start, end int) {
	if length <= 0 {
		length = 1
	}
	start = int(off / ShardSize)
	end = int((off + length - 1) / ShardSize)
	if end >= len(b.shards) {
		end = len(b.shards) - 1
	}
	if start > end {
		start = end
	}
	return start, end
}

// Len reports the buffer's current capacity; a growable buffer's
// capacity increases as writes extend it.
func (b *Buffer) Len() int64 { return int64(len(b.data)) }

// ReadAt implements io.ReaderAt semantics over the shard-locked region.
func (b *Buffer) ReadAt(p []byte, off int64) (int, error) {
	if off >= int64(len(b.data)) {
		return 0, nil
	}
	available := int64(len(b.data)) - off
	if int64(len(p)) > available {
		p = p[:available]
	}

	start, end := b.shardRange(off, int64(len(p)))
	for i := start; i <= end; i++ {
		b.shards[i].RLock()
	}
	n := copy(p, b.data[off:off+int64(len(p))])
	for i := start; i <= end; i++ {
		b.shards[i].RUnlock()
	}
	return n, nil
}

// WriteAt implements io.WriterAt semantics. A fixed-capacity buffer
// never grows (fmemopen streams): it rejects a write that starts at
// or past its end, and truncates one that runs past its end, returning
// the short count. A growable buffer (tmpfile) extends its backing
// slice instead.
func (b *Buffer) WriteAt(p []byte, off int64) (int, error) {
	need := off + int64(len(p))
	if need > int64(len(b.data)) {
		if !b.growable {
			if off >= int64(len(b.data)) {
				return 0, fmt.Errorf("membuf: write past end of buffer")
			}
			available := int64(len(b.data)) - off
			p = p[:available]
		} else {
			b.mu.Lock()
			if need > int64(len(b.data)) {
				grown := make([]byte, need)
				copy(grown, b.data)
				b.data = grown
				b.shards = shardsFor(len(b.data))
			}
			b.mu.Unlock()
		}
	}

	start, end := b.shardRange(off, int64(len(p)))
	for i := start; i <= end; i++ {
		b.shards[i].Lock()
	}
	n := copy(b.data[off:off+int64(len(p))], p)
	for i := start; i <= end; i++ {
		b.shards[i].Unlock()
	}
	return n, nil
}

// Read advances the buffer's own cursor, for callers modeling a
// stream rather than doing positioned I/O directly.
func (b *Buffer) Read(p []byte) (int, error) {
	n, err := b.ReadAt(p, b.cursor)
	b.cursor += int64(n)
	return n, err
}

// Write advances the buffer's own cursor.
func (b *Buffer) Write(p []byte) (int, error) {
	n, err := b.WriteAt(p, b.cursor)
	b.cursor += int64(n)
	return n, err
}

// Bytes returns the live backing slice. Callers must not retain it
// past the buffer's lifetime in a context where shards are still
// being written concurrently.
func (b *Buffer) Bytes() []byte { return b.data }
