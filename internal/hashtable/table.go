// Package hashtable implements the fixed-size, chained-bucket table
// fabric shared by the callsite set and the three resource-tracking
// tables. A single table never holds two entries with the same key;
// all four logical tables in the engine are guarded by one process-wide
// mutex (Mutex). Determinism matters more than throughput here: no
// resize, no rehashing, no per-bucket locking.
package hashtable

import (
	"sync"

	"github.com/fenwick-labs/failinj/internal/constants"
)

// Mutex serializes every Table operation across all four logical
// tables in the engine (callsites, allocations, descriptors, streams).
// A single global lock is deliberate: the path length of a table
// operation is dwarfed by the stack walk every intercepted call
// already pays for, so contention here is not the bottleneck.
var Mutex sync.Mutex

// Entry is one hash-table record. Backtrace is empty for the
// callsite-membership table, which only tracks presence.
type Entry struct {
	Key       uint64
	Backtrace string
	next      *Entry
}

// Table is a fixed-width open-hash-chained bucket array.
type Table struct {
	buckets [constants.TableWidth]*Entry
	count   int
}

// New returns an empty table.
func New() *Table {
	return &Table{}
}

func bucketFor(key uint64) uint64 {
	return key & constants.TableMask
}

// Insert adds an entry, returning false without modifying the table if
// an entry with the same key is already present. On true the table
// takes ownership of entry.
//
// Callers must hold Mutex.
func (t *Table) Insert(entry *Entry) bool {
	idx := bucketFor(entry.Key)
	for e := t.buckets[idx]; e != nil; e = e.next {
		if e.Key == entry.Key {
			return false
		}
	}
	entry.next = t.buckets[idx]
	t.buckets[idx] = entry
	t.count++
	return true
}

// Contains reports whether key is present, without removing it.
//
// Callers must hold Mutex.
func (t *Table) Contains(key uint64) bool {
	idx := bucketFor(key)
	for e := t.buckets[idx]; e != nil; e = e.next {
		if e.Key == key {
			return true
		}
	}
	return false
}

// Pop removes and returns the entry for key, or (nil, false) if absent.
//
// Callers must hold Mutex.
func (t *Table) Pop(key uint64) (*Entry, bool) {
	idx := bucketFor(key)
	var prev *Entry
	for e := t.buckets[idx]; e != nil; e = e.next {
		if e.Key == key {
			if prev == nil {
				t.buckets[idx] = e.next
			} else {
				prev.next = e.next
			}
			e.next = nil
			t.count--
			return e, true
		}
		prev = e
	}
	return nil, false
}

// Len returns the number of entries currently stored.
//
// Callers must hold Mutex.
func (t *Table) Len() int {
	return t.count
}

// Each calls fn once per surviving entry, in bucket order. fn must not
// mutate the table.
//
// Callers must hold Mutex.
func (t *Table) Each(fn func(*Entry)) {
	for _, head := range t.buckets {
		for e := head; e != nil; e = e.next {
			fn(e)
		}
	}
}

// Clear empties every bucket, discarding all entries without reporting
// them through any caller's bug path.
//
// Callers must hold Mutex.
func (t *Table) Clear() {
	for i := range t.buckets {
		t.buckets[i] = nil
	}
	t.count = 0
}
