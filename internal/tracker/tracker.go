// Package tracker implements the three resource-tracking shadow
// tables (allocations, descriptors, streams): create/destroy pairing,
// untracked-release detection, and end-of-process leak scanning.
package tracker

import (
	"fmt"
	"strings"
	"sync/atomic"

	"github.com/fenwick-labs/failinj/internal/config"
	"github.com/fenwick-labs/failinj/internal/constants"
	"github.com/fenwick-labs/failinj/internal/fingerprint"
	"github.com/fenwick-labs/failinj/internal/hashtable"
	"github.com/fenwick-labs/failinj/internal/logging"
	"github.com/fenwick-labs/failinj/internal/reentrancy"
)

// Category identifies one of the three shadow tables.
type Category int

const (
	Allocations Category = iota
	Descriptors
	Streams
)

func (c Category) untrackedCategory() config.Category {
	switch c {
	case Allocations:
		return config.UntrackedFrees
	case Descriptors:
		return config.UntrackedCloses
	default:
		return config.UntrackedFclose
	}
}

func (c Category) leakCategory() config.Category {
	switch c {
	case Allocations:
		return config.MemLeaks
	case Descriptors:
		return config.FDLeaks
	default:
		return config.FileLeaks
	}
}

// untrackedMessage renders the banner text for a release of key from
// cat that the tracker never saw created: descriptors report in
// decimal ("file descriptor 88"), allocations and streams report the
// hex handle.
func (c Category) untrackedMessage(key uint64) string {
	switch c {
	case Allocations:
		return fmt.Sprintf("Attempted to free untracked pointer 0x%x", key)
	case Descriptors:
		return fmt.Sprintf("Attempted to close untracked file descriptor %d", key)
	default:
		return fmt.Sprintf("Attempted to fclose untracked stream 0x%x", key)
	}
}

// leakMessage renders the banner text for a surviving entry of cat
// found at shutdown.
func (c Category) leakMessage(key uint64) string {
	switch c {
	case Allocations:
		return fmt.Sprintf("Possible memory leak for 0x%x", key)
	case Descriptors:
		return fmt.Sprintf("Possible file descriptor leak for %d", key)
	default:
		return fmt.Sprintf("Possible unclosed file for 0x%x", key)
	}
}

// Bug is set once any leak or untracked release has been reported. It
// never clears; the shutdown hook consults it to override the exit
// code.
type Bug struct {
	found atomic.Bool
}

// Set raises the flag. Idempotent.
func (b *Bug) Set() { b.found.Store(true) }

// Found reports whether any bug has been recorded.
func (b *Bug) Found() bool { return b.found.Load() }

// Tracker owns the three shadow tables and reports bugs through log,
// consulting cfg's ignore filters before emitting anything.
type Tracker struct {
	gate *reentrancy.Gate
	log  *logging.Logger
	cfg  *config.Config
	bug  *Bug

	tables [3]*hashtable.Table
}

// New constructs a tracker with empty shadow tables.
func New(gate *reentrancy.Gate, log *logging.Logger, cfg *config.Config, bug *Bug) *Tracker {
	return &Tracker{
		gate: gate,
		log:  log,
		cfg:  cfg,
		bug:  bug,
		tables: [3]*hashtable.Table{
			hashtable.New(), hashtable.New(), hashtable.New(),
		},
	}
}

// Create records a successful resource creation. A no-op while the
// reentrancy gate is raised (the engine's own bookkeeping must not
// track its own resources). Duplicate keys are benign: the table
// keeps the earlier backtrace.
func (t *Tracker) Create(cat Category, key uint64) {
	if t.gate.Raised() {
		return
	}
	out := fingerprint.Fingerprint(1, nil)

	hashtable.Mutex.Lock()
	defer hashtable.Mutex.Unlock()
	t.tables[cat].Insert(&hashtable.Entry{Key: key, Backtrace: out.Backtrace})
}

// Destroy records a release of key from cat, reporting whether key was
// actually tracked. If key was never tracked, this is an untracked
// release: unless the corresponding ignore filter suppresses it, a bug
// report is emitted and the bug flag is set. A no-op (reporting tracked
// = true, so callers don't mistake suppression for a release) while the
// reentrancy gate is raised.
func (t *Tracker) Destroy(cat Category, key uint64) bool {
	return t.DestroyAs(cat, key, cat.untrackedCategory(), "")
}

// DestroyAs is Destroy with an explicit ignore-filter category and
// banner text, for release paths whose reporting class differs from
// the table's own: fdopen retires a descriptor from fd tracking but
// reports through the fclose filters, since the new stream owns the
// fd from that point on. An empty message falls back to the table's
// own untracked-release wording.
func (t *Tracker) DestroyAs(cat Category, key uint64, ignore config.Category, message string) bool {
	if t.gate.Raised() {
		return true
	}

	hashtable.Mutex.Lock()
	_, found := t.tables[cat].Pop(key)
	hashtable.Mutex.Unlock()

	if found {
		return true
	}

	out := fingerprint.Fingerprint(1, nil)
	if t.cfg.Ignores(ignore, out.Backtrace) {
		return false
	}

	t.bug.Set()
	if message == "" {
		message = cat.untrackedMessage(key)
	}
	t.log.Banner(message, out.Backtrace)
	return false
}

// ScanLeaks walks every surviving entry across all three tables and
// reports each as a leak unless the category's ignore filters
// (checked against the create-time backtrace) suppress it. Surviving
// entries are removed and freed as they are visited. Returns the
// number of leaks actually reported per category (indexed by
// Category), excluding anything an ignore filter suppressed. Must be
// called with the reentrancy gate already raised by the caller (the
// shutdown hook).
func (t *Tracker) ScanLeaks() [3]int {
	hashtable.Mutex.Lock()
	defer hashtable.Mutex.Unlock()

	var counts [3]int

	for cat, tbl := range t.tables {
		c := Category(cat)
		leakCat := c.leakCategory()

		var survivors []*hashtable.Entry
		tbl.Each(func(e *hashtable.Entry) { survivors = append(survivors, e) })

		for _, e := range survivors {
			if c == Allocations && isImplicitlyIgnoredAllocation(e.Backtrace) {
				tbl.Pop(e.Key)
				continue
			}
			if t.cfg.Ignores(leakCat, e.Backtrace) {
				tbl.Pop(e.Key)
				continue
			}
			t.bug.Set()
			t.log.Banner(c.leakMessage(e.Key), e.Backtrace)
			tbl.Pop(e.Key)
			counts[cat]++
		}
	}

	return counts
}

func isImplicitlyIgnoredAllocation(backtrace string) bool {
	return strings.Contains(backtrace, constants.ImplicitIgnoreFileDoAllocate) ||
		strings.Contains(backtrace, constants.ImplicitIgnoreFopen)
}

// DropAll discards every entry in cat without reporting untracked
// releases or leaks for them. Used by Fcloseall, which closes every
// open stream at once and has no per-stream key to Destroy against.
func (t *Tracker) DropAll(cat Category) {
	hashtable.Mutex.Lock()
	defer hashtable.Mutex.Unlock()
	t.tables[cat].Clear()
}

// Len reports how many entries cat currently holds. Used by tests and
// by Engine.MetricsSnapshot.
func (t *Tracker) Len(cat Category) int {
	hashtable.Mutex.Lock()
	defer hashtable.Mutex.Unlock()
	return t.tables[cat].Len()
}

// createWithBacktrace inserts key into cat's table with an explicit
// backtrace rather than one captured from the live call stack. Used by
// tests that need to exercise a specific synthetic backtrace against
// the ignore filters.
func (t *Tracker) createWithBacktrace(cat Category, key uint64, backtrace string) {
	hashtable.Mutex.Lock()
	defer hashtable.Mutex.Unlock()
	t.tables[cat].Insert(&hashtable.Entry{Key: key, Backtrace: backtrace})
}
