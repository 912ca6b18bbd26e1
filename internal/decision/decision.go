// Package decision implements the injection decision: on each
// interposed call, fingerprint the stack, consult and persist the
// callsite database, and decide whether this call must be failed.
package decision

import (
	"sync/atomic"

	"github.com/fenwick-labs/failinj/internal/database"
	"github.com/fenwick-labs/failinj/internal/fingerprint"
	"github.com/fenwick-labs/failinj/internal/hashtable"
	"github.com/fenwick-labs/failinj/internal/logging"
	"github.com/fenwick-labs/failinj/internal/reentrancy"
)

// Outcome is what a caller must do with the call it is about to make.
type Outcome int

const (
	// Proceed means: call the underlying primitive normally.
	Proceed Outcome = iota
	// Inject means: synthesize the documented failure and never call
	// the underlying primitive.
	Inject
	// Skip means: the stack matched the skip set (or the coverage-dump
	// marker), so the call passes through without being fingerprinted
	// into the callsite table or counted against the run's injection.
	Skip
)

// Engine owns the callsite table, the backing database and the
// "already injected this run" latch. It is safe for concurrent use:
// every exported method serializes on hashtable.Mutex for the
// portion of its work that touches the table, same as the tracker.
type Engine struct {
	gate       *reentrancy.Gate
	log        *logging.Logger
	skipTokens []string

	callsites *hashtable.Table
	store     *database.Store

	loaded   atomic.Bool
	injected atomic.Bool
}

// New constructs a decision engine. The database is not loaded until
// the first Decide call.
func New(gate *reentrancy.Gate, log *logging.Logger, store *database.Store, skipTokens []string) *Engine {
	return &Engine{
		gate:       gate,
		log:        log,
		skipTokens: skipTokens,
		callsites:  hashtable.New(),
		store:      store,
	}
}

// ensureLoaded performs the lazy, one-time load of the database into
// the callsite table. Callers must already hold hashtable.Mutex and
// have the reentrancy gate raised.
func (e *Engine) ensureLoaded() error {
	if e.loaded.Load() {
		return nil
	}
	if err := e.store.Load(func(h fingerprint.Hash) {
		e.callsites.Insert(&hashtable.Entry{Key: uint64(h)})
	}); err != nil {
		return err
	}
	e.loaded.Store(true)
	return nil
}

// Decide runs the six-step algorithm: gate check, single-shot latch,
// lazy load, fingerprint, callsite insert, and (on first sight)
// database append plus injection banner. A stack matching the skip
// set returns Skip without touching the callsite table. name is used
// only for the banner text ("Injecting failure at: <name>").
func (e *Engine) Decide(name string) (Outcome, error) {
	if e.gate.Raised() {
		return Proceed, nil
	}
	if e.injected.Load() {
		return Proceed, nil
	}

	leave := e.gate.Enter()
	defer leave()

	hashtable.Mutex.Lock()
	defer hashtable.Mutex.Unlock()

	if err := e.ensureLoaded(); err != nil {
		return Proceed, err
	}

	out := fingerprint.Fingerprint(1, e.skipTokens)
	if out.Skip {
		return Skip, nil
	}

	entry := &hashtable.Entry{Key: uint64(out.Hash), Backtrace: out.Backtrace}
	if !e.callsites.Insert(entry) {
		// Known site: already in the database from a prior run, or
		// already seen earlier in this run.
		return Proceed, nil
	}

	if err := e.store.Append(out.Hash); err != nil {
		return Proceed, err
	}

	e.log.Banner("Injecting failure at: "+name, out.Backtrace)
	e.injected.Store(true)
	return Inject, nil
}

// KnownCallsiteCount returns the number of distinct callsites the
// engine has observed (loaded from the database plus any appended
// this run). Used by tests and by Engine.MetricsSnapshot.
func (e *Engine) KnownCallsiteCount() int {
	hashtable.Mutex.Lock()
	defer hashtable.Mutex.Unlock()
	return e.callsites.Len()
}

// HasInjected reports whether this process has already synthesized
// its one allotted failure.
func (e *Engine) HasInjected() bool {
	return e.injected.Load()
}
