// Package engine wires the fingerprinting, hash-table, database,
// reentrancy, decision, and tracker packages into the single
// process-wide object the public API and the cmd/failinjsh shared
// object both drive.
package engine

import (
	"fmt"

	"github.com/fenwick-labs/failinj/internal/config"
	"github.com/fenwick-labs/failinj/internal/database"
	"github.com/fenwick-labs/failinj/internal/decision"
	"github.com/fenwick-labs/failinj/internal/logging"
	"github.com/fenwick-labs/failinj/internal/reentrancy"
	"github.com/fenwick-labs/failinj/internal/tracker"
)

// Engine is the composition root: one instance per process, installed
// once at startup and consulted by every interposed wrapper.
type Engine struct {
	cfg *config.Config
	log *logging.Logger

	gate     *reentrancy.Gate
	store    *database.Store
	decision *decision.Engine
	tracker  *tracker.Tracker
	bug      *tracker.Bug

	leaks [3]int
}

// New constructs an Engine from a resolved Config. Loading the
// database's records is deferred to the decision engine's lazy load,
// but the file itself is opened now so a missing/unwritable path
// fails fast at startup rather than on first use.
func New(cfg *config.Config) (*Engine, error) {
	log := logging.New(nil, cfg.Tag)

	store, err := database.Open(cfg.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("engine: %w", err)
	}

	gate := &reentrancy.Gate{}
	bug := &tracker.Bug{}

	return &Engine{
		cfg:      cfg,
		log:      log,
		gate:     gate,
		store:    store,
		decision: decision.New(gate, log, store, cfg.SkipTokens),
		tracker:  tracker.New(gate, log, cfg, bug),
		bug:      bug,
	}, nil
}

// Gate exposes the reentrancy gate so the root package's wrappers can
// check it before doing any engine-adjacent work of their own.
func (e *Engine) Gate() *reentrancy.Gate { return e.gate }

// Decide runs the injection decision for a call site named name (used
// only in the injection banner).
func (e *Engine) Decide(name string) (decision.Outcome, error) {
	return e.decision.Decide(name)
}

// Tracker exposes the resource tracker to the root package's wrappers.
func (e *Engine) Tracker() *tracker.Tracker { return e.tracker }

// Shutdown raises the gate, scans all three tracking tables for
// survivors, and closes the database. It must run exactly once, at
// process exit, after the program under test has returned control.
func (e *Engine) Shutdown() {
	leave := e.gate.Enter()
	e.leaks = e.tracker.ScanLeaks()
	leave()

	e.store.Close()
}

// LeakCounts reports how many leaks Shutdown's scan found per
// category (indexed the same as tracker.Category). Meaningless before
// Shutdown has run.
func (e *Engine) LeakCounts() [3]int { return e.leaks }

// ExitCode computes the process exit code the caller should use in
// place of base: base is returned unchanged unless ScanLeaks (already
// run by Shutdown) found a bug, in which case the configured
// BUG_FOUND code takes over. base itself should already reflect
// EXIT_ERROR if the caller hit a fatal engine-internal error before
// reaching Shutdown at all.
func (e *Engine) ExitCode(base int) int {
	if e.bug.Found() {
		return e.cfg.BugFound
	}
	return base
}

// Run executes fn under the engine's supervision and returns the exit
// code the caller should use: fn's own return value, unless a bug was
// detected at shutdown.
func (e *Engine) Run(fn func() int) int {
	code := fn()
	e.Shutdown()
	return e.ExitCode(code)
}

// Snapshot is a point-in-time view of engine telemetry: counters a
// caller can log or export, not live state.
type Snapshot struct {
	KnownCallsites  int
	HasInjected     bool
	LiveAllocations int
	LiveDescriptors int
	LiveStreams     int
	BugFound        bool
}

// MetricsSnapshot captures the engine's current counters.
func (e *Engine) MetricsSnapshot() Snapshot {
	return Snapshot{
		KnownCallsites:  e.decision.KnownCallsiteCount(),
		HasInjected:     e.decision.HasInjected(),
		LiveAllocations: e.tracker.Len(tracker.Allocations),
		LiveDescriptors: e.tracker.Len(tracker.Descriptors),
		LiveStreams:     e.tracker.Len(tracker.Streams),
		BugFound:        e.bug.Found(),
	}
}
