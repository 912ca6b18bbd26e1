// Package reentrancy implements the process-wide reentrancy gate that
// keeps the engine's own bookkeeping from recursing into itself.
//
// The gate is a single flag, not a call-depth counter: the engine is
// structured so raising and lowering always bracket one serialized
// critical section (fingerprinting, table mutation, database I/O),
// which removes any need for goroutine-local state.
package reentrancy

import "sync/atomic"

// Gate is "we are currently executing inside the engine; subsequent
// wrapped calls must pass straight through to the real primitive."
type Gate struct {
	active atomic.Bool
}

// Enter raises the gate and returns a function that lowers it. Usage:
//
//	defer gate.Enter()()
func (g *Gate) Enter() func() {
	g.active.Store(true)
	return func() { g.active.Store(false) }
}

// Raised reports whether the gate is currently up.
func (g *Gate) Raised() bool {
	return g.active.Load()
}
