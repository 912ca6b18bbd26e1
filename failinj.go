// Package failinj implements deterministic, single-shot fault
// injection: wrap a program's own calls into a handful of libc-style
// primitives (allocation, descriptors, streams) and, exactly once per
// callsite ever observed across all runs, synthesize the documented
// failure instead of calling through. Every process also gets a
// shutdown-time scan for resources the program created but never
// released.
//
// Programs drive the engine through Run:
//
//	os.Exit(failinj.Run(func() int {
//	    return realMain()
//	}))
//
// The underlying primitives a wrapper falls through to (the genuine
// libc calls) are supplied separately: SetPrimitives installs them,
// defaulting to an in-memory fake so the package is usable without
// cgo. cmd/failinjsh installs the real cgo-backed implementation when
// built as a linked shared object.
package failinj

import (
	"sync"

	"github.com/fenwick-labs/failinj/internal/config"
	"github.com/fenwick-labs/failinj/internal/engine"
	"github.com/fenwick-labs/failinj/internal/logging"
	"github.com/fenwick-labs/failinj/internal/underlying"
)

var (
	mu         sync.Mutex
	active     *engine.Engine
	primitives underlying.Primitives = underlying.NewFake()
	tag        string                = DefaultTag
	observer   Observer              = NewMetricsObserver(NewMetrics())
)

// SetTag overrides the environment-variable announcement prefix
// before the engine is installed. Calling it after the first wrapper
// call or Run has no effect: the engine is built once, lazily, from
// whichever tag was active at that point.
func SetTag(t string) {
	mu.Lock()
	defer mu.Unlock()
	if t == "" {
		t = DefaultTag
	}
	tag = t
}

// SetPrimitives installs the implementation every wrapper falls
// through to once it decides not to inject. Must be called before the
// engine is installed (before the first wrapper call or Run);
// cmd/failinjsh calls this with the real cgo-backed System during its
// init.
func SetPrimitives(p underlying.Primitives) {
	mu.Lock()
	defer mu.Unlock()
	primitives = p
}

// SetObserver installs the Observer every wrapper reports events to,
// replacing the default in-package Metrics/MetricsObserver pair.
func SetObserver(o Observer) {
	mu.Lock()
	defer mu.Unlock()
	if o == nil {
		o = NoOpObserver{}
	}
	observer = o
}

// engineInstance lazily constructs the process-wide engine from the
// currently active tag. Safe for concurrent use; only the first
// caller pays the construction cost. A construction failure (the
// database file can't be opened) is an engine-internal error with
// nowhere graceful to go when the caller is a bare wrapper function
// invoked outside Run, so it panics; Run itself recovers from exactly
// this panic and turns it into the documented exit code instead of
// crashing the process.
func engineInstance() *engine.Engine {
	mu.Lock()
	defer mu.Unlock()
	if active != nil {
		return active
	}
	e, err := engine.New(config.Load(tag))
	if err != nil {
		panic(WrapError("INSTALL", err))
	}
	active = e
	return e
}

// Run executes fn under the engine's supervision: every wrapper call
// fn makes is subject to injection and tracking, and once fn returns,
// the shutdown scan for leaked resources runs before Run returns the
// final exit code (fn's own code, unless the scan found a bug). If
// the engine itself fails to construct, fn never runs at all: the
// error is logged and the configured exit-error code is returned. A
// database failure inside a wrapper call fn makes is handled the same
// way: it is logged and the exit-error code is returned.
func Run(fn func() int) (code int) {
	defer func() {
		if r := recover(); r == nil {
			return
		} else if ferr, ok := r.(*Error); ok {
			logging.New(nil, tag).Line("%s", ferr.Error())
			code = config.Load(tag).ExitError
		} else {
			panic(r)
		}
	}()

	e := engineInstance()
	out := e.Run(fn)

	leaks := e.LeakCounts()
	for cat, n := range leaks {
		for i := 0; i < n; i++ {
			observer.ObserveLeak(cat)
		}
	}

	return out
}

// Reset tears down the process-wide engine so the next wrapper call
// or Run rebuilds it from the environment. Only meaningful in tests
// that need isolation between scenarios within the same process;
// production programs call Run exactly once.
func Reset() {
	mu.Lock()
	defer mu.Unlock()
	if active != nil {
		active.Shutdown()
	}
	active = nil
}
