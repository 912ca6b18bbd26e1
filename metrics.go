package failinj

import (
	"sync/atomic"
	"time"
)

// Metrics tracks performance and operational statistics for one
// engine instance over its process lifetime.
type Metrics struct {
	// Decision counters
	Decisions       atomic.Uint64 // Total calls routed through Decide
	Injections      atomic.Uint64 // Calls where Decide returned Inject
	SkippedCalls    atomic.Uint64 // Calls fingerprinted into a skip-set frame
	DatabaseAppends atomic.Uint64 // New callsites written to the database

	// Resource lifecycle counters
	Creates  [3]atomic.Uint64 // Allocations/Descriptors/Streams created
	Destroys [3]atomic.Uint64 // ...released through a wrapper, tracked or not

	// Bug counters
	UntrackedReleases [3]atomic.Uint64 // Releases of a key never tracked
	Leaks             [3]atomic.Uint64 // Survivors found at shutdown scan

	// Lifecycle
	StartTime atomic.Int64 // Process start timestamp (UnixNano)
	StopTime  atomic.Int64 // Shutdown timestamp (UnixNano)
}

// NewMetrics creates a new metrics instance.
func NewMetrics() *Metrics {
	m := &Metrics{}
	m.StartTime.Store(time.Now().UnixNano())
	return m
}

// RecordDecision records one Decide call and whether it injected.
func (m *Metrics) RecordDecision(injected, skipped bool) {
	m.Decisions.Add(1)
	if injected {
		m.Injections.Add(1)
	}
	if skipped {
		m.SkippedCalls.Add(1)
	}
}

// RecordDatabaseAppend records a newly observed callsite being
// persisted.
func (m *Metrics) RecordDatabaseAppend() {
	m.DatabaseAppends.Add(1)
}

// RecordCreate records a resource creation for category cat (0:
// allocations, 1: descriptors, 2: streams).
func (m *Metrics) RecordCreate(cat int) {
	m.Creates[cat].Add(1)
}

// RecordDestroy records a resource release for category cat, whether
// or not the tracker saw the key created; untracked releases are also
// counted by RecordUntrackedRelease.
func (m *Metrics) RecordDestroy(cat int) {
	m.Destroys[cat].Add(1)
}

// RecordUntrackedRelease records a release of a key the tracker never
// saw created, for category cat.
func (m *Metrics) RecordUntrackedRelease(cat int) {
	m.UntrackedReleases[cat].Add(1)
}

// RecordLeak records a surviving resource found at the shutdown scan,
// for category cat.
func (m *Metrics) RecordLeak(cat int) {
	m.Leaks[cat].Add(1)
}

// Stop marks the engine as shut down.
func (m *Metrics) Stop() {
	m.StopTime.Store(time.Now().UnixNano())
}

// MetricsSnapshot is a point-in-time view of Metrics.
type MetricsSnapshot struct {
	Decisions       uint64
	Injections      uint64
	SkippedCalls    uint64
	DatabaseAppends uint64

	Creates  [3]uint64
	Destroys [3]uint64

	UntrackedReleases [3]uint64
	Leaks             [3]uint64

	TotalBugs uint64
	UptimeNs  uint64
}

// Snapshot creates a point-in-time snapshot of metrics.
func (m *Metrics) Snapshot() MetricsSnapshot {
	snap := MetricsSnapshot{
		Decisions:       m.Decisions.Load(),
		Injections:      m.Injections.Load(),
		SkippedCalls:    m.SkippedCalls.Load(),
		DatabaseAppends: m.DatabaseAppends.Load(),
	}

	for i := 0; i < 3; i++ {
		snap.Creates[i] = m.Creates[i].Load()
		snap.Destroys[i] = m.Destroys[i].Load()
		snap.UntrackedReleases[i] = m.UntrackedReleases[i].Load()
		snap.Leaks[i] = m.Leaks[i].Load()
		snap.TotalBugs += snap.UntrackedReleases[i] + snap.Leaks[i]
	}

	startTime := m.StartTime.Load()
	stopTime := m.StopTime.Load()
	if stopTime > 0 {
		snap.UptimeNs = uint64(stopTime - startTime)
	} else {
		snap.UptimeNs = uint64(time.Now().UnixNano() - startTime)
	}

	return snap
}

// Reset resets all metrics counters. Useful for testing.
func (m *Metrics) Reset() {
	m.Decisions.Store(0)
	m.Injections.Store(0)
	m.SkippedCalls.Store(0)
	m.DatabaseAppends.Store(0)
	for i := 0; i < 3; i++ {
		m.Creates[i].Store(0)
		m.Destroys[i].Store(0)
		m.UntrackedReleases[i].Store(0)
		m.Leaks[i].Store(0)
	}
	m.StartTime.Store(time.Now().UnixNano())
	m.StopTime.Store(0)
}

// Observer allows pluggable metrics collection, observing the same
// events Metrics itself records.
type Observer interface {
	ObserveDecision(injected, skipped bool)
	ObserveDatabaseAppend()
	ObserveCreate(cat int)
	ObserveDestroy(cat int)
	ObserveUntrackedRelease(cat int)
	ObserveLeak(cat int)
}

// NoOpObserver is a no-op implementation of Observer.
type NoOpObserver struct{}

func (NoOpObserver) ObserveDecision(bool, bool)  {}
func (NoOpObserver) ObserveDatabaseAppend()      {}
func (NoOpObserver) ObserveCreate(int)           {}
func (NoOpObserver) ObserveDestroy(int)          {}
func (NoOpObserver) ObserveUntrackedRelease(int) {}
func (NoOpObserver) ObserveLeak(int)             {}

// MetricsObserver implements Observer by forwarding to a Metrics
// instance.
type MetricsObserver struct {
	metrics *Metrics
}

// NewMetricsObserver creates an observer that records to the given
// metrics.
func NewMetricsObserver(m *Metrics) *MetricsObserver {
	return &MetricsObserver{metrics: m}
}

func (o *MetricsObserver) ObserveDecision(injected, skipped bool) {
	o.metrics.RecordDecision(injected, skipped)
}

func (o *MetricsObserver) ObserveDatabaseAppend() {
	o.metrics.RecordDatabaseAppend()
}

func (o *MetricsObserver) ObserveCreate(cat int) {
	o.metrics.RecordCreate(cat)
}

func (o *MetricsObserver) ObserveDestroy(cat int) {
	o.metrics.RecordDestroy(cat)
}

func (o *MetricsObserver) ObserveUntrackedRelease(cat int) {
	o.metrics.RecordUntrackedRelease(cat)
}

func (o *MetricsObserver) ObserveLeak(cat int) {
	o.metrics.RecordLeak(cat)
}

// Compile-time interface check
var _ Observer = (*MetricsObserver)(nil)
var _ Observer = (*NoOpObserver)(nil)
