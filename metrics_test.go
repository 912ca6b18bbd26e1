package failinj

import (
	"testing"
	"time"
)

func TestMetricsDecisions(t *testing.T) {
	m := NewMetrics()

	snap := m.Snapshot()
	if snap.Decisions != 0 {
		t.Errorf("expected 0 initial decisions, got %d", snap.Decisions)
	}

	m.RecordDecision(true, false)
	m.RecordDecision(false, false)
	m.RecordDecision(false, true)

	snap = m.Snapshot()
	if snap.Decisions != 3 {
		t.Errorf("Decisions = %d, want 3", snap.Decisions)
	}
	if snap.Injections != 1 {
		t.Errorf("Injections = %d, want 1", snap.Injections)
	}
	if snap.SkippedCalls != 1 {
		t.Errorf("SkippedCalls = %d, want 1", snap.SkippedCalls)
	}
}

func TestMetricsResourceLifecycle(t *testing.T) {
	m := NewMetrics()

	m.RecordCreate(0)
	m.RecordCreate(0)
	m.RecordDestroy(0)
	m.RecordUntrackedRelease(1)
	m.RecordLeak(2)

	snap := m.Snapshot()
	if snap.Creates[0] != 2 {
		t.Errorf("Creates[0] = %d, want 2", snap.Creates[0])
	}
	if snap.Destroys[0] != 1 {
		t.Errorf("Destroys[0] = %d, want 1", snap.Destroys[0])
	}
	if snap.UntrackedReleases[1] != 1 {
		t.Errorf("UntrackedReleases[1] = %d, want 1", snap.UntrackedReleases[1])
	}
	if snap.Leaks[2] != 1 {
		t.Errorf("Leaks[2] = %d, want 1", snap.Leaks[2])
	}
	if snap.TotalBugs != 2 {
		t.Errorf("TotalBugs = %d, want 2", snap.TotalBugs)
	}
}

func TestMetricsUptime(t *testing.T) {
	m := NewMetrics()
	time.Sleep(10 * time.Millisecond)

	snap := m.Snapshot()
	if snap.UptimeNs < 10*1000000 {
		t.Errorf("expected uptime >= 10ms, got %d ns", snap.UptimeNs)
	}

	m.Stop()
	time.Sleep(5 * time.Millisecond)

	snap2 := m.Snapshot()
	if snap2.UptimeNs > snap.UptimeNs+2*1000000+15*1000000 {
		t.Errorf("uptime increased too much after stop: %d -> %d", snap.UptimeNs, snap2.UptimeNs)
	}
}

func TestMetricsReset(t *testing.T) {
	m := NewMetrics()
	m.RecordDecision(true, false)
	m.RecordCreate(0)

	snap := m.Snapshot()
	if snap.Decisions == 0 {
		t.Fatal("expected decisions recorded before reset")
	}

	m.Reset()

	snap = m.Snapshot()
	if snap.Decisions != 0 || snap.Creates[0] != 0 {
		t.Errorf("expected zeroed metrics after reset, got %+v", snap)
	}
}

func TestObserverForwardsToMetrics(t *testing.T) {
	observer := &NoOpObserver{}
	observer.ObserveDecision(true, false)
	observer.ObserveCreate(0)
	observer.ObserveLeak(1)

	m := NewMetrics()
	metricsObserver := NewMetricsObserver(m)

	metricsObserver.ObserveDecision(true, false)
	metricsObserver.ObserveCreate(1)
	metricsObserver.ObserveDestroy(1)
	metricsObserver.ObserveUntrackedRelease(2)
	metricsObserver.ObserveLeak(0)

	snap := m.Snapshot()
	if snap.Injections != 1 {
		t.Errorf("Injections = %d, want 1", snap.Injections)
	}
	if snap.Creates[1] != 1 || snap.Destroys[1] != 1 {
		t.Errorf("expected category 1 create/destroy recorded, got %+v", snap)
	}
	if snap.UntrackedReleases[2] != 1 {
		t.Errorf("expected category 2 untracked release recorded, got %+v", snap)
	}
	if snap.Leaks[0] != 1 {
		t.Errorf("expected category 0 leak recorded, got %+v", snap)
	}
}
