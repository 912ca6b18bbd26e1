package decision

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/fenwick-labs/failinj/internal/database"
	"github.com/fenwick-labs/failinj/internal/logging"
	"github.com/fenwick-labs/failinj/internal/reentrancy"
)

func newTestEngine(t *testing.T) (*Engine, *bytes.Buffer) {
	t.Helper()
	store, err := database.Open(filepath.Join(t.TempDir(), "failinj.db"))
	if err != nil {
		t.Fatalf("database.Open: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	var buf bytes.Buffer
	log := logging.New(&buf, "FAILINJ")
	return New(&reentrancy.Gate{}, log, store, nil), &buf
}

func TestFirstCallInjectsOnce(t *testing.T) {
	e, buf := newTestEngine(t)

	out, err := e.Decide("malloc")
	if err != nil {
		t.Fatalf("Decide: %v", err)
	}
	if out != Inject {
		t.Fatalf("expected first call at a new site to inject, got %v", out)
	}
	if !bytes.Contains(buf.Bytes(), []byte("Injecting failure at: malloc")) {
		t.Errorf("expected injection banner, got %q", buf.String())
	}

	// A second call, even from the exact same site, must not inject
	// again: at most one synthetic failure per run.
	out2, err := e.Decide("malloc")
	if err != nil {
		t.Fatalf("Decide (2nd): %v", err)
	}
	if out2 != Proceed {
		t.Fatalf("expected second call in the same run to proceed, got %v", out2)
	}
}

func TestKnownSiteNeverInjectsAgain(t *testing.T) {
	path := filepath.Join(t.TempDir(), "failinj.db")

	// Run 1: cold database, call site injects.
	// Run 2: warm database from run 1, same call site must not inject.
	for run := 1; run <= 2; run++ {
		store, err := database.Open(path)
		if err != nil && run == 1 {
			t.Fatalf("Open: %v", err)
		}
		if err != nil {
			t.Fatalf("reopen: %v", err)
		}
		var buf bytes.Buffer
		e := New(&reentrancy.Gate{}, logging.New(&buf, "FAILINJ"), store, nil)
		out, _ := callAt(e, "open")
		store.Close()
		if run == 1 && out != Inject {
			t.Fatal("expected first run to inject")
		}
		if run == 2 && out != Proceed {
			t.Fatal("expected second run to proceed: site already known")
		}
	}
}

// callAt is the one Decide call both runs of TestKnownSiteNeverInjectsAgain
// go through; since the test reaches it from a single line of its loop,
// the two runs fingerprint identical call stacks.
func callAt(e *Engine, name string) (Outcome, error) {
	return e.Decide(name)
}

func TestSkipTokenSuppressesInjection(t *testing.T) {
	store, err := database.Open(filepath.Join(t.TempDir(), "failinj.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer store.Close()

	var buf bytes.Buffer
	e := New(&reentrancy.Gate{}, logging.New(&buf, "FAILINJ"), store, []string{"TestSkipTokenSuppressesInjection"})

	out, err := e.Decide("malloc")
	if err != nil {
		t.Fatalf("Decide: %v", err)
	}
	if out != Skip {
		t.Errorf("expected a stack matching the skip set to report Skip, got %v", out)
	}
	if e.HasInjected() {
		t.Error("expected HasInjected() to remain false")
	}
}

func TestKnownCallsiteCountGrows(t *testing.T) {
	e, _ := newTestEngine(t)
	if e.KnownCallsiteCount() != 0 {
		t.Fatalf("expected empty engine to report 0 known callsites")
	}
	e.Decide("malloc")
	if e.KnownCallsiteCount() != 1 {
		t.Errorf("expected one known callsite after first Decide, got %d", e.KnownCallsiteCount())
	}
}
