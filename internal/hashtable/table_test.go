package hashtable

import "testing"

func TestInsertAndContains(t *testing.T) {
	tbl := New()
	Mutex.Lock()
	defer Mutex.Unlock()

	if !tbl.Insert(&Entry{Key: 42}) {
		t.Fatal("expected first insert of a key to succeed")
	}
	if !tbl.Contains(42) {
		t.Error("expected table to contain inserted key")
	}
	if tbl.Insert(&Entry{Key: 42}) {
		t.Error("expected duplicate insert to fail")
	}
}

func TestPop(t *testing.T) {
	tbl := New()
	Mutex.Lock()
	defer Mutex.Unlock()

	tbl.Insert(&Entry{Key: 7, Backtrace: "trace"})
	e, ok := tbl.Pop(7)
	if !ok {
		t.Fatal("expected pop to find key")
	}
	if e.Backtrace != "trace" {
		t.Errorf("expected backtrace to survive pop, got %q", e.Backtrace)
	}
	if tbl.Contains(7) {
		t.Error("expected key to be gone after pop")
	}
	if _, ok := tbl.Pop(7); ok {
		t.Error("expected second pop of same key to fail")
	}
}

func TestCollisionChaining(t *testing.T) {
	tbl := New()
	Mutex.Lock()
	defer Mutex.Unlock()

	// Keys that collide in the same bucket (same low TableMask bits).
	k1 := uint64(5)
	k2 := k1 + uint64(len(tbl.buckets))

	tbl.Insert(&Entry{Key: k1})
	tbl.Insert(&Entry{Key: k2})

	if !tbl.Contains(k1) || !tbl.Contains(k2) {
		t.Fatal("expected both colliding keys to be present")
	}
	if tbl.Len() != 2 {
		t.Errorf("expected Len()=2, got %d", tbl.Len())
	}

	if _, ok := tbl.Pop(k1); !ok {
		t.Fatal("expected to pop k1")
	}
	if !tbl.Contains(k2) {
		t.Error("expected k2 to survive popping k1 from the same chain")
	}
}

func TestEach(t *testing.T) {
	tbl := New()
	Mutex.Lock()
	defer Mutex.Unlock()

	tbl.Insert(&Entry{Key: 1})
	tbl.Insert(&Entry{Key: 2})
	tbl.Insert(&Entry{Key: 3})

	seen := map[uint64]bool{}
	tbl.Each(func(e *Entry) { seen[e.Key] = true })

	for _, k := range []uint64{1, 2, 3} {
		if !seen[k] {
			t.Errorf("expected Each to visit key %d", k)
		}
	}
}
