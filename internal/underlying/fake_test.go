package underlying

import "testing"

func TestFakeMallocFreeRoundTrip(t *testing.T) {
	f := NewFake()

	addr, err := f.Malloc(64)
	if err != nil {
		t.Fatalf("Malloc: %v", err)
	}
	if addr == 0 {
		t.Fatal("expected non-zero address")
	}
	if f.MallocCalls != 1 {
		t.Errorf("MallocCalls = %d, want 1", f.MallocCalls)
	}

	f.Free(addr)
	if f.FreeCalls != 1 {
		t.Errorf("FreeCalls = %d, want 1", f.FreeCalls)
	}
}

func TestFakeReallocPreservesContent(t *testing.T) {
	f := NewFake()

	addr, err := f.Malloc(8)
	if err != nil {
		t.Fatalf("Malloc: %v", err)
	}
	f.heap[addr].WriteAt([]byte("abcdefgh"), 0)

	newAddr, err := f.Realloc(addr, 16)
	if err != nil {
		t.Fatalf("Realloc: %v", err)
	}

	got := make([]byte, 8)
	f.heap[newAddr].ReadAt(got, 0)
	if string(got) != "abcdefgh" {
		t.Errorf("Realloc lost content: got %q", got)
	}
	if _, stillThere := f.heap[addr]; stillThere {
		t.Error("expected Realloc to remove the old allocation")
	}
}

func TestFakeOpenWriteReadClose(t *testing.T) {
	f := NewFake()

	fd, err := f.Open("/tmp/x", 0, 0o644)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	if _, err := f.Write(fd, []byte("payload")); err != nil {
		t.Fatalf("Write: %v", err)
	}

	got := make([]byte, 7)
	if _, err := f.fds[fd].ReadAt(got, 0); err != nil {
		t.Fatalf("ReadAt: %v", err)
	}
	if string(got) != "payload" {
		t.Errorf("got %q, want %q", got, "payload")
	}

	if err := f.Close(fd); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if _, err := f.Write(fd, []byte("x")); err == nil {
		t.Error("expected write to a closed fd to fail")
	}
}

func TestFakeCloseUnknownFDFails(t *testing.T) {
	f := NewFake()
	if err := f.Close(999); err == nil {
		t.Error("expected Close of an unopened fd to fail")
	}
}

func TestFakeFopenSeesSeededContent(t *testing.T) {
	f := NewFake()
	f.PutFile("/etc/seed", []byte("seeded"))

	stream, err := f.Fopen("/etc/seed", "r")
	if err != nil {
		t.Fatalf("Fopen: %v", err)
	}

	got := make([]byte, 6)
	f.streams[stream].buf.ReadAt(got, 0)
	if string(got) != "seeded" {
		t.Errorf("got %q, want %q", got, "seeded")
	}
}

func TestFakeFmemopenWrapsGivenBuffer(t *testing.T) {
	f := NewFake()
	backing := make([]byte, 4)

	stream, err := f.Fmemopen(backing, "w")
	if err != nil {
		t.Fatalf("Fmemopen: %v", err)
	}
	if _, err := f.Fwrite([]byte("Q"), stream); err != nil {
		t.Fatalf("Fwrite: %v", err)
	}
	if backing[0] != 'Q' {
		t.Error("expected Fmemopen to write through to the caller's buffer")
	}
}

func TestFakeFcloseallClosesEverything(t *testing.T) {
	f := NewFake()
	s1, _ := f.Tmpfile()
	s2, _ := f.Tmpfile()

	if err := f.Fcloseall(); err != nil {
		t.Fatalf("Fcloseall: %v", err)
	}
	if err := f.Fclose(s1); err == nil {
		t.Error("expected s1 to already be closed")
	}
	if err := f.Fclose(s2); err == nil {
		t.Error("expected s2 to already be closed")
	}
}

func TestFakeImplementsPrimitives(t *testing.T) {
	var _ Primitives = NewFake()
}
