package membuf

import "testing"

func TestWriteAtThenReadAt(t *testing.T) {
	b := New(128)

	n, err := b.WriteAt([]byte("hello"), 10)
	if err != nil {
		t.Fatalf("WriteAt: %v", err)
	}
	if n != 5 {
		t.Fatalf("WriteAt n = %d, want 5", n)
	}

	got := make([]byte, 5)
	if _, err := b.ReadAt(got, 10); err != nil {
		t.Fatalf("ReadAt: %v", err)
	}
	if string(got) != "hello" {
		t.Fatalf("ReadAt = %q, want %q", got, "hello")
	}
}

func TestWriteAtPastCapacityFails(t *testing.T) {
	b := New(4)
	if _, err := b.WriteAt([]byte("x"), 10); err == nil {
		t.Fatal("expected WriteAt past capacity to fail")
	}
}

func TestWriteAtClampsToCapacity(t *testing.T) {
	b := New(4)
	n, err := b.WriteAt([]byte("abcdef"), 0)
	if err != nil {
		t.Fatalf("WriteAt: %v", err)
	}
	if n != 4 {
		t.Fatalf("expected write clamped to capacity 4, got %d", n)
	}
}

func TestStreamCursorAdvances(t *testing.T) {
	b := New(16)

	if _, err := b.Write([]byte("ab")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if _, err := b.Write([]byte("cd")); err != nil {
		t.Fatalf("Write: %v", err)
	}

	got := make([]byte, 4)
	if _, err := b.ReadAt(got, 0); err != nil {
		t.Fatalf("ReadAt: %v", err)
	}
	if string(got) != "abcd" {
		t.Fatalf("ReadAt = %q, want %q", got, "abcd")
	}
}

func TestWrapDoesNotCopy(t *testing.T) {
	src := []byte("xyz0")
	b := Wrap(src)
	if _, err := b.WriteAt([]byte("Q"), 0); err != nil {
		t.Fatalf("WriteAt: %v", err)
	}
	if src[0] != 'Q' {
		t.Fatal("expected Wrap to share the underlying slice, not copy it")
	}
}

func TestReadAtPastEndReturnsZero(t *testing.T) {
	b := New(4)
	got := make([]byte, 4)
	n, err := b.ReadAt(got, 10)
	if err != nil {
		t.Fatalf("ReadAt: %v", err)
	}
	if n != 0 {
		t.Fatalf("expected 0 bytes read past end, got %d", n)
	}
}

func TestGrowableExtendsOnWrite(t *testing.T) {
	b := NewGrowable()

	if _, err := b.Write([]byte("hello")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if _, err := b.Write([]byte(" world")); err != nil {
		t.Fatalf("Write: %v", err)
	}

	got := make([]byte, 11)
	if _, err := b.ReadAt(got, 0); err != nil {
		t.Fatalf("ReadAt: %v", err)
	}
	if string(got) != "hello world" {
		t.Fatalf("ReadAt = %q, want %q", got, "hello world")
	}
}
