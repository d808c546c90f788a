package queue

import (
	"testing"
)

func TestTable_AcquireRelease(t *testing.T) {
	t.Parallel()

	tbl := NewTable(2)

	tag1, err := tbl.Acquire(10)
	if err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}
	tag2, err := tbl.Acquire(20)
	if err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}
	if tag1 == tag2 {
		t.Fatalf("expected distinct tags, got %d and %d", tag1, tag2)
	}

	if got, ok := tbl.Lookup(tag1); !ok || got != 10 {
		t.Fatalf("Lookup(%d) = %d, %v; want 10, true", tag1, got, ok)
	}

	if err := tbl.Release(tag1); err != nil {
		t.Fatalf("Release failed: %v", err)
	}
	if _, ok := tbl.Lookup(tag1); ok {
		t.Fatal("expected tag to be free after Release")
	}
}

func TestTable_AcquireBusyWhenFull(t *testing.T) {
	t.Parallel()

	tbl := NewTable(AdminQueueSize)
	for i := 0; i < AdminQueueSize; i++ {
		if _, err := tbl.Acquire(uint16(i)); err != nil {
			t.Fatalf("Acquire %d failed: %v", i, err)
		}
	}

	if _, err := tbl.Acquire(99); err != ErrBusy {
		t.Fatalf("Acquire on full table = %v; want ErrBusy", err)
	}
}

func TestTable_ReleaseUnknownTag(t *testing.T) {
	t.Parallel()

	tbl := NewTable(2)
	if err := tbl.Release(0); err != ErrNotFound {
		t.Fatalf("Release on free slot = %v; want ErrNotFound", err)
	}
	if err := tbl.Release(5); err != ErrNotFound {
		t.Fatalf("Release out of range = %v; want ErrNotFound", err)
	}
}

func TestTable_ReuseAfterRelease(t *testing.T) {
	t.Parallel()

	tbl := NewTable(1)
	tag, err := tbl.Acquire(1)
	if err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}
	if err := tbl.Release(tag); err != nil {
		t.Fatalf("Release failed: %v", err)
	}
	if _, err := tbl.Acquire(2); err != nil {
		t.Fatalf("Acquire after release failed: %v", err)
	}
}

func TestTable_InUse(t *testing.T) {
	t.Parallel()

	tbl := NewTable(4)
	if tbl.InUse() != 0 {
		t.Fatalf("InUse() = %d; want 0", tbl.InUse())
	}
	tag, _ := tbl.Acquire(1)
	if tbl.InUse() != 1 {
		t.Fatalf("InUse() = %d; want 1", tbl.InUse())
	}
	tbl.Release(tag)
	if tbl.InUse() != 0 {
		t.Fatalf("InUse() = %d; want 0", tbl.InUse())
	}
}
