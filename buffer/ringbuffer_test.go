package buffer

import (
	"errors"
	"fmt"
	"testing"

	"canmon/frame"
)

func testFrame(n int) frame.Frame {
	return frame.New(fmt.Sprintf("class-%d", n), "0x01", []byte{byte(n)})
}

func TestNewRejectsNonPositiveCapacity(t *testing.T) {
	for _, capacity := range []int{0, -1} {
		if _, err := New(capacity); !errors.Is(err, ErrCapacity) {
			t.Fatalf("capacity %d: expected ErrCapacity, got %v", capacity, err)
		}
	}
}

func TestAppendEvictsOldestInOrder(t *testing.T) {
	r, err := New(3)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	var evictions []string
	for i := 1; i <= 4; i++ {
		if old, evicted := r.Append(testFrame(i)); evicted {
			evictions = append(evictions, old.Class)
		}
	}
	if r.Len() != 3 {
		t.Fatalf("expected len 3, got %d", r.Len())
	}
	snap := r.Snapshot()
	want := []string{"class-2", "class-3", "class-4"}
	for i, cls := range want {
		if snap[i].Class != cls {
			t.Fatalf("snapshot[%d] = %s, want %s", i, snap[i].Class, cls)
		}
	}
	if len(evictions) != 1 || evictions[0] != "class-1" {
		t.Fatalf("expected single eviction of class-1, got %v", evictions)
	}
}

func TestRingKeepsExactlyLastCapacityFrames(t *testing.T) {
	const capacity = 7
	const appends = 100
	r, err := New(capacity)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	for i := 0; i < appends; i++ {
		r.Append(testFrame(i))
	}
	snap := r.Snapshot()
	if len(snap) != capacity {
		t.Fatalf("expected %d frames, got %d", capacity, len(snap))
	}
	for i, f := range snap {
		want := fmt.Sprintf("class-%d", appends-capacity+i)
		if f.Class != want {
			t.Fatalf("snapshot[%d] = %s, want %s", i, f.Class, want)
		}
	}
	if r.Total() != appends {
		t.Fatalf("lifetime total = %d, want %d", r.Total(), appends)
	}
}

func TestClearEmptiesButKeepsCapacityAndTotal(t *testing.T) {
	r, err := New(4)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	for i := 0; i < 6; i++ {
		r.Append(testFrame(i))
	}
	r.Clear()
	if r.Len() != 0 {
		t.Fatalf("expected empty ring after Clear, got %d", r.Len())
	}
	if r.Cap() != 4 {
		t.Fatalf("Clear must not change capacity, got %d", r.Cap())
	}
	if r.Total() != 6 {
		t.Fatalf("Clear must not reset lifetime total, got %d", r.Total())
	}
	r.Append(testFrame(42))
	snap := r.Snapshot()
	if len(snap) != 1 || snap[0].Class != "class-42" {
		t.Fatalf("ring unusable after Clear: %v", snap)
	}
}

func TestSnapshotIsACopy(t *testing.T) {
	r, err := New(2)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	r.Append(testFrame(1))
	snap := r.Snapshot()
	snap[0].Class = "mutated"
	if got := r.Snapshot()[0].Class; got != "class-1" {
		t.Fatalf("snapshot mutation leaked into ring: %s", got)
	}
}

func TestSnapshotIntoReusesBacking(t *testing.T) {
	r, err := New(8)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	for i := 0; i < 8; i++ {
		r.Append(testFrame(i))
	}
	scratch := make([]frame.Frame, 0, 8)
	got := r.SnapshotInto(scratch)
	if len(got) != 8 {
		t.Fatalf("expected 8 frames, got %d", len(got))
	}
	if &got[0] != &scratch[:1][0] {
		t.Fatalf("expected SnapshotInto to reuse caller backing array")
	}
}
