package window

import (
	"errors"
	"fmt"
	"testing"

	"canmon/frame"
)

func frames(n int) []frame.Frame {
	out := make([]frame.Frame, n)
	for i := range out {
		out[i] = frame.New(fmt.Sprintf("c%d", i), "0x01", nil)
	}
	return out
}

func TestNewRejectsNonPositiveVisible(t *testing.T) {
	if _, err := New(0); !errors.Is(err, ErrVisibleCapacity) {
		t.Fatalf("expected ErrVisibleCapacity, got %v", err)
	}
}

func TestFollowSelectsTail(t *testing.T) {
	w, err := New(50)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	view := w.Compute(frames(500))
	if len(view.Slice) != 50 {
		t.Fatalf("expected 50 visible frames, got %d", len(view.Slice))
	}
	if view.TotalItems != 500 {
		t.Fatalf("TotalItems = %d, want 500", view.TotalItems)
	}
	if view.Slice[0].Class != "c450" || view.Slice[49].Class != "c499" {
		t.Fatalf("expected last 50 frames, got %s..%s", view.Slice[0].Class, view.Slice[49].Class)
	}
	if !view.AutoScroll {
		t.Fatalf("expected follow mode on by default")
	}
}

func TestPinnedOffsetSurvivesNewArrivals(t *testing.T) {
	w, err := New(10)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	snap := frames(100)
	w.Compute(snap)
	w.ScrollTo(40)
	w.SetAutoScroll(false)

	before := w.Compute(snap)
	after := w.Compute(frames(110)) // ten more frames appended

	if after.TotalItems != before.TotalItems+10 {
		t.Fatalf("TotalItems = %d, want %d", after.TotalItems, before.TotalItems+10)
	}
	if after.Offset != 40 {
		t.Fatalf("pinned offset moved to %d", after.Offset)
	}
	for i := range before.Slice {
		if after.Slice[i].Class != before.Slice[i].Class {
			t.Fatalf("visible slice changed while pinned: %s vs %s",
				after.Slice[i].Class, before.Slice[i].Class)
		}
	}
}

func TestSmallSnapshotShowsEverything(t *testing.T) {
	w, err := New(50)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	view := w.Compute(frames(7))
	if len(view.Slice) != 7 || view.TotalItems != 7 || view.Offset != 0 {
		t.Fatalf("unexpected view for small snapshot: %+v", view)
	}
}

func TestScrollToTailReenablesFollow(t *testing.T) {
	w, err := New(10)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	w.Compute(frames(100))
	w.ScrollTo(0)
	if w.AutoScroll() {
		t.Fatalf("scrolling away from tail should disable follow")
	}
	w.ScrollTo(90)
	if !w.AutoScroll() {
		t.Fatalf("scrolling to tail should re-enable follow")
	}
	view := w.Compute(frames(120))
	if view.Offset != 110 {
		t.Fatalf("expected follow to land at new tail, offset=%d", view.Offset)
	}
}

func TestScrollByClamps(t *testing.T) {
	w, err := New(10)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	w.Compute(frames(30))
	w.ScrollBy(-1000)
	view := w.Compute(frames(30))
	if view.Offset != 0 {
		t.Fatalf("expected clamp at 0, got %d", view.Offset)
	}
	if view.AutoScroll {
		t.Fatalf("pinned at top should not be follow mode")
	}
}

func TestClearThenComputeClampsPinnedOffset(t *testing.T) {
	w, err := New(10)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	w.Compute(frames(100))
	w.ScrollTo(50)
	view := w.Compute(nil) // buffer cleared
	if view.TotalItems != 0 || len(view.Slice) != 0 || view.Offset != 0 {
		t.Fatalf("expected empty clamped view after clear, got %+v", view)
	}
}
