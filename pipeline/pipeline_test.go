package pipeline

import (
	"fmt"
	"testing"

	"canmon/frame"
)

func newTestPipeline(t *testing.T, capacity, visible int) *Pipeline {
	t.Helper()
	p, err := New(capacity, visible, 10, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return p
}

func mk(class string) frame.Frame {
	return frame.New(class, "0x21", []byte{0x01})
}

func TestInvalidConfigurationFailsConstruction(t *testing.T) {
	if _, err := New(0, 10, 10, nil); err == nil {
		t.Fatalf("expected error for zero capacity")
	}
	if _, err := New(10, 0, 10, nil); err == nil {
		t.Fatalf("expected error for zero visible capacity")
	}
}

func TestEvictionDecrementsWindowStats(t *testing.T) {
	p := newTestPipeline(t, 3, 10)
	for i := 1; i <= 4; i++ {
		p.Accept(mk(fmt.Sprintf("e%d", i)))
	}
	snap := p.Snapshot()
	if len(snap) != 3 {
		t.Fatalf("expected 3 buffered frames, got %d", len(snap))
	}
	want := []string{"e2", "e3", "e4"}
	for i, cls := range want {
		if snap[i].Class != cls {
			t.Fatalf("buffer[%d] = %s, want %s", i, snap[i].Class, cls)
		}
	}
	stats := p.Stats()
	if stats.Total != 3 {
		t.Fatalf("windowed total = %d, want 3", stats.Total)
	}
	if stats.LifetimeTotal != 4 {
		t.Fatalf("lifetime total = %d, want 4", stats.LifetimeTotal)
	}
}

func TestPausedDropsWithoutSideEffects(t *testing.T) {
	p := newTestPipeline(t, 10, 10)
	p.Accept(mk("before"))
	p.Pause()
	if p.State() != Paused {
		t.Fatalf("expected Paused state")
	}

	if p.Accept(mk("during")) {
		t.Fatalf("paused pipeline must not accept frames")
	}
	if p.Size() != 1 {
		t.Fatalf("paused accept changed buffer size to %d", p.Size())
	}
	if stats := p.Stats(); stats.Total != 1 {
		t.Fatalf("paused accept changed aggregates: %+v", stats)
	}

	p.Resume()
	p.Accept(mk("after"))
	snap := p.Snapshot()
	if len(snap) != 2 || snap[1].Class != "after" {
		t.Fatalf("expected no replay of paused traffic, got %v", snap)
	}
	if p.DroppedWhilePaused() != 1 {
		t.Fatalf("expected drop counter 1, got %d", p.DroppedWhilePaused())
	}
}

func TestClearWorksInEitherStateAndKeepsState(t *testing.T) {
	p := newTestPipeline(t, 10, 10)
	p.Accept(mk("a"))
	p.Pause()
	p.Clear()
	if p.Size() != 0 {
		t.Fatalf("expected empty buffer after Clear")
	}
	if stats := p.Stats(); stats.Total != 0 || stats.UniqueClasses != 0 {
		t.Fatalf("expected zeroed aggregates after Clear: %+v", stats)
	}
	if p.State() != Paused {
		t.Fatalf("Clear must not change the gate state")
	}
}

func TestMalformedFramesAreErrorTaggedAndCounted(t *testing.T) {
	p := newTestPipeline(t, 10, 10)
	bad := frame.New("61444", "0x21", make([]byte, 12))
	if !p.Accept(bad) {
		t.Fatalf("malformed frame should still occupy a buffer slot")
	}
	snap := p.Snapshot()
	if len(snap) != 1 || !snap[0].IsError {
		t.Fatalf("expected error-tagged entry, got %+v", snap)
	}
	if len(snap[0].Data) > frame.MaxDataLen {
		t.Fatalf("stored payload should be truncated to %d bytes", frame.MaxDataLen)
	}
	stats := p.Stats()
	if stats.Errors != 1 || stats.Malformed != 1 {
		t.Fatalf("expected malformed frame reflected in counters: %+v", stats)
	}
}

func TestVisibleWindowTracksTail(t *testing.T) {
	p := newTestPipeline(t, 1000, 50)
	for i := 0; i < 500; i++ {
		p.Accept(mk(fmt.Sprintf("c%d", i)))
	}
	view := p.VisibleWindow()
	if len(view.Slice) != 50 || view.TotalItems != 500 {
		t.Fatalf("expected 50 of 500 visible, got %d of %d", len(view.Slice), view.TotalItems)
	}
	if view.Slice[49].Class != "c499" {
		t.Fatalf("expected tail frame c499, got %s", view.Slice[49].Class)
	}

	p.Window().SetAutoScroll(false)
	pinned := p.VisibleWindow()
	for i := 0; i < 10; i++ {
		p.Accept(mk(fmt.Sprintf("extra%d", i)))
	}
	after := p.VisibleWindow()
	if after.TotalItems != pinned.TotalItems+10 {
		t.Fatalf("TotalItems should keep growing while pinned")
	}
	if after.Slice[0].Class != pinned.Slice[0].Class {
		t.Fatalf("pinned slice moved: %s vs %s", after.Slice[0].Class, pinned.Slice[0].Class)
	}
}

func TestLocalStatsFallbackWithoutRemote(t *testing.T) {
	p := newTestPipeline(t, 2000, 50)
	for i := 0; i < 1000; i++ {
		p.Accept(mk("A"))
	}
	for i := 0; i < 500; i++ {
		p.Accept(mk("B"))
	}
	stats := p.Stats()
	if stats.Remote {
		t.Fatalf("no poller configured, stats must be local")
	}
	if stats.UniqueClasses != 2 {
		t.Fatalf("unique classes = %d, want 2", stats.UniqueClasses)
	}
	if len(stats.TopClasses) == 0 || stats.TopClasses[0].Class != "A" || stats.TopClasses[0].Count != 1000 {
		t.Fatalf("unexpected top classes: %+v", stats.TopClasses)
	}
}
