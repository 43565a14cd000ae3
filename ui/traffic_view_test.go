package ui

import (
	"strings"
	"testing"
	"time"

	"github.com/gdamore/tcell/v2"

	"canmon/frame"
	"canmon/pipeline"
)

func newTestPipeline(t *testing.T, frames int) *pipeline.Pipeline {
	t.Helper()
	pipe, err := pipeline.New(100, 5, 3, nil)
	if err != nil {
		t.Fatalf("pipeline.New: %v", err)
	}
	for i := 0; i < frames; i++ {
		f := frame.New("61444", "0x21", []byte{byte(i)})
		f.Time = time.Unix(1700000000+int64(i), 0).UTC()
		pipe.Accept(f)
	}
	return pipe
}

func TestTrafficViewScrollKeys(t *testing.T) {
	pipe := newTestPipeline(t, 20)
	v := newTrafficView(pipe, nil, "Traffic")
	v.SetRect(0, 0, 60, 10)
	pipe.VisibleWindow()

	if !pipe.Window().AutoScroll() {
		t.Fatalf("window should start in follow mode")
	}

	if !v.HandleScroll(tcell.NewEventKey(tcell.KeyUp, 0, tcell.ModNone)) {
		t.Fatalf("Up should be handled")
	}
	if pipe.Window().AutoScroll() {
		t.Fatalf("scrolling up should pin the window")
	}

	v.HandleScroll(tcell.NewEventKey(tcell.KeyHome, 0, tcell.ModNone))
	if view := pipe.Window().Compute(pipe.Snapshot()); view.Offset != 0 {
		t.Fatalf("Home should scroll to the oldest frame, offset = %d", view.Offset)
	}

	v.HandleScroll(tcell.NewEventKey(tcell.KeyEnd, 0, tcell.ModNone))
	if !pipe.Window().AutoScroll() {
		t.Fatalf("End should re-enable follow mode")
	}

	if v.HandleScroll(tcell.NewEventKey(tcell.KeyRune, 'x', tcell.ModNone)) {
		t.Fatalf("unbound key must not be handled")
	}
}

func TestTrafficViewDraw(t *testing.T) {
	pipe := newTestPipeline(t, 8)
	v := newTrafficView(pipe, nil, "Traffic")

	screen := tcell.NewSimulationScreen("UTF-8")
	if err := screen.Init(); err != nil {
		t.Fatalf("screen init: %v", err)
	}
	defer screen.Fini()
	screen.SetSize(80, 24)
	v.SetRect(0, 0, 80, 24)

	v.Draw(screen)

	title := v.Box.GetTitle()
	if !strings.Contains(title, "5/8") {
		t.Fatalf("title should report visible/total, got %q", title)
	}
	if !strings.Contains(title, "follow") {
		t.Fatalf("title should report follow mode, got %q", title)
	}
}
