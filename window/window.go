// Package window derives the bounded visible slice handed to a rendering
// surface from a (much larger) buffer snapshot. In follow mode the slice
// tracks the buffer tail; with follow off it stays pinned at the last
// computed offset so a user inspecting history is not disrupted by new
// arrivals.
package window

import (
	"errors"
	"fmt"
	"sync"

	"canmon/frame"
)

// ErrVisibleCapacity is returned when a window is constructed with a
// non-positive visible capacity.
var ErrVisibleCapacity = errors.New("visible capacity must be positive")

// View is the bounded slice selected for rendering. TotalItems reports the
// full snapshot length independently of len(Slice) so a surface can show
// "V of N".
type View struct {
	Slice      []frame.Frame
	TotalItems int
	Offset     int
	AutoScroll bool
}

// Window selects a bounded slice out of buffer snapshots. It never mutates
// the buffer; toggling follow only changes how Compute picks the slice.
type Window struct {
	mu        sync.Mutex
	visible   int
	follow    bool
	offset    int
	lastTotal int
}

// New creates a window showing at most visible frames, with follow enabled.
func New(visible int) (*Window, error) {
	if visible <= 0 {
		return nil, fmt.Errorf("window: visible capacity %d: %w", visible, ErrVisibleCapacity)
	}
	return &Window{visible: visible, follow: true}, nil
}

// Compute selects the visible slice from an oldest-first snapshot. The
// returned slice aliases the snapshot, which the buffer already hands out as
// a caller-owned copy.
func (w *Window) Compute(snapshot []frame.Frame) View {
	w.mu.Lock()
	defer w.mu.Unlock()

	total := len(snapshot)
	w.lastTotal = total
	maxOffset := total - w.visible
	if maxOffset < 0 {
		maxOffset = 0
	}
	if w.follow {
		w.offset = maxOffset
	}
	if w.offset < 0 {
		w.offset = 0
	}
	if w.offset > maxOffset {
		w.offset = maxOffset
	}

	end := w.offset + w.visible
	if end > total {
		end = total
	}
	return View{
		Slice:      snapshot[w.offset:end],
		TotalItems: total,
		Offset:     w.offset,
		AutoScroll: w.follow,
	}
}

// SetAutoScroll toggles follow mode. Turning it off pins the window at its
// last computed offset; turning it on makes the next Compute jump to the
// tail.
func (w *Window) SetAutoScroll(on bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.follow = on
}

// AutoScroll reports whether the window is tracking the buffer tail.
func (w *Window) AutoScroll() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.follow
}

// ScrollTo pins the window at offset, clamped to the last seen snapshot.
// Scrolling to the very tail re-enables follow mode.
func (w *Window) ScrollTo(offset int) {
	w.mu.Lock()
	defer w.mu.Unlock()
	maxOffset := w.lastTotal - w.visible
	if maxOffset < 0 {
		maxOffset = 0
	}
	if offset < 0 {
		offset = 0
	}
	if offset > maxOffset {
		offset = maxOffset
	}
	w.offset = offset
	w.follow = offset == maxOffset
}

// ScrollBy moves the pinned offset by delta lines (negative scrolls toward
// older frames).
func (w *Window) ScrollBy(delta int) {
	w.mu.Lock()
	current := w.offset
	w.mu.Unlock()
	w.ScrollTo(current + delta)
}

// Visible returns the configured visible capacity.
func (w *Window) Visible() int {
	return w.visible
}
