// Package pipeline composes the live monitor core: frames from the
// transports pass the ingestion gate into the bounded ring buffer, the
// statistics tracker follows every append and eviction, and the
// virtualization window derives the visible slice for the presentation
// surface. The pipeline performs no I/O and persists nothing.
package pipeline

import (
	"sync/atomic"
	"time"

	"canmon/aggregate"
	"canmon/buffer"
	"canmon/frame"
	"canmon/remotestats"
	"canmon/window"
)

// StatsView is what the presentation layer renders. When the remote
// aggregate service has fresh data its values take precedence and Remote is
// true; otherwise the locally maintained window aggregates are shown.
type StatsView struct {
	Total         uint64
	Errors        uint64
	UniqueClasses int
	TopClasses    []aggregate.ClassCount
	Remote        bool
	LifetimeTotal uint64
	Dropped       uint64
	Malformed     uint64
}

// Pipeline owns the gate, ring, tracker, and window. All operations are
// synchronous and bounded; the only asynchronous collaborator is the
// optional remote stats poller, which is read without blocking.
type Pipeline struct {
	Gate

	ring    *buffer.Ring
	tracker *aggregate.Tracker
	win     *window.Window
	remote  *remotestats.Poller
	topK    int

	malformed atomic.Uint64
}

// New builds a pipeline with the given ring capacity and visible window
// size. remote may be nil when no aggregate service is configured.
func New(capacity, visible, topK int, remote *remotestats.Poller) (*Pipeline, error) {
	ring, err := buffer.New(capacity)
	if err != nil {
		return nil, err
	}
	win, err := window.New(visible)
	if err != nil {
		return nil, err
	}
	if topK <= 0 {
		topK = 10
	}
	return &Pipeline{
		ring:    ring,
		tracker: aggregate.NewTracker(),
		win:     win,
		remote:  remote,
		topK:    topK,
	}, nil
}

// Accept runs one frame through the gate. While paused it is side-effect
// free apart from the drop counter. Malformed frames are error-tagged and
// still occupy a buffer slot so error-rate statistics stay meaningful.
// Returns whether the frame entered the buffer.
func (p *Pipeline) Accept(f frame.Frame) bool {
	if !p.admit() {
		return false
	}
	if err := f.Validate(); err != nil {
		f.IsError = true
		if len(f.Data) > frame.MaxDataLen {
			f.Data = f.Data[:frame.MaxDataLen]
		}
		p.malformed.Add(1)
	}

	old, evicted := p.ring.Append(f)
	p.tracker.OnAppend(f)
	if evicted {
		p.tracker.OnEvict(old)
	}
	return true
}

// Clear empties the buffer and zeroes the windowed aggregates. It is
// available in either gate state and does not change it.
func (p *Pipeline) Clear() {
	p.ring.Clear()
	p.tracker.Reset()
}

// Stats returns the aggregate view for display, preferring fresh remote
// data and falling back to local aggregates without ever blocking.
func (p *Pipeline) Stats() StatsView {
	view := StatsView{
		LifetimeTotal: p.tracker.LifetimeTotal(),
		Dropped:       p.DroppedWhilePaused(),
		Malformed:     p.malformed.Load(),
	}
	if remote, ok := p.remote.Snapshot(time.Now().UTC()); ok {
		view.Remote = true
		view.Total = remote.TotalMessages
		view.Errors = remote.TotalErrors
		view.UniqueClasses = remote.UniqueMessageClasses
		view.TopClasses = make([]aggregate.ClassCount, 0, len(remote.TopMessageClasses))
		for _, c := range remote.TopMessageClasses {
			view.TopClasses = append(view.TopClasses, aggregate.ClassCount{Class: c.Class, Count: c.Count})
		}
		if len(view.TopClasses) > p.topK {
			view.TopClasses = view.TopClasses[:p.topK]
		}
		return view
	}

	total, errors := p.tracker.Totals()
	view.Total = total
	view.Errors = errors
	view.UniqueClasses = p.tracker.UniqueClasses()
	view.TopClasses = p.tracker.TopClasses(p.topK)
	return view
}

// VisibleWindow snapshots the buffer and derives the visible slice.
func (p *Pipeline) VisibleWindow() window.View {
	return p.win.Compute(p.ring.Snapshot())
}

// Snapshot returns a point-in-time copy of the full buffered window, for
// recency scans and diagnostics.
func (p *Pipeline) Snapshot() []frame.Frame {
	return p.ring.Snapshot()
}

// Window exposes scroll and follow control to the presentation surface.
func (p *Pipeline) Window() *window.Window {
	return p.win
}

// Tracker exposes the local aggregates for recency queries and tests.
func (p *Pipeline) Tracker() *aggregate.Tracker {
	return p.tracker
}

// Size returns the current buffered frame count.
func (p *Pipeline) Size() int {
	return p.ring.Len()
}

// Capacity returns the fixed ring capacity.
func (p *Pipeline) Capacity() int {
	return p.ring.Cap()
}
