package pipeline

import "sync/atomic"

// State is the stream gate state.
type State int32

const (
	Streaming State = iota
	Paused
)

func (s State) String() string {
	switch s {
	case Streaming:
		return "streaming"
	case Paused:
		return "paused"
	default:
		return "unknown"
	}
}

// Gate is the single entry point switch for new frames. While paused,
// arriving frames are dropped, not queued: resuming shows only traffic
// submitted afterwards. This is a deliberate live-view trade-off over
// buffering paused traffic.
type Gate struct {
	state   atomic.Int32
	dropped atomic.Uint64
}

// Pause stops frame admission. Idempotent.
func (g *Gate) Pause() {
	g.state.Store(int32(Paused))
}

// Resume re-opens frame admission. Only frames arriving after the
// transition are accepted; nothing dropped while paused is replayed.
func (g *Gate) Resume() {
	g.state.Store(int32(Streaming))
}

// State returns the current gate state.
func (g *Gate) State() State {
	return State(g.state.Load())
}

// admit reports whether a frame may pass, counting the drop otherwise.
func (g *Gate) admit() bool {
	if State(g.state.Load()) == Paused {
		g.dropped.Add(1)
		return false
	}
	return true
}

// DroppedWhilePaused returns how many frames the gate has discarded.
func (g *Gate) DroppedWhilePaused() uint64 {
	return g.dropped.Load()
}
