// Package buffer provides the bounded FIFO ring that backs the live frame
// view. Appends evict the single oldest frame once capacity is reached, and
// readers work from point-in-time copies so a concurrent snapshot never
// observes a partially evicted state.
package buffer

import (
	"errors"
	"fmt"
	"sync"

	"canmon/frame"
)

// ErrCapacity is returned when a ring is constructed with a non-positive
// capacity. It is the only fatal error this package can produce.
var ErrCapacity = errors.New("ring capacity must be positive")

// Ring is a fixed-capacity circular buffer of frames with oldest-first
// eviction. Append may be called while other goroutines snapshot; all
// operations are goroutine-safe.
type Ring struct {
	mu     sync.RWMutex
	frames []frame.Frame
	head   int // index of the oldest frame
	count  int
	total  uint64 // lifetime appends, survives Clear
}

// New allocates a ring buffer holding at most capacity frames.
func New(capacity int) (*Ring, error) {
	if capacity <= 0 {
		return nil, fmt.Errorf("buffer: capacity %d: %w", capacity, ErrCapacity)
	}
	return &Ring{frames: make([]frame.Frame, capacity)}, nil
}

// Append adds a frame at the tail. When the ring is full the single oldest
// frame is evicted first and returned with evicted=true so callers can keep
// derived aggregates consistent with the live window.
func (r *Ring) Append(f frame.Frame) (old frame.Frame, evicted bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.count == len(r.frames) {
		old = r.frames[r.head]
		r.frames[r.head] = f
		r.head = (r.head + 1) % len(r.frames)
		r.total++
		return old, true
	}
	pos := (r.head + r.count) % len(r.frames)
	r.frames[pos] = f
	r.count++
	r.total++
	return frame.Frame{}, false
}

// Snapshot returns an ordered oldest-first copy of the current contents.
// The returned slice is owned by the caller; internal storage is never
// exposed.
func (r *Ring) Snapshot() []frame.Frame {
	return r.SnapshotInto(nil)
}

// SnapshotInto copies the current contents into dst, growing it as needed,
// and returns the filled slice. Reusing dst across calls avoids allocation
// on the render path.
func (r *Ring) SnapshotInto(dst []frame.Frame) []frame.Frame {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if cap(dst) < r.count {
		dst = make([]frame.Frame, r.count)
	} else {
		dst = dst[:r.count]
	}
	for i := 0; i < r.count; i++ {
		dst[i] = r.frames[(r.head+i)%len(r.frames)]
	}
	return dst
}

// Clear empties the ring. Capacity and the lifetime append counter are
// unaffected.
func (r *Ring) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.frames {
		r.frames[i] = frame.Frame{}
	}
	r.head = 0
	r.count = 0
}

// Len returns the current number of buffered frames.
func (r *Ring) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.count
}

// Cap returns the fixed capacity set at construction.
func (r *Ring) Cap() int {
	return len(r.frames)
}

// Total returns the lifetime number of appends, which may exceed capacity.
// This is the explicitly all-time counter; windowed statistics live in the
// aggregate package.
func (r *Ring) Total() uint64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.total
}
