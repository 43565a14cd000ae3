// Package aggregate maintains running statistics over the live frame window.
// Counters are updated incrementally on every append and eviction so they
// always describe exactly the frames currently buffered, never all-time
// history; the lifetime counters are kept under separate names.
package aggregate

import (
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"canmon/frame"
)

// ClassCount pairs a message class with its count in the live window.
type ClassCount struct {
	Class string
	Count uint64
}

// Summary is a point-in-time copy of the windowed aggregates. The maps are
// owned by the caller.
type Summary struct {
	Total     uint64
	Errors    uint64
	Classes   map[string]uint64
	Instances map[int]uint64
}

// Tracker keeps the windowed counters. OnAppend and OnEvict are O(1); the
// maps shed keys whose count reaches zero so they stay bounded by the number
// of distinct classes currently in the buffer.
type Tracker struct {
	mu        sync.RWMutex
	total     uint64
	errors    uint64
	classes   map[string]uint64
	instances map[int]uint64

	lifetimeTotal  atomic.Uint64 // all-time appends, survives eviction and Reset
	lifetimeErrors atomic.Uint64
}

// NewTracker creates an empty tracker.
func NewTracker() *Tracker {
	return &Tracker{
		classes:   make(map[string]uint64),
		instances: make(map[int]uint64),
	}
}

// OnAppend records a frame entering the window.
func (t *Tracker) OnAppend(f frame.Frame) {
	t.lifetimeTotal.Add(1)
	if f.IsError {
		t.lifetimeErrors.Add(1)
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	t.total++
	if f.IsError {
		t.errors++
	}
	t.classes[f.Class]++
	if f.HasInstance {
		t.instances[f.Instance]++
	}
}

// OnEvict records a frame leaving the window, mirroring OnAppend with
// decrements. Keys that reach zero are removed.
func (t *Tracker) OnEvict(f frame.Frame) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.total > 0 {
		t.total--
	}
	if f.IsError && t.errors > 0 {
		t.errors--
	}
	if n, ok := t.classes[f.Class]; ok {
		if n <= 1 {
			delete(t.classes, f.Class)
		} else {
			t.classes[f.Class] = n - 1
		}
	}
	if f.HasInstance {
		if n, ok := t.instances[f.Instance]; ok {
			if n <= 1 {
				delete(t.instances, f.Instance)
			} else {
				t.instances[f.Instance] = n - 1
			}
		}
	}
}

// Totals returns the windowed frame and error counts.
func (t *Tracker) Totals() (total, errors uint64) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.total, t.errors
}

// UniqueClasses returns the number of distinct message classes in the window.
func (t *Tracker) UniqueClasses() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.classes)
}

// TopClasses returns the k most frequent classes, highest count first. Ties
// are broken by ascending lexical class so repeated calls over identical
// windows produce identical orderings.
func (t *Tracker) TopClasses(k int) []ClassCount {
	if k <= 0 {
		return nil
	}
	t.mu.RLock()
	entries := make([]ClassCount, 0, len(t.classes))
	for class, count := range t.classes {
		entries = append(entries, ClassCount{Class: class, Count: count})
	}
	t.mu.RUnlock()

	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Count != entries[j].Count {
			return entries[i].Count > entries[j].Count
		}
		return entries[i].Class < entries[j].Class
	})
	if len(entries) > k {
		entries = entries[:k]
	}
	return entries
}

// Snapshot returns a copy of all windowed counters.
func (t *Tracker) Snapshot() Summary {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return Summary{
		Total:     t.total,
		Errors:    t.errors,
		Classes:   copyStringCounts(t.classes),
		Instances: copyIntCounts(t.instances),
	}
}

// Reset zeroes the windowed counters. Lifetime counters are unaffected.
func (t *Tracker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.total = 0
	t.errors = 0
	t.classes = make(map[string]uint64)
	t.instances = make(map[int]uint64)
}

// LifetimeTotal returns the all-time number of appended frames. This is the
// deliberately separate "all-time" aggregate; it is never conflated with the
// windowed counters above.
func (t *Tracker) LifetimeTotal() uint64 {
	return t.lifetimeTotal.Load()
}

// LifetimeErrors returns the all-time number of error-tagged frames.
func (t *Tracker) LifetimeErrors() uint64 {
	return t.lifetimeErrors.Load()
}

// Scan computes a Summary from scratch over a buffer snapshot. It exists for
// recency queries and as the batch reference the incremental counters are
// verified against.
func Scan(frames []frame.Frame) Summary {
	s := Summary{
		Classes:   make(map[string]uint64),
		Instances: make(map[int]uint64),
	}
	for _, f := range frames {
		s.Total++
		if f.IsError {
			s.Errors++
		}
		s.Classes[f.Class]++
		if f.HasInstance {
			s.Instances[f.Instance]++
		}
	}
	return s
}

// CountWithin counts snapshot frames whose timestamp satisfies pred. This is
// an O(n) scan by design: recency depends on the clock, not on membership,
// and n is bounded by the ring capacity.
func CountWithin(frames []frame.Frame, pred func(time.Time) bool) int {
	n := 0
	for _, f := range frames {
		if pred(f.Time) {
			n++
		}
	}
	return n
}

// CountSince counts snapshot frames observed at or after cutoff.
func CountSince(frames []frame.Frame, cutoff time.Time) int {
	return CountWithin(frames, func(ts time.Time) bool {
		return !ts.Before(cutoff)
	})
}

func copyStringCounts(src map[string]uint64) map[string]uint64 {
	dst := make(map[string]uint64, len(src))
	for k, v := range src {
		dst[k] = v
	}
	return dst
}

func copyIntCounts(src map[int]uint64) map[int]uint64 {
	dst := make(map[int]uint64, len(src))
	for k, v := range src {
		dst[k] = v
	}
	return dst
}
