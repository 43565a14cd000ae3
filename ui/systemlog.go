package ui

import (
	"sync"
)

// systemLog is a bounded ring of log lines backing the system pane. Append
// may be called from any goroutine; Lines is called by the render path.
type systemLog struct {
	mu    sync.Mutex
	lines []string
	head  int
	count int
}

func newSystemLog(max int) *systemLog {
	if max <= 0 {
		max = 1
	}
	return &systemLog{lines: make([]string, max)}
}

func (l *systemLog) Append(line string) {
	l.mu.Lock()
	if l.count < len(l.lines) {
		l.lines[(l.head+l.count)%len(l.lines)] = line
		l.count++
	} else {
		l.lines[l.head] = line
		l.head = (l.head + 1) % len(l.lines)
	}
	l.mu.Unlock()
}

func (l *systemLog) Lines() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]string, l.count)
	for i := 0; i < l.count; i++ {
		out[i] = l.lines[(l.head+i)%len(l.lines)]
	}
	return out
}
