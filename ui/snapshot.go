package ui

import "time"

// Snapshot is a structured stats snapshot built by the main stats loop.
// It is immutable once handed to a Surface.
type Snapshot struct {
	GeneratedAt time.Time
	StatsLines  []string
	ClassLines  []string
	SourceLines []string
}
