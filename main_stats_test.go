package main

import (
	"strings"
	"testing"
	"time"

	"canmon/frame"
	"canmon/pipeline"
)

func TestBuildSnapshot(t *testing.T) {
	pipe, err := pipeline.New(100, 10, 5, nil)
	if err != nil {
		t.Fatalf("pipeline.New: %v", err)
	}
	for i := 0; i < 3; i++ {
		f := frame.New("61444", "0x21", []byte{0x01})
		f.Time = time.Unix(1700000000+int64(i), 0).UTC()
		pipe.Accept(f)
	}

	snap := buildSnapshot(pipe, nil)
	if snap.GeneratedAt.IsZero() {
		t.Fatalf("snapshot missing timestamp")
	}
	stats := strings.Join(snap.StatsLines, "\n")
	if !strings.Contains(stats, "Frames:    3") {
		t.Fatalf("unexpected stats lines:\n%s", stats)
	}
	classes := strings.Join(snap.ClassLines, "\n")
	if !strings.Contains(classes, "61444") {
		t.Fatalf("unexpected class lines:\n%s", classes)
	}
}
