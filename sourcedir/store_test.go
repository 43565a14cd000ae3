package sourcedir

import (
	"path/filepath"
	"testing"
	"time"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "sourcedir"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestObserveAndLookup(t *testing.T) {
	s := openTestStore(t)
	first := time.Unix(1700000000, 0).UTC()
	later := first.Add(30 * time.Second)

	s.Observe("0x21", first)
	s.Observe("0x21", later)
	s.Observe("0x42", later)
	s.Flush()

	rec, ok := s.Lookup("0x21")
	if !ok {
		t.Fatalf("expected record for 0x21")
	}
	if rec.Frames != 2 {
		t.Fatalf("frames = %d, want 2", rec.Frames)
	}
	if !rec.FirstSeen.Equal(first) || !rec.LastSeen.Equal(later) {
		t.Fatalf("unexpected seen range: %+v", rec)
	}

	if _, ok := s.Lookup("0x99"); ok {
		t.Fatalf("unknown source must not resolve")
	}
}

func TestSourcesSorted(t *testing.T) {
	s := openTestStore(t)
	now := time.Now().UTC()
	for _, src := range []string{"0x42", "0x03", "0x21"} {
		s.Observe(src, now)
	}
	s.Flush()

	got := s.Sources()
	want := []string{"0x03", "0x21", "0x42"}
	if len(got) != len(want) {
		t.Fatalf("sources = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("sources = %v, want %v", got, want)
		}
	}
}

func TestRecordsSurviveReopen(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "sourcedir")
	s, err := Open(dir)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	at := time.Unix(1700000000, 0).UTC()
	s.Observe("0x21", at)
	s.Flush()
	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	reopened, err := Open(dir)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer reopened.Close()
	rec, ok := reopened.Lookup("0x21")
	if !ok || rec.Frames != 1 {
		t.Fatalf("expected persisted record, got %+v ok=%v", rec, ok)
	}
}

func TestObserveIgnoresEmptySource(t *testing.T) {
	s := openTestStore(t)
	s.Observe("  ", time.Now())
	s.Flush()
	if got := s.Sources(); len(got) != 0 {
		t.Fatalf("expected no sources, got %v", got)
	}
}
