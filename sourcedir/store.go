// Package sourcedir maintains a directory of bus nodes keyed by source
// address: first/last time seen and lifetime frame counts, persisted in a
// Pebble database between runs. Observations are applied by a single writer
// goroutine fed through a non-blocking queue so the ingest path never waits
// on storage. Only per-source metadata lives here, never the frames.
package sourcedir

import (
	"encoding/binary"
	"errors"
	"fmt"
	"log"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/cockroachdb/pebble"
)

const sourceKeyPrefix = "src|"

// Record is the stored metadata for one source address.
type Record struct {
	FirstSeen time.Time
	LastSeen  time.Time
	Frames    uint64
}

type observation struct {
	source string
	at     time.Time
}

// Store is the pebble-backed source directory.
type Store struct {
	db       *pebble.DB
	queue    chan observation
	flushReq chan chan struct{}
	stop     chan struct{}
	done     chan struct{}
	stopOnce sync.Once
	dropped  uint64
}

// Open opens (or creates) the directory at path and starts the writer.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("sourcedir: empty path")
	}
	db, err := pebble.Open(path, &pebble.Options{})
	if err != nil {
		return nil, fmt.Errorf("sourcedir: pebble open: %w", err)
	}
	s := &Store{
		db:       db,
		queue:    make(chan observation, 4096),
		flushReq: make(chan chan struct{}),
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
	go s.writeLoop()
	return s, nil
}

// Observe records a frame from source without blocking; observations are
// dropped when the queue is full rather than stalling ingest.
func (s *Store) Observe(source string, at time.Time) {
	if s == nil || strings.TrimSpace(source) == "" {
		return
	}
	select {
	case s.queue <- observation{source: source, at: at}:
	default:
		s.dropped++
	}
}

// writeLoop drains the queue, coalescing bursts per source before touching
// pebble so a hot source costs one read-modify-write per flush, not per
// frame.
func (s *Store) writeLoop() {
	defer close(s.done)
	pending := make(map[string]Record)
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	flush := func() {
		for source, delta := range pending {
			if err := s.merge(source, delta); err != nil {
				log.Printf("sourcedir: merge %s: %v", source, err)
			}
		}
		for k := range pending {
			delete(pending, k)
		}
	}

	for {
		select {
		case <-s.stop:
			for {
				select {
				case obs := <-s.queue:
					accumulate(pending, obs)
				default:
					flush()
					return
				}
			}
		case obs := <-s.queue:
			accumulate(pending, obs)
		case ack := <-s.flushReq:
			for {
				select {
				case obs := <-s.queue:
					accumulate(pending, obs)
					continue
				default:
				}
				break
			}
			flush()
			close(ack)
		case <-ticker.C:
			flush()
		}
	}
}

func accumulate(pending map[string]Record, obs observation) {
	rec := pending[obs.source]
	if rec.FirstSeen.IsZero() || obs.at.Before(rec.FirstSeen) {
		rec.FirstSeen = obs.at
	}
	if obs.at.After(rec.LastSeen) {
		rec.LastSeen = obs.at
	}
	rec.Frames++
	pending[obs.source] = rec
}

func (s *Store) merge(source string, delta Record) error {
	key := []byte(sourceKeyPrefix + source)
	current, closer, err := s.db.Get(key)
	var rec Record
	switch {
	case err == nil:
		rec = decodeRecord(current)
		closer.Close()
	case errors.Is(err, pebble.ErrNotFound):
		// First sighting of this source.
	default:
		return err
	}

	if rec.FirstSeen.IsZero() || delta.FirstSeen.Before(rec.FirstSeen) {
		rec.FirstSeen = delta.FirstSeen
	}
	if delta.LastSeen.After(rec.LastSeen) {
		rec.LastSeen = delta.LastSeen
	}
	rec.Frames += delta.Frames

	return s.db.Set(key, encodeRecord(rec), pebble.NoSync)
}

// Lookup returns the stored record for a source address.
func (s *Store) Lookup(source string) (Record, bool) {
	if s == nil {
		return Record{}, false
	}
	value, closer, err := s.db.Get([]byte(sourceKeyPrefix + source))
	if err != nil {
		return Record{}, false
	}
	defer closer.Close()
	return decodeRecord(value), true
}

// Sources returns all known source addresses in lexical order.
func (s *Store) Sources() []string {
	if s == nil {
		return nil
	}
	lower := []byte(sourceKeyPrefix)
	upper := []byte(sourceKeyPrefix)
	upper[len(upper)-1]++
	iter, err := s.db.NewIter(&pebble.IterOptions{LowerBound: lower, UpperBound: upper})
	if err != nil {
		return nil
	}
	defer iter.Close()

	var sources []string
	for iter.First(); iter.Valid(); iter.Next() {
		sources = append(sources, strings.TrimPrefix(string(iter.Key()), sourceKeyPrefix))
	}
	sort.Strings(sources)
	return sources
}

// Flush synchronously drains queued observations into pebble.
func (s *Store) Flush() {
	if s == nil {
		return
	}
	ack := make(chan struct{})
	select {
	case s.flushReq <- ack:
		<-ack
	case <-s.stop:
	}
}

// Close stops the writer, flushes pending observations, and closes pebble.
func (s *Store) Close() error {
	if s == nil {
		return nil
	}
	s.stopOnce.Do(func() {
		close(s.stop)
	})
	<-s.done
	return s.db.Close()
}

func encodeRecord(rec Record) []byte {
	buf := make([]byte, 24)
	binary.LittleEndian.PutUint64(buf[0:8], uint64(rec.FirstSeen.UnixNano()))
	binary.LittleEndian.PutUint64(buf[8:16], uint64(rec.LastSeen.UnixNano()))
	binary.LittleEndian.PutUint64(buf[16:24], rec.Frames)
	return buf
}

func decodeRecord(buf []byte) Record {
	if len(buf) < 24 {
		return Record{}
	}
	return Record{
		FirstSeen: time.Unix(0, int64(binary.LittleEndian.Uint64(buf[0:8]))).UTC(),
		LastSeen:  time.Unix(0, int64(binary.LittleEndian.Uint64(buf[8:16]))).UTC(),
		Frames:    binary.LittleEndian.Uint64(buf[16:24]),
	}
}
