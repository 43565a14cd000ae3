// Package remotestats polls an external aggregate service for bus-wide
// statistics. The poller runs on its own cadence, independent of the append
// path: the pipeline reads the last good snapshot without blocking and falls
// back to locally computed aggregates whenever the service is stale,
// failing, or permanently unavailable.
package remotestats

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"sync"
	"time"

	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// FailureKind is the closed set of remote failure categories. Only NotFound
// changes behaviour (it latches permanent fallback); the others differ in
// the troubleshooting hints surfaced to operators.
type FailureKind int

const (
	KindUnknown FailureKind = iota
	KindNotFound
	KindServiceUnavailable
	KindGenericAPI
)

func (k FailureKind) String() string {
	switch k {
	case KindNotFound:
		return "not_found"
	case KindServiceUnavailable:
		return "service_unavailable"
	case KindGenericAPI:
		return "api_error"
	default:
		return "unknown"
	}
}

// Hints returns the fixed troubleshooting strings for this failure kind.
func (k FailureKind) Hints() []string {
	switch k {
	case KindNotFound:
		return []string{
			"the aggregate endpoint does not exist on this server",
			"local aggregation remains active; no retries will be attempted",
		}
	case KindServiceUnavailable:
		return []string{
			"the aggregate service is up but refusing work (5xx)",
			"check service load and restart state; polling continues",
		}
	case KindGenericAPI:
		return []string{
			"the aggregate service answered with an unexpected status",
			"verify the configured URL points at the stats endpoint",
		}
	default:
		return []string{
			"the aggregate service could not be reached",
			"check network connectivity and the configured URL",
		}
	}
}

// Failure wraps a failed fetch with its category.
type Failure struct {
	Kind   FailureKind
	Status int
	Err    error
}

func (f *Failure) Error() string {
	if f.Err != nil {
		return fmt.Sprintf("remotestats: %s: %v", f.Kind, f.Err)
	}
	return fmt.Sprintf("remotestats: %s (HTTP %d)", f.Kind, f.Status)
}

func (f *Failure) Unwrap() error { return f.Err }

func classifyStatus(status int) FailureKind {
	switch {
	case status == http.StatusNotFound:
		return KindNotFound
	case status >= 500:
		return KindServiceUnavailable
	default:
		return KindGenericAPI
	}
}

// ClassCount mirrors one entry of the remote top-class list.
type ClassCount struct {
	Class string `json:"class"`
	Count uint64 `json:"count"`
}

// Stats is the remote aggregate document.
type Stats struct {
	TotalMessages        uint64       `json:"totalMessages"`
	TotalErrors          uint64       `json:"totalErrors"`
	UniqueMessageClasses int          `json:"uniqueMessageClasses"`
	TopMessageClasses    []ClassCount `json:"topMessageClasses"`
}

// Config holds poller settings.
type Config struct {
	Enabled           bool   `yaml:"enabled"`
	URL               string `yaml:"url"`
	FetchIntervalSec  int    `yaml:"fetch_interval_sec"`
	RequestTimeoutSec int    `yaml:"request_timeout_sec"`
	MaxRetries        int    `yaml:"max_retries"`
	MaxAgeSec         int    `yaml:"max_age_sec"`
}

func (c *Config) normalize() {
	if c.FetchIntervalSec <= 0 {
		c.FetchIntervalSec = 5
	}
	if c.RequestTimeoutSec <= 0 {
		c.RequestTimeoutSec = 3
	}
	if c.MaxRetries <= 0 {
		c.MaxRetries = 3
	}
	if c.MaxAgeSec <= 0 {
		c.MaxAgeSec = 3 * c.FetchIntervalSec
	}
}

// Poller periodically fetches remote aggregates and keeps the last good
// snapshot. A 404 latches permanent unavailability; transient failures are
// retried a bounded number of times per cycle and then fall back until the
// next tick.
type Poller struct {
	cfg    Config
	client *http.Client
	logger *log.Logger

	mu          sync.RWMutex
	latest      Stats
	fetchedAt   time.Time
	unavailable bool // permanent, set on 404
	lastFailure *Failure
}

// NewPoller creates a poller; call Start to begin fetching.
func NewPoller(cfg Config, logger *log.Logger) *Poller {
	cfg.normalize()
	return &Poller{
		cfg:    cfg,
		client: &http.Client{Timeout: time.Duration(cfg.RequestTimeoutSec) * time.Second},
		logger: logger,
	}
}

// Start launches the poll loop. It returns immediately; cancellation of ctx
// stops polling without affecting snapshots already taken.
func (p *Poller) Start(ctx context.Context) {
	if p == nil || !p.cfg.Enabled {
		return
	}
	go func() {
		p.poll(ctx)
		ticker := time.NewTicker(time.Duration(p.cfg.FetchIntervalSec) * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if p.Unavailable() {
					return
				}
				p.poll(ctx)
			}
		}
	}()
}

func (p *Poller) poll(ctx context.Context) {
	for attempt := 1; attempt <= p.cfg.MaxRetries; attempt++ {
		stats, err := p.fetchOnce(ctx)
		if err == nil {
			p.mu.Lock()
			p.latest = stats
			p.fetchedAt = time.Now().UTC()
			p.lastFailure = nil
			p.mu.Unlock()
			return
		}

		failure, ok := err.(*Failure)
		if !ok {
			failure = &Failure{Kind: KindUnknown, Err: err}
		}
		if failure.Kind == KindNotFound {
			// Feature unavailable on this server; fall back to local
			// aggregation for good.
			p.mu.Lock()
			p.unavailable = true
			p.lastFailure = failure
			p.mu.Unlock()
			p.logf("remotestats: endpoint not found, disabling remote aggregates")
			return
		}

		p.mu.Lock()
		p.lastFailure = failure
		p.mu.Unlock()
		p.logf("remotestats: fetch attempt %d/%d failed: %v", attempt, p.cfg.MaxRetries, failure)

		select {
		case <-ctx.Done():
			return
		case <-time.After(time.Duration(attempt) * 500 * time.Millisecond):
		}
	}
}

func (p *Poller) fetchOnce(ctx context.Context) (Stats, error) {
	reqCtx, cancel := context.WithTimeout(ctx, time.Duration(p.cfg.RequestTimeoutSec)*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, p.cfg.URL, nil)
	if err != nil {
		return Stats{}, &Failure{Kind: KindUnknown, Err: err}
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return Stats{}, &Failure{Kind: KindUnknown, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return Stats{}, &Failure{Kind: classifyStatus(resp.StatusCode), Status: resp.StatusCode}
	}

	var stats Stats
	if err := json.NewDecoder(resp.Body).Decode(&stats); err != nil {
		return Stats{}, &Failure{Kind: KindGenericAPI, Err: err}
	}
	return stats, nil
}

// Snapshot returns the last good stats and whether they are usable for
// display. ok is false when the poller is disabled, permanently
// unavailable, has never fetched, or the data has gone stale.
func (p *Poller) Snapshot(now time.Time) (Stats, bool) {
	if p == nil || !p.cfg.Enabled {
		return Stats{}, false
	}
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.unavailable || p.fetchedAt.IsZero() {
		return Stats{}, false
	}
	if now.Sub(p.fetchedAt) > time.Duration(p.cfg.MaxAgeSec)*time.Second {
		return Stats{}, false
	}
	return p.latest, true
}

// Unavailable reports whether the remote feature has been latched off after
// a not-found response.
func (p *Poller) Unavailable() bool {
	if p == nil {
		return false
	}
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.unavailable
}

// LastFailure returns the most recent classified failure, or nil.
func (p *Poller) LastFailure() *Failure {
	if p == nil {
		return nil
	}
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.lastFailure
}

func (p *Poller) logf(format string, args ...any) {
	if p == nil || p.logger == nil {
		return
	}
	p.logger.Printf(format, args...)
}
