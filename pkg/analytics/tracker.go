package analytics

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/shopspring/decimal"

	"github.com/stockcall/adsim/pkg/ads"
	"github.com/stockcall/adsim/pkg/log"
)

var ErrUnknownPlacement = errors.New("unknown placement")

// DefaultECPM is the simulated revenue per thousand impressions by format
var DefaultECPM = map[ads.AdType]decimal.Decimal{
	ads.Banner:       decimal.RequireFromString("0.50"),
	ads.Native:       decimal.RequireFromString("1.50"),
	ads.Interstitial: decimal.RequireFromString("4.00"),
	ads.AppOpen:      decimal.RequireFromString("3.00"),
	ads.Rewarded:     decimal.RequireFromString("10.00"),
}

const (
	eventStreamSize = 1024
	maxStoredEvents = 10000
)

var thousand = decimal.NewFromInt(1000)

// Tracker aggregates ad lifecycle events
type Tracker struct {
	// Real-time counters
	TotalRequests    atomic.Uint64
	TotalFills       atomic.Uint64
	TotalFailures    atomic.Uint64
	TotalSuperseded  atomic.Uint64
	TotalAbandoned   atomic.Uint64
	TotalImpressions atomic.Uint64
	TotalInterrupted atomic.Uint64
	TotalCompletions atomic.Uint64
	TotalSkips       atomic.Uint64
	TotalRewards     atomic.Uint64
	TotalResets      atomic.Uint64
	StoreErrors      atomic.Uint64

	// Event stream for real-time consumers; events are dropped when full
	EventStream chan ads.Event

	mu           sync.RWMutex
	placements   map[string]*PlacementStats
	revenue      decimal.Decimal
	ecpm         map[ads.AdType]decimal.Decimal
	latencyTotal time.Duration
	latencyCount uint64
	maxLatency   time.Duration

	storage StorageBackend
	log     log.Logger
}

// Option configures a Tracker
type Option func(*Tracker)

// WithStorage replaces the in-memory event store
func WithStorage(s StorageBackend) Option {
	return func(a *Tracker) { a.storage = s }
}

// WithLogger sets the logger used for storage failures
func WithLogger(l log.Logger) Option {
	return func(a *Tracker) { a.log = l }
}

// PlacementStats tracks one ad unit's performance
type PlacementStats struct {
	UnitID      string          `json:"unitId"`
	AdType      ads.AdType      `json:"type"`
	Requests    uint64          `json:"requests"`
	Fills       uint64          `json:"fills"`
	Failures    uint64          `json:"failures"`
	Impressions uint64          `json:"impressions"`
	Interrupted uint64          `json:"interrupted"`
	Completions uint64          `json:"completions"`
	Skips       uint64          `json:"skips"`
	Rewards     uint64          `json:"rewards"`
	Revenue     decimal.Decimal `json:"revenue"`
}

// FillRate is fills over resolved loads
func (p *PlacementStats) FillRate() float64 {
	resolved := p.Fills + p.Failures
	if resolved == 0 {
		return 0
	}
	return float64(p.Fills) / float64(resolved)
}

// NewTracker creates a tracker. A nil ecpm table uses DefaultECPM.
func NewTracker(ecpm map[ads.AdType]decimal.Decimal, opts ...Option) *Tracker {
	if ecpm == nil {
		ecpm = DefaultECPM
	}
	a := &Tracker{
		EventStream: make(chan ads.Event, eventStreamSize),
		placements:  make(map[string]*PlacementStats),
		ecpm:        ecpm,
		revenue:     decimal.Zero,
		storage:     NewInMemoryStorage(maxStoredEvents),
		log:         log.NoOp(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Observe records a lifecycle event
func (a *Tracker) Observe(e ads.Event) {
	switch e.Type {
	case ads.EventLoadRequested:
		a.TotalRequests.Add(1)
	case ads.EventLoaded:
		a.TotalFills.Add(1)
	case ads.EventFailed:
		a.TotalFailures.Add(1)
	case ads.EventSuperseded:
		a.TotalSuperseded.Add(1)
	case ads.EventAbandoned:
		a.TotalAbandoned.Add(1)
	case ads.EventShown:
		a.TotalImpressions.Add(1)
	case ads.EventInterrupted:
		a.TotalInterrupted.Add(1)
	case ads.EventClosed:
		a.TotalCompletions.Add(1)
	case ads.EventSkipped:
		a.TotalSkips.Add(1)
	case ads.EventRewarded:
		a.TotalRewards.Add(1)
	case ads.EventReset:
		a.TotalResets.Add(1)
	}

	if e.UnitID != "" {
		a.updatePlacement(e)
	}
	if err := a.storage.Store(e); err != nil {
		a.StoreErrors.Add(1)
		a.log.Warn("failed to store ad event",
			log.String("event", string(e.Type)),
			log.String("unit", e.UnitID),
			log.Error(err))
	}

	select {
	case a.EventStream <- e:
	default:
		// Buffer full, drop event
	}
}

func (a *Tracker) updatePlacement(e ads.Event) {
	a.mu.Lock()
	defer a.mu.Unlock()

	p, ok := a.placements[e.UnitID]
	if !ok {
		p = &PlacementStats{UnitID: e.UnitID, AdType: e.AdType, Revenue: decimal.Zero}
		a.placements[e.UnitID] = p
	}
	if e.AdType != "" {
		p.AdType = e.AdType
	}

	switch e.Type {
	case ads.EventLoadRequested:
		p.Requests++
	case ads.EventLoaded:
		p.Fills++
		a.recordLatency(e.Latency)
	case ads.EventFailed:
		p.Failures++
		a.recordLatency(e.Latency)
	case ads.EventShown:
		p.Impressions++
		earned := a.ecpm[e.AdType].Div(thousand)
		p.Revenue = p.Revenue.Add(earned)
		a.revenue = a.revenue.Add(earned)
	case ads.EventInterrupted:
		p.Interrupted++
	case ads.EventClosed:
		p.Completions++
	case ads.EventSkipped:
		p.Skips++
	case ads.EventRewarded:
		p.Rewards++
	}
}

// recordLatency folds a load latency in. Caller holds mu.
func (a *Tracker) recordLatency(d time.Duration) {
	a.latencyTotal += d
	a.latencyCount++
	if d > a.maxLatency {
		a.maxLatency = d
	}
}

// FillRate is fills over loads that resolved with an outcome
func (a *Tracker) FillRate() float64 {
	fills := a.TotalFills.Load()
	resolved := fills + a.TotalFailures.Load()
	if resolved == 0 {
		return 0
	}
	return float64(fills) / float64(resolved)
}

// AverageLatency is the mean latency of resolved loads
func (a *Tracker) AverageLatency() time.Duration {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.latencyCount == 0 {
		return 0
	}
	return a.latencyTotal / time.Duration(a.latencyCount)
}

// Revenue is the simulated revenue of every impression so far
func (a *Tracker) Revenue() decimal.Decimal {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.revenue
}

// GetRealTimeMetrics returns current real-time metrics
func (a *Tracker) GetRealTimeMetrics() map[string]interface{} {
	a.mu.RLock()
	maxLatency := a.maxLatency
	placements := len(a.placements)
	a.mu.RUnlock()

	return map[string]interface{}{
		"total_requests":    a.TotalRequests.Load(),
		"total_fills":       a.TotalFills.Load(),
		"total_failures":    a.TotalFailures.Load(),
		"total_superseded":  a.TotalSuperseded.Load(),
		"total_abandoned":   a.TotalAbandoned.Load(),
		"total_impressions": a.TotalImpressions.Load(),
		"total_interrupted": a.TotalInterrupted.Load(),
		"total_completions": a.TotalCompletions.Load(),
		"total_skips":       a.TotalSkips.Load(),
		"total_rewards":     a.TotalRewards.Load(),
		"total_resets":      a.TotalResets.Load(),
		"store_errors":      a.StoreErrors.Load(),
		"placements":        placements,
		"fill_rate":         a.FillRate(),
		"avg_latency_ms":    float64(a.AverageLatency().Microseconds()) / 1000.0,
		"max_latency_ms":    float64(maxLatency.Microseconds()) / 1000.0,
		"revenue":           a.Revenue().StringFixed(4),
	}
}

// GetPlacementReport returns a copy of one unit's statistics
func (a *Tracker) GetPlacementReport(unitID string) (*PlacementStats, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	p, ok := a.placements[unitID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownPlacement, unitID)
	}
	cp := *p
	return &cp, nil
}

// Events returns stored events matching filter
func (a *Tracker) Events(filter QueryFilter) ([]ads.Event, error) {
	return a.storage.Query(filter)
}
