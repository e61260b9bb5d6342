// Copyright (C) 2025, ADXYZ Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package ads

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/stockcall/adsim/pkg/clock"
	"github.com/stockcall/adsim/pkg/log"
)

var ErrNilLogger = errors.New("nil logger")

// Controller drives ad units through the simulated lifecycle:
//
//	(absent) -> loading -> loaded | failed
//	loaded -> showing -> closed
//
// A new Load restarts a unit from loading whatever its current status.
// Every load cycle gets a fresh generation; timers belonging to an older
// cycle become no-ops, so a slow load can never overwrite a newer one.
type Controller struct {
	mu        sync.Mutex
	cfg       Config
	reg       *Registry
	clock     clock.Clock
	rand      Source
	log       log.Logger
	observers []Observer

	pending map[uint64]*pendingLoad
	seq     uint64
	closed  bool
}

// pendingLoad is a load call waiting for its timer
type pendingLoad struct {
	id      string
	adType  AdType
	gen     uint64
	started time.Time
	timer   clock.Timer
	// result is buffered and written at most once, under Controller.mu
	result chan bool
}

// Option configures a Controller
type Option func(*Controller)

// WithClock replaces the wall clock
func WithClock(c clock.Clock) Option {
	return func(ctrl *Controller) { ctrl.clock = c }
}

// WithSource replaces the randomness source
func WithSource(s Source) Option {
	return func(ctrl *Controller) { ctrl.rand = s }
}

// WithRegistry uses an existing registry
func WithRegistry(r *Registry) Option {
	return func(ctrl *Controller) { ctrl.reg = r }
}

// WithObserver adds a lifecycle observer
func WithObserver(o Observer) Option {
	return func(ctrl *Controller) {
		if o != nil {
			ctrl.observers = append(ctrl.observers, o)
		}
	}
}

// NewController creates a controller with its own registry
func NewController(cfg Config, logger log.Logger, opts ...Option) (*Controller, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		return nil, ErrNilLogger
	}

	c := &Controller{
		cfg:     cfg,
		reg:     NewRegistry(),
		clock:   clock.New(),
		rand:    DefaultSource(),
		log:     logger,
		pending: make(map[uint64]*pendingLoad),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Load starts a load cycle for the unit and waits for it to resolve. It
// returns true once the unit is loaded and false if the load failed, was
// superseded by a newer load, or was abandoned through ctx, Reset or Close.
// An abandoned load never touches the registry afterwards, and a ctx that
// is already done leaves the unit untouched.
func (c *Controller) Load(ctx context.Context, id string, adType AdType) bool {
	if ctx.Err() != nil {
		return false
	}
	seq, result, ok := c.startLoad(id, adType)
	if !ok {
		return false
	}

	select {
	case loaded := <-result:
		return loaded
	case <-ctx.Done():
		c.abandon(seq)
		// the timer may have fired before abandon took the lock
		select {
		case loaded := <-result:
			return loaded
		default:
			return false
		}
	}
}

// LoadAsync starts a load cycle and returns a channel that receives its
// outcome. The load timer is scheduled before LoadAsync returns.
func (c *Controller) LoadAsync(id string, adType AdType) <-chan bool {
	_, result, ok := c.startLoad(id, adType)
	if !ok {
		result = make(chan bool, 1)
		result <- false
	}
	return result
}

func (c *Controller) startLoad(id string, adType AdType) (uint64, chan bool, bool) {
	if _, ok := c.cfg.format(adType); !ok {
		c.log.Warn("ignoring load of unknown ad type",
			log.String("unit", id),
			log.String("type", string(adType)))
		return 0, nil, false
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return 0, nil, false
	}

	delay := c.latency()
	gen, prev := c.reg.beginLoad(id, adType)
	if prev.closeTimer != nil {
		prev.closeTimer.Stop()
	}

	c.seq++
	seq := c.seq
	now := c.clock.Now()
	p := &pendingLoad{
		id:      id,
		adType:  adType,
		gen:     gen,
		started: now,
		result:  make(chan bool, 1),
	}
	c.pending[seq] = p
	p.timer = c.clock.AfterFunc(delay, func() { c.resolve(seq) })
	c.mu.Unlock()

	if prev.status == StatusShowing {
		c.log.Debug("show interrupted by reload", log.String("unit", id))
		c.emit(Event{
			Type:   EventInterrupted,
			UnitID: id,
			AdType: prev.adType,
			Status: StatusLoading,
			Time:   now,
		})
	}
	c.log.Debug("loading ad",
		log.String("unit", id),
		log.String("type", string(adType)),
		log.Duration("delay", delay))
	c.emit(Event{
		Type:   EventLoadRequested,
		UnitID: id,
		AdType: adType,
		Status: StatusLoading,
		Time:   now,
	})
	return seq, p.result, true
}

// latency draws a load delay in [MinLatency, MaxLatency). Caller holds mu.
func (c *Controller) latency() time.Duration {
	span := c.cfg.MaxLatency - c.cfg.MinLatency
	if span <= 0 {
		return c.cfg.MinLatency
	}
	d := time.Duration(c.rand.Float64() * float64(span))
	if d >= span {
		// float rounding near 1.0
		d = span - 1
	}
	return c.cfg.MinLatency + d
}

// resolve runs when a load timer fires
func (c *Controller) resolve(seq uint64) {
	c.mu.Lock()
	p, ok := c.pending[seq]
	if !ok {
		c.mu.Unlock()
		return
	}
	delete(c.pending, seq)

	now := c.clock.Now()
	loaded := c.rand.Float64() >= c.cfg.FailureRate
	_, applied := c.reg.resolveLoad(p.id, p.gen, loaded, now, c.cfg.FailureReason)
	p.result <- applied && loaded
	c.mu.Unlock()

	ev := Event{
		UnitID:  p.id,
		AdType:  p.adType,
		Time:    now,
		Latency: now.Sub(p.started),
	}
	switch {
	case !applied:
		ev.Type = EventSuperseded
		ev.Status = c.reg.State(p.id).Status
		c.log.Debug("dropping superseded ad load", log.String("unit", p.id))
	case loaded:
		ev.Type = EventLoaded
		ev.Status = StatusLoaded
		c.log.Debug("ad loaded", log.String("unit", p.id), log.Duration("latency", ev.Latency))
	default:
		ev.Type = EventFailed
		ev.Status = StatusFailed
		ev.Reason = c.cfg.FailureReason
		c.log.Debug("ad failed to load", log.String("unit", p.id), log.String("reason", ev.Reason))
	}
	c.emit(ev)
}

// abandon disposes a pending load without touching the registry
func (c *Controller) abandon(seq uint64) {
	c.mu.Lock()
	p, ok := c.pending[seq]
	if ok {
		delete(c.pending, seq)
		p.timer.Stop()
	}
	now := c.clock.Now()
	c.mu.Unlock()

	if !ok {
		return
	}
	c.log.Debug("abandoning ad load", log.String("unit", p.id))
	c.emit(Event{
		Type:   EventAbandoned,
		UnitID: p.id,
		AdType: p.adType,
		Time:   now,
	})
}

// Show displays a loaded unit. It returns false without changing anything
// unless the unit is loaded. The unit closes itself once its format's
// display duration elapses.
func (c *Controller) Show(id string) bool {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return false
	}

	now := c.clock.Now()
	sh, ok := c.reg.beginShow(id, now)
	if !ok {
		c.mu.Unlock()
		c.log.Debug("ad not ready to show", log.String("unit", id))
		return false
	}

	f, _ := c.cfg.format(sh.adType)
	gen := sh.gen
	t := c.clock.AfterFunc(f.Display, func() { c.expire(id, gen) })
	if !c.reg.setCloseTimer(id, gen, t) {
		t.Stop()
	}
	c.mu.Unlock()

	c.log.Debug("showing ad",
		log.String("unit", id),
		log.String("type", string(sh.adType)),
		log.Duration("display", f.Display))
	c.emit(Event{
		Type:   EventShown,
		UnitID: id,
		AdType: sh.adType,
		Status: StatusShowing,
		Time:   now,
	})
	return true
}

// expire closes a unit at the end of its display duration, granting the
// reward for rewarded formats.
func (c *Controller) expire(id string, gen uint64) {
	c.mu.Lock()
	sh, ok := c.reg.lookupShowing(id)
	if !ok || sh.gen != gen {
		c.mu.Unlock()
		return
	}
	f, _ := c.cfg.format(sh.adType)
	st, granted, _, ok := c.reg.closeShow(id, gen, f.Rewarded)
	now := c.clock.Now()
	c.mu.Unlock()

	if !ok {
		return
	}
	c.log.Debug("ad closed", log.String("unit", id))
	c.emit(Event{
		Type:   EventClosed,
		UnitID: id,
		AdType: st.AdType,
		Status: StatusClosed,
		Time:   now,
	})
	if granted {
		reward := c.cfg.Reward
		c.log.Info("reward granted",
			log.String("unit", id),
			log.String("reward", reward.Type),
			log.Int("amount", reward.Amount))
		c.emit(Event{
			Type:   EventRewarded,
			UnitID: id,
			AdType: st.AdType,
			Status: StatusClosed,
			Time:   now,
			Reward: &reward,
		})
	}
}

// Status returns the unit's status; units never loaded read as loading
func (c *Controller) Status(id string) Status {
	return c.reg.State(id).Status
}

// IsReady reports whether the unit is loaded
func (c *Controller) IsReady(id string) bool {
	return c.reg.State(id).Ready()
}

// State returns the unit's full state
func (c *Controller) State(id string) UnitState {
	return c.reg.State(id)
}

// Snapshot returns every tracked unit's state
func (c *Controller) Snapshot() map[string]UnitState {
	return c.reg.Snapshot()
}

// Stats counts tracked units by status
func (c *Controller) Stats() Stats {
	return c.reg.Stats()
}

// SetRewardedWatched sets the rewarded-watched flag
func (c *Controller) SetRewardedWatched(watched bool) {
	c.reg.setRewardedWatched(watched)
}

// RewardedWatched reports whether a rewarded ad has been watched to the end
func (c *Controller) RewardedWatched() bool {
	return c.reg.RewardedWatched()
}

// Registry returns the controller's registry
func (c *Controller) Registry() *Registry {
	return c.reg
}

// Format returns the behaviour configured for an ad type
func (c *Controller) Format(t AdType) (Format, bool) {
	return c.cfg.format(t)
}

// Reset returns the subsystem to its initial state: pending loads resolve
// false, every timer is disposed, all units are forgotten and the
// rewarded flag is cleared.
func (c *Controller) Reset() {
	c.mu.Lock()
	c.resetLocked()
	now := c.clock.Now()
	c.mu.Unlock()

	c.log.Info("ad state reset")
	c.emit(Event{Type: EventReset, Time: now})
}

// Close resets the controller and rejects further loads and shows
func (c *Controller) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.resetLocked()
	c.mu.Unlock()

	c.log.Debug("ad controller closed")
}

func (c *Controller) resetLocked() {
	for seq, p := range c.pending {
		p.timer.Stop()
		p.result <- false
		delete(c.pending, seq)
	}
	for _, t := range c.reg.reset() {
		t.Stop()
	}
}

func (c *Controller) emit(ev Event) {
	for _, o := range c.observers {
		o.Observe(ev)
	}
}
