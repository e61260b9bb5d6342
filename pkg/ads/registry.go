// Copyright (C) 2025, ADXYZ Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package ads

import (
	"sync"
	"time"

	"github.com/stockcall/adsim/pkg/clock"
)

// unit is the registry's record for one ad unit
type unit struct {
	state UnitState
	// gen identifies the load cycle that owns this record. Timer callbacks
	// carry the gen they were scheduled for and are ignored once it changes.
	gen        uint64
	shownAt    time.Time
	closeTimer clock.Timer
	rewarded   bool
}

// showing is a copy of the fields needed while a unit is on screen
type showing struct {
	gen      uint64
	adType   AdType
	shownAt  time.Time
	rewarded bool
}

// Registry maps ad unit IDs to their lifecycle state. It is the only owner
// of ad state; mutation is reserved to the Controller.
type Registry struct {
	mu              sync.RWMutex
	units           map[string]*unit
	rewardedWatched bool
	// lastGen is never reset so a generation is never reused
	lastGen uint64
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{
		units: make(map[string]*unit),
	}
}

// State returns the unit's state. Units never loaded read as loading.
func (r *Registry) State(id string) UnitState {
	if st, ok := r.Lookup(id); ok {
		return st
	}
	return UnitState{Status: StatusLoading}
}

// Lookup returns the unit's state and whether it has ever been loaded
func (r *Registry) Lookup(id string) (UnitState, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	u, ok := r.units[id]
	if !ok {
		return UnitState{}, false
	}
	return u.state.clone(), true
}

// Snapshot copies every tracked unit's state
func (r *Registry) Snapshot() map[string]UnitState {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make(map[string]UnitState, len(r.units))
	for id, u := range r.units {
		out[id] = u.state.clone()
	}
	return out
}

// Stats counts tracked units by status
func (r *Registry) Stats() Stats {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s := Stats{Total: len(r.units)}
	for _, u := range r.units {
		switch u.state.Status {
		case StatusLoading:
			s.Loading++
		case StatusLoaded:
			s.Loaded++
		case StatusFailed:
			s.Failed++
		case StatusShowing:
			s.Showing++
		case StatusClosed:
			s.Closed++
		}
	}
	return s
}

// RewardedWatched reports whether a rewarded ad has been watched to the end
func (r *Registry) RewardedWatched() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.rewardedWatched
}

func (r *Registry) setRewardedWatched(watched bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rewardedWatched = watched
}

// replaced describes the cycle a new load displaced. The zero value means
// the unit was not tracked.
type replaced struct {
	status     Status
	adType     AdType
	closeTimer clock.Timer
}

// beginLoad resets the unit to loading under a fresh generation. The
// previous cycle is returned so its close timer can be disposed and an
// interrupted show reported.
func (r *Registry) beginLoad(id string, adType AdType) (uint64, replaced) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.lastGen++
	var prev replaced
	if u := r.units[id]; u != nil {
		prev = replaced{status: u.state.Status, adType: u.state.AdType, closeTimer: u.closeTimer}
	}
	r.units[id] = &unit{
		state: UnitState{Status: StatusLoading, AdType: adType},
		gen:   r.lastGen,
	}
	return r.lastGen, prev
}

// resolveLoad moves a loading unit to loaded or failed. It reports false
// when gen no longer owns the unit.
func (r *Registry) resolveLoad(id string, gen uint64, loaded bool, at time.Time, reason string) (UnitState, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.units[id]
	if !ok || u.gen != gen || u.state.Status != StatusLoading {
		return UnitState{}, false
	}
	if loaded {
		t := at
		u.state.Status = StatusLoaded
		u.state.LoadCompletedAt = &t
		u.state.ErrorReason = ""
	} else {
		u.state.Status = StatusFailed
		u.state.LoadCompletedAt = nil
		u.state.ErrorReason = reason
	}
	return u.state.clone(), true
}

// beginShow moves a loaded unit to showing
func (r *Registry) beginShow(id string, at time.Time) (showing, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.units[id]
	if !ok || u.state.Status != StatusLoaded {
		return showing{}, false
	}
	u.state.Status = StatusShowing
	u.shownAt = at
	return showing{gen: u.gen, adType: u.state.AdType, shownAt: at}, true
}

// setCloseTimer records the auto-close timer of the show cycle gen. It
// reports false if the cycle is already over, in which case the caller
// must stop t.
func (r *Registry) setCloseTimer(id string, gen uint64, t clock.Timer) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.units[id]
	if !ok || u.gen != gen || u.state.Status != StatusShowing {
		return false
	}
	u.closeTimer = t
	return true
}

// lookupShowing returns the on-screen details of a showing unit
func (r *Registry) lookupShowing(id string) (showing, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	u, ok := r.units[id]
	if !ok || u.state.Status != StatusShowing {
		return showing{}, false
	}
	return showing{gen: u.gen, adType: u.state.AdType, shownAt: u.shownAt, rewarded: u.rewarded}, true
}

// closeShow moves a showing unit of cycle gen to closed. With reward set,
// the unit's reward is granted unless it already was; granted reports
// whether this call granted it. The cycle's close timer is returned for
// disposal.
func (r *Registry) closeShow(id string, gen uint64, reward bool) (st UnitState, granted bool, timer clock.Timer, ok bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, exists := r.units[id]
	if !exists || u.gen != gen || u.state.Status != StatusShowing {
		return UnitState{}, false, nil, false
	}
	u.state.Status = StatusClosed
	timer, u.closeTimer = u.closeTimer, nil
	if reward && !u.rewarded {
		u.rewarded = true
		r.rewardedWatched = true
		granted = true
	}
	return u.state.clone(), granted, timer, true
}

// reset forgets every unit and clears the rewarded flag, returning the
// pending close timers for disposal.
func (r *Registry) reset() []clock.Timer {
	r.mu.Lock()
	defer r.mu.Unlock()

	var timers []clock.Timer
	for _, u := range r.units {
		if u.closeTimer != nil {
			timers = append(timers, u.closeTimer)
		}
	}
	r.units = make(map[string]*unit)
	r.rewardedWatched = false
	return timers
}

func (s UnitState) clone() UnitState {
	if s.LoadCompletedAt != nil {
		t := *s.LoadCompletedAt
		s.LoadCompletedAt = &t
	}
	return s
}
