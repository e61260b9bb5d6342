// Copyright (C) 2025, ADXYZ Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package ads

import (
	"time"

	"github.com/stockcall/adsim/pkg/log"
)

// Playback is the on-screen progress of a showing unit
type Playback struct {
	UnitID    string        `json:"unitId"`
	AdType    AdType        `json:"type"`
	Elapsed   time.Duration `json:"elapsed"`
	Duration  time.Duration `json:"duration"`
	Remaining time.Duration `json:"remaining"`
	// Progress is Elapsed/Duration clamped to [0, 1].
	Progress float64 `json:"progress"`
	CanSkip  bool    `json:"canSkip"`
	// SkipIn is the wait until CanSkip; zero once skipping is allowed or
	// when the format cannot be skipped.
	SkipIn time.Duration `json:"skipIn"`
	// GrantsReward is set while playing to the end still earns a reward.
	GrantsReward bool `json:"grantsReward"`
}

// Playback reports the progress of a showing unit. It returns false for
// units that are not showing.
func (c *Controller) Playback(id string) (Playback, bool) {
	sh, ok := c.reg.lookupShowing(id)
	if !ok {
		return Playback{}, false
	}
	f, _ := c.cfg.format(sh.adType)

	elapsed := c.clock.Now().Sub(sh.shownAt)
	if elapsed < 0 {
		elapsed = 0
	}
	if elapsed > f.Display {
		elapsed = f.Display
	}

	pb := Playback{
		UnitID:    id,
		AdType:    sh.adType,
		Elapsed:   elapsed,
		Duration:  f.Display,
		Remaining: f.Display - elapsed,
		Progress:  float64(elapsed) / float64(f.Display),
		CanSkip:   f.Skippable && elapsed >= f.SkipAfter,

		GrantsReward: f.Rewarded && !sh.rewarded,
	}
	if f.Skippable && !pb.CanSkip {
		pb.SkipIn = f.SkipAfter - elapsed
	}
	return pb, true
}

// Skip closes a showing unit early. It is refused for formats that cannot
// be skipped and before the format's skip threshold. A skipped rewarded ad
// grants no reward.
func (c *Controller) Skip(id string) bool {
	c.mu.Lock()
	sh, ok := c.reg.lookupShowing(id)
	if !ok {
		c.mu.Unlock()
		return false
	}
	f, _ := c.cfg.format(sh.adType)
	now := c.clock.Now()
	if elapsed := now.Sub(sh.shownAt); !f.Skippable || elapsed < f.SkipAfter {
		c.mu.Unlock()
		c.log.Debug("skip refused",
			log.String("unit", id),
			log.Duration("elapsed", elapsed),
			log.Duration("skipAfter", f.SkipAfter))
		return false
	}
	st, _, timer, ok := c.reg.closeShow(id, sh.gen, false)
	if timer != nil {
		timer.Stop()
	}
	c.mu.Unlock()

	if !ok {
		return false
	}
	c.log.Debug("ad skipped", log.String("unit", id))
	c.emit(Event{
		Type:   EventSkipped,
		UnitID: id,
		AdType: st.AdType,
		Status: StatusClosed,
		Time:   now,
	})
	return true
}
