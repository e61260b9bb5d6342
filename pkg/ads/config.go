// Copyright (C) 2025, ADXYZ Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package ads

import (
	"errors"
	"fmt"
	"time"

	"github.com/stockcall/adsim/pkg/ids"
)

var (
	ErrUnknownAdType  = errors.New("unknown ad type")
	ErrInvalidLatency = errors.New("invalid load latency window")
	ErrInvalidRate    = errors.New("failure rate out of range")
	ErrInvalidFormat  = errors.New("invalid ad format")
)

const (
	DefaultMinLatency    = 1000 * time.Millisecond
	DefaultMaxLatency    = 3000 * time.Millisecond
	DefaultFailureRate   = 0.1
	DefaultFailureReason = "Failed to load ad content"

	// DefaultDisplay is how long a shown ad stays up before closing itself
	DefaultDisplay = 5000 * time.Millisecond
	// RewardedDuration is the length of the simulated rewarded video
	RewardedDuration = 30000 * time.Millisecond
	// RewardedSkipAfter is when the rewarded video may be skipped
	RewardedSkipAfter = 15000 * time.Millisecond
)

// Format describes how a shown ad of one type behaves
type Format struct {
	Type       AdType        `json:"type"`
	TestUnitID string        `json:"testUnitId"`
	Display    time.Duration `json:"display"`
	// Skippable formats may be closed early once SkipAfter has elapsed.
	// SkipAfter must stay below Display for the skip window to be usable.
	Skippable bool          `json:"skippable"`
	SkipAfter time.Duration `json:"skipAfter"`
	// Rewarded formats grant the configured reward when Display elapses.
	Rewarded bool `json:"rewarded"`
}

// DefaultFormats returns the format table used by DefaultConfig
func DefaultFormats() map[AdType]Format {
	return map[AdType]Format{
		Banner: {
			Type:       Banner,
			TestUnitID: ids.BannerTestUnit,
			Display:    DefaultDisplay,
		},
		Native: {
			Type:       Native,
			TestUnitID: ids.NativeTestUnit,
			Display:    DefaultDisplay,
		},
		Interstitial: {
			Type:       Interstitial,
			TestUnitID: ids.InterstitialTestUnit,
			Display:    DefaultDisplay,
			Skippable:  true,
		},
		AppOpen: {
			Type:       AppOpen,
			TestUnitID: ids.AppOpenTestUnit,
			Display:    DefaultDisplay,
		},
		Rewarded: {
			Type:       Rewarded,
			TestUnitID: ids.RewardedTestUnit,
			Display:    RewardedDuration,
			Skippable:  true,
			SkipAfter:  RewardedSkipAfter,
			Rewarded:   true,
		},
	}
}

// Config holds the simulation parameters
type Config struct {
	// Load latency is drawn uniformly from [MinLatency, MaxLatency).
	MinLatency    time.Duration
	MaxLatency    time.Duration
	FailureRate   float64
	FailureReason string
	Formats       map[AdType]Format
	Reward        Reward
}

// DefaultConfig returns the stock simulation: 1-3s latency, 10% failures
func DefaultConfig() Config {
	return Config{
		MinLatency:    DefaultMinLatency,
		MaxLatency:    DefaultMaxLatency,
		FailureRate:   DefaultFailureRate,
		FailureReason: DefaultFailureReason,
		Formats:       DefaultFormats(),
		Reward:        Reward{Type: "access", Amount: 1},
	}
}

// Validate checks the configuration
func (c Config) Validate() error {
	if c.MinLatency < 0 || c.MaxLatency < c.MinLatency {
		return fmt.Errorf("%w: [%s, %s)", ErrInvalidLatency, c.MinLatency, c.MaxLatency)
	}
	if c.FailureRate < 0 || c.FailureRate > 1 {
		return fmt.Errorf("%w: %v", ErrInvalidRate, c.FailureRate)
	}
	for _, t := range AdTypes {
		f, ok := c.Formats[t]
		if !ok {
			return fmt.Errorf("%w: no format for %s", ErrInvalidFormat, t)
		}
		if f.Display <= 0 {
			return fmt.Errorf("%w: %s display must be positive", ErrInvalidFormat, t)
		}
		if f.SkipAfter < 0 || f.SkipAfter > f.Display {
			return fmt.Errorf("%w: %s skip threshold outside display window", ErrInvalidFormat, t)
		}
	}
	return nil
}

func (c Config) format(t AdType) (Format, bool) {
	f, ok := c.Formats[t]
	return f, ok
}
