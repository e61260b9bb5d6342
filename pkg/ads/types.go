// Copyright (C) 2025, ADXYZ Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package ads simulates AdMob ad units entirely in process. A Registry
// owns the per-unit lifecycle state and a Controller moves units through it
// on randomized timers; nothing touches the network.
package ads

import (
	"fmt"
	"time"
)

// AdType is the ad format requested for a unit
type AdType string

const (
	Banner       AdType = "banner"
	Interstitial AdType = "interstitial"
	Rewarded     AdType = "rewarded"
	Native       AdType = "native"
	AppOpen      AdType = "appOpen"
)

// AdTypes lists every supported format
var AdTypes = []AdType{Banner, Interstitial, Rewarded, Native, AppOpen}

// ParseAdType parses a format name
func ParseAdType(s string) (AdType, error) {
	for _, t := range AdTypes {
		if string(t) == s {
			return t, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownAdType, s)
}

// Status is the lifecycle status of an ad unit
type Status string

const (
	StatusLoading Status = "loading"
	StatusLoaded  Status = "loaded"
	StatusFailed  Status = "failed"
	StatusShowing Status = "showing"
	StatusClosed  Status = "closed"
)

// UnitState is the observable state of one ad unit.
//
// ErrorReason is set iff Status is StatusFailed. LoadCompletedAt is set iff
// Status is StatusLoaded, StatusShowing or StatusClosed.
type UnitState struct {
	Status          Status     `json:"status"`
	AdType          AdType     `json:"type,omitempty"`
	LoadCompletedAt *time.Time `json:"loadCompletedAt,omitempty"`
	ErrorReason     string     `json:"error,omitempty"`
}

// Ready reports whether the unit can be shown
func (s UnitState) Ready() bool {
	return s.Status == StatusLoaded
}

// Stats counts tracked units by status
type Stats struct {
	Total   int `json:"total"`
	Loading int `json:"loading"`
	Loaded  int `json:"loaded"`
	Failed  int `json:"failed"`
	Showing int `json:"showing"`
	Closed  int `json:"closed"`
}

// Reward is granted when a rewarded ad plays to the end
type Reward struct {
	Type   string `json:"type"`
	Amount int    `json:"amount"`
}

// Placement pairs a caller-chosen unit ID with its format
type Placement struct {
	ID   string `json:"id"`
	Type AdType `json:"type"`
}

// DefaultPlacements are loaded when the application starts
var DefaultPlacements = []Placement{
	{ID: "main-banner", Type: Banner},
	{ID: "main-interstitial", Type: Interstitial},
	{ID: "completed-rewarded", Type: Rewarded},
	{ID: "native-feed", Type: Native},
}
