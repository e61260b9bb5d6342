// Copyright (C) 2025, ADXYZ Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package ids

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// Official Google AdMob test unit IDs. They never serve real ads.
const (
	TestPublisher = "ca-app-pub-3940256099942544"

	BannerTestUnit       = TestPublisher + "/6300978111"
	InterstitialTestUnit = TestPublisher + "/1033173712"
	RewardedTestUnit     = TestPublisher + "/5224354917"
	NativeTestUnit       = TestPublisher + "/2247696110"
	AppOpenTestUnit      = TestPublisher + "/3419835294"
)

// TestUnits maps a format name to its test unit ID
var TestUnits = map[string]string{
	"banner":         BannerTestUnit,
	"adaptiveBanner": BannerTestUnit,
	"interstitial":   InterstitialTestUnit,
	"rewardedVideo":  RewardedTestUnit,
	"nativeAdvanced": NativeTestUnit,
	"appOpen":        AppOpenTestUnit,
}

// IsTestUnit reports whether unitID belongs to the AdMob test publisher
func IsTestUnit(unitID string) bool {
	return strings.HasPrefix(unitID, TestPublisher+"/")
}

// NewPlacementID returns a random placement identifier such as
// "feed-native-3f2b9c1e". Placement IDs are opaque to the ad registry; this
// only helps callers that need many distinct placements.
func NewPlacementID(prefix string) string {
	id := uuid.New().String()[:8]
	if prefix == "" {
		return id
	}
	return fmt.Sprintf("%s-%s", prefix, id)
}

// NewRequestID returns a random request identifier
func NewRequestID() string {
	return uuid.New().String()
}
