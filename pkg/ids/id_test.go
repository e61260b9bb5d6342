// Copyright (C) 2025, ADXYZ Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package ids

import (
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func TestTestUnits(t *testing.T) {
	require := require.New(t)

	for name, unit := range TestUnits {
		require.True(IsTestUnit(unit), name)
	}
	require.False(IsTestUnit("ca-app-pub-1234567890123456/1111111111"))
	require.Equal(BannerTestUnit, TestUnits["adaptiveBanner"])
}

func TestNewPlacementID(t *testing.T) {
	require := require.New(t)

	a := NewPlacementID("feed-native")
	b := NewPlacementID("feed-native")
	require.NotEqual(a, b)
	require.True(strings.HasPrefix(a, "feed-native-"))
	require.Len(a, len("feed-native-")+8)

	require.Len(NewPlacementID(""), 8)

	_, err := uuid.Parse(NewRequestID())
	require.NoError(err)
}
