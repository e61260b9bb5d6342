// Copyright (C) 2025, ADXYZ Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package ads

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDefaultDistribution(t *testing.T) {
	require := require.New(t)
	rec := &recorder{}
	c, clk := newTestController(t, NewSeededSource(42), WithObserver(rec))

	const n = 1000
	results := make([]<-chan bool, n)
	for i := range results {
		results[i] = c.LoadAsync(fmt.Sprintf("unit-%d", i), AdTypes[i%len(AdTypes)])
	}

	deadlines := clk.Deadlines()
	require.Len(deadlines, n)
	for _, d := range deadlines {
		require.GreaterOrEqual(d, DefaultMinLatency)
		require.Less(d, DefaultMaxLatency)
	}

	clk.Advance(DefaultMaxLatency)

	failures := 0
	for _, result := range results {
		if !receive(t, result) {
			failures++
		}
	}
	require.GreaterOrEqual(failures, 50)
	require.LessOrEqual(failures, 150)

	stats := c.Stats()
	require.Equal(n, stats.Total)
	require.Equal(failures, stats.Failed)
	require.Equal(n-failures, stats.Loaded)
	require.Zero(stats.Loading)

	resolved := append(rec.ofType(EventLoaded), rec.ofType(EventFailed)...)
	require.Len(resolved, n)
	for _, e := range resolved {
		require.GreaterOrEqual(e.Latency, DefaultMinLatency)
		require.Less(e.Latency, DefaultMaxLatency)
	}
}
