// Copyright (C) 2025, ADXYZ Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package ads

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	testclock "github.com/stockcall/adsim/internal/testing/clock"
	"github.com/stockcall/adsim/pkg/log"
)

var testEpoch = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

// recorder collects emitted events
type recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *recorder) Observe(e Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *recorder) ofType(t EventType) []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Event
	for _, e := range r.events {
		if e.Type == t {
			out = append(out, e)
		}
	}
	return out
}

func newTestController(t *testing.T, src Source, opts ...Option) (*Controller, *testclock.Manual) {
	t.Helper()

	clk := testclock.NewManual(testEpoch)
	opts = append([]Option{WithClock(clk), WithSource(src)}, opts...)
	c, err := NewController(DefaultConfig(), log.NoOp(), opts...)
	require.NoError(t, err)
	t.Cleanup(c.Close)
	return c, clk
}

// loadNow runs a full load cycle on the manual clock
func loadNow(t *testing.T, c *Controller, clk *testclock.Manual, id string, adType AdType) bool {
	t.Helper()

	result := c.LoadAsync(id, adType)
	clk.Advance(DefaultMaxLatency)
	return receive(t, result)
}

func receive(t *testing.T, result <-chan bool) bool {
	t.Helper()

	select {
	case ok := <-result:
		return ok
	default:
		t.Fatal("load did not resolve")
		return false
	}
}

func requireUnresolved(t *testing.T, result <-chan bool) {
	t.Helper()

	select {
	case ok := <-result:
		t.Fatalf("load resolved early with %v", ok)
	default:
	}
}
