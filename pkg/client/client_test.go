// Copyright (C) 2025, ADXYZ Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package client

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	testclock "github.com/stockcall/adsim/internal/testing/clock"
	"github.com/stockcall/adsim/pkg/ads"
	"github.com/stockcall/adsim/pkg/api"
	"github.com/stockcall/adsim/pkg/log"
	"github.com/stockcall/adsim/pkg/stream"
)

type daemon struct {
	srv   *httptest.Server
	ctrl  *ads.Controller
	clock *testclock.Manual
	hub   *stream.Hub
}

func newDaemon(t *testing.T, src ads.Source) *daemon {
	t.Helper()
	gin.SetMode(gin.TestMode)

	hub := stream.NewHub(log.NoOp())
	clk := testclock.NewManual(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))
	ctrl, err := ads.NewController(ads.DefaultConfig(), log.NoOp(),
		ads.WithClock(clk), ads.WithSource(src), ads.WithObserver(hub))
	require.NoError(t, err)

	mux := http.NewServeMux()
	mux.Handle("/api/", api.NewRouter(ctrl, nil, log.NoOp()))
	mux.Handle("/ws", hub)
	srv := httptest.NewServer(mux)

	t.Cleanup(func() {
		hub.Close()
		srv.Close()
		ctrl.Close()
	})
	return &daemon{srv: srv, ctrl: ctrl, clock: clk, hub: hub}
}

// load runs one load through the client while driving the clock
func (d *daemon) load(t *testing.T, c *Client, id string, adType ads.AdType) (bool, *Unit) {
	t.Helper()

	type result struct {
		loaded bool
		unit   *Unit
		err    error
	}
	done := make(chan result, 1)
	pending := d.clock.Pending()
	go func() {
		loaded, unit, err := c.Load(context.Background(), id, adType)
		done <- result{loaded, unit, err}
	}()
	d.clock.BlockUntil(pending + 1)
	d.clock.Advance(ads.DefaultMaxLatency)

	r := <-done
	require.NoError(t, r.err)
	return r.loaded, r.unit
}

func TestClientLifecycle(t *testing.T) {
	require := require.New(t)
	d := newDaemon(t, ads.FixedSource(0.5))
	c := NewClient(d.srv.URL + "/")
	ctx := context.Background()

	unit, err := c.Unit(ctx, "completed-rewarded")
	require.NoError(err)
	require.Equal(ads.StatusLoading, unit.Status)

	loaded, unit := d.load(t, c, "completed-rewarded", ads.Rewarded)
	require.True(loaded)
	require.True(unit.Ready)

	accepted, err := c.Show(ctx, "completed-rewarded")
	require.NoError(err)
	require.True(accepted)

	d.clock.Advance(ads.RewardedSkipAfter)
	pb, err := c.Playback(ctx, "completed-rewarded")
	require.NoError(err)
	require.True(pb.CanSkip)
	require.True(pb.GrantsReward)

	d.clock.Advance(ads.RewardedDuration - ads.RewardedSkipAfter)
	_, err = c.Playback(ctx, "completed-rewarded")
	require.ErrorIs(err, ErrNotShowing)

	watched, err := c.RewardedWatched(ctx)
	require.NoError(err)
	require.True(watched)

	stats, err := c.Stats(ctx)
	require.NoError(err)
	require.Equal(1, stats.Closed)

	units, err := c.Units(ctx)
	require.NoError(err)
	require.Len(units, 1)

	require.NoError(c.SetRewardedWatched(ctx, false))
	watched, err = c.RewardedWatched(ctx)
	require.NoError(err)
	require.False(watched)

	require.NoError(c.Reset(ctx))
	units, err = c.Units(ctx)
	require.NoError(err)
	require.Empty(units)
}

func TestClientSkip(t *testing.T) {
	require := require.New(t)
	d := newDaemon(t, ads.FixedSource(0.5))
	c := NewClient(d.srv.URL)
	ctx := context.Background()

	loaded, _ := d.load(t, c, "main-interstitial", ads.Interstitial)
	require.True(loaded)

	skipped, err := c.Skip(ctx, "main-interstitial")
	require.NoError(err)
	require.False(skipped)

	accepted, err := c.Show(ctx, "main-interstitial")
	require.NoError(err)
	require.True(accepted)

	skipped, err = c.Skip(ctx, "main-interstitial")
	require.NoError(err)
	require.True(skipped)
	require.False(d.ctrl.RewardedWatched())
}

func TestClientErrors(t *testing.T) {
	require := require.New(t)
	d := newDaemon(t, ads.FixedSource(0.5))
	c := NewClient(d.srv.URL)

	_, _, err := c.Load(context.Background(), "x", ads.AdType("video"))
	require.ErrorIs(err, ErrRequest)
	require.Contains(err.Error(), "unknown ad type")
}

func TestClientEscapesUnitIDs(t *testing.T) {
	require := require.New(t)
	d := newDaemon(t, ads.FixedSource(0.5))
	c := NewClient(d.srv.URL)
	ctx := context.Background()

	const id = "feed/native#1?x"
	loaded, unit := d.load(t, c, id, ads.Native)
	require.True(loaded)
	require.Equal(id, unit.UnitID)
	require.Equal(ads.StatusLoaded, d.ctrl.Status(id))

	accepted, err := c.Show(ctx, id)
	require.NoError(err)
	require.True(accepted)

	pb, err := c.Playback(ctx, id)
	require.NoError(err)
	require.Equal(ads.DefaultDisplay, pb.Duration)

	unit, err = c.Unit(ctx, id)
	require.NoError(err)
	require.Equal(ads.StatusShowing, unit.Status)

	units, err := c.Units(ctx)
	require.NoError(err)
	require.Len(units, 1)
	require.Contains(units, id)
}

func TestClientSubscribe(t *testing.T) {
	require := require.New(t)
	d := newDaemon(t, ads.FixedSource(0.5))
	c := NewClient(d.srv.URL)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	events, err := c.Subscribe(ctx)
	require.NoError(err)
	require.Eventually(func() bool { return d.hub.Clients() == 1 }, time.Second, 5*time.Millisecond)

	d.load(t, c, "main-banner", ads.Banner)
	require.True(d.ctrl.Show("main-banner"))

	var got []ads.EventType
	for len(got) < 3 {
		select {
		case e := <-events:
			require.Equal("main-banner", e.UnitID)
			got = append(got, e.Type)
		case <-time.After(time.Second):
			t.Fatalf("missing events, got %v", got)
		}
	}
	// the request event is emitted after its timer is armed, so it may
	// trail the result when the clock is driven from another goroutine
	require.ElementsMatch([]ads.EventType{ads.EventLoadRequested, ads.EventLoaded}, got[:2])
	require.Equal(ads.EventShown, got[2])

	cancel()
	require.Eventually(func() bool {
		_, open := <-events
		return !open
	}, time.Second, 5*time.Millisecond)
}
