// Copyright (C) 2025, ADXYZ Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	testclock "github.com/stockcall/adsim/internal/testing/clock"
	"github.com/stockcall/adsim/pkg/ads"
	"github.com/stockcall/adsim/pkg/analytics"
	"github.com/stockcall/adsim/pkg/ids"
	"github.com/stockcall/adsim/pkg/log"
)

type fixture struct {
	router  *gin.Engine
	ctrl    *ads.Controller
	clock   *testclock.Manual
	tracker *analytics.Tracker
}

func newFixture(t *testing.T, src ads.Source) *fixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	tracker := analytics.NewTracker(nil)
	clk := testclock.NewManual(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))
	ctrl, err := ads.NewController(ads.DefaultConfig(), log.NoOp(),
		ads.WithClock(clk), ads.WithSource(src), ads.WithObserver(tracker))
	require.NoError(t, err)
	t.Cleanup(ctrl.Close)

	return &fixture{
		router:  NewRouter(ctrl, tracker, log.NoOp()),
		ctrl:    ctrl,
		clock:   clk,
		tracker: tracker,
	}
}

func (f *fixture) do(method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

// load issues a load request and drives the clock until it answers
func (f *fixture) load(t *testing.T, id, adType string) *httptest.ResponseRecorder {
	t.Helper()

	done := make(chan *httptest.ResponseRecorder, 1)
	pending := f.clock.Pending()
	go func() {
		done <- f.do("POST", "/api/v1/units/"+id+"/load", `{"type":"`+adType+`"}`)
	}()
	f.clock.BlockUntil(pending + 1)
	f.clock.Advance(ads.DefaultMaxLatency)

	select {
	case rec := <-done:
		return rec
	case <-time.After(time.Second):
		t.Fatal("load request did not answer")
		return nil
	}
}

type unitBody struct {
	UnitID          string     `json:"unitId"`
	Ready           bool       `json:"ready"`
	Status          ads.Status `json:"status"`
	Type            ads.AdType `json:"type"`
	LoadCompletedAt *time.Time `json:"loadCompletedAt"`
	Error           string     `json:"error"`
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v))
	return v
}

func TestUnitLifecycle(t *testing.T) {
	require := require.New(t)
	f := newFixture(t, ads.FixedSource(0.5))

	rec := f.do("GET", "/api/v1/units/main-banner", "")
	require.Equal(http.StatusOK, rec.Code)
	unit := decode[unitBody](t, rec)
	require.Equal(ads.StatusLoading, unit.Status)
	require.False(unit.Ready)

	rec = f.load(t, "main-banner", "banner")
	require.Equal(http.StatusOK, rec.Code)
	loaded := decode[struct {
		Loaded bool     `json:"loaded"`
		Unit   unitBody `json:"unit"`
	}](t, rec)
	require.True(loaded.Loaded)
	require.True(loaded.Unit.Ready)
	require.Equal(ads.Banner, loaded.Unit.Type)
	require.NotNil(loaded.Unit.LoadCompletedAt)

	rec = f.do("POST", "/api/v1/units/main-banner/show", "")
	require.Equal(http.StatusOK, rec.Code)
	shown := decode[struct {
		Accepted bool     `json:"accepted"`
		Unit     unitBody `json:"unit"`
	}](t, rec)
	require.True(shown.Accepted)
	require.Equal(ads.StatusShowing, shown.Unit.Status)

	rec = f.do("GET", "/api/v1/units/main-banner/playback", "")
	require.Equal(http.StatusOK, rec.Code)
	pb := decode[ads.Playback](t, rec)
	require.Equal(ads.DefaultDisplay, pb.Duration)
	require.False(pb.CanSkip)

	rec = f.do("POST", "/api/v1/units/main-banner/skip", "")
	require.False(decode[struct {
		Skipped bool `json:"skipped"`
	}](t, rec).Skipped)

	// a second show is refused while showing
	rec = f.do("POST", "/api/v1/units/main-banner/show", "")
	require.False(decode[struct {
		Accepted bool `json:"accepted"`
	}](t, rec).Accepted)

	f.clock.Advance(ads.DefaultDisplay)
	rec = f.do("GET", "/api/v1/units/main-banner", "")
	require.Equal(ads.StatusClosed, decode[unitBody](t, rec).Status)

	rec = f.do("GET", "/api/v1/units/main-banner/playback", "")
	require.Equal(http.StatusNotFound, rec.Code)

	rec = f.do("GET", "/api/v1/stats", "")
	stats := decode[ads.Stats](t, rec)
	require.Equal(1, stats.Total)
	require.Equal(1, stats.Closed)

	rec = f.do("GET", "/api/v1/units", "")
	list := decode[struct {
		Units map[string]ads.UnitState `json:"units"`
		Total int                      `json:"total"`
	}](t, rec)
	require.Equal(1, list.Total)
	require.Equal(ads.StatusClosed, list.Units["main-banner"].Status)
}

func TestLoadFailure(t *testing.T) {
	require := require.New(t)
	f := newFixture(t, ads.FixedSource(0))

	rec := f.load(t, "native-feed", "native")
	require.Equal(http.StatusOK, rec.Code)
	body := decode[struct {
		Loaded bool     `json:"loaded"`
		Unit   unitBody `json:"unit"`
	}](t, rec)
	require.False(body.Loaded)
	require.Equal(ads.StatusFailed, body.Unit.Status)
	require.Equal(ads.DefaultFailureReason, body.Unit.Error)
	require.Nil(body.Unit.LoadCompletedAt)
}

func TestLoadRejectsBadRequests(t *testing.T) {
	require := require.New(t)
	f := newFixture(t, ads.FixedSource(0.5))

	rec := f.do("POST", "/api/v1/units/x/load", `{"type":"video"}`)
	require.Equal(http.StatusBadRequest, rec.Code)
	require.Contains(rec.Body.String(), "unknown ad type")

	rec = f.do("POST", "/api/v1/units/x/load", `{}`)
	require.Equal(http.StatusBadRequest, rec.Code)

	rec = f.do("POST", "/api/v1/units/x/load", `not json`)
	require.Equal(http.StatusBadRequest, rec.Code)

	require.Zero(f.clock.Pending())
	require.Empty(f.ctrl.Snapshot())
}

func TestRewardedFlagAndReset(t *testing.T) {
	require := require.New(t)
	f := newFixture(t, ads.FixedSource(0.5))

	type flag struct {
		Watched bool `json:"watched"`
	}
	require.False(decode[flag](t, f.do("GET", "/api/v1/rewarded", "")).Watched)

	rec := f.do("PUT", "/api/v1/rewarded", `{"watched":true}`)
	require.Equal(http.StatusOK, rec.Code)
	require.True(decode[flag](t, rec).Watched)
	require.True(f.ctrl.RewardedWatched())

	rec = f.do("PUT", "/api/v1/rewarded", `{}`)
	require.Equal(http.StatusBadRequest, rec.Code)

	f.load(t, "r", "rewarded")
	rec = f.do("POST", "/api/v1/reset", "")
	require.Equal(http.StatusOK, rec.Code)
	require.False(f.ctrl.RewardedWatched())
	require.Empty(f.ctrl.Snapshot())
	require.Equal(uint64(1), f.tracker.TotalResets.Load())
}

func TestAnalyticsAndTestIDs(t *testing.T) {
	require := require.New(t)
	f := newFixture(t, ads.FixedSource(0.5))

	f.load(t, "main-banner", "banner")
	rec := f.do("GET", "/api/v1/analytics", "")
	require.Equal(http.StatusOK, rec.Code)
	metrics := decode[map[string]interface{}](t, rec)
	require.Equal(1.0, metrics["total_fills"])
	require.Equal(1.0, metrics["fill_rate"])

	rec = f.do("GET", "/api/v1/testids", "")
	require.Equal(http.StatusOK, rec.Code)
	body := decode[struct {
		Publisher string            `json:"publisher"`
		Units     map[string]string `json:"units"`
	}](t, rec)
	require.Equal(ids.TestPublisher, body.Publisher)
	require.Equal(ids.RewardedTestUnit, body.Units["rewardedVideo"])
}

func TestEscapedUnitID(t *testing.T) {
	require := require.New(t)
	f := newFixture(t, ads.FixedSource(0.5))

	rec := f.load(t, "feed%2Fnative", "native")
	require.Equal(http.StatusOK, rec.Code)
	require.Equal(ads.StatusLoaded, f.ctrl.Status("feed/native"))

	rec = f.do("GET", "/api/v1/units/feed%2Fnative", "")
	require.Equal(http.StatusOK, rec.Code)
	unit := decode[unitBody](t, rec)
	require.Equal("feed/native", unit.UnitID)
	require.True(unit.Ready)
}

func TestRequestID(t *testing.T) {
	require := require.New(t)
	f := newFixture(t, ads.FixedSource(0.5))

	rec := f.do("GET", "/api/v1/stats", "")
	_, err := uuid.Parse(rec.Header().Get(RequestIDHeader))
	require.NoError(err)

	req := httptest.NewRequest("GET", "/api/v1/stats", nil)
	req.Header.Set(RequestIDHeader, "caller-supplied")
	rec = httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	require.Equal("caller-supplied", rec.Header().Get(RequestIDHeader))
}
