// Copyright (C) 2025, ADXYZ Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package client talks to a running adsimd over HTTP and WebSocket.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/stockcall/adsim/pkg/ads"
)

var (
	ErrNotShowing = errors.New("unit is not showing")
	ErrRequest    = errors.New("request failed")
)

// Client is the adsimd client
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a client for the daemon at baseURL, e.g.
// "http://localhost:8080".
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			// loads take up to the configured max latency
			Timeout: 30 * time.Second,
		},
	}
}

// Unit is a unit's state as reported by the daemon
type Unit struct {
	UnitID string `json:"unitId"`
	Ready  bool   `json:"ready"`
	ads.UnitState
}

// Load requests an ad for the unit and waits for the outcome
func (c *Client) Load(ctx context.Context, unitID string, adType ads.AdType) (bool, *Unit, error) {
	var resp struct {
		Loaded bool `json:"loaded"`
		Unit   Unit `json:"unit"`
	}
	body := map[string]string{"type": string(adType)}
	if err := c.do(ctx, "POST", unitPath(unitID, "load"), body, &resp); err != nil {
		return false, nil, err
	}
	return resp.Loaded, &resp.Unit, nil
}

// Show displays a loaded unit. It reports whether the show was accepted.
func (c *Client) Show(ctx context.Context, unitID string) (bool, error) {
	var resp struct {
		Accepted bool `json:"accepted"`
	}
	if err := c.do(ctx, "POST", unitPath(unitID, "show"), nil, &resp); err != nil {
		return false, err
	}
	return resp.Accepted, nil
}

// Skip closes a showing unit early. It reports whether the skip was allowed.
func (c *Client) Skip(ctx context.Context, unitID string) (bool, error) {
	var resp struct {
		Skipped bool `json:"skipped"`
	}
	if err := c.do(ctx, "POST", unitPath(unitID, "skip"), nil, &resp); err != nil {
		return false, err
	}
	return resp.Skipped, nil
}

// Unit returns one unit's state
func (c *Client) Unit(ctx context.Context, unitID string) (*Unit, error) {
	var unit Unit
	if err := c.do(ctx, "GET", unitPath(unitID, ""), nil, &unit); err != nil {
		return nil, err
	}
	return &unit, nil
}

// Units returns every tracked unit's state
func (c *Client) Units(ctx context.Context) (map[string]ads.UnitState, error) {
	var resp struct {
		Units map[string]ads.UnitState `json:"units"`
	}
	if err := c.do(ctx, "GET", "/units", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Units, nil
}

// Playback returns the progress of a showing unit, or ErrNotShowing
func (c *Client) Playback(ctx context.Context, unitID string) (*ads.Playback, error) {
	var pb ads.Playback
	err := c.do(ctx, "GET", unitPath(unitID, "playback"), nil, &pb)
	if err != nil {
		return nil, err
	}
	return &pb, nil
}

// Stats counts tracked units by status
func (c *Client) Stats(ctx context.Context) (*ads.Stats, error) {
	var stats ads.Stats
	if err := c.do(ctx, "GET", "/stats", nil, &stats); err != nil {
		return nil, err
	}
	return &stats, nil
}

// RewardedWatched reads the rewarded-watched flag
func (c *Client) RewardedWatched(ctx context.Context) (bool, error) {
	var resp struct {
		Watched bool `json:"watched"`
	}
	if err := c.do(ctx, "GET", "/rewarded", nil, &resp); err != nil {
		return false, err
	}
	return resp.Watched, nil
}

// SetRewardedWatched sets the rewarded-watched flag
func (c *Client) SetRewardedWatched(ctx context.Context, watched bool) error {
	return c.do(ctx, "PUT", "/rewarded", map[string]bool{"watched": watched}, nil)
}

// Reset returns the daemon's ad subsystem to its initial state
func (c *Client) Reset(ctx context.Context) error {
	return c.do(ctx, "POST", "/reset", nil, nil)
}

// Subscribe streams lifecycle events until ctx is done or the
// connection drops, then closes the returned channel.
func (c *Client) Subscribe(ctx context.Context) (<-chan ads.Event, error) {
	wsURL := "ws" + strings.TrimPrefix(c.baseURL, "http") + "/ws"

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		return nil, err
	}

	events := make(chan ads.Event, 64)
	go func() {
		<-ctx.Done()
		conn.Close()
	}()
	go func() {
		defer close(events)
		defer conn.Close()
		for {
			var e ads.Event
			if err := conn.ReadJSON(&e); err != nil {
				return
			}
			select {
			case events <- e:
			case <-ctx.Done():
				return
			}
		}
	}()
	return events, nil
}

func unitPath(unitID, action string) string {
	p := "/units/" + url.PathEscape(unitID)
	if action != "" {
		p += "/" + action
	}
	return p
}

func (c *Client) do(ctx context.Context, method, path string, body, out interface{}) error {
	endpoint := fmt.Sprintf("%s/api/v1%s", c.baseURL, path)

	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound && strings.HasSuffix(path, "/playback"):
		return ErrNotShowing
	case resp.StatusCode != http.StatusOK:
		var apiErr struct {
			Error string `json:"error"`
		}
		json.NewDecoder(resp.Body).Decode(&apiErr)
		return fmt.Errorf("%w: %s %s: %s %s", ErrRequest, method, path, resp.Status, apiErr.Error)
	}

	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
