// Copyright (C) 2025, ADXYZ Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package metric

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/stockcall/adsim/pkg/ads"
)

const namespace = "adsim"

// Metrics holds the prometheus metrics of the ad lifecycle
type Metrics struct {
	registry *prometheus.Registry

	// Load metrics
	LoadsRequested *prometheus.CounterVec
	LoadsResolved  *prometheus.CounterVec
	LoadLatency    *prometheus.HistogramVec

	// Display metrics
	Impressions *prometheus.CounterVec
	Showing     prometheus.Gauge
	Interrupted *prometheus.CounterVec
	Skips       *prometheus.CounterVec
	Rewards     prometheus.Counter
	Resets      prometheus.Counter
}

// New creates the metric set on a private registry
func New() (*Metrics, error) {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		registry: reg,
		LoadsRequested: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "loads_requested_total",
			Help:      "Total number of ad loads requested",
		}, []string{"type"}),
		LoadsResolved: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "loads_resolved_total",
			Help:      "Total number of ad loads resolved by outcome",
		}, []string{"type", "outcome"}),
		LoadLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "load_latency_seconds",
			Help:      "Simulated ad load latency",
			Buckets:   []float64{1, 1.5, 2, 2.5, 3},
		}, []string{"type"}),
		Impressions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "impressions_total",
			Help:      "Total number of ads shown",
		}, []string{"type"}),
		Showing: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "units_showing",
			Help:      "Number of ad units currently on screen",
		}),
		Interrupted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "shows_interrupted_total",
			Help:      "Total number of shows cut short by a reload",
		}, []string{"type"}),
		Skips: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "skips_total",
			Help:      "Total number of ads skipped before the end",
		}, []string{"type"}),
		Rewards: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rewards_granted_total",
			Help:      "Total number of rewards granted",
		}),
		Resets: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "resets_total",
			Help:      "Total number of full ad state resets",
		}),
	}

	for _, c := range []prometheus.Collector{
		m.LoadsRequested,
		m.LoadsResolved,
		m.LoadLatency,
		m.Impressions,
		m.Showing,
		m.Interrupted,
		m.Skips,
		m.Rewards,
		m.Resets,
	} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// Observe records a lifecycle event
func (m *Metrics) Observe(e ads.Event) {
	t := string(e.AdType)
	switch e.Type {
	case ads.EventLoadRequested:
		m.LoadsRequested.WithLabelValues(t).Inc()
	case ads.EventLoaded, ads.EventFailed, ads.EventSuperseded:
		m.LoadsResolved.WithLabelValues(t, string(e.Type)).Inc()
		m.LoadLatency.WithLabelValues(t).Observe(e.Latency.Seconds())
	case ads.EventAbandoned:
		m.LoadsResolved.WithLabelValues(t, string(e.Type)).Inc()
	case ads.EventShown:
		m.Impressions.WithLabelValues(t).Inc()
		m.Showing.Inc()
	case ads.EventClosed:
		m.Showing.Dec()
	case ads.EventSkipped:
		m.Skips.WithLabelValues(t).Inc()
		m.Showing.Dec()
	case ads.EventInterrupted:
		m.Interrupted.WithLabelValues(t).Inc()
		m.Showing.Dec()
	case ads.EventRewarded:
		m.Rewards.Inc()
	case ads.EventReset:
		m.Resets.Inc()
		m.Showing.Set(0)
	}
}

// Gatherer returns the prometheus gatherer for metrics export
func (m *Metrics) Gatherer() prometheus.Gatherer {
	return m.registry
}

// Registerer returns the prometheus registerer
func (m *Metrics) Registerer() prometheus.Registerer {
	return m.registry
}

// Handler serves the metrics in the prometheus exposition format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
