// Copyright (C) 2025, ADXYZ Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/mux"
	"github.com/joho/godotenv"

	"github.com/stockcall/adsim/pkg/ads"
	"github.com/stockcall/adsim/pkg/analytics"
	"github.com/stockcall/adsim/pkg/api"
	"github.com/stockcall/adsim/pkg/log"
	"github.com/stockcall/adsim/pkg/metric"
	"github.com/stockcall/adsim/pkg/stream"
)

var (
	// Version info
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

type options struct {
	port        int
	logLevel    string
	failureRate float64
	minLatency  time.Duration
	maxLatency  time.Duration
	preload     bool
	version     bool
}

// parseOptions reads flags whose defaults come from the environment,
// after loading an optional .env file.
func parseOptions() options {
	_ = godotenv.Load()

	var o options
	flag.IntVar(&o.port, "port", envInt("ADSIM_PORT", 8080), "HTTP port")
	flag.StringVar(&o.logLevel, "log-level", envString("ADSIM_LOG_LEVEL", "info"), "Log level: debug, info, warn, error")
	flag.Float64Var(&o.failureRate, "failure-rate", envFloat("ADSIM_FAILURE_RATE", ads.DefaultFailureRate), "Probability that a load fails")
	flag.DurationVar(&o.minLatency, "min-latency", envDuration("ADSIM_MIN_LATENCY", ads.DefaultMinLatency), "Minimum simulated load latency")
	flag.DurationVar(&o.maxLatency, "max-latency", envDuration("ADSIM_MAX_LATENCY", ads.DefaultMaxLatency), "Maximum simulated load latency")
	flag.BoolVar(&o.preload, "preload", envBool("ADSIM_PRELOAD", false), "Load the default placements at start")
	flag.BoolVar(&o.version, "version", false, "Show version information")
	flag.Parse()
	return o
}

func envString(key, def string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) int {
	if v, err := strconv.Atoi(os.Getenv(key)); err == nil {
		return v
	}
	return def
}

func envFloat(key string, def float64) float64 {
	if v, err := strconv.ParseFloat(os.Getenv(key), 64); err == nil {
		return v
	}
	return def
}

func envDuration(key string, def time.Duration) time.Duration {
	if v, err := time.ParseDuration(os.Getenv(key)); err == nil {
		return v
	}
	return def
}

func envBool(key string, def bool) bool {
	if v, err := strconv.ParseBool(os.Getenv(key)); err == nil {
		return v
	}
	return def
}

// Daemon hosts the simulated ad subsystem
type Daemon struct {
	Controller *ads.Controller
	Metrics    *metric.Metrics
	Tracker    *analytics.Tracker
	Hub        *stream.Hub

	httpServer *http.Server
	started    time.Time
	log        log.Logger
}

func main() {
	opts := parseOptions()

	if opts.version {
		fmt.Printf("StockCall ad simulator (adsimd) %s (commit: %s, built: %s)\n", Version, GitCommit, BuildTime)
		os.Exit(0)
	}

	logger := log.NewWithLevel(opts.logLevel)
	defer logger.Sync()

	d, err := NewDaemon(opts, logger)
	if err != nil {
		logger.Error("failed to create daemon", log.Error(err))
		os.Exit(1)
	}
	d.Start()

	if opts.preload {
		go func() {
			results := d.Controller.Preload(context.Background(), ads.DefaultPlacements)
			for id, loaded := range results {
				logger.Info("preloaded placement", log.String("unit", id), log.Bool("loaded", loaded))
			}
		}()
	}

	// Wait for shutdown signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := d.Shutdown(ctx); err != nil {
		logger.Error("error during shutdown", log.Error(err))
	}
	logger.Info("daemon stopped")
}

// NewDaemon wires the controller to its observers
func NewDaemon(opts options, logger log.Logger) (*Daemon, error) {
	cfg := ads.DefaultConfig()
	cfg.FailureRate = opts.failureRate
	cfg.MinLatency = opts.minLatency
	cfg.MaxLatency = opts.maxLatency

	metrics, err := metric.New()
	if err != nil {
		return nil, fmt.Errorf("failed to create metrics: %w", err)
	}
	tracker := analytics.NewTracker(nil,
		analytics.WithLogger(logger.With(log.String("component", "analytics"))))
	hub := stream.NewHub(logger.With(log.String("component", "stream")))

	ctrl, err := ads.NewController(cfg, logger.With(log.String("component", "ads")),
		ads.WithObserver(metrics),
		ads.WithObserver(tracker),
		ads.WithObserver(hub),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create ad controller: %w", err)
	}

	d := &Daemon{
		Controller: ctrl,
		Metrics:    metrics,
		Tracker:    tracker,
		Hub:        hub,
		log:        logger,
	}
	d.httpServer = &http.Server{
		Addr:              fmt.Sprintf(":%d", opts.port),
		Handler:           d.setupRoutes(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	return d, nil
}

// Start serves HTTP in the background
func (d *Daemon) Start() {
	d.started = time.Now()
	d.log.Info("starting ad simulator",
		log.String("version", Version),
		log.String("addr", d.httpServer.Addr))

	go func() {
		if err := d.httpServer.ListenAndServe(); err != http.ErrServerClosed {
			d.log.Error("HTTP server error", log.Error(err))
		}
	}()
}

// Shutdown stops serving and resets the ad subsystem
func (d *Daemon) Shutdown(ctx context.Context) error {
	d.log.Info("shutting down")

	d.Hub.Close()
	err := d.httpServer.Shutdown(ctx)
	d.Controller.Close()
	return err
}

func (d *Daemon) setupRoutes() *mux.Router {
	gin.SetMode(gin.ReleaseMode)
	engine := api.NewRouter(d.Controller, d.Tracker, d.log.With(log.String("component", "api")))

	r := mux.NewRouter()

	// Health check
	r.HandleFunc("/health", d.handleHealth).Methods("GET")

	// Prometheus exposition
	r.Handle("/metrics", d.Metrics.Handler()).Methods("GET")

	// Lifecycle event stream
	r.Handle("/ws", d.Hub)

	// REST surface
	r.PathPrefix("/api/").Handler(engine)

	return r
}

func (d *Daemon) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"status":  "healthy",
		"version": Version,
		"uptime":  time.Since(d.started).String(),
		"units":   d.Controller.Stats(),
		"clients": d.Hub.Clients(),
	})
}
