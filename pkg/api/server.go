// Copyright (C) 2025, ADXYZ Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package api exposes the simulated ad subsystem over HTTP.
package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/stockcall/adsim/pkg/ads"
	"github.com/stockcall/adsim/pkg/ids"
	"github.com/stockcall/adsim/pkg/log"
)

const RequestIDHeader = "X-Request-ID"

// Service is the ad lifecycle driven by the API. *ads.Controller
// implements it.
type Service interface {
	Load(ctx context.Context, id string, adType ads.AdType) bool
	Show(id string) bool
	Skip(id string) bool
	State(id string) ads.UnitState
	Snapshot() map[string]ads.UnitState
	Stats() ads.Stats
	Playback(id string) (ads.Playback, bool)
	SetRewardedWatched(watched bool)
	RewardedWatched() bool
	Reset()
}

var _ Service = (*ads.Controller)(nil)

// Analytics reports aggregate delivery metrics
type Analytics interface {
	GetRealTimeMetrics() map[string]interface{}
}

// Server serves the REST surface
type Server struct {
	svc       Service
	analytics Analytics
	log       log.Logger
}

// NewRouter builds the gin engine with every route under /api/v1.
// analytics may be nil.
func NewRouter(svc Service, analytics Analytics, logger log.Logger) *gin.Engine {
	s := &Server{svc: svc, analytics: analytics, log: logger}

	router := gin.New()
	// unit ids may carry escaped slashes
	router.UseRawPath = true
	router.Use(gin.Recovery(), requestID(), s.accessLog())

	config := cors.DefaultConfig()
	config.AllowAllOrigins = true
	config.AllowMethods = []string{"GET", "POST", "PUT", "OPTIONS"}
	config.AllowHeaders = []string{"Origin", "Content-Type", "Accept"}
	config.ExposeHeaders = []string{RequestIDHeader}
	router.Use(cors.New(config))

	api := router.Group("/api/v1")
	{
		// Ad units
		api.GET("/units", s.listUnits)
		api.GET("/units/:id", s.getUnit)
		api.POST("/units/:id/load", s.loadUnit)
		api.POST("/units/:id/show", s.showUnit)
		api.POST("/units/:id/skip", s.skipUnit)
		api.GET("/units/:id/playback", s.getPlayback)

		// Subsystem state
		api.GET("/stats", s.getStats)
		api.GET("/rewarded", s.getRewarded)
		api.PUT("/rewarded", s.putRewarded)
		api.POST("/reset", s.reset)

		// Reporting
		api.GET("/analytics", s.getAnalytics)
		api.GET("/testids", s.getTestIDs)
	}

	return router
}

// requestID tags every request and response with an ID
func requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(RequestIDHeader)
		if id == "" {
			id = ids.NewRequestID()
		}
		c.Set("requestID", id)
		c.Header(RequestIDHeader, id)
		c.Next()
	}
}

func (s *Server) accessLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.log.Debug("api request",
			log.String("method", c.Request.Method),
			log.String("path", c.FullPath()),
			log.Int("status", c.Writer.Status()),
			log.Duration("took", time.Since(start)),
			log.String("requestID", c.GetString("requestID")))
	}
}

type unitResponse struct {
	UnitID string `json:"unitId"`
	Ready  bool   `json:"ready"`
	ads.UnitState
}

func (s *Server) unit(id string) unitResponse {
	st := s.svc.State(id)
	return unitResponse{UnitID: id, Ready: st.Ready(), UnitState: st}
}

func (s *Server) listUnits(c *gin.Context) {
	units := s.svc.Snapshot()
	c.JSON(http.StatusOK, gin.H{
		"units": units,
		"total": len(units),
	})
}

func (s *Server) getUnit(c *gin.Context) {
	c.JSON(http.StatusOK, s.unit(c.Param("id")))
}

func (s *Server) loadUnit(c *gin.Context) {
	var req struct {
		Type string `json:"type" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	adType, err := ads.ParseAdType(req.Type)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	id := c.Param("id")
	loaded := s.svc.Load(c.Request.Context(), id, adType)
	if errors.Is(c.Request.Context().Err(), context.Canceled) {
		// client went away
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"loaded": loaded,
		"unit":   s.unit(id),
	})
}

func (s *Server) showUnit(c *gin.Context) {
	id := c.Param("id")
	c.JSON(http.StatusOK, gin.H{
		"accepted": s.svc.Show(id),
		"unit":     s.unit(id),
	})
}

func (s *Server) skipUnit(c *gin.Context) {
	id := c.Param("id")
	c.JSON(http.StatusOK, gin.H{
		"skipped": s.svc.Skip(id),
		"unit":    s.unit(id),
	})
}

func (s *Server) getPlayback(c *gin.Context) {
	pb, ok := s.svc.Playback(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "unit is not showing"})
		return
	}
	c.JSON(http.StatusOK, pb)
}

func (s *Server) getStats(c *gin.Context) {
	c.JSON(http.StatusOK, s.svc.Stats())
}

func (s *Server) getRewarded(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"watched": s.svc.RewardedWatched()})
}

func (s *Server) putRewarded(c *gin.Context) {
	var req struct {
		Watched *bool `json:"watched" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	s.svc.SetRewardedWatched(*req.Watched)
	c.JSON(http.StatusOK, gin.H{"watched": s.svc.RewardedWatched()})
}

func (s *Server) reset(c *gin.Context) {
	s.svc.Reset()
	s.log.Info("ad state reset over api", log.String("requestID", c.GetString("requestID")))
	c.JSON(http.StatusOK, gin.H{"reset": true})
}

func (s *Server) getAnalytics(c *gin.Context) {
	if s.analytics == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "analytics disabled"})
		return
	}
	c.JSON(http.StatusOK, s.analytics.GetRealTimeMetrics())
}

func (s *Server) getTestIDs(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"publisher": ids.TestPublisher,
		"units":     ids.TestUnits,
	})
}
