// Package api is the synchronous HTTP edge: push ingress, recent-event
// queries, advisory lookups and the live WebSocket subscription.
package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"market-gateway/internal/advisory"
	"market-gateway/internal/broadcast"
	"market-gateway/internal/observability"
	"market-gateway/internal/pipeline"
	"market-gateway/internal/storage"
	"market-gateway/internal/wstransport"
)

// Server holds the HTTP edge dependencies and routes.
type Server struct {
	engine        *gin.Engine
	pipeline      *pipeline.Pipeline
	prices        storage.PriceEventStore
	alerts        storage.AlertEventStore
	advisor       *advisory.Service
	defaultSymbol string
	logger        *zap.Logger
}

// Options contains dependencies for creating a Server.
type Options struct {
	Pipeline      *pipeline.Pipeline
	PriceStore    storage.PriceEventStore
	AlertStore    storage.AlertEventStore
	Advisor       *advisory.Service
	Hub           *broadcast.Hub
	DefaultSymbol string // default "BTC-USD"
	Logger        *zap.Logger
}

// NewServer creates the HTTP server and registers all routes.
func NewServer(opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	defaultSymbol := opts.DefaultSymbol
	if defaultSymbol == "" {
		defaultSymbol = "BTC-USD"
	}

	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())

	s := &Server{
		engine:        engine,
		pipeline:      opts.Pipeline,
		prices:        opts.PriceStore,
		alerts:        opts.AlertStore,
		advisor:       opts.Advisor,
		defaultSymbol: defaultSymbol,
		logger:        logger,
	}

	api := engine.Group("/api")
	api.POST("/ingest", s.handleIngest)
	api.GET("/prices", s.handlePrices)
	api.GET("/alerts", s.handleAlerts)
	api.GET("/ai-analysis", s.handleAnalysis)

	engine.GET("/ws", gin.WrapH(wstransport.NewHandler(opts.Hub, pipeline.Topic, logger)))
	engine.GET("/metrics", gin.WrapH(observability.Handler()))
	engine.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	return s
}

// Handler returns the root HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.engine
}
