package api

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"market-gateway/internal/domain"
	"market-gateway/internal/observability"
	"market-gateway/internal/pipeline"
)

const (
	defaultQueryLimit = 50
	maxQueryLimit     = 500
)

// handleIngest accepts one price event per call and runs it through the
// ingestion pipeline. Client faults and server faults map to distinct
// status codes.
func (s *Server) handleIngest(c *gin.Context) {
	start := time.Now()

	var event domain.PriceEvent
	if err := c.ShouldBindJSON(&event); err != nil {
		observability.RecordRejected("http", "decode")
		c.JSON(http.StatusBadRequest, gin.H{"error": "malformed price event: " + err.Error()})
		return
	}
	// The store assigns identity; never trust a caller-supplied ID.
	event.ID = 0

	outcome, err := s.pipeline.Process(c.Request.Context(), &event)
	if err != nil {
		var verr *pipeline.ValidationError
		if errors.As(err, &verr) {
			observability.RecordRejected("http", "validation")
			c.JSON(http.StatusBadRequest, gin.H{"error": verr.Error()})
			return
		}

		observability.RecordRejected("http", "persistence")
		s.logger.Error("ingest failed",
			zap.String("symbol", event.Symbol),
			zap.Error(err))
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "event could not be persisted"})
		return
	}

	observability.RecordAccepted("http")
	observability.ObserveProcessLatency("http", time.Since(start).Seconds())

	c.JSON(http.StatusOK, gin.H{
		"status":    "accepted",
		"persisted": outcome.Persisted,
		"alerted":   outcome.Alerted,
	})
}

// handlePrices returns the most recent events, newest first, optionally
// filtered by symbol.
func (s *Server) handlePrices(c *gin.Context) {
	limit := queryLimit(c)

	var (
		events []*domain.PriceEvent
		err    error
	)
	if symbol := c.Query("symbol"); symbol != "" {
		events, err = s.prices.GetRecentBySymbol(c.Request.Context(), symbol, limit)
	} else {
		events, err = s.prices.GetRecent(c.Request.Context(), limit)
	}
	if err != nil {
		s.logger.Error("query prices failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}

	if events == nil {
		events = []*domain.PriceEvent{}
	}
	c.JSON(http.StatusOK, events)
}

// handleAlerts returns the most recent alert events, newest first.
func (s *Server) handleAlerts(c *gin.Context) {
	alerts, err := s.alerts.GetRecent(c.Request.Context(), queryLimit(c))
	if err != nil {
		s.logger.Error("query alerts failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}

	if alerts == nil {
		alerts = []*domain.AlertEvent{}
	}
	c.JSON(http.StatusOK, alerts)
}

// handleAnalysis returns advisory commentary for a symbol. The advisory
// boundary absorbs all failures, so this always answers 200.
func (s *Server) handleAnalysis(c *gin.Context) {
	symbol := c.DefaultQuery("symbol", s.defaultSymbol)
	commentary := s.advisor.GetCommentary(c.Request.Context(), symbol)
	c.JSON(http.StatusOK, gin.H{"symbol": symbol, "commentary": commentary})
}

// queryLimit parses the limit parameter with default and cap.
func queryLimit(c *gin.Context) int {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(defaultQueryLimit)))
	if err != nil || limit <= 0 {
		return defaultQueryLimit
	}
	if limit > maxQueryLimit {
		return maxQueryLimit
	}
	return limit
}
