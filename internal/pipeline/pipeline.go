// Package pipeline is the ingestion core: it accepts price events from any
// ingress channel, persists them, evaluates anomalies and fans accepted
// events out to live subscribers.
package pipeline

import (
	"context"
	"math"
	"time"

	"go.uber.org/zap"

	"market-gateway/internal/anomaly"
	"market-gateway/internal/domain"
	"market-gateway/internal/observability"
	"market-gateway/internal/storage"
)

// Topic is the live fan-out topic for accepted price events.
const Topic = "prices"

// Broadcaster publishes an accepted event to live subscribers of a topic.
type Broadcaster interface {
	Publish(topic string, payload any) error
}

// Outcome reports which side effects of a Process call took place.
// Only a false Persisted is fatal to the caller.
type Outcome struct {
	Persisted bool `json:"persisted"`
	Alerted   bool `json:"alerted"`
}

// Pipeline orchestrates ingestion. Safe for concurrent use from multiple
// ingress channels.
type Pipeline struct {
	prices      storage.PriceEventStore
	alerts      storage.AlertEventStore
	archive     storage.TickArchive // optional
	evaluator   *anomaly.Evaluator
	broadcaster Broadcaster
	logger      *zap.Logger
	now         func() time.Time
}

// Options contains dependencies for creating a Pipeline.
type Options struct {
	PriceStore  storage.PriceEventStore
	AlertStore  storage.AlertEventStore
	TickArchive storage.TickArchive // nil disables archiving
	Evaluator   *anomaly.Evaluator
	Broadcaster Broadcaster
	Logger      *zap.Logger
	Now         func() time.Time // defaults to time.Now
}

// New creates a new ingestion pipeline.
func New(opts Options) *Pipeline {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	now := opts.Now
	if now == nil {
		now = time.Now
	}

	evaluator := opts.Evaluator
	if evaluator == nil {
		evaluator = anomaly.NewEvaluator(0)
	}

	return &Pipeline{
		prices:      opts.PriceStore,
		alerts:      opts.AlertStore,
		archive:     opts.TickArchive,
		evaluator:   evaluator,
		broadcaster: opts.Broadcaster,
		logger:      logger,
		now:         now,
	}
}

// Process ingests one event: validate, persist, evaluate and best-effort
// alert, archive, broadcast. Each step past persistence is its own failure
// domain; only validation and persistence failures surface to the caller.
func (p *Pipeline) Process(ctx context.Context, event *domain.PriceEvent) (Outcome, error) {
	if err := validate(event); err != nil {
		return Outcome{}, err
	}

	if event.Timestamp.IsZero() {
		event.Timestamp = p.now()
	}

	if err := p.prices.Insert(ctx, event); err != nil {
		return Outcome{}, &PersistenceError{Err: err}
	}
	outcome := Outcome{Persisted: true}

	if decision := p.evaluator.Evaluate(event); decision.IsAnomaly {
		alert := &domain.AlertEvent{
			Symbol:         event.Symbol,
			Message:        decision.Message,
			TriggeredPrice: event.Price,
			Timestamp:      p.now(),
		}
		if err := p.alerts.Insert(ctx, alert); err != nil {
			// Alerting is best-effort: the price event stays persisted.
			observability.RecordAlertFailure()
			p.logger.Error("persist alert failed",
				zap.String("symbol", event.Symbol),
				zap.Float64("price", event.Price),
				zap.Error(err))
		} else {
			observability.RecordAlertPersisted()
			outcome.Alerted = true
			p.logger.Info("alert saved",
				zap.String("symbol", event.Symbol),
				zap.Float64("price", event.Price))
		}
	}

	if p.archive != nil {
		if err := p.archive.Append(ctx, []*domain.PriceEvent{event}); err != nil {
			observability.RecordArchiveFailure()
			p.logger.Warn("archive tick failed",
				zap.String("symbol", event.Symbol),
				zap.Error(err))
		}
	}

	if p.broadcaster != nil {
		if err := p.broadcaster.Publish(Topic, event); err != nil {
			// Fire-and-forget: a subscriber outage never fails ingestion.
			p.logger.Warn("broadcast failed",
				zap.String("symbol", event.Symbol),
				zap.Error(err))
		}
	}

	return outcome, nil
}

// validate checks input constraints: non-empty symbol, finite non-negative price.
func validate(event *domain.PriceEvent) error {
	if event == nil {
		return &ValidationError{Field: "event", Reason: "is missing"}
	}
	if event.Symbol == "" {
		return &ValidationError{Field: "symbol", Reason: "is empty"}
	}
	if math.IsNaN(event.Price) || math.IsInf(event.Price, 0) {
		return &ValidationError{Field: "price", Reason: "is not finite"}
	}
	if event.Price < 0 {
		return &ValidationError{Field: "price", Reason: "is negative"}
	}
	return nil
}
