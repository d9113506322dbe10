// Package ingest consumes serialized price events from the message queue
// and feeds them into the ingestion pipeline.
package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"market-gateway/internal/domain"
	"market-gateway/internal/observability"
	"market-gateway/internal/pipeline"
)

// Reader is the subset of kafka.Reader the consumer depends on.
type Reader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
}

// NewReader creates a kafka.Reader for the given brokers, topic and group.
func NewReader(brokers []string, topic, groupID string) *kafka.Reader {
	return kafka.NewReader(kafka.ReaderConfig{
		Brokers: brokers,
		Topic:   topic,
		GroupID: groupID,
	})
}

// Consumer runs a pool of workers over a shared reader. Each message is
// decoded and processed independently: a malformed or failing message is
// logged and committed so it can never starve the queue. Delivery is
// at-least-once and redeliveries are not deduplicated.
type Consumer struct {
	reader   Reader
	pipeline *pipeline.Pipeline
	workers  int
	logger   *zap.Logger
}

// ConsumerOptions contains configuration for creating a Consumer.
type ConsumerOptions struct {
	Reader   Reader
	Pipeline *pipeline.Pipeline
	Workers  int // default 4
	Logger   *zap.Logger
}

// NewConsumer creates a new queue ingress consumer.
func NewConsumer(opts ConsumerOptions) *Consumer {
	workers := opts.Workers
	if workers <= 0 {
		workers = 4
	}

	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Consumer{
		reader:   opts.Reader,
		pipeline: opts.Pipeline,
		workers:  workers,
		logger:   logger,
	}
}

// Run starts the worker pool and blocks until the context is cancelled or
// the reader is closed.
func (c *Consumer) Run(ctx context.Context) error {
	c.logger.Info("queue consumer starting", zap.Int("workers", c.workers))

	var wg sync.WaitGroup
	for i := 0; i < c.workers; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			c.worker(ctx, id)
		}(i)
	}
	wg.Wait()

	c.logger.Info("queue consumer stopped")
	return ctx.Err()
}

// worker repeatedly fetches, handles and commits one message at a time.
// It exits only when the context is cancelled or the reader closes.
func (c *Consumer) worker(ctx context.Context, id int) {
	wait := backoff.NewExponentialBackOff()
	wait.InitialInterval = 100 * time.Millisecond
	wait.MaxInterval = 5 * time.Second
	wait.MaxElapsedTime = 0 // keep retrying until the context ends

	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) ||
				errors.Is(err, context.DeadlineExceeded) ||
				errors.Is(err, io.EOF) {
				return
			}
			c.logger.Error("fetch message failed",
				zap.Int("worker", id),
				zap.Error(err))

			// A broker that keeps erroring must not spin the worker hot.
			select {
			case <-ctx.Done():
				return
			case <-time.After(wait.NextBackOff()):
			}
			continue
		}
		wait.Reset()

		c.handle(ctx, id, msg)

		// Commit regardless of handling outcome: errors are terminal
		// per-message, not per-worker.
		if err := c.reader.CommitMessages(ctx, msg); err != nil {
			c.logger.Error("commit message failed",
				zap.Int("worker", id),
				zap.Int64("offset", msg.Offset),
				zap.Error(err))
		}
	}
}

// handle decodes one message and runs it through the pipeline.
func (c *Consumer) handle(ctx context.Context, id int, msg kafka.Message) {
	observability.RecordQueueMessage()
	start := time.Now()

	var event domain.PriceEvent
	if err := json.Unmarshal(msg.Value, &event); err != nil {
		observability.RecordQueueDecodeFailure()
		observability.RecordRejected("queue", "decode")
		c.logger.Error("malformed queue message dropped",
			zap.Int("worker", id),
			zap.Int64("offset", msg.Offset),
			zap.Error(err))
		return
	}
	// The store assigns identity; never trust a producer-supplied ID.
	event.ID = 0

	if _, err := c.pipeline.Process(ctx, &event); err != nil {
		observability.RecordQueueProcessError()
		observability.RecordRejected("queue", reason(err))
		c.logger.Error("queue message processing failed",
			zap.Int("worker", id),
			zap.Int64("offset", msg.Offset),
			zap.String("symbol", event.Symbol),
			zap.Error(err))
		return
	}

	observability.RecordAccepted("queue")
	observability.ObserveProcessLatency("queue", time.Since(start).Seconds())
}

// reason maps a pipeline error to a metrics label.
func reason(err error) string {
	var verr *pipeline.ValidationError
	if errors.As(err, &verr) {
		return "validation"
	}
	return "persistence"
}
