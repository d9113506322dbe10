// Package advisory produces on-demand market commentary for a symbol.
// It is a side-channel read: failures of the underlying model call are
// absorbed and replaced by a static fallback, never surfaced to callers.
package advisory

import (
	"context"
	"time"

	"go.uber.org/zap"

	"market-gateway/internal/observability"
)

// Commentator produces commentary for a symbol.
type Commentator interface {
	Commentary(ctx context.Context, symbol string) (string, error)
}

// StaticCommentator always returns a fixed commentary string.
type StaticCommentator struct {
	Text string
}

// DefaultFallbackText is served when every live commentator fails.
const DefaultFallbackText = "Market commentary is temporarily unavailable. " +
	"Live data keeps flowing; check back shortly for fresh analysis."

// NewStaticCommentator creates a static commentator. An empty text falls
// back to DefaultFallbackText.
func NewStaticCommentator(text string) *StaticCommentator {
	if text == "" {
		text = DefaultFallbackText
	}
	return &StaticCommentator{Text: text}
}

// Commentary returns the fixed text. It never fails.
func (s *StaticCommentator) Commentary(_ context.Context, _ string) (string, error) {
	return s.Text, nil
}

// Service resolves commentary through an ordered chain of commentators,
// ending in a static one, so it never returns an error.
type Service struct {
	chain    []Commentator
	fallback *StaticCommentator
	timeout  time.Duration
	logger   *zap.Logger
}

// ServiceOptions contains configuration for creating a Service.
type ServiceOptions struct {
	// Chain holds live commentators tried in order. May be empty.
	Chain []Commentator
	// Fallback terminates the chain. Defaults to DefaultFallbackText.
	Fallback *StaticCommentator
	// Timeout bounds each live call. Default 10s.
	Timeout time.Duration
	Logger  *zap.Logger
}

// NewService creates an advisory service.
func NewService(opts ServiceOptions) *Service {
	fallback := opts.Fallback
	if fallback == nil {
		fallback = NewStaticCommentator("")
	}

	timeout := opts.Timeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}

	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Service{
		chain:    opts.Chain,
		fallback: fallback,
		timeout:  timeout,
		logger:   logger,
	}
}

// GetCommentary returns commentary for a symbol. Each live commentator is
// tried in order under a bounded timeout; when all fail the static
// fallback text is returned.
func (s *Service) GetCommentary(ctx context.Context, symbol string) string {
	for _, c := range s.chain {
		callCtx, cancel := context.WithTimeout(ctx, s.timeout)
		text, err := c.Commentary(callCtx, symbol)
		cancel()

		if err != nil {
			s.logger.Warn("commentator failed, trying next",
				zap.String("symbol", symbol),
				zap.Error(err))
			continue
		}
		if text == "" {
			s.logger.Warn("commentator returned no text, trying next",
				zap.String("symbol", symbol))
			continue
		}
		return text
	}

	observability.RecordAdvisoryFallback()
	text, _ := s.fallback.Commentary(ctx, symbol)
	return text
}
