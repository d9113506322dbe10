package memory

import (
	"context"
	"sync"

	"market-gateway/internal/domain"
	"market-gateway/internal/storage"
)

// TickArchive is an in-memory implementation of storage.TickArchive.
type TickArchive struct {
	mu   sync.RWMutex
	data []*domain.PriceEvent
}

// NewTickArchive creates a new in-memory tick archive.
func NewTickArchive() *TickArchive {
	return &TickArchive{data: make([]*domain.PriceEvent, 0)}
}

// Append stores a batch of accepted events.
func (s *TickArchive) Append(_ context.Context, events []*domain.PriceEvent) error {
	if len(events) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, e := range events {
		if e == nil {
			return storage.ErrInvalidInput
		}
		copy := *e
		s.data = append(s.data, &copy)
	}

	return nil
}

// CountBySymbol returns the number of archived events for a symbol.
func (s *TickArchive) CountBySymbol(_ context.Context, symbol string) (uint64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var n uint64
	for _, e := range s.data {
		if e.Symbol == symbol {
			n++
		}
	}

	return n, nil
}

// Verify interface compliance at compile time.
var _ storage.TickArchive = (*TickArchive)(nil)
