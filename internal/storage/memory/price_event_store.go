package memory

import (
	"context"
	"sort"
	"sync"

	"market-gateway/internal/domain"
	"market-gateway/internal/storage"
)

// PriceEventStore is an in-memory implementation of storage.PriceEventStore.
type PriceEventStore struct {
	mu     sync.RWMutex
	data   []*domain.PriceEvent
	nextID int64
}

// NewPriceEventStore creates a new in-memory price event store.
func NewPriceEventStore() *PriceEventStore {
	return &PriceEventStore{
		data:   make([]*domain.PriceEvent, 0),
		nextID: 1,
	}
}

// Insert adds a new price event and assigns its ID.
func (s *PriceEventStore) Insert(_ context.Context, e *domain.PriceEvent) error {
	if e == nil {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	e.ID = s.nextID
	s.nextID++

	// Store a copy
	copy := *e
	s.data = append(s.data, &copy)

	return nil
}

// GetRecent retrieves the most recent events, ordered by timestamp descending.
func (s *PriceEventStore) GetRecent(_ context.Context, limit int) ([]*domain.PriceEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*domain.PriceEvent, 0, len(s.data))
	for _, e := range s.data {
		copy := *e
		result = append(result, &copy)
	}

	sortNewestFirst(result)
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}

	return result, nil
}

// GetRecentBySymbol retrieves the most recent events for a symbol,
// ordered by timestamp descending.
func (s *PriceEventStore) GetRecentBySymbol(_ context.Context, symbol string, limit int) ([]*domain.PriceEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.PriceEvent
	for _, e := range s.data {
		if e.Symbol == symbol {
			copy := *e
			result = append(result, &copy)
		}
	}

	sortNewestFirst(result)
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}

	return result, nil
}

// sortNewestFirst sorts events by (timestamp desc, id desc) so that ties
// within the same timestamp resolve to insertion order, newest first.
func sortNewestFirst(events []*domain.PriceEvent) {
	sort.Slice(events, func(i, j int) bool {
		if !events[i].Timestamp.Equal(events[j].Timestamp) {
			return events[i].Timestamp.After(events[j].Timestamp)
		}
		return events[i].ID > events[j].ID
	})
}

// Verify interface compliance at compile time.
var _ storage.PriceEventStore = (*PriceEventStore)(nil)
