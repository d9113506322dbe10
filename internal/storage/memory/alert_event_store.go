package memory

import (
	"context"
	"sort"
	"sync"

	"market-gateway/internal/domain"
	"market-gateway/internal/storage"
)

// AlertEventStore is an in-memory implementation of storage.AlertEventStore.
type AlertEventStore struct {
	mu     sync.RWMutex
	data   []*domain.AlertEvent
	nextID int64
}

// NewAlertEventStore creates a new in-memory alert event store.
func NewAlertEventStore() *AlertEventStore {
	return &AlertEventStore{
		data:   make([]*domain.AlertEvent, 0),
		nextID: 1,
	}
}

// Insert adds a new alert event and assigns its ID.
func (s *AlertEventStore) Insert(_ context.Context, a *domain.AlertEvent) error {
	if a == nil {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	a.ID = s.nextID
	s.nextID++

	copy := *a
	s.data = append(s.data, &copy)

	return nil
}

// GetRecent retrieves the most recent alerts, ordered by timestamp descending.
func (s *AlertEventStore) GetRecent(_ context.Context, limit int) ([]*domain.AlertEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*domain.AlertEvent, 0, len(s.data))
	for _, a := range s.data {
		copy := *a
		result = append(result, &copy)
	}

	sort.Slice(result, func(i, j int) bool {
		if !result[i].Timestamp.Equal(result[j].Timestamp) {
			return result[i].Timestamp.After(result[j].Timestamp)
		}
		return result[i].ID > result[j].ID
	})

	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}

	return result, nil
}

// Verify interface compliance at compile time.
var _ storage.AlertEventStore = (*AlertEventStore)(nil)
