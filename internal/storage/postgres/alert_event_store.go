package postgres

import (
	"context"
	"fmt"

	"market-gateway/internal/domain"
	"market-gateway/internal/storage"
)

// AlertEventStore implements storage.AlertEventStore using PostgreSQL.
type AlertEventStore struct {
	pool *Pool
}

// NewAlertEventStore creates a new AlertEventStore.
func NewAlertEventStore(pool *Pool) *AlertEventStore {
	return &AlertEventStore{pool: pool}
}

// Compile-time interface check.
var _ storage.AlertEventStore = (*AlertEventStore)(nil)

// Insert adds a new alert event and assigns its ID.
func (s *AlertEventStore) Insert(ctx context.Context, a *domain.AlertEvent) error {
	if a == nil {
		return storage.ErrInvalidInput
	}

	query := `
		INSERT INTO alerts (
			symbol, message, triggered_price, timestamp
		) VALUES ($1, $2, $3, $4)
		RETURNING id
	`

	err := s.pool.QueryRow(ctx, query,
		a.Symbol,
		a.Message,
		a.TriggeredPrice,
		a.Timestamp,
	).Scan(&a.ID)
	if err != nil {
		return fmt.Errorf("insert alert event: %w", err)
	}
	return nil
}

// GetRecent retrieves the most recent alerts, ordered by timestamp descending.
func (s *AlertEventStore) GetRecent(ctx context.Context, limit int) ([]*domain.AlertEvent, error) {
	query := `
		SELECT id, symbol, message, triggered_price, timestamp
		FROM alerts
		ORDER BY timestamp DESC, id DESC
		LIMIT $1
	`

	rows, err := s.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("get recent alert events: %w", err)
	}
	defer rows.Close()

	var alerts []*domain.AlertEvent
	for rows.Next() {
		var a domain.AlertEvent

		err := rows.Scan(
			&a.ID,
			&a.Symbol,
			&a.Message,
			&a.TriggeredPrice,
			&a.Timestamp,
		)
		if err != nil {
			return nil, fmt.Errorf("scan alert event row: %w", err)
		}

		alerts = append(alerts, &a)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate alert event rows: %w", err)
	}

	return alerts, nil
}
