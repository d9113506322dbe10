package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"market-gateway/internal/domain"
	"market-gateway/internal/storage"
)

// PriceEventStore implements storage.PriceEventStore using PostgreSQL.
type PriceEventStore struct {
	pool *Pool
}

// NewPriceEventStore creates a new PriceEventStore.
func NewPriceEventStore(pool *Pool) *PriceEventStore {
	return &PriceEventStore{pool: pool}
}

// Compile-time interface check.
var _ storage.PriceEventStore = (*PriceEventStore)(nil)

// Insert adds a new price event and assigns its ID.
func (s *PriceEventStore) Insert(ctx context.Context, e *domain.PriceEvent) error {
	if e == nil {
		return storage.ErrInvalidInput
	}

	query := `
		INSERT INTO prices (
			symbol, price, average_price, is_anomaly, source, timestamp
		) VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id
	`

	err := s.pool.QueryRow(ctx, query,
		e.Symbol,
		e.Price,
		e.AveragePrice,
		e.IsAnomaly,
		e.Source,
		e.Timestamp,
	).Scan(&e.ID)
	if err != nil {
		return fmt.Errorf("insert price event: %w", err)
	}
	return nil
}

// GetRecent retrieves the most recent events across all symbols,
// ordered by timestamp descending.
func (s *PriceEventStore) GetRecent(ctx context.Context, limit int) ([]*domain.PriceEvent, error) {
	query := `
		SELECT id, symbol, price, average_price, is_anomaly, source, timestamp
		FROM prices
		ORDER BY timestamp DESC, id DESC
		LIMIT $1
	`

	rows, err := s.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("get recent price events: %w", err)
	}
	defer rows.Close()

	return scanPriceEvents(rows)
}

// GetRecentBySymbol retrieves the most recent events for a symbol,
// ordered by timestamp descending.
func (s *PriceEventStore) GetRecentBySymbol(ctx context.Context, symbol string, limit int) ([]*domain.PriceEvent, error) {
	query := `
		SELECT id, symbol, price, average_price, is_anomaly, source, timestamp
		FROM prices
		WHERE symbol = $1
		ORDER BY timestamp DESC, id DESC
		LIMIT $2
	`

	rows, err := s.pool.Query(ctx, query, symbol, limit)
	if err != nil {
		return nil, fmt.Errorf("get recent price events by symbol: %w", err)
	}
	defer rows.Close()

	return scanPriceEvents(rows)
}

// scanPriceEvents scans multiple rows into a slice of PriceEvent.
func scanPriceEvents(rows pgx.Rows) ([]*domain.PriceEvent, error) {
	var events []*domain.PriceEvent

	for rows.Next() {
		var e domain.PriceEvent

		err := rows.Scan(
			&e.ID,
			&e.Symbol,
			&e.Price,
			&e.AveragePrice,
			&e.IsAnomaly,
			&e.Source,
			&e.Timestamp,
		)
		if err != nil {
			return nil, fmt.Errorf("scan price event row: %w", err)
		}

		events = append(events, &e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate price event rows: %w", err)
	}

	return events, nil
}
