package storage

import (
	"context"

	"market-gateway/internal/domain"
)

// PriceEventStore provides access to prices storage.
type PriceEventStore interface {
	// Insert adds a new price event and assigns its ID.
	Insert(ctx context.Context, e *domain.PriceEvent) error

	// GetRecent retrieves the most recent events across all symbols,
	// ordered by timestamp descending.
	GetRecent(ctx context.Context, limit int) ([]*domain.PriceEvent, error)

	// GetRecentBySymbol retrieves the most recent events for a symbol,
	// ordered by timestamp descending.
	GetRecentBySymbol(ctx context.Context, symbol string, limit int) ([]*domain.PriceEvent, error)
}

// AlertEventStore provides access to alerts storage.
type AlertEventStore interface {
	// Insert adds a new alert event and assigns its ID.
	Insert(ctx context.Context, a *domain.AlertEvent) error

	// GetRecent retrieves the most recent alerts, ordered by timestamp descending.
	GetRecent(ctx context.Context, limit int) ([]*domain.AlertEvent, error)
}

// TickArchive is an analytics sink for accepted price events.
// Writes are best-effort: the ingestion path tolerates archive failures.
type TickArchive interface {
	// Append stores a batch of accepted events.
	Append(ctx context.Context, events []*domain.PriceEvent) error

	// CountBySymbol returns the number of archived events for a symbol.
	CountBySymbol(ctx context.Context, symbol string) (uint64, error)
}
