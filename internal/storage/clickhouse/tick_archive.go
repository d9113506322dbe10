package clickhouse

import (
	"context"
	"fmt"

	"market-gateway/internal/domain"
	"market-gateway/internal/storage"
)

// TickArchive implements storage.TickArchive using ClickHouse.
// The archive is append-only and keeps every accepted tick for offline
// analytics; it is not part of the serving path.
type TickArchive struct {
	conn *Conn
}

// NewTickArchive creates a new TickArchive.
func NewTickArchive(conn *Conn) *TickArchive {
	return &TickArchive{conn: conn}
}

// Compile-time interface check.
var _ storage.TickArchive = (*TickArchive)(nil)

// Append stores a batch of accepted events.
func (s *TickArchive) Append(ctx context.Context, events []*domain.PriceEvent) error {
	if len(events) == 0 {
		return nil
	}

	batch, err := s.conn.PrepareBatch(ctx, `
		INSERT INTO tick_archive (
			symbol, price, average_price, is_anomaly, source, timestamp
		)
	`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	for _, e := range events {
		if e == nil {
			return storage.ErrInvalidInput
		}

		var avg float64
		if e.AveragePrice != nil {
			avg = *e.AveragePrice
		}

		err = batch.Append(
			e.Symbol, e.Price, avg, e.IsAnomaly, e.Source, e.Timestamp,
		)
		if err != nil {
			return fmt.Errorf("append to batch: %w", err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}

	return nil
}

// CountBySymbol returns the number of archived events for a symbol.
func (s *TickArchive) CountBySymbol(ctx context.Context, symbol string) (uint64, error) {
	var count uint64
	err := s.conn.QueryRow(ctx, `
		SELECT count() FROM tick_archive WHERE symbol = ?
	`, symbol).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count archived ticks: %w", err)
	}

	return count, nil
}
