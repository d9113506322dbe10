package domain

import "time"

// PriceEvent represents one observed price tick for a symbol.
// JSON field names follow the producer wire format.
type PriceEvent struct {
	ID           int64     `json:"id"`
	Symbol       string    `json:"symbol"`
	Price        float64   `json:"price"`
	AveragePrice *float64  `json:"averagePrice,omitempty"` // rolling reference, nullable
	IsAnomaly    bool      `json:"isAnomaly"`
	Source       string    `json:"source,omitempty"` // producer label, e.g. "Binance-API"
	Timestamp    time.Time `json:"timestamp"`
}
