package domain

import "time"

// AlertEvent records that a price event was classified anomalous.
// Created once at ingestion time, never mutated.
type AlertEvent struct {
	ID             int64     `json:"id"`
	Symbol         string    `json:"symbol"`
	Message        string    `json:"message"`
	TriggeredPrice float64   `json:"triggeredPrice"`
	Timestamp      time.Time `json:"timestamp"`
}
