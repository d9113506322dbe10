package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"market-gateway/internal/advisory"
	"market-gateway/internal/broadcast"
	"market-gateway/internal/domain"
	"market-gateway/internal/pipeline"
	"market-gateway/internal/storage/memory"
)

type fixture struct {
	server *Server
	prices *memory.PriceEventStore
	alerts *memory.AlertEventStore
	hub    *broadcast.Hub
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	prices := memory.NewPriceEventStore()
	alerts := memory.NewAlertEventStore()
	hub := broadcast.NewHub(zap.NewNop())

	p := pipeline.New(pipeline.Options{
		PriceStore:  prices,
		AlertStore:  alerts,
		Broadcaster: hub,
	})

	server := NewServer(Options{
		Pipeline:   p,
		PriceStore: prices,
		AlertStore: alerts,
		Advisor: advisory.NewService(advisory.ServiceOptions{
			Fallback: advisory.NewStaticCommentator("steady as she goes"),
		}),
		Hub: hub,
	})

	return &fixture{server: server, prices: prices, alerts: alerts, hub: hub}
}

func (f *fixture) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}

	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	w := httptest.NewRecorder()
	f.server.Handler().ServeHTTP(w, req)
	return w
}

func ptr(f float64) *float64 { return &f }

func TestIngest_AnomalousEvent(t *testing.T) {
	f := newFixture(t)

	sub := f.hub.Subscribe(pipeline.Topic, 4)
	defer sub.Close()

	w := f.do(t, http.MethodPost, "/api/ingest", &domain.PriceEvent{
		Symbol:       "BTC-USD",
		Price:        50000,
		AveragePrice: ptr(49000),
		IsAnomaly:    true,
	})

	require.Equal(t, http.StatusOK, w.Code)

	var resp map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "accepted", resp["status"])
	assert.Equal(t, true, resp["persisted"])
	assert.Equal(t, true, resp["alerted"])

	ctx := context.Background()
	stored, _ := f.prices.GetRecentBySymbol(ctx, "BTC-USD", 10)
	require.Len(t, stored, 1)

	alertRows, _ := f.alerts.GetRecent(ctx, 10)
	require.Len(t, alertRows, 1)
	assert.Equal(t, 50000.0, alertRows[0].TriggeredPrice)

	// One broadcast on the live topic.
	select {
	case data := <-sub.C():
		assert.Contains(t, string(data), "BTC-USD")
	case <-time.After(time.Second):
		t.Fatal("expected a broadcast message")
	}
}

func TestIngest_MalformedBody(t *testing.T) {
	f := newFixture(t)

	req := httptest.NewRequest(http.MethodPost, "/api/ingest", bytes.NewBufferString("{oops"))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	f.server.Handler().ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestIngest_ValidationFailure(t *testing.T) {
	f := newFixture(t)

	w := f.do(t, http.MethodPost, "/api/ingest", &domain.PriceEvent{Price: 100})

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "symbol")

	stored, _ := f.prices.GetRecent(context.Background(), 10)
	assert.Empty(t, stored)
}

type downPriceStore struct {
	memory.PriceEventStore
}

func (s *downPriceStore) Insert(_ context.Context, _ *domain.PriceEvent) error {
	return errors.New("connection refused")
}

func TestIngest_PersistenceFailureIsServerFault(t *testing.T) {
	alerts := memory.NewAlertEventStore()
	hub := broadcast.NewHub(zap.NewNop())
	store := &downPriceStore{}

	server := NewServer(Options{
		Pipeline: pipeline.New(pipeline.Options{
			PriceStore:  store,
			AlertStore:  alerts,
			Broadcaster: hub,
		}),
		PriceStore: store,
		AlertStore: alerts,
		Advisor:    advisory.NewService(advisory.ServiceOptions{}),
		Hub:        hub,
	})

	body, _ := json.Marshal(&domain.PriceEvent{Symbol: "BTC-USD", Price: 50000, IsAnomaly: true})
	req := httptest.NewRequest(http.MethodPost, "/api/ingest", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	server.Handler().ServeHTTP(w, req)

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	// No alert for the failed event.
	alertRows, _ := alerts.GetRecent(context.Background(), 10)
	assert.Empty(t, alertRows)
}

func TestPrices_NewestFirstWithFilter(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	base := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		require.NoError(t, f.prices.Insert(ctx, &domain.PriceEvent{
			Symbol:    "BTC-USD",
			Price:     float64(50000 + i),
			Timestamp: base.Add(time.Duration(i) * time.Minute),
		}))
	}
	require.NoError(t, f.prices.Insert(ctx, &domain.PriceEvent{
		Symbol:    "ETH-USD",
		Price:     3000,
		Timestamp: base.Add(time.Hour),
	}))

	w := f.do(t, http.MethodGet, "/api/prices?symbol=BTC-USD&limit=2", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var events []*domain.PriceEvent
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &events))
	require.Len(t, events, 2)
	assert.Equal(t, 50002.0, events[0].Price)
	assert.Equal(t, 50001.0, events[1].Price)
}

func TestPrices_LimitDefaultAndCap(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 510; i++ {
		e := &domain.PriceEvent{
			Symbol:    "BTC-USD",
			Price:     50000,
			Timestamp: base.Add(time.Duration(i) * time.Second),
		}
		require.NoError(t, f.prices.Insert(ctx, e))
	}

	tests := []struct {
		name string
		path string
		want int
	}{
		{"no limit defaults to 50", "/api/prices", 50},
		{"zero falls back to default", "/api/prices?limit=0", 50},
		{"negative falls back to default", "/api/prices?limit=-5", 50},
		{"non-numeric falls back to default", "/api/prices?limit=abc", 50},
		{"oversized limit is capped at 500", "/api/prices?limit=9999", 500},
		{"small limit is honored", "/api/prices?limit=10", 10},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := f.do(t, http.MethodGet, tt.path, nil)
			require.Equal(t, http.StatusOK, w.Code)

			var got []*domain.PriceEvent
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
			assert.Len(t, got, tt.want)
		})
	}
}

func TestPrices_EmptyStoreReturnsEmptyList(t *testing.T) {
	f := newFixture(t)

	w := f.do(t, http.MethodGet, "/api/prices", nil)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "[]", w.Body.String())
}

func TestAlerts_ReturnsRecent(t *testing.T) {
	f := newFixture(t)

	require.NoError(t, f.alerts.Insert(context.Background(), &domain.AlertEvent{
		Symbol:         "BTC-USD",
		Message:        "anomaly detected: price deviation on BTC-USD",
		TriggeredPrice: 50000,
		Timestamp:      time.Now(),
	}))

	w := f.do(t, http.MethodGet, "/api/alerts", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var alerts []*domain.AlertEvent
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &alerts))
	require.Len(t, alerts, 1)
	assert.Equal(t, "BTC-USD", alerts[0].Symbol)
}

func TestAnalysis_DefaultSymbolAndFallback(t *testing.T) {
	f := newFixture(t)

	w := f.do(t, http.MethodGet, "/api/ai-analysis", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var resp map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "BTC-USD", resp["symbol"])
	assert.Equal(t, "steady as she goes", resp["commentary"])
}

func TestHealthz(t *testing.T) {
	f := newFixture(t)

	w := f.do(t, http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}
