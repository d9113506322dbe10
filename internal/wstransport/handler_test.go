package wstransport

import (
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"market-gateway/internal/broadcast"
	"market-gateway/internal/domain"
)

func dial(t *testing.T, url string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	return conn
}

func TestHandler_StreamsPublishedEvents(t *testing.T) {
	hub := broadcast.NewHub(zap.NewNop())
	srv := httptest.NewServer(NewHandler(hub, "prices", zap.NewNop()))
	defer srv.Close()

	conn := dial(t, "ws"+strings.TrimPrefix(srv.URL, "http"))
	defer conn.Close()

	// Wait for the subscription to attach before publishing.
	require.Eventually(t, func() bool {
		return hub.SubscriberCount("prices") == 1
	}, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, hub.Publish("prices", &domain.PriceEvent{Symbol: "BTC-USD", Price: 50000}))

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)

	var got domain.PriceEvent
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, "BTC-USD", got.Symbol)
	assert.Equal(t, 50000.0, got.Price)
}

func TestHandler_ClientDisconnectDetachesSubscriber(t *testing.T) {
	hub := broadcast.NewHub(zap.NewNop())
	srv := httptest.NewServer(NewHandler(hub, "prices", zap.NewNop()))
	defer srv.Close()

	conn := dial(t, "ws"+strings.TrimPrefix(srv.URL, "http"))

	require.Eventually(t, func() bool {
		return hub.SubscriberCount("prices") == 1
	}, 2*time.Second, 10*time.Millisecond)

	conn.Close()

	require.Eventually(t, func() bool {
		return hub.SubscriberCount("prices") == 0
	}, 2*time.Second, 10*time.Millisecond)
}

func TestHandler_MultipleClients(t *testing.T) {
	hub := broadcast.NewHub(zap.NewNop())
	srv := httptest.NewServer(NewHandler(hub, "prices", zap.NewNop()))
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	a := dial(t, url)
	defer a.Close()
	b := dial(t, url)
	defer b.Close()

	require.Eventually(t, func() bool {
		return hub.SubscriberCount("prices") == 2
	}, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, hub.Publish("prices", &domain.PriceEvent{Symbol: "ETH-USD", Price: 3000}))

	for _, conn := range []*websocket.Conn{a, b} {
		conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		_, data, err := conn.ReadMessage()
		require.NoError(t, err)
		assert.Contains(t, string(data), "ETH-USD")
	}
}
