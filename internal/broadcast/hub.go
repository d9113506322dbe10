// Package broadcast delivers accepted events to live subscribers of a topic.
package broadcast

import (
	"encoding/json"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"market-gateway/internal/observability"
)

// Subscription is one attached subscriber. Close detaches it from the hub.
type Subscription struct {
	hub   *Hub
	topic string
	ch    chan []byte
	once  sync.Once
}

// C returns the channel on which published payloads arrive.
func (s *Subscription) C() <-chan []byte {
	return s.ch
}

// Close detaches the subscription and closes its channel.
// Safe to call more than once.
func (s *Subscription) Close() {
	s.once.Do(func() {
		s.hub.remove(s)
		close(s.ch)
	})
}

// Hub is a topic-based fan-out broadcaster. Subscribers attach and detach
// dynamically; publishing never blocks on a slow subscriber.
type Hub struct {
	logger *zap.Logger

	mu     sync.RWMutex
	topics map[string]map[*Subscription]struct{}
}

// NewHub creates an empty hub.
func NewHub(logger *zap.Logger) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{
		logger: logger,
		topics: make(map[string]map[*Subscription]struct{}),
	}
}

// Subscribe attaches a new subscriber to a topic. The buffer bounds how many
// undelivered payloads the subscriber may lag behind; deliveries beyond it
// are dropped for that subscriber only.
func (h *Hub) Subscribe(topic string, buffer int) *Subscription {
	if buffer <= 0 {
		buffer = 16
	}

	sub := &Subscription{
		hub:   h,
		topic: topic,
		ch:    make(chan []byte, buffer),
	}

	h.mu.Lock()
	subs, ok := h.topics[topic]
	if !ok {
		subs = make(map[*Subscription]struct{})
		h.topics[topic] = subs
	}
	subs[sub] = struct{}{}
	total := h.totalLocked()
	h.mu.Unlock()

	observability.SetSubscribers(total)
	return sub
}

// Publish encodes the payload once and delivers it to every subscriber
// currently attached to the topic. A subscriber with a full buffer misses
// this payload; other subscribers and the publisher are unaffected.
func (h *Hub) Publish(topic string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode broadcast payload: %w", err)
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for sub := range h.topics[topic] {
		select {
		case sub.ch <- data:
		default:
			observability.RecordBroadcastDrop()
			h.logger.Warn("dropping broadcast for slow subscriber",
				zap.String("topic", topic))
		}
	}

	observability.RecordBroadcast()
	return nil
}

// SubscriberCount returns the number of subscribers attached to a topic.
func (h *Hub) SubscriberCount(topic string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.topics[topic])
}

func (h *Hub) remove(s *Subscription) {
	h.mu.Lock()
	if subs, ok := h.topics[s.topic]; ok {
		delete(subs, s)
		if len(subs) == 0 {
			delete(h.topics, s.topic)
		}
	}
	total := h.totalLocked()
	h.mu.Unlock()

	observability.SetSubscribers(total)
}

// totalLocked counts subscribers across all topics. Caller holds mu.
func (h *Hub) totalLocked() int {
	var n int
	for _, subs := range h.topics {
		n += len(subs)
	}
	return n
}
