// Package realtime implements the change notifier: WebSocket clients
// subscribe to key-prefix topics (poll:, quiz:, activity:, or an exact key)
// and receive "something under this key changed" events. Delivery is
// at-least-once and best effort; subscribers re-fetch current state on every
// event instead of applying deltas.
package realtime

import (
	"encoding/json"
	"strings"
	"sync"

	"go.uber.org/zap"
)

const (
	// PingInterval and PongWait are used for heartbeat (seconds).
	PingInterval = 30
	PongWait     = 60
)

// ChangeEvent tells a subscriber which document changed. Consumers treat it
// as a cue to re-read state, never as the state itself.
type ChangeEvent struct {
	Event string `json:"event"`
	Key   string `json:"key"`
}

// Notifier is the write-side contract handlers use to announce mutations.
type Notifier interface {
	DocumentChanged(event, key string)
}

// Publisher publishes a change event to other instances.
type Publisher interface {
	PublishChange(topic string, payload []byte) error
}

// Subscriber subscribes to a topic's cross-instance channel and invokes
// handler for incoming events. Returns a cancel function.
type Subscriber interface {
	SubscribeTopic(topic string, handler func(payload []byte)) (cancel func(), err error)
}

// Hub maintains topic -> set of connections and fans out change events.
// Redis pub/sub carries events across instances; the per-topic subscription
// is opened by the first local subscriber and closed by the last.
type Hub struct {
	topics map[string]map[string]*Client
	subs   map[string]func() // cancel Redis subscription per topic
	mu     sync.RWMutex
	logger *zap.Logger
	pub    Publisher
	sub    Subscriber
}

// NewHub creates a change-notification hub.
func NewHub(logger *zap.Logger, pub Publisher, sub Subscriber) *Hub {
	return &Hub{
		topics: make(map[string]map[string]*Client),
		subs:   make(map[string]func()),
		logger: logger,
		pub:    pub,
		sub:    sub,
	}
}

// DocumentChanged notifies all subscribers interested in key: listeners on
// the entity-type prefix topic and listeners on the exact key.
func (h *Hub) DocumentChanged(event, key string) {
	for _, topic := range TopicsForKey(key) {
		ev := ChangeEvent{Event: event, Key: key}
		h.Broadcast(topic, ev)
		if h.pub != nil {
			if data, err := json.Marshal(ev); err == nil {
				_ = h.pub.PublishChange(topic, data)
			}
		}
	}
}

// TopicsForKey returns the topics a change to key is published on: the
// entity-type prefix (e.g. poll:) and the exact key (e.g. poll:abc123).
func TopicsForKey(key string) []string {
	i := strings.Index(key, ":")
	if i < 0 {
		return []string{key}
	}
	prefix := key[:i+1]
	if prefix == key {
		return []string{key}
	}
	return []string{prefix, key}
}

// Subscribe adds a client to a topic. Opens the cross-instance subscription
// when this is the topic's first local subscriber.
func (h *Hub) Subscribe(c *Client, topic string) {
	if topic == "" {
		return
	}
	h.mu.Lock()
	if h.topics[topic] == nil {
		h.topics[topic] = make(map[string]*Client)
		if h.sub != nil {
			cancel, err := h.sub.SubscribeTopic(topic, func(payload []byte) {
				var ev ChangeEvent
				if err := json.Unmarshal(payload, &ev); err != nil {
					return
				}
				h.Broadcast(topic, ev)
			})
			if err == nil {
				h.subs[topic] = cancel
			}
		}
	}
	h.topics[topic][c.ID] = c
	h.mu.Unlock()
	h.logger.Debug("client subscribed", zap.String("client_id", c.ID), zap.String("topic", topic))
}

// Unsubscribe removes a client from a topic. Closes the cross-instance
// subscription when the last local subscriber leaves.
func (h *Hub) Unsubscribe(c *Client, topic string) {
	h.mu.Lock()
	if m, ok := h.topics[topic]; ok {
		delete(m, c.ID)
		if len(m) == 0 {
			delete(h.topics, topic)
			if cancel, ok := h.subs[topic]; ok {
				cancel()
				delete(h.subs, topic)
			}
		}
	}
	h.mu.Unlock()
}

// Unregister removes a client from every topic it subscribed to.
func (h *Hub) Unregister(c *Client) {
	for _, topic := range c.Topics() {
		h.Unsubscribe(c, topic)
	}
	h.logger.Debug("client disconnected", zap.String("client_id", c.ID))
}

// Broadcast sends a change event to all local subscribers of a topic.
func (h *Hub) Broadcast(topic string, ev ChangeEvent) {
	h.mu.RLock()
	clients := h.topics[topic]
	h.mu.RUnlock()

	if clients == nil {
		return
	}
	for _, c := range clients {
		select {
		case c.send <- ev:
		default:
			// buffer full, skip; the client re-fetches on its next event anyway
		}
	}
}

// SubscriberCount returns the number of local subscribers of a topic.
func (h *Hub) SubscriberCount(topic string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.topics[topic])
}
