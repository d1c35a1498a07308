package realtime

import (
	"encoding/json"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	// PingInterval and PongWait are used for heartbeat, in seconds.
	PingInterval = 30
	PongWait     = 60
	// sendBuffer is the per-client outbound queue; a client that falls this far behind misses messages.
	sendBuffer = 64
)

// Hub maintains event_id -> set of dashboard connections and fans live updates out to them.
// With Redis configured every update goes through pub/sub so all instances deliver it once.
type Hub struct {
	rooms    map[uuid.UUID]map[string]*Client
	subs     map[uuid.UUID]func() // cancel Redis subscription per event
	pending  map[uuid.UUID]struct{}
	mu       sync.RWMutex
	logger   *zap.Logger
	redis    RedisPublisher
	redisSub RedisSubscriber
}

// RedisPublisher publishes an encoded update for other instances.
type RedisPublisher interface {
	PublishEvent(eventID uuid.UUID, event string, payload []byte) error
}

// RedisSubscriber subscribes to event channels and invokes handler for incoming updates.
type RedisSubscriber interface {
	SubscribeEvent(eventID uuid.UUID, handler func(event string, payload []byte)) (cancel func(), err error)
}

// NewHub creates a new WebSocket hub. Both Redis sides may be nil for a single instance.
func NewHub(logger *zap.Logger, redisPub RedisPublisher, redisSub RedisSubscriber) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{
		rooms:    make(map[uuid.UUID]map[string]*Client),
		subs:     make(map[uuid.UUID]func()),
		pending:  make(map[uuid.UUID]struct{}),
		logger:   logger,
		redis:    redisPub,
		redisSub: redisSub,
	}
}

// Register adds a client to an event room. Starts the Redis subscription for the event on first client.
// The subscription round-trip runs without holding the hub lock.
func (h *Hub) Register(c *Client) {
	eventID := c.EventID
	h.mu.Lock()
	if h.rooms[eventID] == nil {
		h.rooms[eventID] = make(map[string]*Client)
	}
	h.rooms[eventID][c.ID] = c
	subscribe := h.redisSub != nil && h.subs[eventID] == nil
	if _, busy := h.pending[eventID]; busy {
		subscribe = false
	}
	if subscribe {
		h.pending[eventID] = struct{}{}
	}
	h.mu.Unlock()
	h.logger.Debug("dashboard connected", zap.String("client_id", c.ID), zap.String("event_id", eventID.String()))

	if subscribe {
		h.subscribe(eventID)
	}
}

func (h *Hub) subscribe(eventID uuid.UUID) {
	cancel, err := h.redisSub.SubscribeEvent(eventID, func(event string, payload []byte) {
		h.Broadcast(eventID, event, json.RawMessage(payload))
	})

	h.mu.Lock()
	delete(h.pending, eventID)
	if err != nil {
		h.mu.Unlock()
		h.logger.Warn("redis subscribe failed", zap.String("event_id", eventID.String()), zap.Error(err))
		return
	}
	if len(h.rooms[eventID]) == 0 {
		// every dashboard left while subscribing
		h.mu.Unlock()
		cancel()
		return
	}
	h.subs[eventID] = cancel
	h.mu.Unlock()
}

// Unregister removes a client. Cancels the Redis subscription when the last client of the event leaves.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	m, ok := h.rooms[c.EventID]
	if !ok {
		return
	}
	if _, ok := m[c.ID]; !ok {
		return
	}
	delete(m, c.ID)
	close(c.send)
	if len(m) == 0 {
		delete(h.rooms, c.EventID)
		if cancel, ok := h.subs[c.EventID]; ok {
			cancel()
			delete(h.subs, c.EventID)
		}
	}
	h.logger.Debug("dashboard disconnected", zap.String("client_id", c.ID), zap.String("event_id", c.EventID.String()))
}

// Broadcast sends an update to the clients of an event on this instance only.
func (h *Hub) Broadcast(eventID uuid.UUID, event string, payload interface{}) {
	data, err := encode(payload)
	if err != nil {
		h.logger.Warn("encode live update", zap.String("event", event), zap.Error(err))
		return
	}
	msg := WSMessage{Event: event, Data: data}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, c := range h.rooms[eventID] {
		select {
		case c.send <- msg:
		default:
			h.logger.Debug("client buffer full, update dropped", zap.String("client_id", c.ID))
		}
	}
}

// Publish delivers an update to every dashboard of the event across instances.
// With Redis it publishes only; the subscription callback does the local broadcast, so nobody gets it twice.
func (h *Hub) Publish(eventID uuid.UUID, event string, payload interface{}) {
	if h.redis == nil {
		h.Broadcast(eventID, event, payload)
		return
	}
	data, err := encode(payload)
	if err != nil {
		h.logger.Warn("encode live update", zap.String("event", event), zap.Error(err))
		return
	}
	if err := h.redis.PublishEvent(eventID, event, data); err != nil {
		h.logger.Warn("redis publish failed, delivering locally", zap.String("event_id", eventID.String()), zap.Error(err))
		h.Broadcast(eventID, event, json.RawMessage(data))
	}
}

// ClientCount returns the number of connected dashboards of an event on this instance.
func (h *Hub) ClientCount(eventID uuid.UUID) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[eventID])
}

func encode(payload interface{}) (json.RawMessage, error) {
	switch v := payload.(type) {
	case json.RawMessage:
		return v, nil
	case []byte:
		return v, nil
	default:
		return json.Marshal(payload)
	}
}
