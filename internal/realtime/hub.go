package realtime

import (
	"encoding/json"
	"sync"

	"go.uber.org/zap"

	"github.com/lumen-support/backend/internal/models"
)

const (
	// PingInterval and PongWait are used for heartbeat.
	PingInterval = 30
	PongWait     = 60

	// EventSignalAdded nudges the opposite role to re-poll the signal feed.
	// The feed itself stays on the HTTP poll endpoint; the socket only says
	// "something new is there".
	EventSignalAdded = "signal_added"
	// EventSessionUpdate carries lifecycle changes (ended, expired, control).
	EventSessionUpdate = "session_update"
)

// Hub maintains session code -> set of connections and fans out nudges.
// Uses Redis pub/sub for horizontal scaling: publish once, every instance's
// subscriber delivers to its local clients.
type Hub struct {
	// session code -> map[clientID]*Client
	sessions map[string]map[string]*Client
	subs     map[string]func() // cancel Redis subscription per session
	mu       sync.RWMutex
	logger   *zap.Logger
	redis    RedisPublisher
	redisSub RedisSubscriber
}

// RedisPublisher publishes session events for cross-instance delivery.
type RedisPublisher interface {
	PublishSessionEvent(sessionCode, event string, payload []byte) error
}

// RedisSubscriber subscribes to a session channel and invokes handler for
// incoming events.
type RedisSubscriber interface {
	SubscribeSession(sessionCode string, handler func(event string, payload []byte)) (cancel func(), err error)
}

// NewHub creates a new WebSocket hub. redisPub and redisSub may be nil for
// single-instance deployments; nudges then stay local.
func NewHub(logger *zap.Logger, redisPub RedisPublisher, redisSub RedisSubscriber) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{
		sessions: make(map[string]map[string]*Client),
		subs:     make(map[string]func()),
		logger:   logger,
		redis:    redisPub,
		redisSub: redisSub,
	}
}

// Register adds a client to a session room. Starts the Redis subscription for
// this session when the first client arrives.
func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	if h.sessions[c.SessionCode] == nil {
		h.sessions[c.SessionCode] = make(map[string]*Client)
		if h.redisSub != nil {
			cancel, err := h.redisSub.SubscribeSession(c.SessionCode, func(event string, payload []byte) {
				h.deliverLocal(c.SessionCode, event, payload)
			})
			if err == nil {
				h.subs[c.SessionCode] = cancel
			}
		}
	}
	h.sessions[c.SessionCode][c.ID] = c
	h.mu.Unlock()
	h.logger.Debug("client joined session room",
		zap.String("client_id", c.ID),
		zap.String("code", c.SessionCode),
		zap.String("role", string(c.Role)))
}

// Unregister removes a client from its session room. Cancels the Redis
// subscription when the last client leaves.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	if m, ok := h.sessions[c.SessionCode]; ok {
		delete(m, c.ID)
		if len(m) == 0 {
			delete(h.sessions, c.SessionCode)
			if cancel, ok := h.subs[c.SessionCode]; ok {
				cancel()
				delete(h.subs, c.SessionCode)
			}
		}
	}
	h.mu.Unlock()
	h.logger.Debug("client left session room", zap.String("client_id", c.ID), zap.String("code", c.SessionCode))
}

// NotifySignal tells the opposite role that a new signal is waiting. Publishes
// to Redis when configured so every instance delivers once; otherwise local.
func (h *Hub) NotifySignal(sessionCode string, from models.Role) {
	payload, _ := json.Marshal(map[string]string{"from": string(from)})
	h.publish(sessionCode, EventSignalAdded, payload)
}

// NotifySessionUpdate tells both roles about a lifecycle change.
func (h *Hub) NotifySessionUpdate(sessionCode, event string) {
	payload, _ := json.Marshal(map[string]string{"event": event})
	h.publish(sessionCode, EventSessionUpdate, payload)
}

func (h *Hub) publish(sessionCode, event string, payload []byte) {
	if h.redis != nil {
		if err := h.redis.PublishSessionEvent(sessionCode, event, payload); err == nil {
			return
		}
	}
	h.deliverLocal(sessionCode, event, payload)
}

// deliverLocal sends to clients connected to this instance. A signal_added
// nudge is skipped for the sender's own role; it already has the signal.
func (h *Hub) deliverLocal(sessionCode, event string, payload []byte) {
	var from models.Role
	if event == EventSignalAdded {
		var p struct {
			From string `json:"from"`
		}
		_ = json.Unmarshal(payload, &p)
		from = models.Role(p.From)
	}
	msg := WSMessage{Event: event, Data: payload}

	// Copy the room under the lock; Register/Unregister mutate the map while
	// sends are in flight.
	h.mu.RLock()
	clients := make([]*Client, 0, len(h.sessions[sessionCode]))
	for _, c := range h.sessions[sessionCode] {
		clients = append(clients, c)
	}
	h.mu.RUnlock()

	for _, c := range clients {
		if event == EventSignalAdded && c.Role == from {
			continue
		}
		select {
		case c.send <- msg:
		default:
			// buffer full, skip
		}
	}
}

// RoomSize returns the number of connected clients for a session.
func (h *Hub) RoomSize(sessionCode string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.sessions[sessionCode])
}
