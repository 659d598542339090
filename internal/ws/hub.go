package ws

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"messaging-service/internal/models"
	"messaging-service/internal/observability"
	"messaging-service/internal/presence"
)

var (
	ErrUnknownConnection = errors.New("unknown connection")
	ErrInvalidUserID     = errors.New("invalid user id")
	ErrJoinForbidden     = errors.New("join does not match authenticated user")
)

// HubConfig tunes per-connection behaviour.
type HubConfig struct {
	SendBuffer   int
	RequireToken bool
}

// Hub tracks live connections and routes user-targeted pushes through the
// presence registry.
type Hub struct {
	registry *presence.Registry
	cfg      HubConfig
	log      zerolog.Logger
	now      func() time.Time

	mu      sync.RWMutex
	clients map[string]*Client
}

// NewHub creates a hub on top of registry.
func NewHub(registry *presence.Registry, cfg HubConfig, log zerolog.Logger) *Hub {
	if cfg.SendBuffer <= 0 {
		cfg.SendBuffer = 256
	}
	return &Hub{
		registry: registry,
		cfg:      cfg,
		log:      log.With().Str("component", "ws").Logger(),
		now:      time.Now,
		clients:  make(map[string]*Client),
	}
}

// OnConnect admits an anonymous connection.
func (h *Hub) OnConnect(conn wsConnection, info ConnInfo) *Client {
	if info.ConnID == "" {
		info.ConnID = newConnID()
	}
	if info.ConnectedAt.IsZero() {
		info.ConnectedAt = h.now()
	}
	info.UserID = ""

	c := &Client{
		hub:    h,
		conn:   conn,
		connID: info.ConnID,
		info:   info,
		send:   make(chan []byte, h.cfg.SendBuffer),
	}

	h.mu.Lock()
	h.clients[c.connID] = c
	h.mu.Unlock()

	observability.IncWSActive()
	h.publish("ws_connect", info, "")
	h.log.Debug().Str("conn_id", c.connID).Str("ip", info.IP).Msg("connection admitted")
	return c
}

// OnJoin binds userID to the connection. The latest join for a user wins.
func (h *Hub) OnJoin(connID, userID string) error {
	if !models.ValidID(userID) {
		return ErrInvalidUserID
	}
	c := h.client(connID)
	if c == nil {
		return ErrUnknownConnection
	}
	info := c.Info()
	if h.cfg.RequireToken && info.AuthUserID != userID {
		return ErrJoinForbidden
	}

	c.setUser(userID)
	h.registry.Bind(userID, connID)
	observability.SetPresenceUsers(h.registry.Len())

	info.UserID = userID
	h.publish("ws_join", info, "")
	h.log.Debug().Str("conn_id", connID).Str("user_id", userID).Msg("user joined")
	return nil
}

// Push delivers payload tagged with event to the user's live connection.
// It reports false when the user is offline or the connection's queue is
// full; neither case is an error.
func (h *Hub) Push(userID, event string, payload any) bool {
	delivered := h.push(userID, event, payload)
	observability.ObservePush(event, delivered)
	return delivered
}

func (h *Hub) push(userID, event string, payload any) bool {
	connID, ok := h.registry.Lookup(userID)
	if !ok {
		return false
	}
	c := h.client(connID)
	if c == nil {
		return false
	}
	frame, err := encodeFrame(event, payload)
	if err != nil {
		h.log.Error().Err(err).Str("event", event).Msg("encode push")
		return false
	}
	if !c.enqueue(frame) {
		h.log.Warn().Str("conn_id", connID).Str("user_id", userID).Str("event", event).Msg("send queue full, dropping push")
		return false
	}
	return true
}

// OnDisconnect forgets the connection and releases any presence it holds.
// Calling it more than once is harmless.
func (h *Hub) OnDisconnect(connID, reason string) {
	h.mu.Lock()
	c, ok := h.clients[connID]
	delete(h.clients, connID)
	h.mu.Unlock()

	h.registry.Unbind(connID)
	if !ok {
		return
	}
	c.close()

	observability.DecWSActive()
	observability.SetPresenceUsers(h.registry.Len())
	h.publish("ws_disconnect", c.Info(), reason)
	h.log.Debug().Str("conn_id", connID).Str("reason", reason).Msg("connection closed")
}

// HandleFrame decodes one inbound frame and dispatches it.
func (h *Hub) HandleFrame(c *Client, raw []byte) {
	var frame models.Event
	if err := json.Unmarshal(raw, &frame); err != nil || frame.Event == "" {
		h.reply(c, "", "malformed frame")
		return
	}

	observability.IncWSEvent(eventLabel(frame.Event))
	if frame.Event == models.EventJoin {
		var userID string
		if err := json.Unmarshal(frame.Data, &userID); err != nil {
			h.reply(c, frame.Event, ErrInvalidUserID.Error())
			return
		}
		if err := h.OnJoin(c.connID, userID); err != nil {
			h.reply(c, frame.Event, err.Error())
		}
		return
	}
	h.OnClientMessage(c.connID, frame.Event, frame.Data)
}

// OnClientMessage handles client-originated events other than join. A
// sendMessage is relayed live to the receiver and echoed to the sender's own
// connection when that is a different one. Nothing is persisted here.
func (h *Hub) OnClientMessage(connID, event string, data json.RawMessage) {
	if event != models.EventSendMessage {
		h.log.Debug().Str("conn_id", connID).Str("event", event).Msg("ignoring unknown event")
		return
	}

	var msg models.LiveMessage
	if err := json.Unmarshal(data, &msg); err != nil || msg.ReceiverID == "" {
		if c := h.client(connID); c != nil {
			h.reply(c, event, "sendMessage requires receiver_id")
		}
		return
	}
	if msg.CreatedAt == "" {
		msg.CreatedAt = h.now().UTC().Format(time.RFC3339)
	}

	receiverConn, _ := h.registry.Lookup(msg.ReceiverID)
	h.Push(msg.ReceiverID, models.EventReceiveMessage, msg)

	if msg.SenderID == "" {
		return
	}
	if senderConn, ok := h.registry.Lookup(msg.SenderID); ok && senderConn != receiverConn {
		h.Push(msg.SenderID, models.EventMessageSent, msg)
	}
}

// Len returns the number of live connections.
func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Shutdown closes every live connection. Each read pump then runs its
// normal disconnect path.
func (h *Hub) Shutdown() {
	h.mu.RLock()
	conns := make([]wsConnection, 0, len(h.clients))
	for _, c := range h.clients {
		conns = append(conns, c.conn)
	}
	h.mu.RUnlock()

	for _, conn := range conns {
		if conn != nil {
			_ = conn.Close()
		}
	}
}

// eventLabel keeps client-chosen event names out of metric labels.
func eventLabel(event string) string {
	switch event {
	case models.EventJoin, models.EventSendMessage:
		return event
	}
	return "unknown"
}

func (h *Hub) client(connID string) *Client {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.clients[connID]
}

func (h *Hub) reply(c *Client, event, message string) {
	frame, err := encodeFrame(models.EventError, models.ErrorPayload{Event: event, Message: message})
	if err != nil {
		return
	}
	if !c.enqueue(frame) {
		h.log.Warn().Str("conn_id", c.connID).Msg("send queue full, dropping error reply")
	}
}

func (h *Hub) onConnError(c *Client, err error) {
	h.log.Warn().Err(err).Str("conn_id", c.connID).Msg("websocket read error")
	h.publish("ws_error", c.Info(), err.Error())
}

func (h *Hub) publish(event string, info ConnInfo, reason string) {
	observability.IncWSEvent(event)
	envelope := observability.WSEnvelope(event, info.ConnID, info.UserID, info.IP, reason, info.durationMs())
	headers := observability.BuildHeaders(info.RequestID, info.TraceID)
	if err := observability.PublishEvent(context.Background(), observability.WSRoutingKey, envelope, headers); err != nil {
		h.log.Warn().Err(err).Str("event", event).Msg("publish ws event")
	}
}
