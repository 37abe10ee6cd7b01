package websocket

import (
	"context"
	"errors"
	"net/http"
	"sync/atomic"
	"time"

	"forum-service/internal/config"
	"forum-service/pkg/logger"

	"github.com/gorilla/websocket"
)

// Presence mirrors who is online somewhere outside this process. It is
// optional; the registry stays the source of truth for this instance.
type Presence interface {
	SetUserOnline(ctx context.Context, userID string) error
	SetUserOffline(ctx context.Context, userID string) error
}

// Hub admits sockets, routes their join/leave intents into the registry and
// removes them when they close.
type Hub struct {
	registry *Registry
	auth     *Authenticator
	metrics  *Metrics
	presence Presence
	cfg      config.WebSocketConfig
	upgrader websocket.Upgrader
	logger   *logger.Logger

	// active counts read loops that have not finished their unregister,
	// presence update included.
	active atomic.Int64
}

const drainPollInterval = 10 * time.Millisecond

func NewHub(registry *Registry, auth *Authenticator, metrics *Metrics, cfg config.WebSocketConfig, log *logger.Logger) *Hub {
	h := &Hub{
		registry: registry,
		auth:     auth,
		metrics:  metrics,
		cfg:      cfg,
		logger:   log,
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     h.checkOrigin,
	}
	return h
}

// WithPresence attaches a presence mirror and returns the hub.
func (h *Hub) WithPresence(p Presence) *Hub {
	h.presence = p
	return h
}

func (h *Hub) Registry() *Registry { return h.registry }

func (h *Hub) checkOrigin(r *http.Request) bool {
	if len(h.cfg.AllowedOrigins) == 0 {
		return sameOrigin(r)
	}
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	for _, allowed := range h.cfg.AllowedOrigins {
		if allowed == "*" || allowed == origin {
			return true
		}
	}
	return false
}

func sameOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	return origin == "http://"+r.Host || origin == "https://"+r.Host
}

func (h *Hub) pingPeriod() time.Duration {
	return h.cfg.PongWait * 9 / 10
}

// ServeWS upgrades the request and blocks until the socket closes. A request
// whose session does not resolve is upgraded only so it can be closed with
// CloseAuthRequired.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	userID, authErr := h.auth.Authenticate(r)

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("WebSocket upgrade failed", "remoteAddr", r.RemoteAddr, "error", err)
		return
	}

	if authErr != nil {
		h.metrics.HandshakeRejects.Inc()
		h.logger.Info("WebSocket handshake rejected", "remoteAddr", r.RemoteAddr, "error", authErr)
		h.reject(conn)
		return
	}

	client := newClient(h, conn, userID)
	if err := h.registry.Register(client, userID); err != nil {
		h.logger.Error("Failed to register client", "connectionID", client.id, "userID", userID, "error", err)
		client.Close(websocket.CloseInternalServerErr, "")
		return
	}
	h.active.Add(1)
	defer h.active.Add(-1)
	h.metrics.Connections.Inc()
	h.markOnline(userID)

	go client.writePump()

	h.ack(client)
	client.readPump()
}

func (h *Hub) reject(conn *websocket.Conn) {
	deadline := time.Now().Add(h.cfg.WriteWait)
	msg := websocket.FormatCloseMessage(CloseAuthRequired, "Authentication required")
	if err := conn.WriteControl(websocket.CloseMessage, msg, deadline); err != nil && !errors.Is(err, websocket.ErrCloseSent) {
		h.logger.Debug("Error sending auth close frame", "remoteAddr", conn.RemoteAddr().String(), "error", err)
	}
	conn.Close()
}

func (h *Hub) ack(c *Client) {
	data, err := Authenticated{UserID: c.userID}.MarshalJSON()
	if err != nil {
		h.logger.Error("Failed to encode authenticated ack", "connectionID", c.id, "error", err)
		return
	}
	h.metrics.delivered(deliveryAck, c.Send(data))
}

func (h *Hub) handleMessage(c *Client, data []byte) {
	msg, err := DecodeInbound(data)
	if err != nil {
		h.metrics.InboundMessages.WithLabelValues("invalid").Inc()
		h.logger.Warn("Ignoring client message", "connectionID", c.id, "userID", c.userID, "error", err)
		return
	}
	h.metrics.InboundMessages.WithLabelValues(string(msg.Kind())).Inc()

	switch m := msg.(type) {
	case JoinThread:
		if h.registry.SetThread(c.id, m.PostID) {
			h.logger.Debug("Client joined thread", "connectionID", c.id, "userID", c.userID, "postID", m.PostID)
		}
	case LeaveThread:
		if h.registry.SetThread(c.id, "") {
			h.logger.Debug("Client left thread", "connectionID", c.id, "userID", c.userID)
		}
	}
}

func (h *Hub) unregister(c *Client) {
	if !h.registry.Unregister(c.id) {
		return
	}
	h.metrics.Connections.Dec()
	if len(h.registry.ForUser(c.userID)) == 0 {
		h.markOffline(c.userID)
	}
}

func (h *Hub) markOnline(userID string) {
	if h.presence == nil {
		return
	}
	if err := h.presence.SetUserOnline(context.Background(), userID); err != nil {
		h.logger.Error("Failed to set user online", "userID", userID, "error", err)
	}
}

func (h *Hub) markOffline(userID string) {
	if h.presence == nil {
		return
	}
	if err := h.presence.SetUserOffline(context.Background(), userID); err != nil {
		h.logger.Error("Failed to set user offline", "userID", userID, "error", err)
	}
}

// Shutdown closes every live socket with CloseGoingAway. Each socket's read
// loop then unregisters it.
func (h *Hub) Shutdown() {
	conns := h.registry.All()
	for _, c := range conns {
		if err := c.Close(websocket.CloseGoingAway, "Server shutting down"); err != nil {
			h.logger.Debug("Error closing connection on shutdown", "connectionID", c.ID(), "error", err)
		}
	}
	h.logger.Info("WebSocket hub shut down", "closed", len(conns))
}

// WaitDrained blocks until every read loop has unregistered its connection
// and cleared presence, or ctx is done.
func (h *Hub) WaitDrained(ctx context.Context) error {
	ticker := time.NewTicker(drainPollInterval)
	defer ticker.Stop()

	for h.active.Load() > 0 {
		select {
		case <-ctx.Done():
			h.logger.Warn("Connections still open after shutdown", "remaining", h.active.Load())
			return ctx.Err()
		case <-ticker.C:
		}
	}
	return nil
}
