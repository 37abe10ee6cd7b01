package websocket

import (
	"context"
	"errors"
	"net"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

var (
	ErrClientDisconnected = errors.New("client disconnected")
	ErrSendBufferFull     = errors.New("client send buffer full")
)

// Client is one accepted socket. The hub goroutine serving the upgrade runs
// readPump; writePump runs alongside it and owns every data frame write.
type Client struct {
	id     string
	userID string
	hub    *Hub
	conn   *websocket.Conn
	send   chan []byte

	ctx    context.Context
	cancel context.CancelFunc
	closed int32
}

func newClient(hub *Hub, conn *websocket.Conn, userID string) *Client {
	ctx, cancel := context.WithCancel(context.Background())

	return &Client{
		id:     uuid.NewString(),
		userID: userID,
		hub:    hub,
		conn:   conn,
		send:   make(chan []byte, hub.cfg.SendBuffer),
		ctx:    ctx,
		cancel: cancel,
	}
}

func (c *Client) ID() string { return c.id }

func (c *Client) isClosed() bool {
	return atomic.LoadInt32(&c.closed) == 1
}

// Send queues one frame without blocking. A client that cannot keep up is
// closed rather than allowed to stall the fan-out.
func (c *Client) Send(data []byte) error {
	if c.isClosed() {
		return ErrClientDisconnected
	}

	select {
	case <-c.ctx.Done():
		return ErrClientDisconnected
	case c.send <- data:
		return nil
	default:
		c.hub.logger.Warn("Send buffer full, closing client", "connectionID", c.id, "userID", c.userID)
		go c.Close(websocket.ClosePolicyViolation, "send buffer full")
		return ErrSendBufferFull
	}
}

// Close sends a close frame with code and tears the socket down. Only the
// first call has any effect.
func (c *Client) Close(code int, reason string) error {
	if !atomic.CompareAndSwapInt32(&c.closed, 0, 1) {
		return nil
	}
	c.cancel()

	deadline := time.Now().Add(c.hub.cfg.WriteWait)
	if err := c.conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, reason), deadline); err != nil &&
		!errors.Is(err, websocket.ErrCloseSent) {
		c.hub.logger.Debug("Error sending close frame", "connectionID", c.id, "error", err)
	}
	return c.conn.Close()
}

// readCloseCode picks the close frame sent after a failed read. Only a peer
// that closed normally gets 1000 back; a missed pong or a broken read must
// look unexpected so the peer reconnects.
func readCloseCode(err error) (int, string) {
	var closeErr *websocket.CloseError
	var netErr net.Error
	switch {
	case errors.As(err, &closeErr) && closeErr.Code == websocket.CloseNormalClosure:
		return websocket.CloseNormalClosure, ""
	case errors.As(err, &closeErr):
		return websocket.CloseGoingAway, ""
	case errors.Is(err, websocket.ErrReadLimit):
		return websocket.CloseMessageTooBig, "Message too big"
	case errors.As(err, &netErr) && netErr.Timeout():
		return websocket.CloseGoingAway, "Heartbeat timeout"
	default:
		return websocket.CloseInternalServerErr, ""
	}
}

func (c *Client) readPump() {
	var readErr error
	defer func() {
		c.hub.unregister(c)
		code, reason := readCloseCode(readErr)
		c.Close(code, reason)
	}()

	pongWait := c.hub.cfg.PongWait
	c.conn.SetReadLimit(c.hub.cfg.MaxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		if c.isClosed() {
			return websocket.ErrCloseSent
		}
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			readErr = err
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived) {
				c.hub.logger.Warn("WebSocket read error", "connectionID", c.id, "userID", c.userID, "error", err)
			} else {
				c.hub.logger.Debug("WebSocket connection closed", "connectionID", c.id, "userID", c.userID, "error", err)
			}
			return
		}
		c.hub.handleMessage(c, data)
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(c.hub.pingPeriod())
	defer ticker.Stop()

	writeWait := c.hub.cfg.WriteWait
	for {
		select {
		case message := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				c.hub.logger.Debug("Error writing message", "connectionID", c.id, "userID", c.userID, "error", err)
				c.Close(websocket.CloseInternalServerErr, "")
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.hub.logger.Debug("Error sending ping", "connectionID", c.id, "userID", c.userID, "error", err)
				c.Close(websocket.CloseInternalServerErr, "")
				return
			}

		case <-c.ctx.Done():
			return
		}
	}
}
