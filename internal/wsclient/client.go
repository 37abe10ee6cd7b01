// Package wsclient is a reconnecting client for the forum's realtime
// endpoint. It is what a long-lived consumer (the CLI, a bot) uses instead of
// a bare socket.
package wsclient

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"forum-service/internal/websocket"
	"forum-service/pkg/logger"

	gorilla "github.com/gorilla/websocket"
)

const (
	DefaultBaseDelay   = time.Second
	DefaultMaxDelay    = 30 * time.Second
	DefaultMaxAttempts = 5

	closeWait = time.Second
)

var ErrClosed = errors.New("wsclient: client closed")

type State int

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	default:
		return "disconnected"
	}
}

// Conn is the subset of *gorilla.Conn the client needs.
type Conn interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteMessage(messageType int, data []byte) error
	WriteControl(messageType int, data []byte, deadline time.Time) error
	Close() error
}

type DialFunc func(ctx context.Context) (Conn, error)

// Timer is a pending reconnect.
type Timer interface {
	Stop() bool
}

type AfterFunc func(d time.Duration, f func()) Timer

// NewDialer dials url presenting the given Cookie header.
func NewDialer(url, cookie string) DialFunc {
	return func(ctx context.Context) (Conn, error) {
		header := http.Header{}
		if cookie != "" {
			header.Set("Cookie", cookie)
		}
		conn, _, err := gorilla.DefaultDialer.DialContext(ctx, url, header)
		if err != nil {
			return nil, err
		}
		return conn, nil
	}
}

type Options struct {
	Dial        DialFunc
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	MaxAttempts int
	AfterFunc   AfterFunc
	Logger      *logger.Logger

	OnAuthenticated func(userID string)
	OnThreadUpdate  func(update websocket.ThreadUpdate)
	OnNotification  func(n websocket.NotificationPayload)
	// OnStateChange runs on its own goroutine for each transition.
	OnStateChange func(state State)
}

func (o *Options) setDefaults() {
	if o.BaseDelay <= 0 {
		o.BaseDelay = DefaultBaseDelay
	}
	if o.MaxDelay <= 0 {
		o.MaxDelay = DefaultMaxDelay
	}
	if o.MaxAttempts <= 0 {
		o.MaxAttempts = DefaultMaxAttempts
	}
	if o.AfterFunc == nil {
		o.AfterFunc = func(d time.Duration, f func()) Timer { return time.AfterFunc(d, f) }
	}
	if o.Logger == nil {
		o.Logger = logger.NewNop()
	}
}

// Backoff returns min(base * 2^attempt, max).
func Backoff(attempt int, base, max time.Duration) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	if attempt > 30 {
		return max
	}
	d := base << attempt
	if d <= 0 || d > max {
		return max
	}
	return d
}

// Client owns at most one socket at a time. Every socket gets a generation
// number; events from a socket whose generation is stale are ignored.
type Client struct {
	opts Options

	ctx    context.Context
	cancel context.CancelFunc

	mu       sync.Mutex
	state    State
	conn     Conn
	gen      uint64
	attempts int
	timer    Timer
	thread   string
	closed   bool

	writeMu sync.Mutex
}

func New(opts Options) *Client {
	opts.setDefaults()
	ctx, cancel := context.WithCancel(context.Background())
	return &Client{opts: opts, ctx: ctx, cancel: cancel}
}

func (c *Client) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Client) Attempts() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.attempts
}

// Connect starts a connection attempt if the client is idle.
func (c *Client) Connect() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClosed
	}
	if c.state != StateDisconnected {
		return nil
	}
	c.connectLocked()
	return nil
}

// Disconnect closes the socket with a normal closure and cancels any pending
// reconnect. Connect or Resume may be called afterwards.
func (c *Client) Disconnect() {
	c.mu.Lock()
	conn := c.detachLocked()
	c.mu.Unlock()

	if conn != nil {
		c.writeMu.Lock()
		msg := gorilla.FormatCloseMessage(gorilla.CloseNormalClosure, "User disconnected")
		if err := conn.WriteControl(gorilla.CloseMessage, msg, time.Now().Add(closeWait)); err != nil {
			c.opts.Logger.Debug("Error sending close frame", "error", err)
		}
		c.writeMu.Unlock()
		conn.Close()
	}
}

// Resume resets the attempt counter and reconnects if idle, as after the
// host becoming active again.
func (c *Client) Resume() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClosed
	}
	c.attempts = 0
	if c.state == StateDisconnected && c.timer == nil {
		c.connectLocked()
	}
	return nil
}

// Close tears the client down. No reconnect fires after it returns.
func (c *Client) Close() {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()

	c.Disconnect()
	c.cancel()
}

// JoinThread records postID as the viewed thread and tells the server if
// connected. It does not wait for acknowledgement.
func (c *Client) JoinThread(postID string) error {
	c.mu.Lock()
	c.thread = postID
	conn, connected := c.conn, c.state == StateConnected
	c.mu.Unlock()

	if !connected {
		return nil
	}
	return c.write(conn, websocket.JoinThread{PostID: postID})
}

func (c *Client) LeaveThread() error {
	c.mu.Lock()
	c.thread = ""
	conn, connected := c.conn, c.state == StateConnected
	c.mu.Unlock()

	if !connected {
		return nil
	}
	return c.write(conn, websocket.LeaveThread{})
}

func (c *Client) write(conn Conn, m websocket.Inbound) error {
	data, err := websocket.EncodeInbound(m)
	if err != nil {
		return err
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return conn.WriteMessage(gorilla.TextMessage, data)
}

func (c *Client) setStateLocked(s State) {
	if c.state == s {
		return
	}
	c.state = s
	if c.opts.OnStateChange != nil {
		go c.opts.OnStateChange(s)
	}
}

func (c *Client) connectLocked() {
	c.gen++
	gen := c.gen
	c.setStateLocked(StateConnecting)
	go c.dial(gen)
}

// detachLocked invalidates the current socket and any pending reconnect.
func (c *Client) detachLocked() Conn {
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	c.gen++
	conn := c.conn
	c.conn = nil
	c.setStateLocked(StateDisconnected)
	return conn
}

func (c *Client) dial(gen uint64) {
	conn, err := c.opts.Dial(c.ctx)
	if err != nil {
		c.opts.Logger.Warn("WebSocket dial failed", "error", err)
		c.closedUnexpectedly(gen, gorilla.CloseAbnormalClosure)
		return
	}

	c.mu.Lock()
	if gen != c.gen {
		c.mu.Unlock()
		conn.Close()
		return
	}
	c.conn = conn
	c.mu.Unlock()

	c.readLoop(gen, conn)
}

func (c *Client) readLoop(gen uint64, conn Conn) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			code := gorilla.CloseAbnormalClosure
			var closeErr *gorilla.CloseError
			if errors.As(err, &closeErr) {
				code = closeErr.Code
			}
			conn.Close()
			if code == gorilla.CloseNormalClosure {
				c.closedNormally(gen)
			} else {
				c.closedUnexpectedly(gen, code)
			}
			return
		}
		c.handle(gen, conn, data)
	}
}

func (c *Client) handle(gen uint64, conn Conn, data []byte) {
	typ, err := websocket.PeekOutboundType(data)
	if err != nil {
		c.opts.Logger.Warn("Ignoring server message", "error", err)
		return
	}

	switch typ {
	case websocket.TypeAuthenticated:
		var ack websocket.Authenticated
		if err := json.Unmarshal(data, &ack); err != nil {
			c.opts.Logger.Warn("Bad authenticated message", "error", err)
			return
		}
		c.mu.Lock()
		if gen != c.gen {
			c.mu.Unlock()
			return
		}
		c.attempts = 0
		c.setStateLocked(StateConnected)
		thread := c.thread
		c.mu.Unlock()

		if thread != "" {
			if err := c.write(conn, websocket.JoinThread{PostID: thread}); err != nil {
				c.opts.Logger.Warn("Failed to rejoin thread", "postID", thread, "error", err)
			}
		}
		if c.opts.OnAuthenticated != nil {
			c.opts.OnAuthenticated(ack.UserID)
		}

	case websocket.TypeThreadUpdate:
		var update websocket.ThreadUpdate
		if err := json.Unmarshal(data, &update); err != nil {
			c.opts.Logger.Warn("Bad thread update", "error", err)
			return
		}
		if c.opts.OnThreadUpdate != nil {
			c.opts.OnThreadUpdate(update)
		}

	case websocket.TypeNotification:
		var push websocket.NotificationPush
		if err := json.Unmarshal(data, &push); err != nil {
			c.opts.Logger.Warn("Bad notification", "error", err)
			return
		}
		if c.opts.OnNotification != nil {
			c.opts.OnNotification(push.Notification)
		}

	default:
		c.opts.Logger.Debug("Unknown message type", "type", typ)
	}
}

func (c *Client) closedNormally(gen uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if gen != c.gen {
		return
	}
	c.conn = nil
	c.setStateLocked(StateDisconnected)
	c.opts.Logger.Info("WebSocket closed normally")
}

func (c *Client) closedUnexpectedly(gen uint64, code int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if gen != c.gen {
		return
	}
	c.conn = nil
	c.setStateLocked(StateDisconnected)

	if c.closed {
		return
	}
	if c.attempts >= c.opts.MaxAttempts {
		c.opts.Logger.Warn("Giving up reconnecting", "code", code, "attempts", c.attempts)
		return
	}

	delay := Backoff(c.attempts, c.opts.BaseDelay, c.opts.MaxDelay)
	c.opts.Logger.Info("Scheduling reconnect", "code", code, "delay", delay, "attempt", c.attempts+1)
	c.timer = c.opts.AfterFunc(delay, func() { c.reconnect(gen) })
}

func (c *Client) reconnect(gen uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if gen != c.gen || c.closed {
		return
	}
	c.timer = nil
	c.attempts++
	c.connectLocked()
}
