package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"forum-service/internal/config"
	"forum-service/internal/session"
	"forum-service/pkg/logger"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeResolver map[string]string

func (f fakeResolver) ResolveIdentityFromCookie(_ context.Context, header string) (*session.Identity, error) {
	if header == "" {
		return nil, session.ErrNoCookie
	}
	userID, ok := f[header]
	if !ok {
		return nil, session.ErrSessionNotFound
	}
	return &session.Identity{ID: userID}, nil
}

type testEnv struct {
	hub        *Hub
	dispatcher *Dispatcher
	metrics    *Metrics
	server     *httptest.Server
	url        string
}

func newTestEnv(t *testing.T, opts ...func(*config.WebSocketConfig)) *testEnv {
	t.Helper()
	log := logger.NewNop()
	metrics := NewMetrics(prometheus.NewRegistry())
	registry := NewRegistry(log)
	auth := NewAuthenticator(fakeResolver{
		"forum.sid=alice": "u1",
		"forum.sid=bob":   "u2",
	})
	cfg := config.WebSocketConfig{
		WriteWait:      time.Second,
		PongWait:       5 * time.Second,
		MaxMessageSize: 512,
		SendBuffer:     16,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	hub := NewHub(registry, auth, metrics, cfg, log)
	server := httptest.NewServer(http.HandlerFunc(hub.ServeWS))
	t.Cleanup(func() {
		hub.Shutdown()
		server.Close()
	})

	return &testEnv{
		hub:        hub,
		dispatcher: NewDispatcher(registry, &fakeNotificationStore{}, metrics, log),
		metrics:    metrics,
		server:     server,
		url:        "ws" + strings.TrimPrefix(server.URL, "http"),
	}
}

func (e *testEnv) dial(t *testing.T, cookie string) *websocket.Conn {
	t.Helper()
	header := http.Header{}
	if cookie != "" {
		header.Set("Cookie", cookie)
	}
	conn, _, err := websocket.DefaultDialer.Dial(e.url, header)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readJSON(t *testing.T, conn *websocket.Conn) map[string]any {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	var out map[string]any
	require.NoError(t, json.Unmarshal(data, &out))
	return out
}

func (e *testEnv) connect(t *testing.T, cookie string) *websocket.Conn {
	t.Helper()
	conn := e.dial(t, cookie)
	ack := readJSON(t, conn)
	require.Equal(t, "authenticated", ack["type"])
	return conn
}

func (e *testEnv) waitForThread(t *testing.T, threadID string, n int) {
	t.Helper()
	assert.Eventually(t, func() bool {
		return len(e.hub.Registry().InThread(threadID)) == n
	}, 2*time.Second, 10*time.Millisecond)
}

func TestServeWSRejectsMissingOrInvalidSession(t *testing.T) {
	env := newTestEnv(t)

	for _, cookie := range []string{"", "forum.sid=mallory"} {
		conn := env.dial(t, cookie)
		require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
		_, _, err := conn.ReadMessage()

		var closeErr *websocket.CloseError
		require.True(t, errors.As(err, &closeErr), "expected close error, got %v", err)
		assert.Equal(t, CloseAuthRequired, closeErr.Code)
		assert.Equal(t, "Authentication required", closeErr.Text)
	}

	assert.Equal(t, 0, env.hub.Registry().Len())
	assert.Equal(t, 2.0, testutil.ToFloat64(env.metrics.HandshakeRejects))
}

func TestServeWSAcknowledgesAndRegisters(t *testing.T) {
	env := newTestEnv(t)

	conn := env.dial(t, "forum.sid=alice")
	ack := readJSON(t, conn)
	assert.Equal(t, map[string]any{"type": "authenticated", "userId": "u1"}, ack)

	assert.Eventually(t, func() bool { return env.hub.Registry().Len() == 1 }, time.Second, 10*time.Millisecond)
	assert.Equal(t, 1.0, testutil.ToFloat64(env.metrics.Connections))

	require.NoError(t, conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")))
	assert.Eventually(t, func() bool { return env.hub.Registry().Len() == 0 }, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, 0.0, testutil.ToFloat64(env.metrics.Connections))
}

func TestThreadUpdatesFollowJoinAndLeave(t *testing.T) {
	env := newTestEnv(t)
	alice := env.connect(t, "forum.sid=alice")
	bob := env.connect(t, "forum.sid=bob")

	require.NoError(t, alice.WriteJSON(map[string]string{"type": "join_thread", "postId": "p1"}))
	require.NoError(t, bob.WriteJSON(map[string]string{"type": "join_thread", "postId": "p2"}))
	env.waitForThread(t, "p1", 1)
	env.waitForThread(t, "p2", 1)

	delivered := env.dispatcher.BroadcastThreadUpdate(ActionCommentCreated, "p1", map[string]any{"authorId": "u2"})
	assert.Equal(t, 1, delivered)

	got := readJSON(t, alice)
	assert.Equal(t, "thread_update", got["type"])
	assert.Equal(t, "comment_created", got["action"])
	assert.Equal(t, "p1", got["postId"])

	require.NoError(t, alice.WriteJSON(map[string]string{"type": "leave_thread"}))
	env.waitForThread(t, "p1", 0)
	assert.Equal(t, 0, env.dispatcher.BroadcastThreadUpdate(ActionPostLiked, "p1", nil))
}

func TestMalformedMessagesAreIgnored(t *testing.T) {
	env := newTestEnv(t)
	conn := env.connect(t, "forum.sid=alice")

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("not json")))
	require.NoError(t, conn.WriteJSON(map[string]string{"type": "typing"}))
	require.NoError(t, conn.WriteJSON(map[string]string{"type": "join_thread", "postId": "p1"}))

	env.waitForThread(t, "p1", 1)
	assert.Equal(t, 2.0, testutil.ToFloat64(env.metrics.InboundMessages.WithLabelValues("invalid")))
	assert.Equal(t, 1.0, testutil.ToFloat64(env.metrics.InboundMessages.WithLabelValues(string(TypeJoinThread))))
}

func TestNotificationReachesUserConnections(t *testing.T) {
	env := newTestEnv(t)
	alice := env.connect(t, "forum.sid=alice")
	env.connect(t, "forum.sid=bob")

	_, err := env.dispatcher.NotifyUser(context.Background(), "u1", NotificationInput{
		Type: "comment", Title: "New Comment", Message: "bob commented on your post",
	})
	require.NoError(t, err)

	got := readJSON(t, alice)
	assert.Equal(t, "notification", got["type"])
	body, ok := got["notification"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "New Comment", body["title"])
}

func TestShutdownClosesWithGoingAway(t *testing.T) {
	env := newTestEnv(t)
	conn := env.connect(t, "forum.sid=alice")

	env.hub.Shutdown()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err := conn.ReadMessage()
	assert.True(t, websocket.IsCloseError(err, websocket.CloseGoingAway), "got %v", err)
	assert.Eventually(t, func() bool { return env.hub.Registry().Len() == 0 }, 2*time.Second, 10*time.Millisecond)
}

type recordingPresence struct {
	mu      sync.Mutex
	online  map[string]bool
	release chan struct{}
}

func newRecordingPresence() *recordingPresence {
	return &recordingPresence{online: make(map[string]bool)}
}

func (p *recordingPresence) SetUserOnline(_ context.Context, userID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.online[userID] = true
	return nil
}

func (p *recordingPresence) SetUserOffline(_ context.Context, userID string) error {
	if p.release != nil {
		<-p.release
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.online, userID)
	return nil
}

func (p *recordingPresence) isOnline(userID string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.online[userID]
}

func TestHeartbeatTimeoutClosesAsUnexpected(t *testing.T) {
	env := newTestEnv(t, func(cfg *config.WebSocketConfig) {
		cfg.PongWait = 300 * time.Millisecond
	})

	conn := env.dial(t, "forum.sid=alice")
	// Swallow pings so the server never sees a pong.
	conn.SetPingHandler(func(string) error { return nil })
	ack := readJSON(t, conn)
	require.Equal(t, "authenticated", ack["type"])
	assert.Equal(t, 1.0, testutil.ToFloat64(env.metrics.Connections))

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(3*time.Second)))
	var err error
	for err == nil {
		_, _, err = conn.ReadMessage()
	}

	var closeErr *websocket.CloseError
	require.True(t, errors.As(err, &closeErr), "expected close error, got %v", err)
	assert.NotEqual(t, websocket.CloseNormalClosure, closeErr.Code)
	assert.Equal(t, websocket.CloseGoingAway, closeErr.Code)
	assert.Equal(t, "Heartbeat timeout", closeErr.Text)

	assert.Eventually(t, func() bool { return env.hub.Registry().Len() == 0 }, 2*time.Second, 10*time.Millisecond)
	assert.Eventually(t, func() bool { return testutil.ToFloat64(env.metrics.Connections) == 0 }, 2*time.Second, 10*time.Millisecond)
}

type timeoutError struct{}

func (timeoutError) Error() string   { return "i/o timeout" }
func (timeoutError) Timeout() bool   { return true }
func (timeoutError) Temporary() bool { return true }

func TestReadCloseCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		code int
	}{
		{"peer closed normally", &websocket.CloseError{Code: websocket.CloseNormalClosure}, websocket.CloseNormalClosure},
		{"peer going away", &websocket.CloseError{Code: websocket.CloseGoingAway}, websocket.CloseGoingAway},
		{"peer vanished", &websocket.CloseError{Code: websocket.CloseAbnormalClosure}, websocket.CloseGoingAway},
		{"missed pong", timeoutError{}, websocket.CloseGoingAway},
		{"frame too large", websocket.ErrReadLimit, websocket.CloseMessageTooBig},
		{"broken read", errors.New("connection reset by peer"), websocket.CloseInternalServerErr},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, _ := readCloseCode(tt.err)
			assert.Equal(t, tt.code, code)
		})
	}
}

func TestWaitDrainedCoversPresenceCleanup(t *testing.T) {
	env := newTestEnv(t)
	presence := newRecordingPresence()
	presence.release = make(chan struct{})
	env.hub.WithPresence(presence)

	env.connect(t, "forum.sid=alice")
	require.True(t, presence.isOnline("u1"))

	env.hub.Shutdown()

	// The offline update is held back, so draining must not finish yet.
	short, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, env.hub.WaitDrained(short), context.DeadlineExceeded)

	close(presence.release)
	ctx, cancelWait := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancelWait()
	require.NoError(t, env.hub.WaitDrained(ctx))
	assert.False(t, presence.isOnline("u1"))
	assert.Equal(t, 0, env.hub.Registry().Len())
}

func TestCheckOrigin(t *testing.T) {
	hub := NewHub(NewRegistry(logger.NewNop()), nil, NewMetrics(prometheus.NewRegistry()),
		config.WebSocketConfig{AllowedOrigins: []string{"https://forum.example"}}, logger.NewNop())

	req := httptest.NewRequest(http.MethodGet, "/ws", nil)
	assert.True(t, hub.checkOrigin(req))

	req.Header.Set("Origin", "https://forum.example")
	assert.True(t, hub.checkOrigin(req))

	req.Header.Set("Origin", "https://evil.example")
	assert.False(t, hub.checkOrigin(req))
}
