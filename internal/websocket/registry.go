package websocket

import (
	"errors"
	"sync"

	"forum-service/pkg/logger"
)

var (
	ErrAlreadyRegistered = errors.New("connection already registered")
	ErrEmptyUserID       = errors.New("connection has no user id")
)

// Conn is the registry's view of one live, authenticated socket.
type Conn interface {
	ID() string
	Send(data []byte) error
	Close(code int, reason string) error
}

// Record describes a registered connection. CurrentThread is empty when the
// connection has not joined a thread.
type Record struct {
	ConnectionID  string
	UserID        string
	CurrentThread string
}

type entry struct {
	conn   Conn
	record Record
}

// Registry is the only owner of connection records. A record exists exactly
// while its socket is open and authenticated.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]*entry
	logger  *logger.Logger
}

func NewRegistry(log *logger.Logger) *Registry {
	return &Registry{
		entries: make(map[string]*entry),
		logger:  log,
	}
}

// Register inserts a record with no current thread.
func (r *Registry) Register(conn Conn, userID string) error {
	if userID == "" {
		r.logger.Warn("Refusing to register connection without user", "connectionID", conn.ID())
		return ErrEmptyUserID
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	id := conn.ID()
	if _, exists := r.entries[id]; exists {
		r.logger.Warn("Connection registered twice", "connectionID", id, "userID", userID)
		return ErrAlreadyRegistered
	}
	r.entries[id] = &entry{
		conn:   conn,
		record: Record{ConnectionID: id, UserID: userID},
	}
	r.logger.Info("Connection registered", "connectionID", id, "userID", userID)
	return nil
}

// SetThread replaces the connection's current thread; "" clears it. It
// reports false when the connection is unknown, which happens when a join
// races with close.
func (r *Registry) SetThread(connectionID, threadID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.entries[connectionID]
	if !ok {
		r.logger.Debug("Thread change for unknown connection", "connectionID", connectionID, "threadID", threadID)
		return false
	}
	e.record.CurrentThread = threadID
	return true
}

// Unregister is idempotent and reports whether a record was removed.
func (r *Registry) Unregister(connectionID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.entries[connectionID]
	if !ok {
		return false
	}
	delete(r.entries, connectionID)
	r.logger.Info("Connection unregistered", "connectionID", connectionID, "userID", e.record.UserID)
	return true
}

func (r *Registry) Lookup(connectionID string) (Record, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.entries[connectionID]
	if !ok {
		return Record{}, false
	}
	return e.record, true
}

// Select returns a snapshot of the connections whose record matches. The
// registry may change while the caller works through the result.
func (r *Registry) Select(match func(Record) bool) []Conn {
	r.mu.RLock()
	defer r.mu.RUnlock()

	conns := make([]Conn, 0)
	for _, e := range r.entries {
		if match(e.record) {
			conns = append(conns, e.conn)
		}
	}
	return conns
}

func (r *Registry) InThread(threadID string) []Conn {
	if threadID == "" {
		return nil
	}
	return r.Select(func(rec Record) bool { return rec.CurrentThread == threadID })
}

func (r *Registry) ForUser(userID string) []Conn {
	if userID == "" {
		return nil
	}
	return r.Select(func(rec Record) bool { return rec.UserID == userID })
}

func (r *Registry) All() []Conn {
	return r.Select(func(Record) bool { return true })
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

// OnlineUsers counts distinct users with at least one live connection.
func (r *Registry) OnlineUsers() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	users := make(map[string]struct{}, len(r.entries))
	for _, e := range r.entries {
		users[e.record.UserID] = struct{}{}
	}
	return len(users)
}
