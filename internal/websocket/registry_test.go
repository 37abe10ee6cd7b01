package websocket

import (
	"errors"
	"sort"
	"sync"
	"testing"

	"forum-service/pkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeConn struct {
	id      string
	mu      sync.Mutex
	sent    [][]byte
	sendErr error
	closed  []int
}

func newFakeConn(id string) *fakeConn { return &fakeConn{id: id} }

func (c *fakeConn) ID() string { return c.id }

func (c *fakeConn) Send(data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sendErr != nil {
		return c.sendErr
	}
	c.sent = append(c.sent, data)
	return nil
}

func (c *fakeConn) Close(code int, _ string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = append(c.closed, code)
	return nil
}

func (c *fakeConn) messages() [][]byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([][]byte(nil), c.sent...)
}

func ids(conns []Conn) []string {
	out := make([]string, 0, len(conns))
	for _, c := range conns {
		out = append(out, c.ID())
	}
	sort.Strings(out)
	return out
}

func TestRegistryLifecycle(t *testing.T) {
	r := NewRegistry(logger.NewNop())
	c1 := newFakeConn("c1")

	require.NoError(t, r.Register(c1, "u1"))
	rec, ok := r.Lookup("c1")
	require.True(t, ok)
	assert.Equal(t, Record{ConnectionID: "c1", UserID: "u1"}, rec)

	assert.True(t, r.SetThread("c1", "p1"))
	rec, _ = r.Lookup("c1")
	assert.Equal(t, "p1", rec.CurrentThread)

	assert.True(t, r.SetThread("c1", ""))
	rec, _ = r.Lookup("c1")
	assert.Empty(t, rec.CurrentThread)

	assert.True(t, r.Unregister("c1"))
	assert.False(t, r.Unregister("c1"))
	_, ok = r.Lookup("c1")
	assert.False(t, ok)
	assert.Equal(t, 0, r.Len())
}

func TestRegistryRejectsInvalidRegistrations(t *testing.T) {
	r := NewRegistry(logger.NewNop())

	assert.ErrorIs(t, r.Register(newFakeConn("c1"), ""), ErrEmptyUserID)
	assert.Equal(t, 0, r.Len())

	require.NoError(t, r.Register(newFakeConn("c1"), "u1"))
	assert.ErrorIs(t, r.Register(newFakeConn("c1"), "u2"), ErrAlreadyRegistered)

	rec, _ := r.Lookup("c1")
	assert.Equal(t, "u1", rec.UserID)
}

func TestRegistrySetThreadUnknownConnection(t *testing.T) {
	r := NewRegistry(logger.NewNop())
	assert.False(t, r.SetThread("missing", "p1"))
	assert.Empty(t, r.InThread("p1"))
}

func TestRegistryOneThreadPerConnection(t *testing.T) {
	r := NewRegistry(logger.NewNop())
	require.NoError(t, r.Register(newFakeConn("c1"), "u1"))

	r.SetThread("c1", "p1")
	r.SetThread("c1", "p2")

	assert.Empty(t, r.InThread("p1"))
	assert.Equal(t, []string{"c1"}, ids(r.InThread("p2")))
}

func TestRegistrySelectors(t *testing.T) {
	r := NewRegistry(logger.NewNop())
	require.NoError(t, r.Register(newFakeConn("c1"), "u1"))
	require.NoError(t, r.Register(newFakeConn("c2"), "u1"))
	require.NoError(t, r.Register(newFakeConn("c3"), "u2"))
	r.SetThread("c1", "p1")
	r.SetThread("c3", "p1")

	assert.Equal(t, []string{"c1", "c3"}, ids(r.InThread("p1")))
	assert.Equal(t, []string{"c1", "c2"}, ids(r.ForUser("u1")))
	assert.Equal(t, []string{"c1", "c2", "c3"}, ids(r.All()))
	assert.Nil(t, r.InThread(""))
	assert.Nil(t, r.ForUser(""))
	assert.Equal(t, 3, r.Len())
	assert.Equal(t, 2, r.OnlineUsers())

	r.Unregister("c1")
	assert.Equal(t, []string{"c3"}, ids(r.InThread("p1")))
	assert.Equal(t, 2, r.OnlineUsers())
	r.Unregister("c2")
	assert.Equal(t, 1, r.OnlineUsers())
}

func TestRegistryConcurrentAccess(t *testing.T) {
	r := NewRegistry(logger.NewNop())

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id := string(rune('a'+i%26)) + string(rune('0'+i/26))
			if err := r.Register(newFakeConn(id), "u1"); err != nil && !errors.Is(err, ErrAlreadyRegistered) {
				t.Error(err)
			}
			r.SetThread(id, "p1")
			_ = r.InThread("p1")
			r.Unregister(id)
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 0, r.Len())
}
