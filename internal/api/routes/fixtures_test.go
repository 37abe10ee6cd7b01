package routes

import (
	"context"
	"sort"
	"strconv"
	"sync"
	"time"

	"forum-service/internal/models"
	"forum-service/internal/repositories"
	"forum-service/internal/session"
)

type memUsers struct {
	mu     sync.Mutex
	byName map[string]*models.User
}

func (m *memUsers) Create(_ context.Context, u *models.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.byName[u.Username]; ok {
		return repositories.ErrDuplicate
	}
	u.ID = "user-" + u.Username
	u.Role = "user"
	m.byName[u.Username] = u
	return nil
}

func (m *memUsers) FindByUsername(_ context.Context, name string) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if u, ok := m.byName[name]; ok {
		return u, nil
	}
	return nil, repositories.ErrNotFound
}

func (m *memUsers) FindByID(_ context.Context, id string) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.byName {
		if u.ID == id {
			return u, nil
		}
	}
	return nil, repositories.ErrNotFound
}

type memSessions struct {
	mu      sync.Mutex
	records map[string]*session.Record
	next    int
}

func (m *memSessions) Create(_ context.Context, identity session.Identity) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.next++
	sid := "sid-" + strconv.Itoa(m.next)
	now := time.Now()
	m.records[sid] = &session.Record{User: &identity, CreatedAt: now, ExpiresAt: now.Add(time.Hour)}
	return sid, nil
}

func (m *memSessions) Lookup(_ context.Context, sid string) (*session.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if rec, ok := m.records[sid]; ok {
		return rec, nil
	}
	return nil, session.ErrSessionNotFound
}

func (m *memSessions) Destroy(_ context.Context, sid string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.records, sid)
	return nil
}

type memForum struct {
	mu       sync.Mutex
	posts    map[string]*models.Post
	comments map[string]*models.Comment
	likes    map[string]bool
	users    *memUsers
}

func (m *memForum) GetPostByID(_ context.Context, id string) (*models.Post, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p, ok := m.posts[id]; ok {
		return p, nil
	}
	return nil, repositories.ErrNotFound
}

func (m *memForum) GetCommentByID(_ context.Context, id string) (*models.Comment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if c, ok := m.comments[id]; ok {
		return c, nil
	}
	return nil, repositories.ErrNotFound
}

func (m *memForum) CreateComment(_ context.Context, c *models.Comment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c.ID = "comment-" + strconv.Itoa(len(m.comments)+1)
	m.comments[c.ID] = c
	m.posts[c.PostID].CommentCount++
	return nil
}

func (m *memForum) TogglePostLike(_ context.Context, userID, postID string) (bool, error) {
	return m.toggle("post:" + userID + ":" + postID), nil
}

func (m *memForum) ToggleCommentLike(_ context.Context, userID, commentID string) (bool, error) {
	return m.toggle("comment:" + userID + ":" + commentID), nil
}

func (m *memForum) toggle(key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.likes[key] = !m.likes[key]
	return m.likes[key]
}

func (m *memForum) Stats(context.Context) (models.CommunityStats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.users.mu.Lock()
	defer m.users.mu.Unlock()
	return models.CommunityStats{
		TotalUsers:    int64(len(m.users.byName)),
		TotalPosts:    int64(len(m.posts)),
		TotalComments: int64(len(m.comments)),
	}, nil
}

type memNotifications struct {
	mu   sync.Mutex
	list []*models.Notification
}

func (m *memNotifications) Create(_ context.Context, n *models.Notification) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	n.ID = "notification-" + strconv.Itoa(len(m.list)+1)
	n.CreatedAt = time.Now().Add(time.Duration(len(m.list)) * time.Millisecond)
	m.list = append(m.list, n)
	return nil
}

func (m *memNotifications) List(_ context.Context, userID string, limit int) ([]models.Notification, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Notification
	for _, n := range m.list {
		if n.UserID == userID {
			out = append(out, *n)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *memNotifications) UnreadCount(_ context.Context, userID string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var count int64
	for _, n := range m.list {
		if n.UserID == userID && !n.IsRead {
			count++
		}
	}
	return count, nil
}

func (m *memNotifications) MarkRead(_ context.Context, userID, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, n := range m.list {
		if n.ID == id && n.UserID == userID {
			n.IsRead = true
			return nil
		}
	}
	return repositories.ErrNotFound
}

func (m *memNotifications) MarkAllRead(_ context.Context, userID string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for _, item := range m.list {
		if item.UserID == userID && !item.IsRead {
			item.IsRead = true
			n++
		}
	}
	return n, nil
}

type allowAll struct {
	mu    sync.Mutex
	calls []string
	deny  map[string]bool
}

func (a *allowAll) CheckRateLimit(_ context.Context, key string, _ int, _ time.Duration) (bool, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.calls = append(a.calls, key)
	return !a.deny[key], nil
}
