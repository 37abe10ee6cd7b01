package session

import (
	"errors"
	"time"
)

var (
	ErrNoCookie        = errors.New("session cookie missing")
	ErrInvalidCookie   = errors.New("session cookie invalid")
	ErrSessionNotFound = errors.New("session not found or expired")
	ErrNoIdentity      = errors.New("session carries no user identity")
)

// Identity is the authenticated principal stored in a session.
type Identity struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Role     string `json:"role,omitempty"`
}

// Record is the serialized form of a session in the store.
type Record struct {
	User      *Identity `json:"user,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	ExpiresAt time.Time `json:"expiresAt"`
}
