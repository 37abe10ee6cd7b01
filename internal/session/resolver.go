package session

import (
	"context"
	"fmt"
	"net/http"
	"time"
)

// Resolver turns a raw Cookie header into a verified identity. The HTTP auth
// middleware and the websocket authenticator both go through it, so the two
// transports can never disagree about who a cookie belongs to.
type Resolver struct {
	codec *CookieCodec
	store Store
	now   func() time.Time
}

func NewResolver(codec *CookieCodec, store Store) *Resolver {
	return &Resolver{codec: codec, store: store, now: time.Now}
}

// ResolveIdentityFromCookie never writes to the store.
func (r *Resolver) ResolveIdentityFromCookie(ctx context.Context, cookieHeader string) (*Identity, error) {
	sid, err := r.SessionID(cookieHeader)
	if err != nil {
		return nil, err
	}

	rec, err := r.store.Lookup(ctx, sid)
	if err != nil {
		return nil, err
	}
	if !rec.ExpiresAt.IsZero() && r.now().After(rec.ExpiresAt) {
		return nil, ErrSessionNotFound
	}
	if rec.User == nil || rec.User.ID == "" {
		return nil, ErrNoIdentity
	}
	return rec.User, nil
}

// SessionID extracts and verifies the session id from a Cookie header.
func (r *Resolver) SessionID(cookieHeader string) (string, error) {
	if cookieHeader == "" {
		return "", ErrNoCookie
	}
	cookies, err := http.ParseCookie(cookieHeader)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidCookie, err)
	}
	for _, c := range cookies {
		if c.Name == r.codec.Name() {
			return r.codec.Decode(c.Value)
		}
	}
	return "", ErrNoCookie
}
