package websocket

import (
	"context"
	"net/http"

	"forum-service/internal/session"
)

// IdentityResolver is satisfied by *session.Resolver, the same resolver the
// HTTP auth middleware uses.
type IdentityResolver interface {
	ResolveIdentityFromCookie(ctx context.Context, cookieHeader string) (*session.Identity, error)
}

// Authenticator admits a handshake only if its session cookie resolves to a
// user. It never writes to the session store.
type Authenticator struct {
	resolver IdentityResolver
}

func NewAuthenticator(resolver IdentityResolver) *Authenticator {
	return &Authenticator{resolver: resolver}
}

// Authenticate returns the verified user id for the handshake request.
func (a *Authenticator) Authenticate(r *http.Request) (string, error) {
	identity, err := a.resolver.ResolveIdentityFromCookie(r.Context(), r.Header.Get("Cookie"))
	if err != nil {
		return "", err
	}
	return identity.ID, nil
}
