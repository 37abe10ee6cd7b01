package middleware

import (
	"context"
	"net/http"

	"forum-service/internal/session"
	"forum-service/pkg/logger"
	"forum-service/pkg/response"

	"github.com/gin-gonic/gin"
)

const (
	ContextUserID   = "user_id"
	ContextIdentity = "identity"
)

type IdentityResolver interface {
	ResolveIdentityFromCookie(ctx context.Context, cookieHeader string) (*session.Identity, error)
}

type AuthMiddleware struct {
	resolver IdentityResolver
	logger   *logger.Logger
}

func NewAuthMiddleware(resolver IdentityResolver, log *logger.Logger) *AuthMiddleware {
	return &AuthMiddleware{
		resolver: resolver,
		logger:   log,
	}
}

// RequireAuth resolves the session cookie and stores the identity on the
// context under ContextIdentity and its id under ContextUserID.
func (am *AuthMiddleware) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		identity, err := am.resolver.ResolveIdentityFromCookie(c.Request.Context(), c.GetHeader("Cookie"))
		if err != nil {
			am.logger.Debug("Unauthenticated request", "path", c.Request.URL.Path, "error", err)
			response.Abort(c, http.StatusUnauthorized, "Unauthorized")
			return
		}

		c.Set(ContextUserID, identity.ID)
		c.Set(ContextIdentity, *identity)
		c.Next()
	}
}

// CurrentIdentity returns the identity RequireAuth stored. It panics when
// used on an unauthenticated route.
func CurrentIdentity(c *gin.Context) session.Identity {
	return c.MustGet(ContextIdentity).(session.Identity)
}
