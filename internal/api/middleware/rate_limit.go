package middleware

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"forum-service/pkg/logger"
	"forum-service/pkg/response"

	"github.com/gin-gonic/gin"
)

// Limiter is satisfied by *services.RedisService.
type Limiter interface {
	CheckRateLimit(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

type RateLimitMiddleware struct {
	limiter Limiter
	logger  *logger.Logger
}

func NewRateLimitMiddleware(limiter Limiter, log *logger.Logger) *RateLimitMiddleware {
	return &RateLimitMiddleware{
		limiter: limiter,
		logger:  log,
	}
}

// RateLimit limits an authenticated user per endpoint. It must run after
// RequireAuth.
func (rm *RateLimitMiddleware) RateLimit(requests int, window time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, exists := c.Get(ContextUserID)
		if !exists {
			response.Abort(c, http.StatusUnauthorized, "Unauthorized")
			return
		}
		key := fmt.Sprintf("rate_limit:%s:%s", userID, c.FullPath())
		rm.check(c, key, requests, window)
	}
}

// RateLimitIP limits by client IP, for public routes and websocket upgrades.
func (rm *RateLimitMiddleware) RateLimitIP(requests int, window time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := fmt.Sprintf("rate_limit_ip:%s:%s", c.ClientIP(), c.FullPath())
		rm.check(c, key, requests, window)
	}
}

func (rm *RateLimitMiddleware) check(c *gin.Context, key string, requests int, window time.Duration) {
	if requests <= 0 {
		c.Next()
		return
	}

	allowed, err := rm.limiter.CheckRateLimit(c.Request.Context(), key, requests, window)
	if err != nil {
		rm.logger.Error("Rate limit check failed", "key", key, "error", err)
		response.Abort(c, http.StatusInternalServerError, "Rate limit check failed")
		return
	}
	if !allowed {
		response.Abort(c, http.StatusTooManyRequests, "Rate limit exceeded",
			fmt.Sprintf("Too many requests. Limit: %d per %v", requests, window))
		return
	}

	c.Next()
}
