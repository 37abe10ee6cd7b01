package services

import (
	"context"
	"fmt"
	"time"

	"forum-service/internal/database"
	"forum-service/pkg/logger"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const onlineUsersKey = "online_users"

type RedisService struct {
	client *database.RedisClient
	logger *logger.Logger
	now    func() time.Time
}

func NewRedisService(client *database.RedisClient, log *logger.Logger) *RedisService {
	return &RedisService{
		client: client,
		logger: log,
		now:    time.Now,
	}
}

// =============================================================================
// User Status Management
// =============================================================================

func (r *RedisService) SetUserOnline(ctx context.Context, userID string) error {
	now := r.now().Unix()
	statusKey := fmt.Sprintf("user:%s:status", userID)

	pipe := r.client.GetClient().Pipeline()
	pipe.SAdd(ctx, onlineUsersKey, userID)
	pipe.HSet(ctx, statusKey, map[string]interface{}{
		"status":     "online",
		"last_seen":  now,
		"updated_at": now,
	})
	pipe.Expire(ctx, statusKey, 5*time.Minute)

	if _, err := pipe.Exec(ctx); err != nil {
		r.logger.Error("Failed to set user online", "userID", userID, "error", err)
		return err
	}

	r.logger.Debug("User set to online", "userID", userID)
	return nil
}

func (r *RedisService) SetUserOffline(ctx context.Context, userID string) error {
	now := r.now().Unix()
	statusKey := fmt.Sprintf("user:%s:status", userID)

	pipe := r.client.GetClient().Pipeline()
	pipe.SRem(ctx, onlineUsersKey, userID)
	pipe.HSet(ctx, statusKey, map[string]interface{}{
		"status":     "offline",
		"last_seen":  now,
		"updated_at": now,
	})
	pipe.Expire(ctx, statusKey, 24*time.Hour)

	if _, err := pipe.Exec(ctx); err != nil {
		r.logger.Error("Failed to set user offline", "userID", userID, "error", err)
		return err
	}

	r.logger.Debug("User set to offline", "userID", userID)
	return nil
}

func (r *RedisService) IsUserOnline(ctx context.Context, userID string) (bool, error) {
	return r.client.GetClient().SIsMember(ctx, onlineUsersKey, userID).Result()
}

func (r *RedisService) GetOnlineUsers(ctx context.Context) ([]string, error) {
	return r.client.GetClient().SMembers(ctx, onlineUsersKey).Result()
}

// =============================================================================
// Rate Limiting
// =============================================================================

// CheckRateLimit is a sliding window over a sorted set: one member per
// request, scored by its timestamp. It reports whether this request fits.
func (r *RedisService) CheckRateLimit(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	now := r.now()
	windowStart := now.Add(-window).UnixNano()

	pipe := r.client.GetClient().Pipeline()
	pipe.ZRemRangeByScore(ctx, key, "0", fmt.Sprintf("%d", windowStart))
	count := pipe.ZCard(ctx, key)
	pipe.ZAdd(ctx, key, redis.Z{Score: float64(now.UnixNano()), Member: fmt.Sprintf("%d-%s", now.UnixNano(), uuid.NewString())})
	pipe.Expire(ctx, key, window)

	if _, err := pipe.Exec(ctx); err != nil {
		return false, err
	}
	return count.Val() < int64(limit), nil
}
