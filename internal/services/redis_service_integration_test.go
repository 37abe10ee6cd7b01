//go:build integration

package services

import (
	"context"
	"testing"
	"time"

	"forum-service/internal/config"
	"forum-service/internal/database"
	"forum-service/pkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcredis "github.com/testcontainers/testcontainers-go/modules/redis"
)

func newTestRedisService(t *testing.T) *RedisService {
	t.Helper()
	ctx := context.Background()

	container, err := tcredis.Run(ctx, "redis:7-alpine")
	require.NoError(t, err)
	testcontainers.CleanupContainer(t, container)

	uri, err := container.ConnectionString(ctx)
	require.NoError(t, err)

	client, err := database.NewRedisConnection(config.RedisConfig{URI: uri}, logger.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	return NewRedisService(client, logger.NewNop())
}

func TestCheckRateLimit(t *testing.T) {
	ctx := context.Background()
	svc := newTestRedisService(t)

	for i := 0; i < 3; i++ {
		allowed, err := svc.CheckRateLimit(ctx, "rate_limit:test", 3, time.Minute)
		require.NoError(t, err)
		assert.True(t, allowed, "request %d", i)
	}
	allowed, err := svc.CheckRateLimit(ctx, "rate_limit:test", 3, time.Minute)
	require.NoError(t, err)
	assert.False(t, allowed)

	allowed, err = svc.CheckRateLimit(ctx, "rate_limit:other", 3, time.Minute)
	require.NoError(t, err)
	assert.True(t, allowed)
}

func TestCheckRateLimitCountsRequestsAtSameInstant(t *testing.T) {
	ctx := context.Background()
	svc := newTestRedisService(t)
	frozen := time.Unix(1700000000, 0)
	svc.now = func() time.Time { return frozen }

	for i := 0; i < 2; i++ {
		allowed, err := svc.CheckRateLimit(ctx, "rate_limit:burst", 2, time.Minute)
		require.NoError(t, err)
		assert.True(t, allowed, "request %d", i)
	}
	allowed, err := svc.CheckRateLimit(ctx, "rate_limit:burst", 2, time.Minute)
	require.NoError(t, err)
	assert.False(t, allowed)

	members, err := svc.client.GetClient().ZCard(ctx, "rate_limit:burst").Result()
	require.NoError(t, err)
	assert.Equal(t, int64(3), members)
}

func TestPresence(t *testing.T) {
	ctx := context.Background()
	svc := newTestRedisService(t)

	require.NoError(t, svc.SetUserOnline(ctx, "u1"))
	online, err := svc.IsUserOnline(ctx, "u1")
	require.NoError(t, err)
	assert.True(t, online)

	users, err := svc.GetOnlineUsers(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"u1"}, users)

	require.NoError(t, svc.SetUserOffline(ctx, "u1"))
	online, err = svc.IsUserOnline(ctx, "u1")
	require.NoError(t, err)
	assert.False(t, online)
}
