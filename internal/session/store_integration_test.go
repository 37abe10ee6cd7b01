//go:build integration

package session

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcredis "github.com/testcontainers/testcontainers-go/modules/redis"
)

func newRedisClient(t *testing.T) *redis.Client {
	t.Helper()
	ctx := context.Background()

	container, err := tcredis.Run(ctx, "redis:7-alpine")
	require.NoError(t, err)
	testcontainers.CleanupContainer(t, container)

	uri, err := container.ConnectionString(ctx)
	require.NoError(t, err)

	opts, err := redis.ParseURL(uri)
	require.NoError(t, err)

	client := redis.NewClient(opts)
	t.Cleanup(func() { _ = client.Close() })
	require.NoError(t, client.Ping(ctx).Err())
	return client
}

func TestRedisStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	client := newRedisClient(t)
	store := NewRedisStore(client, time.Hour)

	sid, err := store.Create(ctx, Identity{ID: "u1", Username: "alice"})
	require.NoError(t, err)

	rec, err := store.Lookup(ctx, sid)
	require.NoError(t, err)
	require.NotNil(t, rec.User)
	assert.Equal(t, "u1", rec.User.ID)

	ttl, err := client.TTL(ctx, keyPrefix+sid).Result()
	require.NoError(t, err)
	assert.Greater(t, ttl, 59*time.Minute)

	require.NoError(t, store.Destroy(ctx, sid))
	_, err = store.Lookup(ctx, sid)
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestResolverAgainstRedis(t *testing.T) {
	ctx := context.Background()
	client := newRedisClient(t)
	store := NewRedisStore(client, time.Hour)
	codec := NewCookieCodec("forum.sid", "secret", time.Hour, false)
	resolver := NewResolver(codec, store)

	sid, err := store.Create(ctx, Identity{ID: "u1"})
	require.NoError(t, err)
	value, err := codec.Encode(sid)
	require.NoError(t, err)

	identity, err := resolver.ResolveIdentityFromCookie(ctx, "forum.sid="+value)
	require.NoError(t, err)
	assert.Equal(t, "u1", identity.ID)

	// A record written by something else without a user is rejected.
	require.NoError(t, client.Set(ctx, keyPrefix+"bare", `{"createdAt":"2024-01-01T00:00:00Z"}`, time.Hour).Err())
	bare, err := codec.Encode("bare")
	require.NoError(t, err)
	_, err = resolver.ResolveIdentityFromCookie(ctx, "forum.sid="+bare)
	assert.ErrorIs(t, err, ErrNoIdentity)
}
