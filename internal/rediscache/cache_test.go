package rediscache

import (
	"context"
	"io"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AnyUserName/tgimg-render/internal/config"
	"github.com/AnyUserName/tgimg-render/internal/placeholder"
)

var _ placeholder.Cache = (*Cache)(nil)

// unreachable returns a cache whose server refuses every connection.
func unreachable(t *testing.T, localSize int) *Cache {
	t.Helper()
	log := logrus.New()
	log.SetOutput(io.Discard)

	client := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		MaxRetries:  -1,
		DialTimeout: 50 * time.Millisecond,
	})
	t.Cleanup(func() { client.Close() })

	rc := config.Default().Redis
	rc.Timeout = 100 * time.Millisecond
	return New(client, rc, localSize, log)
}

func TestCache_FailsSoft(t *testing.T) {
	c := unreachable(t, 2)

	assert.False(t, c.Has("missing"))
	_, ok := c.Get("missing")
	assert.False(t, ok)

	c.Set("a", "preview-a")
	v, ok := c.Get("a")
	assert.True(t, ok, "local tier serves while redis is down")
	assert.Equal(t, "preview-a", v)
	assert.True(t, c.Has("a"))

	assert.Error(t, c.Ping(context.Background()))
}

func TestCache_LocalTierIsBounded(t *testing.T) {
	c := unreachable(t, 1)
	c.Set("a", "1")
	c.Set("b", "2")
	assert.False(t, c.Has("a"))
	assert.True(t, c.Has("b"))
}

// live returns a cache on the redis at TGIMG_TEST_REDIS_ADDR (default
// 127.0.0.1:6379) under a fresh key prefix, skipping when none answers.
func live(t *testing.T, localSize int) (*Cache, *redis.Client, string) {
	t.Helper()
	addr := os.Getenv("TGIMG_TEST_REDIS_ADDR")
	if addr == "" {
		addr = "127.0.0.1:6379"
	}
	rc := config.Default().Redis
	rc.Addr = addr
	rc.KeyPrefix = "tgimg:test:" + uuid.NewString() + ":"
	rc.TTL = time.Minute

	client := Dial(rc)
	t.Cleanup(func() { client.Close() })
	ctx, cancel := context.WithTimeout(context.Background(), rc.Timeout)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		t.Skipf("redis not reachable at %s: %v", addr, err)
	}

	t.Cleanup(func() {
		keys, _ := client.Keys(context.Background(), rc.KeyPrefix+"*").Result()
		if len(keys) > 0 {
			client.Del(context.Background(), keys...)
		}
	})

	log := logrus.New()
	log.SetOutput(io.Discard)
	return New(client, rc, localSize, log), client, rc.KeyPrefix
}

func TestCache_SetWritesThrough(t *testing.T) {
	c, client, prefix := live(t, 4)
	ctx := context.Background()

	c.Set("a", "preview-a")

	v, err := client.Get(ctx, prefix+"a").Result()
	require.NoError(t, err)
	assert.Equal(t, "preview-a", v)

	ttl, err := client.TTL(ctx, prefix+"a").Result()
	require.NoError(t, err)
	assert.Greater(t, ttl, time.Duration(0))
	assert.LessOrEqual(t, ttl, time.Minute)
}

func TestCache_RedisHitFillsLocalTier(t *testing.T) {
	c, client, prefix := live(t, 4)
	ctx := context.Background()

	require.NoError(t, client.Set(ctx, prefix+"b", "preview-b", time.Minute).Err())
	assert.False(t, c.local.Has("b"))
	assert.True(t, c.Has("b"))

	v, ok := c.Get("b")
	require.True(t, ok)
	assert.Equal(t, "preview-b", v)
	assert.True(t, c.local.Has("b"), "redis hit is kept locally")

	// The local copy answers after redis forgets the key.
	require.NoError(t, client.Del(ctx, prefix+"b").Err())
	v, ok = c.Get("b")
	require.True(t, ok)
	assert.Equal(t, "preview-b", v)

	_, ok = c.Get("never-set")
	assert.False(t, ok)
}

func TestCache_SharedBetweenInstances(t *testing.T) {
	writer, client, prefix := live(t, 4)
	rc := config.Default().Redis
	rc.KeyPrefix = prefix
	rc.TTL = time.Minute
	log := logrus.New()
	log.SetOutput(io.Discard)
	reader := New(client, rc, 4, log)

	writer.Set("c", "preview-c")
	v, ok := reader.Get("c")
	require.True(t, ok)
	assert.Equal(t, "preview-c", v)
}
