// Package rediscache shares decoded placeholders between processes through
// Redis, fronted by an in-process LRU.  Redis errors never reach callers:
// an unreachable server degrades to the local tier.
package rediscache

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/AnyUserName/tgimg-render/internal/config"
	"github.com/AnyUserName/tgimg-render/internal/lru"
)

// Cache implements placeholder.Cache.
type Cache struct {
	client  *redis.Client
	local   *lru.Cache[string, string]
	prefix  string
	ttl     time.Duration
	timeout time.Duration
	log     *logrus.Entry
}

// New wraps client.  localSize bounds the in-process tier.
func New(client *redis.Client, rc config.RedisConfig, localSize int, log *logrus.Logger) *Cache {
	if log == nil {
		log = logrus.StandardLogger()
	}
	timeout := rc.Timeout
	if timeout <= 0 {
		timeout = 200 * time.Millisecond
	}
	return &Cache{
		client:  client,
		local:   lru.NewStringCache(localSize),
		prefix:  rc.KeyPrefix,
		ttl:     rc.TTL,
		timeout: timeout,
		log:     log.WithField("component", "rediscache"),
	}
}

// Dial builds a client from rc.  It does not contact the server.
func Dial(rc config.RedisConfig) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:         rc.Addr,
		Password:     rc.Password,
		DB:           rc.DB,
		DialTimeout:  rc.Timeout,
		ReadTimeout:  rc.Timeout,
		WriteTimeout: rc.Timeout,
	})
}

// Ping checks connectivity.
func (c *Cache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

func (c *Cache) Has(key string) bool {
	if c.local.Has(key) {
		return true
	}
	ctx, cancel := c.ctx()
	defer cancel()
	n, err := c.client.Exists(ctx, c.prefix+key).Result()
	if err != nil {
		c.warn("exists", key, err)
		return false
	}
	return n > 0
}

func (c *Cache) Get(key string) (string, bool) {
	if v, ok := c.local.Get(key); ok {
		return v, true
	}
	ctx, cancel := c.ctx()
	defer cancel()
	v, err := c.client.Get(ctx, c.prefix+key).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.warn("get", key, err)
		}
		return "", false
	}
	c.local.Set(key, v)
	return v, true
}

func (c *Cache) Set(key, value string) {
	c.local.Set(key, value)
	ctx, cancel := c.ctx()
	defer cancel()
	if err := c.client.Set(ctx, c.prefix+key, value, c.ttl).Err(); err != nil {
		c.warn("set", key, err)
	}
}

// Close closes the underlying client.
func (c *Cache) Close() error { return c.client.Close() }

func (c *Cache) ctx() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), c.timeout)
}

func (c *Cache) warn(op, key string, err error) {
	c.log.WithError(err).WithFields(logrus.Fields{"op": op, "key": key}).Warn("redis unavailable, using local tier")
}
