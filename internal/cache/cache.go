package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Cache stores derived per-organization views such as analytics.
type Cache interface {
	// Get decodes the cached value into dst and reports whether it was present.
	Get(ctx context.Context, orgID, key string, dst interface{}) (bool, error)
	Set(ctx context.Context, orgID, key string, value interface{}) error
	// Invalidate drops everything cached for the organization.
	Invalidate(ctx context.Context, orgID string) error
}

// Nop is a Cache that never holds anything.
type Nop struct{}

func (Nop) Get(context.Context, string, string, interface{}) (bool, error) { return false, nil }
func (Nop) Set(context.Context, string, string, interface{}) error        { return nil }
func (Nop) Invalidate(context.Context, string) error                     { return nil }

// RedisCache keeps one hash per organization so that invalidation is a
// single DEL.
type RedisCache struct {
	rdb    *redis.Client
	ttl    time.Duration
	prefix string
}

// NewRedis connects to addr and verifies the connection.
func NewRedis(ctx context.Context, addr, password string, db int, ttl time.Duration) (*RedisCache, error) {
	rdb := redis.NewClient(&redis.Options{Addr: addr, Password: password, DB: db})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return NewRedisCache(rdb, ttl), nil
}

// NewRedisCache wraps an existing client.
func NewRedisCache(rdb *redis.Client, ttl time.Duration) *RedisCache {
	return &RedisCache{rdb: rdb, ttl: ttl, prefix: "fleetflow:cache"}
}

func (c *RedisCache) orgKey(orgID string) string {
	return fmt.Sprintf("%s:%s", c.prefix, orgID)
}

func (c *RedisCache) Get(ctx context.Context, orgID, key string, dst interface{}) (bool, error) {
	raw, err := c.rdb.HGet(ctx, c.orgKey(orgID), key).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return false, fmt.Errorf("decode cached %s: %w", key, err)
	}
	return true, nil
}

func (c *RedisCache) Set(ctx context.Context, orgID, key string, value interface{}) error {
	b, err := json.Marshal(value)
	if err != nil {
		return err
	}
	k := c.orgKey(orgID)
	pipe := c.rdb.TxPipeline()
	pipe.HSet(ctx, k, key, b)
	pipe.Expire(ctx, k, c.ttl)
	_, err = pipe.Exec(ctx)
	return err
}

func (c *RedisCache) Invalidate(ctx context.Context, orgID string) error {
	return c.rdb.Del(ctx, c.orgKey(orgID)).Err()
}

// Close closes the client.
func (c *RedisCache) Close() error {
	return c.rdb.Close()
}
