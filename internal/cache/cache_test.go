package cache

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type summary struct {
	Total int `json:"total"`
}

func TestNop(t *testing.T) {
	var c Cache = Nop{}
	ctx := context.Background()
	require.NoError(t, c.Set(ctx, "org1", "summary", summary{Total: 1}))
	var out summary
	ok, err := c.Get(ctx, "org1", "summary", &out)
	assert.NoError(t, err)
	assert.False(t, ok)
	assert.NoError(t, c.Invalidate(ctx, "org1"))
}

func TestNewRedis_Unreachable(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_, err := NewRedis(ctx, "127.0.0.1:1", "", 0, time.Minute)
	assert.Error(t, err)
}

func TestRedisCache_Integration(t *testing.T) {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		t.Skip("REDIS_ADDR not set, skipping integration test")
	}
	ctx := context.Background()
	c, err := NewRedis(ctx, addr, os.Getenv("REDIS_PASSWORD"), 0, time.Minute)
	if err != nil {
		t.Skipf("redis unavailable: %v", err)
	}
	defer c.Close()
	require.NoError(t, c.Invalidate(ctx, "test-org"))

	var out summary
	ok, err := c.Get(ctx, "test-org", "summary", &out)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, c.Set(ctx, "test-org", "summary", summary{Total: 7}))
	ok, err = c.Get(ctx, "test-org", "summary", &out)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 7, out.Total)

	require.NoError(t, c.Invalidate(ctx, "test-org"))
	ok, _ = c.Get(ctx, "test-org", "summary", &out)
	assert.False(t, ok)
}
