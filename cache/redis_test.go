package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func setupTestRedisCache(t *testing.T) (*miniredis.Miniredis, *RedisCache) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)

	cfg := DefaultRedisConfig()
	cfg.Addr = mr.Addr()
	cfg.HealthCheckInterval = 0

	c, err := NewRedisCache(cfg, zap.NewNop())
	require.NoError(t, err)
	return mr, c
}

func TestRedisCacheSetGetDelete(t *testing.T) {
	mr, c := setupTestRedisCache(t)
	defer mr.Close()
	defer c.Close()
	ctx := context.Background()

	if _, err := c.Get(ctx, PurposeModel, "k"); err != ErrMiss {
		t.Fatalf("expected ErrMiss, got %v", err)
	}

	require.NoError(t, c.Set(ctx, PurposeModel, "k", []byte("v1"), time.Minute))

	got, err := c.Get(ctx, PurposeModel, "k")
	require.NoError(t, err)
	if string(got) != "v1" {
		t.Fatalf("got %q, want v1", got)
	}

	require.NoError(t, c.Delete(ctx, PurposeModel, "k"))
	if _, err := c.Get(ctx, PurposeModel, "k"); err != ErrMiss {
		t.Fatalf("expected ErrMiss after delete, got %v", err)
	}
}

func TestRedisCacheTTLExpiry(t *testing.T) {
	mr, c := setupTestRedisCache(t)
	defer mr.Close()
	defer c.Close()
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, PurposeModel, "k", []byte("v"), time.Second))
	mr.FastForward(2 * time.Second)

	if _, err := c.Get(ctx, PurposeModel, "k"); err != ErrMiss {
		t.Fatalf("expected expired key to miss, got %v", err)
	}
}
