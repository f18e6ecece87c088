// Package cache implements the content-addressed, purpose-partitioned
// cache used in front of model calls, fetched pages, and research
// results. Two implementations share the Cache interface: RedisCache
// for production and MemCache for tests and single-process
// deployments. Neither implementation does request coalescing on its
// own — Coalescer wraps either one with golang.org/x/sync/singleflight
// so concurrent misses on the same key only do the work once.
package cache

import (
	"context"
	"errors"
	"time"
)

// ErrMiss is returned by Get when key is absent or expired.
var ErrMiss = errors.New("cache: miss")

// Purpose partitions the key space so callers never collide across
// concerns and so TTL policy can differ per partition.
type Purpose string

const (
	PurposeModel    Purpose = "model"
	PurposePage     Purpose = "page"
	PurposeResearch Purpose = "research"
)

// Cache is the minimal surface every backend implements. Values are
// opaque byte strings; callers serialize with encoding/json or
// serde.Encode before storing.
type Cache interface {
	Get(ctx context.Context, purpose Purpose, key string) ([]byte, error)
	Set(ctx context.Context, purpose Purpose, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, purpose Purpose, key string) error
	Close() error
}

func namespacedKey(purpose Purpose, key string) string {
	return string(purpose) + ":" + key
}
