package cache

import (
	"context"
	"time"

	"golang.org/x/sync/singleflight"
)

// Loader computes the value for a cache miss.
type Loader func(ctx context.Context) ([]byte, error)

// Coalescer wraps a Cache so that concurrent GetOrLoad calls for the
// same (purpose, key) during a miss share one Loader invocation instead
// of stampeding the backing store or the model provider behind it.
type Coalescer struct {
	cache Cache
	group singleflight.Group
}

func NewCoalescer(c Cache) *Coalescer {
	return &Coalescer{cache: c}
}

// GetOrLoad returns the cached value for key, or calls load exactly
// once per set of concurrent callers on a miss, caches the result for
// ttl, and returns it to every waiter.
func (co *Coalescer) GetOrLoad(ctx context.Context, purpose Purpose, key string, ttl time.Duration, load Loader) ([]byte, error) {
	if v, err := co.cache.Get(ctx, purpose, key); err == nil {
		return v, nil
	} else if err != ErrMiss {
		return nil, err
	}

	flightKey := string(purpose) + ":" + key
	v, err, _ := co.group.Do(flightKey, func() (any, error) {
		loaded, err := load(ctx)
		if err != nil {
			return nil, err
		}
		if err := co.cache.Set(ctx, purpose, key, loaded, ttl); err != nil {
			return nil, err
		}
		return loaded, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]byte), nil
}

func (co *Coalescer) Close() error {
	return co.cache.Close()
}
