package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RedisConfig mirrors the connection knobs a production cache needs:
// enough pool headroom to avoid queueing under concurrent agent runs,
// and a periodic ping so a dead connection surfaces in logs before a
// request hits it.
type RedisConfig struct {
	Addr                string
	Password            string
	DB                  int
	MaxRetries          int
	PoolSize            int
	MinIdleConns        int
	HealthCheckInterval time.Duration
}

func DefaultRedisConfig() RedisConfig {
	return RedisConfig{
		Addr:                "localhost:6379",
		MaxRetries:          3,
		PoolSize:            10,
		MinIdleConns:        2,
		HealthCheckInterval: 30 * time.Second,
	}
}

// RedisCache is the production Cache backend. TTL is enforced natively
// by Redis; RedisCache does no local expiry bookkeeping.
type RedisCache struct {
	client *redis.Client
	logger *zap.Logger
	stopCh chan struct{}
}

func NewRedisCache(cfg RedisConfig, logger *zap.Logger) (*RedisCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		MaxRetries:   cfg.MaxRetries,
		PoolSize:     cfg.PoolSize,
		MinIdleConns: cfg.MinIdleConns,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("cache: connect to redis: %w", err)
	}

	c := &RedisCache{
		client: client,
		logger: logger.With(zap.String("component", "cache.redis")),
		stopCh: make(chan struct{}),
	}
	if cfg.HealthCheckInterval > 0 {
		go c.healthCheckLoop(cfg.HealthCheckInterval)
	}
	return c, nil
}

func (c *RedisCache) Get(ctx context.Context, purpose Purpose, key string) ([]byte, error) {
	val, err := c.client.Get(ctx, namespacedKey(purpose, key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrMiss
	}
	if err != nil {
		return nil, fmt.Errorf("cache: get %s: %w", key, err)
	}
	return val, nil
}

func (c *RedisCache) Set(ctx context.Context, purpose Purpose, key string, value []byte, ttl time.Duration) error {
	if err := c.client.Set(ctx, namespacedKey(purpose, key), value, ttl).Err(); err != nil {
		return fmt.Errorf("cache: set %s: %w", key, err)
	}
	return nil
}

func (c *RedisCache) Delete(ctx context.Context, purpose Purpose, key string) error {
	if err := c.client.Del(ctx, namespacedKey(purpose, key)).Err(); err != nil {
		return fmt.Errorf("cache: delete %s: %w", key, err)
	}
	return nil
}

func (c *RedisCache) Close() error {
	close(c.stopCh)
	return c.client.Close()
}

func (c *RedisCache) healthCheckLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-c.stopCh:
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			if err := c.client.Ping(ctx).Err(); err != nil {
				c.logger.Warn("cache health check failed", zap.Error(err))
			}
			cancel()
		}
	}
}
