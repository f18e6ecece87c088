// Package redisqueue is the production queue.Queue backend: job bodies
// in plain string keys, a "ready" sorted set scored by ready-time for
// FIFO-with-delay semantics, and an "inflight" sorted set scored by
// lease deadline so an abandoned claim becomes reclaimable.
package redisqueue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/agentmesh/engine/queue"
)

// Config mirrors cache.RedisConfig's connection knobs.
type Config struct {
	Addr              string
	Password          string
	DB                int
	MaxRetries        int
	PoolSize          int
	MinIdleConns      int
	KeyPrefix         string
	ClaimPollInterval time.Duration
	// LeaseTTL is how long a claimed job stays leased before another
	// worker may reclaim it. Defaults to queue.DefaultLeaseTTL.
	LeaseTTL time.Duration
}

func DefaultConfig() Config {
	return Config{
		Addr:              "localhost:6379",
		MaxRetries:        3,
		PoolSize:          10,
		MinIdleConns:      2,
		KeyPrefix:         "agentmesh:queue:",
		ClaimPollInterval: 200 * time.Millisecond,
		LeaseTTL:          queue.DefaultLeaseTTL,
	}
}

// Queue is the Redis-backed queue.Queue implementation.
type Queue struct {
	client   *redis.Client
	prefix   string
	poll     time.Duration
	leaseTTL time.Duration
}

func New(cfg Config) (*Queue, error) {
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
		return nil, fmt.Errorf("redisqueue: connect to redis: %w", err)
	}

	prefix := cfg.KeyPrefix
	if prefix == "" {
		prefix = "agentmesh:queue:"
	}
	poll := cfg.ClaimPollInterval
	if poll <= 0 {
		poll = 200 * time.Millisecond
	}
	leaseTTL := cfg.LeaseTTL
	if leaseTTL <= 0 {
		leaseTTL = queue.DefaultLeaseTTL
	}
	return &Queue{client: client, prefix: prefix, poll: poll, leaseTTL: leaseTTL}, nil
}

func (q *Queue) dataKey(jobID string) string { return q.prefix + "data:" + jobID }
func (q *Queue) readyKey() string            { return q.prefix + "ready" }
func (q *Queue) inflightKey() string         { return q.prefix + "inflight" }

func (q *Queue) Close() error {
	return q.client.Close()
}

func (q *Queue) Enqueue(ctx context.Context, job *queue.Job) error {
	if job.ID == "" {
		job.ID = uuid.NewString()
	}
	if job.EnqueuedAt.IsZero() {
		job.EnqueuedAt = time.Now()
	}
	data, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("redisqueue: marshal job: %w", err)
	}

	pipe := q.client.Pipeline()
	pipe.Set(ctx, q.dataKey(job.ID), data, 0)
	pipe.ZAdd(ctx, q.readyKey(), redis.Z{Score: float64(job.EnqueuedAt.UnixNano()), Member: job.ID})
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redisqueue: enqueue: %w", err)
	}
	return nil
}

// Claim long-polls for a ready job by repeatedly attempting one atomic
// pop from the ready set until timeout elapses or ctx is cancelled.
// Every attempt first moves expired inflight leases back to ready.
func (q *Queue) Claim(ctx context.Context, timeout time.Duration) (*queue.Job, error) {
	deadline := time.Now().Add(timeout)
	ticker := time.NewTicker(q.poll)
	defer ticker.Stop()

	for {
		job, err := q.tryClaim(ctx)
		if err != nil {
			return nil, err
		}
		if job != nil {
			return job, nil
		}
		if time.Now().After(deadline) {
			return nil, queue.ErrNoJob
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

func (q *Queue) tryClaim(ctx context.Context) (*queue.Job, error) {
	if err := q.reclaimExpired(ctx); err != nil {
		return nil, err
	}

	ids, err := q.client.ZRangeByScore(ctx, q.readyKey(), &redis.ZRangeBy{
		Min: "-inf", Max: fmt.Sprintf("%d", time.Now().UnixNano()), Offset: 0, Count: 1,
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("redisqueue: scan ready: %w", err)
	}
	if len(ids) == 0 {
		return nil, nil
	}
	jobID := ids[0]

	removed, err := q.client.ZRem(ctx, q.readyKey(), jobID).Result()
	if err != nil {
		return nil, fmt.Errorf("redisqueue: pop ready: %w", err)
	}
	if removed == 0 {
		// lost the race to another claimer
		return nil, nil
	}

	job, err := q.loadJob(ctx, jobID)
	if err != nil {
		return nil, err
	}

	leaseDeadline := time.Now().Add(q.leaseTTL)
	if err := q.client.ZAdd(ctx, q.inflightKey(), redis.Z{
		Score: float64(leaseDeadline.UnixNano()), Member: jobID,
	}).Err(); err != nil {
		return nil, fmt.Errorf("redisqueue: mark inflight: %w", err)
	}
	return job, nil
}

func (q *Queue) reclaimExpired(ctx context.Context) error {
	expired, err := q.client.ZRangeByScore(ctx, q.inflightKey(), &redis.ZRangeBy{
		Min: "-inf", Max: fmt.Sprintf("%d", time.Now().UnixNano()),
	}).Result()
	if err != nil {
		return fmt.Errorf("redisqueue: scan inflight: %w", err)
	}
	for _, jobID := range expired {
		pipe := q.client.Pipeline()
		pipe.ZRem(ctx, q.inflightKey(), jobID)
		pipe.ZAdd(ctx, q.readyKey(), redis.Z{Score: float64(time.Now().UnixNano()), Member: jobID})
		if _, err := pipe.Exec(ctx); err != nil {
			return fmt.Errorf("redisqueue: reclaim %s: %w", jobID, err)
		}
	}
	return nil
}

func (q *Queue) loadJob(ctx context.Context, jobID string) (*queue.Job, error) {
	data, err := q.client.Get(ctx, q.dataKey(jobID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("redisqueue: job data missing for %s", jobID)
	}
	if err != nil {
		return nil, fmt.Errorf("redisqueue: load job %s: %w", jobID, err)
	}
	var job queue.Job
	if err := json.Unmarshal(data, &job); err != nil {
		return nil, fmt.Errorf("redisqueue: unmarshal job %s: %w", jobID, err)
	}
	return &job, nil
}

func (q *Queue) ExtendLease(ctx context.Context, jobID string, ttl time.Duration) error {
	_, err := q.client.ZScore(ctx, q.inflightKey(), jobID).Result()
	if errors.Is(err, redis.Nil) {
		return queue.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("redisqueue: extend lease: %w", err)
	}
	if err := q.client.ZAdd(ctx, q.inflightKey(), redis.Z{
		Score: float64(time.Now().Add(ttl).UnixNano()), Member: jobID,
	}).Err(); err != nil {
		return fmt.Errorf("redisqueue: extend lease: %w", err)
	}
	return nil
}

func (q *Queue) Ack(ctx context.Context, jobID string) error {
	pipe := q.client.Pipeline()
	inflightRem := pipe.ZRem(ctx, q.inflightKey(), jobID)
	readyRem := pipe.ZRem(ctx, q.readyKey(), jobID)
	pipe.Del(ctx, q.dataKey(jobID))
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redisqueue: ack %s: %w", jobID, err)
	}
	if inflightRem.Val() == 0 && readyRem.Val() == 0 {
		return queue.ErrNotFound
	}
	return nil
}

func (q *Queue) Nack(ctx context.Context, jobID string, delay time.Duration) error {
	job, err := q.loadJob(ctx, jobID)
	if err != nil {
		return err
	}
	job.Attempts++
	data, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("redisqueue: marshal job: %w", err)
	}

	pipe := q.client.Pipeline()
	pipe.Set(ctx, q.dataKey(jobID), data, 0)
	removed := pipe.ZRem(ctx, q.inflightKey(), jobID)
	pipe.ZAdd(ctx, q.readyKey(), redis.Z{Score: float64(time.Now().Add(delay).UnixNano()), Member: jobID})
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redisqueue: nack %s: %w", jobID, err)
	}
	if removed.Val() == 0 {
		return queue.ErrNotFound
	}
	return nil
}

var _ queue.Queue = (*Queue)(nil)
