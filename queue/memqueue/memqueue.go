// Package memqueue is an in-memory queue.Queue for tests and the
// single-process quick-start path.
package memqueue

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/agentmesh/engine/queue"
)

type entry struct {
	job     *queue.Job
	readyAt time.Time
	leased  bool
	leaseAt time.Time
}

// pollInterval is how often Claim rechecks for a ready job while
// long-polling. Short enough that tests using small timeouts are fast.
const pollInterval = 10 * time.Millisecond

// Queue is the in-memory queue.Queue implementation.
type Queue struct {
	mu      sync.Mutex
	entries map[string]*entry
	closed  bool
}

func New() *Queue {
	return &Queue{entries: make(map[string]*entry)}
}

func (q *Queue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.closed = true
	return nil
}

func (q *Queue) Enqueue(_ context.Context, job *queue.Job) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if job.ID == "" {
		job.ID = uuid.NewString()
	}
	if job.EnqueuedAt.IsZero() {
		job.EnqueuedAt = time.Now()
	}
	q.entries[job.ID] = &entry{job: job, readyAt: time.Now()}
	return nil
}

func (q *Queue) reclaimExpiredLocked() {
	now := time.Now()
	for _, e := range q.entries {
		if e.leased && now.After(e.leaseAt) {
			e.leased = false
		}
	}
}

func (q *Queue) popReadyLocked() *entry {
	now := time.Now()
	for _, e := range q.entries {
		if !e.leased && !e.readyAt.After(now) {
			return e
		}
	}
	return nil
}

// Claim polls for a ready job, sleeping in small increments so it can
// observe both newly enqueued jobs and ctx cancellation within timeout.
func (q *Queue) Claim(ctx context.Context, timeout time.Duration) (*queue.Job, error) {
	deadline := time.Now().Add(timeout)
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		job, ok := q.tryClaim()
		if ok {
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

func (q *Queue) tryClaim() (*queue.Job, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.reclaimExpiredLocked()
	if e := q.popReadyLocked(); e != nil {
		e.leased = true
		e.leaseAt = time.Now().Add(queue.DefaultLeaseTTL)
		return e.job, true
	}
	return nil, false
}

func (q *Queue) ExtendLease(_ context.Context, jobID string, ttl time.Duration) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	e, ok := q.entries[jobID]
	if !ok || !e.leased {
		return queue.ErrNotFound
	}
	e.leaseAt = time.Now().Add(ttl)
	return nil
}

func (q *Queue) Ack(_ context.Context, jobID string) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if _, ok := q.entries[jobID]; !ok {
		return queue.ErrNotFound
	}
	delete(q.entries, jobID)
	return nil
}

func (q *Queue) Nack(_ context.Context, jobID string, delay time.Duration) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	e, ok := q.entries[jobID]
	if !ok {
		return queue.ErrNotFound
	}
	e.job.Attempts++
	e.leased = false
	e.readyAt = time.Now().Add(delay)
	return nil
}

var _ queue.Queue = (*Queue)(nil)
