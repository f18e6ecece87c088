// Package queue abstracts the job queue behind the worker pool: a job
// is enqueued once a task is persisted in Queued state, claimed by a
// worker with a lease, and acked or nacked once the worker finishes.
package queue

import (
	"context"
	"errors"
	"time"
)

// ErrNoJob is returned by Claim when no job became ready before
// timeout elapsed.
var ErrNoJob = errors.New("queue: no job available")

// ErrNotFound is returned by ExtendLease/Ack/Nack for a job id the call
// cannot act on. Ack fails only for a job the queue no longer holds
// (already acked, or never enqueued); ExtendLease also fails for a job
// that is not currently claimed.
var ErrNotFound = errors.New("queue: job not claimed")

// Kind distinguishes which worker-pool dispatch path a job follows.
type Kind string

const (
	KindAgent      Kind = "agent"
	KindMultiAgent Kind = "multi_agent"
	KindResearch   Kind = "research"
	KindWebhook    Kind = "webhook_followup"
)

// Job is the unit of work moving through the queue. TaskID identifies
// the store.Task to claim and dispatch; Endpoint/ExternalID/BodyRef are
// only populated for KindWebhook jobs produced by webhook.Ingress.
type Job struct {
	ID         string
	TaskID     string
	Kind       Kind
	Endpoint   string
	ExternalID string
	BodyRef    string
	Attempts   int
	EnqueuedAt time.Time
}

// Queue is the abstract job queue described in the external interface:
// enqueue, long-poll claim, lease extension, ack, and nack-with-delay.
type Queue interface {
	// Enqueue makes job immediately claimable.
	Enqueue(ctx context.Context, job *Job) error

	// Claim blocks up to timeout waiting for a ready job. It returns
	// ErrNoJob if timeout elapses with nothing to claim. A claimed job
	// is leased to the caller until Ack, Nack, or lease expiry.
	Claim(ctx context.Context, timeout time.Duration) (*Job, error)

	// ExtendLease renews a claimed job's lease for another ttl.
	ExtendLease(ctx context.Context, jobID string, ttl time.Duration) error

	// Ack removes a successfully processed job from the queue.
	Ack(ctx context.Context, jobID string) error

	// Nack returns a failed job to the ready set after delay, carrying
	// its Attempts count forward.
	Nack(ctx context.Context, jobID string, delay time.Duration) error

	Close() error
}

// DefaultLeaseTTL matches store.DefaultLeaseTTL: the window a claimed
// job stays leased before it is eligible for reclaim by another worker.
const DefaultLeaseTTL = 30 * time.Second
