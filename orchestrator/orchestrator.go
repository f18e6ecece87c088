// Package orchestrator is the external-facing task lifecycle boundary:
// submit, submit-with-mentions, research, get, and cancel. It never
// calls the model or the research pipeline itself; it persists a task
// in Queued state and enqueues a job, leaving execution to the worker
// pool.
package orchestrator

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/agentmesh/engine/agents"
	"github.com/agentmesh/engine/queue"
	"github.com/agentmesh/engine/store"
	"github.com/agentmesh/engine/types"
)

// DefaultAgentTaskDeadline and DefaultResearchTaskDeadline bound how
// long a submitted task's execution is allowed to run once claimed;
// the worker pool derives its per-task context from these.
const (
	DefaultAgentTaskDeadline    = 60 * time.Second
	DefaultResearchTaskDeadline = 120 * time.Second
)

// CancelSignaler is implemented by the worker pool's cancel registry.
// Orchestrator depends on this interface, not on worker, so the two
// packages have no import cycle.
type CancelSignaler interface {
	// Cancel signals the in-flight execution of taskID to abort at its
	// next suspension point. It returns false if taskID is not
	// currently running anywhere in this process.
	Cancel(taskID string) bool
}

// Orchestrator implements C9.
type Orchestrator struct {
	store    store.Store
	queue    queue.Queue
	registry *agents.Registry
	signaler CancelSignaler
	logger   *zap.Logger
}

// Config carries Orchestrator's dependencies. Signaler may be nil
// until the worker pool is started; Cancel on a Running task then
// fails with Conflict and leaves the task unchanged.
type Config struct {
	Store    store.Store
	Queue    queue.Queue
	Registry *agents.Registry
	Signaler CancelSignaler
	Logger   *zap.Logger
}

func New(cfg Config) *Orchestrator {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Orchestrator{
		store:    cfg.Store,
		queue:    cfg.Queue,
		registry: cfg.Registry,
		signaler: cfg.Signaler,
		logger:   logger.With(zap.String("component", "orchestrator")),
	}
}

// Get retrieves a task by id.
func (o *Orchestrator) Get(ctx context.Context, taskID string) (*types.Task, error) {
	task, err := o.store.GetTask(ctx, taskID)
	if err != nil {
		if err == store.ErrNotFound {
			return nil, types.NewError(types.ErrNotFound, "orchestrator: task not found").WithCause(err)
		}
		return nil, err
	}
	return task, nil
}
