package worker

import (
	"context"
	"sync"
)

// CancelRegistry tracks the cancel func for every task currently being
// executed by this pool, letting Orchestrator.Cancel reach into an
// in-flight run without the orchestrator package knowing anything
// about goroutines or contexts. It implements orchestrator.CancelSignaler.
type CancelRegistry struct {
	mu      sync.Mutex
	cancels map[string]context.CancelFunc
}

// NewCancelRegistry returns an empty registry.
func NewCancelRegistry() *CancelRegistry {
	return &CancelRegistry{cancels: make(map[string]context.CancelFunc)}
}

// Register derives a cancelable context from parent for taskID and
// records its cancel func. The returned release func must be called
// once the task finishes, successfully or not, to stop leaking entries
// and to keep a later Cancel call from canceling a reused task id.
func (r *CancelRegistry) Register(taskID string, parent context.Context) (context.Context, func()) {
	ctx, cancel := context.WithCancel(parent)

	r.mu.Lock()
	r.cancels[taskID] = cancel
	r.mu.Unlock()

	release := func() {
		r.mu.Lock()
		delete(r.cancels, taskID)
		r.mu.Unlock()
		cancel()
	}
	return ctx, release
}

// Cancel signals taskID's in-flight context, if this process is the
// one running it. It returns false if taskID is not registered here.
func (r *CancelRegistry) Cancel(taskID string) bool {
	r.mu.Lock()
	cancel, ok := r.cancels[taskID]
	r.mu.Unlock()
	if !ok {
		return false
	}
	cancel()
	return true
}
