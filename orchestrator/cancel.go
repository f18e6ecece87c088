package orchestrator

import (
	"context"

	"github.com/agentmesh/engine/store"
	"github.com/agentmesh/engine/types"
)

// Cancel requests that taskID stop running. A Queued task is
// transitioned straight to Cancelled since no worker has claimed it
// yet. A Running task is signalled through the CancelSignaler so the
// worker aborts at its next suspension point; the task only reaches
// Cancelled once the worker observes the signal and sets it, so Cancel
// returning nil here means "requested", not "stopped". A task already
// in a terminal state reports Conflict.
func (o *Orchestrator) Cancel(ctx context.Context, taskID string) error {
	task, err := o.store.GetTask(ctx, taskID)
	if err != nil {
		if err == store.ErrNotFound {
			return types.NewError(types.ErrNotFound, "orchestrator: task not found").WithCause(err)
		}
		return err
	}

	switch task.State {
	case types.TaskQueued:
		if err := o.store.CASTaskState(ctx, taskID, types.TaskQueued, types.TaskCancelled); err != nil {
			if err == store.ErrCASFailed {
				return types.NewError(types.ErrConflict, "orchestrator: task state changed concurrently, retry cancel").WithCause(err)
			}
			return err
		}
		return o.store.SetTaskOutput(ctx, taskID, types.TaskCancelled, "", types.ErrCancelled, "cancelled before claim", "", nil)
	case types.TaskRunning, types.TaskAwaitingChild:
		if o.signaler == nil || !o.signaler.Cancel(taskID) {
			return types.NewError(types.ErrConflict, "orchestrator: task is running but no worker claims it; retry shortly")
		}
		return nil
	default:
		return types.NewError(types.ErrConflict, "orchestrator: task already in terminal state "+string(task.State))
	}
}
