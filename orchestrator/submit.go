package orchestrator

import (
	"context"
	"reflect"

	"go.uber.org/zap"

	"github.com/agentmesh/engine/queue"
	"github.com/agentmesh/engine/types"
)

// Submit persists a new agent task and enqueues it for the worker
// pool. If idempotencyKey is set and a non-terminal task already
// exists for (requesterID, idempotencyKey), that task is returned
// instead of a new one — unless its inputs diverge from this call's,
// in which case Submit reports Conflict rather than silently running
// the old inputs under a new caller's expectations.
//
// Store.InsertTask always hands back a defensive clone, so a pointer
// comparison can't tell a fresh insert from an idempotency hit; the
// local task's ID is the tell instead — InsertTask only assigns it on
// the fresh-insert path, leaving it empty on a hit.
func (o *Orchestrator) Submit(ctx context.Context, requesterID, agentID string, inputs map[string]any, idempotencyKey, conversationID string) (*types.Task, error) {
	if requesterID == "" || agentID == "" {
		return nil, types.NewError(types.ErrBadRequest, "orchestrator: requester_id and agent_id are required")
	}
	if _, ok := o.registry.Get(agentID); !ok {
		return nil, types.NewError(types.ErrUnknownAgent, "orchestrator: unknown agent id "+agentID)
	}

	task := &types.Task{
		RequesterID:    requesterID,
		AgentID:        agentID,
		ConversationID: conversationID,
		Kind:           types.TaskKindAgent,
		Inputs:         inputs,
		State:          types.TaskQueued,
		IdempotencyKey: idempotencyKey,
	}

	result, err := o.store.InsertTask(ctx, task)
	if err != nil {
		return nil, err
	}

	if task.ID == "" {
		// Idempotency hit: result is a prior task, not the one we built.
		if !reflect.DeepEqual(result.Inputs, inputs) {
			return nil, types.NewError(types.ErrConflict, "orchestrator: idempotency key reused with different inputs")
		}
		return result, nil
	}

	if err := o.enqueue(ctx, result.ID, queue.KindAgent); err != nil {
		return nil, err
	}
	return result, nil
}

// Research persists a research task and enqueues it for C7 dispatch.
func (o *Orchestrator) Research(ctx context.Context, requesterID, query string, maxResults int, preferredAgent string) (*types.Task, error) {
	if requesterID == "" || query == "" {
		return nil, types.NewError(types.ErrBadRequest, "orchestrator: requester_id and query are required")
	}

	task := &types.Task{
		RequesterID: requesterID,
		AgentID:     preferredAgent,
		Kind:        types.TaskKindResearch,
		Inputs: map[string]any{
			"query":           query,
			"max_results":     maxResults,
			"preferred_agent": preferredAgent,
		},
		State: types.TaskQueued,
	}
	result, err := o.store.InsertTask(ctx, task)
	if err != nil {
		return nil, err
	}
	if task.ID == "" {
		return result, nil
	}
	if err := o.enqueue(ctx, result.ID, queue.KindResearch); err != nil {
		return nil, err
	}
	return result, nil
}

func (o *Orchestrator) enqueue(ctx context.Context, taskID string, kind queue.Kind) error {
	if err := o.queue.Enqueue(ctx, &queue.Job{TaskID: taskID, Kind: kind}); err != nil {
		o.logger.Error("enqueue failed", zap.String("task_id", taskID), zap.Error(err))
		return types.NewError(types.ErrInternal, "orchestrator: enqueue failed").WithCause(err)
	}
	return nil
}
