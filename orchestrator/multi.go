package orchestrator

import (
	"context"

	"github.com/agentmesh/engine/queue"
	"github.com/agentmesh/engine/types"
)

// SubmitMulti parses freeText for agent mentions. Two or more distinct
// hits route to the multi_agent pseudo-agent, which the worker pool
// executes by running each mentioned agent in order and consolidating.
// Exactly one mention routes directly to that agent as an ordinary
// task; no mentions falls back to the assistant agent, since free text
// with no named specialist is the assistant's job by definition.
func (o *Orchestrator) SubmitMulti(ctx context.Context, requesterID, freeText, conversationID string) (*types.Task, error) {
	if requesterID == "" || freeText == "" {
		return nil, types.NewError(types.ErrBadRequest, "orchestrator: requester_id and prompt are required")
	}

	mentions := parseMentions(freeText, o.registry)
	switch {
	case len(mentions) >= 2:
		return o.submitMultiAgentTask(ctx, requesterID, freeText, conversationID, mentions)
	case len(mentions) == 1:
		return o.Submit(ctx, requesterID, mentions[0], map[string]any{"prompt": freeText}, "", conversationID)
	default:
		return o.Submit(ctx, requesterID, types.AgentAssistant, map[string]any{"prompt": freeText}, "", conversationID)
	}
}

func (o *Orchestrator) submitMultiAgentTask(ctx context.Context, requesterID, freeText, conversationID string, mentions []string) (*types.Task, error) {
	task := &types.Task{
		RequesterID:    requesterID,
		AgentID:        types.AgentMulti,
		ConversationID: conversationID,
		Kind:           types.TaskKindMultiAgent,
		Inputs: map[string]any{
			"prompt":    freeText,
			"agent_ids": mentions,
		},
		State: types.TaskQueued,
	}
	result, err := o.store.InsertTask(ctx, task)
	if err != nil {
		return nil, err
	}
	if err := o.enqueue(ctx, result.ID, queue.KindMultiAgent); err != nil {
		return nil, err
	}
	return result, nil
}
