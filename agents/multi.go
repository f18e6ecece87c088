package agents

import (
	"context"

	"github.com/agentmesh/engine/types"
)

// MultiRunInput is what RunMulti needs to invoke a fixed, ordered list
// of agents against the same prompt and consolidate their outputs.
type MultiRunInput struct {
	TaskID         string
	RequesterID    string
	ConversationID string
	Prompt         string
	AgentIDs       []string
}

// multiAgentRecord is the pseudo-record consolidation runs under. It
// is not part of the registry's closed table since it is never itself
// a delegation target, only an orchestration outcome.
var multiAgentRecord = types.AgentRecord{
	ID:          types.AgentMulti,
	DisplayName: "Multi-Agent Coordinator",
	Temperature: 0.3,
}

// RunMulti invokes each agent in AgentIDs, in order, against the same
// prompt with no delegation of its own (each runs at depth 0 with a
// call stack of just itself, per the ordinary depth/cycle rules), then
// consolidates every agent's output into one final answer. It mirrors
// Run's single-agent consolidation step but skips the delegation parse
// since the fan-out here is explicit, not model-chosen.
func (r *Runner) RunMulti(ctx context.Context, input MultiRunInput) (RunOutput, error) {
	record := multiAgentRecord
	record.ModelID = r.defaultModelFor(input.AgentIDs)

	var children []childResult
	for _, agentID := range input.AgentIDs {
		calleeRecord, ok := r.registry.Get(agentID)
		if !ok {
			continue
		}
		out, err := r.Run(ctx, RunInput{
			TaskID:         input.TaskID,
			RequesterID:    input.RequesterID,
			AgentID:        agentID,
			ConversationID: input.ConversationID,
			Inputs:         map[string]any{"prompt": input.Prompt},
			CallStack:      []string{agentID},
		})
		if err != nil {
			children = append(children, childResult{label: calleeRecord.DisplayName, text: err.Error()})
			continue
		}
		children = append(children, childResult{label: calleeRecord.DisplayName, text: out.Text})
	}

	if len(children) == 0 {
		return RunOutput{}, types.NewError(types.ErrBadRequest, "agents: multi-agent run named no known agents")
	}

	finalText, err := consolidate(ctx, r.client, input.RequesterID, record, "", children)
	if err != nil {
		return RunOutput{}, err
	}

	if input.ConversationID != "" && r.memoryLog != nil {
		if _, err := r.memoryLog.Append(ctx, input.ConversationID, types.ConversationMessage{
			ConversationID: input.ConversationID,
			Role:           types.RoleAssistant,
			SpeakerAgentID: types.AgentMulti,
			Content:        finalText,
		}); err != nil {
			return RunOutput{}, err
		}
	}

	return RunOutput{Text: finalText, UsedModel: record.ModelID}, nil
}

// defaultModelFor resolves the multi-agent coordinator's own model to
// the first named agent's model, since there is no dedicated record
// for the pseudo-agent to configure one on.
func (r *Runner) defaultModelFor(agentIDs []string) string {
	for _, id := range agentIDs {
		if rec, ok := r.registry.Get(id); ok {
			return rec.ModelID
		}
	}
	return ""
}
