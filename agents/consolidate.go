package agents

import (
	"context"
	"fmt"
	"strings"

	"github.com/agentmesh/engine/modelclient"
	"github.com/agentmesh/engine/types"
)

// childResult is one delegate's output, labeled for the consolidation
// prompt by the callee's display identity.
type childResult struct {
	label string
	text  string
}

const consolidationSystemPrompt = "You previously produced an initial response and then delegated to one or more peer agents. Combine your own output and the delegate outputs below into a single cohesive final answer for the original requester. Do not mention the delegation process itself."

// consolidate asks the model to merge the caller's own output with its
// children's outputs into one final answer. The pure single-child,
// no-caller-commentary identity case is handled by Run before this is
// ever called, since that case must reduce to identity by guarantee,
// not by asking the model nicely.
func consolidate(ctx context.Context, client *modelclient.Client, requesterID string, record types.AgentRecord, callerOutput string, children []childResult) (string, error) {
	var b strings.Builder
	fmt.Fprintf(&b, "Your own output:\n%s\n", callerOutput)
	for _, c := range children {
		fmt.Fprintf(&b, "\n%s's output:\n%s\n", c.label, c.text)
	}

	resp, err := client.Complete(ctx, requesterID, modelclient.Request{
		Model:       record.ModelID,
		System:      consolidationSystemPrompt,
		Purpose:     "agent_consolidation",
		Temperature: record.Temperature,
		AgentID:     record.ID,
		Messages: []modelclient.Message{
			{Role: types.RoleUser, Content: b.String()},
		},
	})
	if err != nil {
		return "", err
	}
	return resp.Text, nil
}
