package agents_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/agentmesh/engine/agents"
	"github.com/agentmesh/engine/modelclient/providers/mock"
	"github.com/agentmesh/engine/types"
)

func TestRunMultiConsolidatesEachNamedAgentInOrder(t *testing.T) {
	reg := agents.NewDefaultRegistry("test-model")
	provider := mock.New()
	provider.Reply = "Assessment without delegation."
	runner := newTestRunner(provider, reg)

	out, err := runner.RunMulti(context.Background(), agents.MultiRunInput{
		TaskID:      "t-1",
		RequesterID: "r-1",
		Prompt:      "Evaluate this opportunity from both angles.",
		AgentIDs:    []string{types.AgentProductManager, types.AgentFinanceManager},
	})
	require.NoError(t, err)
	require.NotEmpty(t, out.Text)
	require.Equal(t, "test-model", out.UsedModel)
}

func TestRunMultiFailsWhenNoNamedAgentIsKnown(t *testing.T) {
	reg := agents.NewDefaultRegistry("test-model")
	runner := newTestRunner(mock.New(), reg)

	_, err := runner.RunMulti(context.Background(), agents.MultiRunInput{
		TaskID: "t-1", RequesterID: "r-1", Prompt: "x",
		AgentIDs: []string{"not_an_agent"},
	})
	require.Error(t, err)
	require.Equal(t, types.ErrBadRequest, types.CodeOf(err))
}
