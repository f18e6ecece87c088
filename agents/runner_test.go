package agents_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/agentmesh/engine/agents"
	"github.com/agentmesh/engine/cache"
	"github.com/agentmesh/engine/limiter"
	"github.com/agentmesh/engine/memory"
	"github.com/agentmesh/engine/modelclient"
	"github.com/agentmesh/engine/modelclient/providers/mock"
	"github.com/agentmesh/engine/store/memstore"
	"github.com/agentmesh/engine/types"
)

func newTestClient(provider *mock.Provider) *modelclient.Client {
	coalescer := cache.NewCoalescer(cache.NewMemCache(0))
	return modelclient.NewClient(provider, coalescer, limiter.NewGatePool(8, 4), limiter.NewTokenBucket(1e6, 1e6), nil)
}

func newTestRunner(provider *mock.Provider, reg *agents.Registry) *agents.Runner {
	return agents.NewRunner(agents.Config{
		Registry:  reg,
		Client:    newTestClient(provider),
		MemoryLog: memory.NewMemLog(),
		Store:     memstore.New(),
	})
}

func TestRunnerUnknownAgentFails(t *testing.T) {
	reg := agents.NewDefaultRegistry("test-model")
	runner := newTestRunner(mock.New(), reg)

	_, err := runner.Run(context.Background(), agents.RunInput{
		TaskID: "t-1", RequesterID: "r-1", AgentID: "not_an_agent",
		Inputs: map[string]any{"prompt": "hi"},
	})
	require.Error(t, err)
	require.Equal(t, types.ErrUnknownAgent, types.CodeOf(err))
}

func TestRunnerWithNoDelegationReturnsPlainResponse(t *testing.T) {
	reg := agents.NewDefaultRegistry("test-model")
	provider := mock.New()
	provider.Reply = "Drafted the sequence."
	runner := newTestRunner(provider, reg)

	out, err := runner.Run(context.Background(), agents.RunInput{
		TaskID: "t-1", RequesterID: "r-1", AgentID: types.AgentOutboundMail,
		Inputs: map[string]any{"prompt": "draft an email"},
	})
	require.NoError(t, err)
	require.Equal(t, "Drafted the sequence.", out.Text)
	require.Empty(t, out.Delegations)
}

func TestRunnerDropsDelegationOutsideAllowList(t *testing.T) {
	reg := agents.NewDefaultRegistry("test-model")
	provider := mock.New()
	provider.Reply = "Plan ready.\n---DELEGATE:outbound_mail---\nsend it\n---END---"
	runner := newTestRunner(provider, reg)

	out, err := runner.Run(context.Background(), agents.RunInput{
		TaskID: "t-1", RequesterID: "r-1", AgentID: types.AgentFinanceManager,
		Inputs:    map[string]any{"prompt": "budget check"},
		CallStack: []string{types.AgentFinanceManager},
	})
	require.NoError(t, err)
	require.Empty(t, out.Delegations)
	require.Contains(t, out.Text, "refused")
}

func TestRunnerDropsDelegationOnCycle(t *testing.T) {
	reg := agents.NewDefaultRegistry("test-model")
	provider := mock.New()
	provider.Reply = "Plan ready.\n---DELEGATE:engineer---\ncheck feasibility\n---END---"
	runner := newTestRunner(provider, reg)

	out, err := runner.Run(context.Background(), agents.RunInput{
		TaskID: "t-1", RequesterID: "r-1", AgentID: types.AgentProductManager,
		Inputs:    map[string]any{"prompt": "plan"},
		CallStack: []string{types.AgentEngineer, types.AgentProductManager},
	})
	require.NoError(t, err)
	require.Empty(t, out.Delegations)
	require.Contains(t, out.Text, "cycle detected")
}

func TestRunnerSkipsDelegationAtMaxDepth(t *testing.T) {
	reg := agents.NewDefaultRegistry("test-model")
	provider := mock.New()
	provider.Reply = "Plan ready.\n---DELEGATE:engineer---\ncheck feasibility\n---END---"
	runner := agents.NewRunner(agents.Config{
		Registry:  reg,
		Client:    newTestClient(provider),
		MemoryLog: memory.NewMemLog(),
		Store:     memstore.New(),
		MaxDepth:  3,
	})

	out, err := runner.Run(context.Background(), agents.RunInput{
		TaskID: "t-1", RequesterID: "r-1", AgentID: types.AgentProductManager,
		Inputs:    map[string]any{"prompt": "plan"},
		Depth:     3,
		CallStack: []string{types.AgentProductManager},
	})
	require.NoError(t, err)
	require.Empty(t, out.Delegations)
	require.Contains(t, out.Text, "maximum delegation depth reached")
}

func TestRunnerWithOneChildPersistsChildTaskAndConsolidates(t *testing.T) {
	reg := agents.NewDefaultRegistry("test-model")
	provider := mock.New()
	provider.Reply = "Initial assessment.\n---DELEGATE:engineer---\nCheck feasibility.\n---END---"
	st := memstore.New()
	runner := agents.NewRunner(agents.Config{
		Registry:  reg,
		Client:    newTestClient(provider),
		MemoryLog: memory.NewMemLog(),
		Store:     st,
	})

	out, err := runner.Run(context.Background(), agents.RunInput{
		TaskID: "parent-1", RequesterID: "r-1", AgentID: types.AgentProductManager,
		Inputs:    map[string]any{"prompt": "Should we build this?"},
		CallStack: []string{types.AgentProductManager},
	})
	require.NoError(t, err)
	require.Len(t, out.Delegations, 1)
	require.NotEmpty(t, out.Text)

	childTask, err := st.GetTask(context.Background(), out.Delegations[0])
	require.NoError(t, err)
	require.Equal(t, types.AgentEngineer, childTask.AgentID)
	require.Equal(t, types.TaskCompleted, childTask.State)
	require.Equal(t, "parent-1", childTask.ParentTaskID)
}

func TestRunnerRefusesResearchWhenAgentCannotResearch(t *testing.T) {
	reg := agents.NewRegistry(types.AgentRecord{
		ID: types.AgentOutboundMail, DisplayName: "Outbound Mail", ModelID: "test-model",
		CanDelegate: true, CanResearch: false,
	})
	provider := mock.New()
	provider.Reply = "Draft ready.\n---DELEGATE:research---\nlook this up\n---END---"
	runner := newTestRunner(provider, reg)

	out, err := runner.Run(context.Background(), agents.RunInput{
		TaskID: "t-1", RequesterID: "r-1", AgentID: types.AgentOutboundMail,
		Inputs:    map[string]any{"prompt": "draft"},
		CallStack: []string{types.AgentOutboundMail},
	})
	require.NoError(t, err)
	require.Contains(t, out.Text, "cannot research")
}

func TestRunnerRequireChildrenFailurePropagatesToParent(t *testing.T) {
	parent := types.AgentRecord{
		ID: "parent_agent", DisplayName: "Parent", ModelID: "test-model",
		CanDelegate: true, AllowList: []string{"child_agent"},
	}
	child := types.AgentRecord{
		ID: "child_agent", DisplayName: "Child", ModelID: "test-model", RequireChildren: true,
	}
	reg := agents.NewRegistry(parent, child)

	provider := mock.New()
	provider.Reply = "Plan.\n---DELEGATE:child_agent---\ndo it\n---END---"
	// Second call is the child's own completion; force it to fail with a
	// non-retryable error, so the retry ladder does not re-run it, and
	// RequireChildren propagates the error up to the parent.
	provider.Errs = []error{nil, &types.Error{Code: types.ErrProviderError, Message: "boom"}}

	runner := newTestRunner(provider, reg)
	_, err := runner.Run(context.Background(), agents.RunInput{
		TaskID: "t-1", RequesterID: "r-1", AgentID: "parent_agent",
		Inputs:    map[string]any{"prompt": "go"},
		CallStack: []string{"parent_agent"},
	})
	require.Error(t, err)
	require.Equal(t, types.ErrProviderError, types.CodeOf(err))
}
