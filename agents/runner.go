package agents

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/agentmesh/engine/memory"
	"github.com/agentmesh/engine/modelclient"
	"github.com/agentmesh/engine/research"
	"github.com/agentmesh/engine/serde"
	"github.com/agentmesh/engine/store"
	"github.com/agentmesh/engine/types"
)

// DefaultMaxDepth bounds the delegation call tree.
const DefaultMaxDepth = 3

// RunInput is everything Run needs for one agent turn.
type RunInput struct {
	TaskID         string
	RequesterID    string
	AgentID        string
	ConversationID string
	Inputs         map[string]any
	Depth          int
	// CallStack holds the agent ids already visited on this task's
	// delegation chain, for cycle detection. The top-level call passes
	// a stack containing only its own agent id.
	CallStack []string
}

// RunOutput is Run's result: the final assistant-facing text, the
// model actually used, and the ids of any child tasks it spawned.
type RunOutput struct {
	Text        string
	UsedModel   string
	Delegations []string
}

// Runner executes one agent turn end to end: load record, build
// messages, invoke the model, parse and execute delegation directives
// sequentially, consolidate, and append to conversation memory.
type Runner struct {
	registry   *Registry
	client     *modelclient.Client
	memoryLog  memory.Log
	researcher *research.Researcher
	store      store.Store
	maxDepth   int
	logger     *zap.Logger
}

// Config carries Runner's dependencies.
type Config struct {
	Registry   *Registry
	Client     *modelclient.Client
	MemoryLog  memory.Log
	Researcher *research.Researcher
	Store      store.Store
	MaxDepth   int
	Logger     *zap.Logger
}

func NewRunner(cfg Config) *Runner {
	maxDepth := cfg.MaxDepth
	if maxDepth <= 0 {
		maxDepth = DefaultMaxDepth
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{
		registry:   cfg.Registry,
		client:     cfg.Client,
		memoryLog:  cfg.MemoryLog,
		researcher: cfg.Researcher,
		store:      cfg.Store,
		maxDepth:   maxDepth,
		logger:     logger.With(zap.String("component", "agents")),
	}
}

// Run executes steps 1-10 of the agent turn described for C8.
func (r *Runner) Run(ctx context.Context, input RunInput) (RunOutput, error) {
	record, ok := r.registry.Get(input.AgentID)
	if !ok {
		return RunOutput{}, types.NewError(types.ErrUnknownAgent, "agents: unknown agent id "+input.AgentID)
	}

	var messages []modelclient.Message
	if input.ConversationID != "" && r.memoryLog != nil {
		recent, err := r.memoryLog.Recent(ctx, input.ConversationID, memory.DefaultKeepVerbatim)
		if err != nil {
			return RunOutput{}, err
		}
		for _, m := range recent {
			messages = append(messages, modelclient.Message{Role: m.Role, Content: m.Content})
		}
	}

	userContent, err := buildUserMessage(input.Inputs)
	if err != nil {
		return RunOutput{}, types.NewError(types.ErrBadRequest, "agents: cannot serialize inputs").WithCause(err)
	}
	messages = append(messages, modelclient.Message{Role: types.RoleUser, Content: userContent})

	resp, err := r.client.Complete(ctx, input.RequesterID, modelclient.Request{
		Model:       record.ModelID,
		System:      record.SystemPrompt,
		Messages:    messages,
		Temperature: record.Temperature,
		AgentID:     record.ID,
		Purpose:     "agent_run",
	})
	if err != nil {
		return RunOutput{}, err
	}

	visibleText, directives := ParseDelegations(resp.Text)

	if input.Depth >= r.maxDepth {
		if len(directives) > 0 {
			visibleText += "\n\n[delegation skipped: maximum delegation depth reached]"
		}
		directives = nil
	}

	if !record.CanDelegate {
		directives = nil
	}

	childOutputs, delegationIDs, err := r.runDelegations(ctx, input, record, directives, &visibleText)
	if err != nil {
		return RunOutput{}, err
	}

	finalText := visibleText
	switch {
	case len(childOutputs) == 1 && strings.TrimSpace(visibleText) == "":
		// Single delegate, no caller commentary: consolidation must
		// reduce to identity, so skip the model call and forward the
		// child's text directly rather than trust a live completion
		// to paraphrase nothing.
		finalText = childOutputs[0].text
	case len(childOutputs) > 0:
		finalText, err = consolidate(ctx, r.client, input.RequesterID, record, visibleText, childOutputs)
		if err != nil {
			return RunOutput{}, err
		}
	}

	if input.ConversationID != "" && r.memoryLog != nil {
		if _, err := r.memoryLog.Append(ctx, input.ConversationID, types.ConversationMessage{
			ConversationID: input.ConversationID,
			Role:           types.RoleAssistant,
			SpeakerAgentID: record.ID,
			Content:        finalText,
		}); err != nil {
			return RunOutput{}, err
		}
	}

	return RunOutput{Text: finalText, UsedModel: resp.Model, Delegations: delegationIDs}, nil
}

func (r *Runner) runDelegations(ctx context.Context, input RunInput, record types.AgentRecord, directives []Directive, visibleText *string) ([]childResult, []string, error) {
	var childOutputs []childResult
	var delegationIDs []string

	for _, d := range directives {
		if d.Callee == researchCallee {
			if !record.CanResearch || r.researcher == nil {
				*visibleText += "\n\n[delegation to research refused: agent cannot research]"
				continue
			}
			result, err := r.researcher.Research(ctx, input.RequesterID, d.SubPrompt, 0, input.AgentID)
			if err != nil {
				childOutputs = append(childOutputs, childResult{label: "research", text: err.Error()})
				continue
			}
			childOutputs = append(childOutputs, childResult{label: "research", text: result.Answer})
			continue
		}

		if !record.Allows(d.Callee) {
			*visibleText += "\n\n[delegation to " + d.Callee + " refused: not in allow-list]"
			continue
		}
		if containsString(input.CallStack, d.Callee) {
			*visibleText += "\n\n[delegation to " + d.Callee + " refused: cycle detected]"
			continue
		}
		calleeRecord, ok := r.registry.Get(d.Callee)
		if !ok {
			*visibleText += "\n\n[delegation to " + d.Callee + " refused: unknown agent]"
			continue
		}

		childID, childText, err := r.runChild(ctx, input, d, calleeRecord)
		if err != nil {
			if calleeRecord.RequireChildren {
				return nil, nil, err
			}
			childOutputs = append(childOutputs, childResult{label: calleeRecord.DisplayName, text: err.Error()})
			delegationIDs = append(delegationIDs, childID)
			continue
		}
		childOutputs = append(childOutputs, childResult{label: calleeRecord.DisplayName, text: childText})
		delegationIDs = append(delegationIDs, childID)
	}

	return childOutputs, delegationIDs, nil
}

func (r *Runner) runChild(ctx context.Context, input RunInput, d Directive, calleeRecord types.AgentRecord) (childID, childText string, err error) {
	child := &types.Task{
		RequesterID:    input.RequesterID,
		AgentID:        d.Callee,
		ConversationID: input.ConversationID,
		Kind:           types.TaskKindAgent,
		Inputs:         map[string]any{"prompt": d.SubPrompt},
		State:          types.TaskQueued,
		ParentTaskID:   input.TaskID,
		Depth:          input.Depth + 1,
	}
	child, err = r.store.InsertTask(ctx, child)
	if err != nil {
		return "", "", err
	}
	if err := r.store.AddChildTask(ctx, input.TaskID, child.ID); err != nil {
		return child.ID, "", err
	}
	if err := r.store.CASTaskState(ctx, child.ID, types.TaskQueued, types.TaskRunning); err != nil {
		return child.ID, "", err
	}

	out, runErr := r.Run(ctx, RunInput{
		TaskID:         child.ID,
		RequesterID:    input.RequesterID,
		AgentID:        d.Callee,
		ConversationID: input.ConversationID,
		Inputs:         child.Inputs,
		Depth:          child.Depth,
		CallStack:      append(append([]string(nil), input.CallStack...), d.Callee),
	})
	if runErr != nil {
		_ = r.store.SetTaskOutput(ctx, child.ID, types.TaskFailed, "", types.CodeOf(runErr), runErr.Error(), "", nil)
		return child.ID, "", runErr
	}

	if err := r.store.SetTaskOutput(ctx, child.ID, types.TaskCompleted, out.Text, "", "", out.UsedModel, out.Delegations); err != nil {
		return child.ID, "", err
	}
	return child.ID, out.Text, nil
}

func containsString(haystack []string, needle string) bool {
	for _, s := range haystack {
		if s == needle {
			return true
		}
	}
	return false
}

func buildUserMessage(inputs map[string]any) (string, error) {
	val, err := serde.From(inputs)
	if err != nil {
		return "", err
	}
	return serde.Encode(val)
}
