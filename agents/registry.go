// Package agents implements the fixed agent table (C8 AgentRegistry)
// and the recursive delegation runner (C8 AgentRunner) that executes
// one agent turn, optionally fanning out to peer agents or the
// research pipeline, and consolidating their outputs.
package agents

import (
	"time"

	"github.com/agentmesh/engine/types"
)

// researchCallee is the reserved delegation target that routes to the
// research pipeline instead of a peer agent, gated by CanResearch.
const researchCallee = "research"

// Registry is the closed, fixed table of agent records keyed by id.
// It is built once at startup and never mutated.
type Registry struct {
	byID map[string]types.AgentRecord
}

// NewRegistry builds a Registry from an explicit record set, letting
// callers override prompts/models/timeouts per deployment. Records are
// keyed by their ID as given; ids outside the closed agent-id set are
// accepted and returned by Get like any other.
func NewRegistry(records ...types.AgentRecord) *Registry {
	r := &Registry{byID: make(map[string]types.AgentRecord, len(records))}
	for _, rec := range records {
		r.byID[rec.ID] = rec
	}
	return r
}

// NewDefaultRegistry returns the closed eight-agent table with the
// default prompts, models, and allow-lists described in the external
// interface. DefaultModel is used for every agent whose ModelID is not
// overridden by configuration.
func NewDefaultRegistry(defaultModel string) *Registry {
	return NewRegistry(
		types.AgentRecord{
			ID: types.AgentProductManager, DisplayName: "Product Manager",
			SystemPrompt: productManagerPrompt, ModelID: defaultModel, Temperature: 0.4,
			Timeout: 60 * time.Second, CanDelegate: true, CanResearch: true,
			AllowList: []string{types.AgentEngineer, types.AgentMarketingStrategist, researchCallee},
		},
		types.AgentRecord{
			ID: types.AgentFinanceManager, DisplayName: "Finance Manager",
			SystemPrompt: financeManagerPrompt, ModelID: defaultModel, Temperature: 0.2,
			Timeout: 60 * time.Second, CanDelegate: true, CanResearch: true,
			AllowList: []string{types.AgentProductManager, researchCallee},
		},
		types.AgentRecord{
			ID: types.AgentMarketingStrategist, DisplayName: "Marketing Strategist",
			SystemPrompt: marketingStrategistPrompt, ModelID: defaultModel, Temperature: 0.6,
			Timeout: 60 * time.Second, CanDelegate: true, CanResearch: true,
			AllowList: []string{types.AgentLeadgen, types.AgentOutboundMail, researchCallee},
		},
		types.AgentRecord{
			ID: types.AgentLeadgen, DisplayName: "Lead Generation",
			SystemPrompt: leadgenPrompt, ModelID: defaultModel, Temperature: 0.4,
			Timeout: 60 * time.Second, CanDelegate: true, CanResearch: true,
			AllowList: []string{types.AgentOutboundMail, researchCallee},
		},
		types.AgentRecord{
			ID: types.AgentOutboundMail, DisplayName: "Outbound Mail",
			SystemPrompt: outboundMailPrompt, ModelID: defaultModel, Temperature: 0.5,
			Timeout: 60 * time.Second, CanDelegate: false, CanResearch: false,
		},
		types.AgentRecord{
			ID: types.AgentCallPrep, DisplayName: "Call Prep",
			SystemPrompt: callPrepPrompt, ModelID: defaultModel, Temperature: 0.3,
			Timeout: 60 * time.Second, CanDelegate: true, CanResearch: true,
			AllowList: []string{researchCallee},
		},
		types.AgentRecord{
			ID: types.AgentEngineer, DisplayName: "Engineer",
			SystemPrompt: engineerPrompt, ModelID: defaultModel, Temperature: 0.2,
			Timeout: 120 * time.Second, CanDelegate: true, CanResearch: true,
			AllowList: []string{researchCallee},
		},
		types.AgentRecord{
			ID: types.AgentAssistant, DisplayName: "Assistant",
			SystemPrompt: assistantPrompt, ModelID: defaultModel, Temperature: 0.5,
			Timeout: 60 * time.Second, CanDelegate: true, CanResearch: true,
			AllowList: []string{
				types.AgentProductManager, types.AgentFinanceManager, types.AgentMarketingStrategist,
				types.AgentLeadgen, types.AgentOutboundMail, types.AgentCallPrep, types.AgentEngineer,
				researchCallee,
			},
		},
	)
}

// Get looks up an agent record by id.
func (r *Registry) Get(id string) (types.AgentRecord, bool) {
	rec, ok := r.byID[id]
	return rec, ok
}

// All returns every registered agent record, in no particular order.
func (r *Registry) All() []types.AgentRecord {
	recs := make([]types.AgentRecord, 0, len(r.byID))
	for _, rec := range r.byID {
		recs = append(recs, rec)
	}
	return recs
}

// ModelFor satisfies research.AgentResolver without agents importing
// research: it resolves a preferred agent id to the model and
// temperature that agent uses for its own calls.
func (r *Registry) ModelFor(agentID string) (model string, temperature float64, ok bool) {
	rec, found := r.byID[agentID]
	if !found {
		return "", 0, false
	}
	return rec.ModelID, rec.Temperature, true
}

const productManagerPrompt = `You are the Product Manager agent. Assess feasibility, scope, and priority for product requests. When a request needs engineering feasibility input or marketing positioning, delegate using a ---DELEGATE:<agent_id>--- block.`

const financeManagerPrompt = `You are the Finance Manager agent. Evaluate cost, budget, and revenue impact. Delegate to the product manager when a financial assessment depends on product scope.`

const marketingStrategistPrompt = `You are the Marketing Strategist agent. Develop positioning and campaign strategy. Delegate to lead generation or outbound mail agents to execute on a strategy.`

const leadgenPrompt = `You are the Lead Generation agent. Identify and qualify prospects. Delegate to the outbound mail agent to initiate contact with qualified leads.`

const outboundMailPrompt = `You are the Outbound Mail agent. Draft and describe outbound email sequences for the given leads or context. You do not delegate.`

const callPrepPrompt = `You are the Call Prep agent. Prepare briefing notes for an upcoming call given the available context, researching background on the counterpart when useful.`

const engineerPrompt = `You are the Engineer agent. Assess technical feasibility, scope engineering work, and triage incidents. Research prior art or documentation when it would sharpen your answer.`

const assistantPrompt = `You are the general-purpose Assistant agent. Handle requests that do not clearly belong to a specialist, delegating to the right specialist agent when one applies.`
