package types

import "time"

// AgentRecord is a row in the fixed agent table: identity, prompting,
// model selection, and the delegation policy for one agent id.
type AgentRecord struct {
	ID              string
	DisplayName     string
	SystemPrompt    string
	ModelID         string
	Temperature     float64
	Timeout         time.Duration
	CanDelegate     bool
	CanResearch     bool
	AllowList       []string
	RequireChildren bool
}

// Allows reports whether this agent's allow-list permits calling callee.
func (a AgentRecord) Allows(callee string) bool {
	for _, id := range a.AllowList {
		if id == callee {
			return true
		}
	}
	return false
}

// Closed agent id set from the external interface spec.
const (
	AgentProductManager      = "product_manager"
	AgentFinanceManager      = "finance_manager"
	AgentMarketingStrategist = "marketing_strategist"
	AgentLeadgen             = "leadgen"
	AgentOutboundMail        = "outbound_mail"
	AgentCallPrep            = "call_prep"
	AgentEngineer            = "engineer"
	AgentAssistant           = "assistant"
	AgentMulti               = "multi_agent"
)
