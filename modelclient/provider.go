package modelclient

import (
	"context"

	"github.com/agentmesh/engine/types"
)

// Message is one entry in a Request's conversation, already bounded by
// the memory package before it reaches the client.
type Message struct {
	Role    types.Role
	Content string
}

// Request is a single typed call to an external model.
type Request struct {
	Model          string
	System         string
	Messages       []Message
	Temperature    float64
	MaxTokens      int
	IdempotencyKey string
	Purpose        string
	// AgentID, when set to the "engineer" agent id, extends the provider
	// call deadline from DefaultTimeout to EngineerTimeout.
	AgentID string
}

// Usage reports token accounting for one completed call.
type Usage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// Response is the result of a completed call.
type Response struct {
	Text         string
	Model        string
	Usage        Usage
	FinishReason string
}

// Provider is the abstract interface a vendor adapter implements. It
// performs exactly one HTTP round trip per call; retry, caching, and
// gating are the Client's responsibility, not the provider's.
type Provider interface {
	Name() string
	Complete(ctx context.Context, req Request) (Response, error)
}
