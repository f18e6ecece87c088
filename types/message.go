package types

import "time"

// Role identifies the speaker of a ConversationMessage.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// ConversationMessage is one entry in an append-only, per-conversation
// message log. Sequence is monotonic per ConversationID and assigned by
// the store/log, never by the caller.
type ConversationMessage struct {
	ConversationID string    `json:"conversation_id"`
	Sequence       int64     `json:"sequence"`
	Role           Role      `json:"role"`
	SpeakerAgentID string    `json:"speaker_agent_id,omitempty"`
	Content        string    `json:"content"`
	CreatedAt      time.Time `json:"created_at"`
}
