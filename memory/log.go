// Package memory implements the append-only per-conversation message
// log every agent run reads from and writes to, plus the compaction
// step that keeps a long-running conversation's prompt size bounded.
package memory

import (
	"context"

	"github.com/agentmesh/engine/types"
)

// Log is the per-conversation message store. Sequence numbers are
// assigned by the implementation, monotonically per conversation id,
// never by the caller.
type Log interface {
	// Append adds msg to conversationID's log and returns its assigned
	// sequence number.
	Append(ctx context.Context, conversationID string, msg types.ConversationMessage) (int64, error)

	// Recent returns the last limit messages for conversationID in
	// ascending sequence order.
	Recent(ctx context.Context, conversationID string, limit int) ([]types.ConversationMessage, error)

	// SummariseIfOver checks whether conversationID's log exceeds
	// budgetTokens and, if so, replaces everything but the most recent
	// keepVerbatim messages with one synthesized system message
	// produced by summarizer.
	SummariseIfOver(ctx context.Context, conversationID string, budgetTokens, keepVerbatim int, summarizer Summarizer) error
}

// Summarizer produces a compacted summary from a compaction prompt. It
// is satisfied by modelclient.Client without memory importing
// modelclient.
type Summarizer interface {
	Summarize(ctx context.Context, prompt string) (string, error)
}

// DefaultBudgetTokens and DefaultKeepVerbatim are the conversation
// memory defaults: compact once the log exceeds 4000 cl100k_base
// tokens, always keeping the most recent 10 messages intact.
const (
	DefaultBudgetTokens = 4000
	DefaultKeepVerbatim = 10
)

const compactionPrompt = `You are compacting an agent conversation log to keep it within a token budget.
Summarize the conversation below into a single concise paragraph that preserves every
decision, delegation outcome, and fact a later agent turn would need. Do not include
meta-commentary about summarizing — output only the summary paragraph.

Conversation:
%s`
