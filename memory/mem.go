package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/agentmesh/engine/types"
)

type conversationLog struct {
	mu       sync.Mutex
	messages []types.ConversationMessage
	nextSeq  int64
}

// MemLog is an in-process Log for tests and single-process
// deployments. Each conversation gets its own mutex drawn from a
// sync.Map so unrelated conversations never contend.
type MemLog struct {
	logs sync.Map // conversationID -> *conversationLog
}

func NewMemLog() *MemLog {
	return &MemLog{}
}

func (m *MemLog) logFor(conversationID string) *conversationLog {
	v, _ := m.logs.LoadOrStore(conversationID, &conversationLog{})
	return v.(*conversationLog)
}

func (m *MemLog) Append(_ context.Context, conversationID string, msg types.ConversationMessage) (int64, error) {
	l := m.logFor(conversationID)
	l.mu.Lock()
	defer l.mu.Unlock()

	l.nextSeq++
	msg.ConversationID = conversationID
	msg.Sequence = l.nextSeq
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now()
	}
	l.messages = append(l.messages, msg)
	return msg.Sequence, nil
}

func (m *MemLog) Recent(_ context.Context, conversationID string, limit int) ([]types.ConversationMessage, error) {
	l := m.logFor(conversationID)
	l.mu.Lock()
	defer l.mu.Unlock()

	if limit <= 0 || limit > len(l.messages) {
		limit = len(l.messages)
	}
	start := len(l.messages) - limit
	out := make([]types.ConversationMessage, limit)
	copy(out, l.messages[start:])
	return out, nil
}

func (m *MemLog) SummariseIfOver(ctx context.Context, conversationID string, budgetTokens, keepVerbatim int, summarizer Summarizer) error {
	l := m.logFor(conversationID)
	l.mu.Lock()
	if countTokens(l.messages) <= budgetTokens || len(l.messages) <= keepVerbatim {
		l.mu.Unlock()
		return nil
	}
	toCompact := append([]types.ConversationMessage(nil), l.messages[:len(l.messages)-keepVerbatim]...)
	kept := append([]types.ConversationMessage(nil), l.messages[len(l.messages)-keepVerbatim:]...)
	l.mu.Unlock()

	summary, err := summarizer.Summarize(ctx, fmt.Sprintf(compactionPrompt, renderConversation(toCompact)))
	if err != nil {
		return err
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	summarySeq := int64(1)
	if len(kept) > 0 {
		summarySeq = kept[0].Sequence - 1
	}
	summaryMsg := types.ConversationMessage{
		ConversationID: conversationID,
		Sequence:       summarySeq,
		Role:           types.RoleSystem,
		Content:        summary,
		CreatedAt:      time.Now(),
	}
	l.messages = append([]types.ConversationMessage{summaryMsg}, kept...)
	return nil
}
