package memory

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/agentmesh/engine/types"
)

// RedisLog is the production Log backend: one Redis list per
// conversation holding JSON-encoded messages, plus a sequence counter
// key incremented on every append. The counter reservation and the
// list push are two round trips, not one transaction — embedding the
// reserved sequence in the pushed payload requires knowing it before
// the push is queued. In practice this only matters under concurrent
// writers to the same conversation, which agentmesh's single
// active-runner-per-conversation model avoids.
type RedisLog struct {
	client *redis.Client
}

func NewRedisLog(client *redis.Client) *RedisLog {
	return &RedisLog{client: client}
}

func listKey(conversationID string) string { return "memlog:" + conversationID + ":messages" }
func seqKey(conversationID string) string  { return "memlog:" + conversationID + ":seq" }

func (r *RedisLog) Append(ctx context.Context, conversationID string, msg types.ConversationMessage) (int64, error) {
	msg.ConversationID = conversationID

	seq, err := r.client.Incr(ctx, seqKey(conversationID)).Result()
	if err != nil {
		return 0, fmt.Errorf("memory: reserve sequence: %w", err)
	}
	msg.Sequence = seq

	encoded, err := json.Marshal(msg)
	if err != nil {
		return 0, fmt.Errorf("memory: encode message: %w", err)
	}
	if err := r.client.RPush(ctx, listKey(conversationID), encoded).Err(); err != nil {
		return 0, fmt.Errorf("memory: append message: %w", err)
	}
	return msg.Sequence, nil
}

func (r *RedisLog) Recent(ctx context.Context, conversationID string, limit int) ([]types.ConversationMessage, error) {
	start := int64(0)
	if limit > 0 {
		start = -int64(limit)
	}
	raw, err := r.client.LRange(ctx, listKey(conversationID), start, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("memory: read recent: %w", err)
	}
	return decodeAll(raw)
}

func (r *RedisLog) SummariseIfOver(ctx context.Context, conversationID string, budgetTokens, keepVerbatim int, summarizer Summarizer) error {
	raw, err := r.client.LRange(ctx, listKey(conversationID), 0, -1).Result()
	if err != nil {
		return fmt.Errorf("memory: read log: %w", err)
	}
	messages, err := decodeAll(raw)
	if err != nil {
		return err
	}
	if countTokens(messages) <= budgetTokens || len(messages) <= keepVerbatim {
		return nil
	}

	toCompact := messages[:len(messages)-keepVerbatim]
	kept := messages[len(messages)-keepVerbatim:]

	summary, err := summarizer.Summarize(ctx, fmt.Sprintf(compactionPrompt, renderConversation(toCompact)))
	if err != nil {
		return err
	}

	summarySeq := int64(1)
	if len(kept) > 0 {
		summarySeq = kept[0].Sequence - 1
	}
	summaryMsg := types.ConversationMessage{
		ConversationID: conversationID,
		Sequence:       summarySeq,
		Role:           types.RoleSystem,
		Content:        summary,
	}

	rewritten := append([]types.ConversationMessage{summaryMsg}, kept...)
	encoded := make([]any, len(rewritten))
	for i, m := range rewritten {
		b, err := json.Marshal(m)
		if err != nil {
			return fmt.Errorf("memory: encode compacted message: %w", err)
		}
		encoded[i] = b
	}

	key := listKey(conversationID)
	_, err = r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, key)
		pipe.RPush(ctx, key, encoded...)
		return nil
	})
	if err != nil {
		return fmt.Errorf("memory: rewrite compacted log: %w", err)
	}
	return nil
}

func decodeAll(raw []string) ([]types.ConversationMessage, error) {
	out := make([]types.ConversationMessage, len(raw))
	for i, s := range raw {
		if err := json.Unmarshal([]byte(s), &out[i]); err != nil {
			return nil, fmt.Errorf("memory: decode message: %w", err)
		}
	}
	return out, nil
}
