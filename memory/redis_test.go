package memory

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/agentmesh/engine/types"
)

func setupTestRedisLog(t *testing.T) (*miniredis.Miniredis, *RedisLog) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return mr, NewRedisLog(client)
}

func TestRedisLogAppendAndRecent(t *testing.T) {
	mr, l := setupTestRedisLog(t)
	defer mr.Close()
	ctx := context.Background()

	seq1, err := l.Append(ctx, "conv-1", types.ConversationMessage{Role: types.RoleUser, Content: "hello"})
	require.NoError(t, err)
	seq2, err := l.Append(ctx, "conv-1", types.ConversationMessage{Role: types.RoleAssistant, Content: "hi"})
	require.NoError(t, err)
	if seq2 != seq1+1 {
		t.Fatalf("expected monotonic sequence, got %d then %d", seq1, seq2)
	}

	recent, err := l.Recent(ctx, "conv-1", 10)
	require.NoError(t, err)
	if len(recent) != 2 || recent[0].Content != "hello" || recent[1].Content != "hi" {
		t.Fatalf("unexpected recent messages: %+v", recent)
	}
}

func TestRedisLogSummariseIfOverCompacts(t *testing.T) {
	mr, l := setupTestRedisLog(t)
	defer mr.Close()
	ctx := context.Background()

	for i := 0; i < 15; i++ {
		_, err := l.Append(ctx, "conv-1", types.ConversationMessage{
			Role:    types.RoleUser,
			Content: "this is a reasonably long message meant to add up to a lot of tokens over time",
		})
		require.NoError(t, err)
	}

	sum := &stubSummarizer{reply: "compacted"}
	err := l.SummariseIfOver(ctx, "conv-1", 50, 10, sum)
	require.NoError(t, err)
	if sum.calls != 1 {
		t.Fatalf("expected summarizer called once, got %d", sum.calls)
	}

	all, err := l.Recent(ctx, "conv-1", 100)
	require.NoError(t, err)
	if len(all) != 11 {
		t.Fatalf("expected 11 messages after compaction, got %d", len(all))
	}
	if all[0].Role != types.RoleSystem || all[0].Content != "compacted" {
		t.Fatalf("expected summary first, got %+v", all[0])
	}
}
