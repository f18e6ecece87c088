package memory

import (
	"context"
	"strings"
	"testing"

	"github.com/agentmesh/engine/types"
)

type stubSummarizer struct {
	calls   int
	reply   string
	lastIn  string
}

func (s *stubSummarizer) Summarize(_ context.Context, prompt string) (string, error) {
	s.calls++
	s.lastIn = prompt
	return s.reply, nil
}

func TestMemLogAppendAssignsMonotonicSequence(t *testing.T) {
	l := NewMemLog()
	ctx := context.Background()

	seq1, err := l.Append(ctx, "conv-1", types.ConversationMessage{Role: types.RoleUser, Content: "hello"})
	if err != nil {
		t.Fatalf("append 1: %v", err)
	}
	seq2, err := l.Append(ctx, "conv-1", types.ConversationMessage{Role: types.RoleAssistant, Content: "hi"})
	if err != nil {
		t.Fatalf("append 2: %v", err)
	}
	if seq2 != seq1+1 {
		t.Fatalf("expected monotonic sequence, got %d then %d", seq1, seq2)
	}
}

func TestMemLogRecentReturnsAscendingOrder(t *testing.T) {
	l := NewMemLog()
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		l.Append(ctx, "conv-1", types.ConversationMessage{Role: types.RoleUser, Content: string(rune('a' + i))})
	}

	recent, err := l.Recent(ctx, "conv-1", 3)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(recent) != 3 {
		t.Fatalf("expected 3 messages, got %d", len(recent))
	}
	want := []string{"c", "d", "e"}
	for i, m := range recent {
		if m.Content != want[i] {
			t.Fatalf("message %d: want %q, got %q", i, want[i], m.Content)
		}
	}
}

func TestMemLogRecentIsolatesConversations(t *testing.T) {
	l := NewMemLog()
	ctx := context.Background()

	l.Append(ctx, "conv-a", types.ConversationMessage{Content: "a-msg"})
	l.Append(ctx, "conv-b", types.ConversationMessage{Content: "b-msg"})

	recentA, _ := l.Recent(ctx, "conv-a", 10)
	recentB, _ := l.Recent(ctx, "conv-b", 10)
	if len(recentA) != 1 || recentA[0].Content != "a-msg" {
		t.Fatalf("conv-a leaked: %+v", recentA)
	}
	if len(recentB) != 1 || recentB[0].Content != "b-msg" {
		t.Fatalf("conv-b leaked: %+v", recentB)
	}
}

func TestMemLogSummariseIfOverCompactsAndKeepsVerbatimTail(t *testing.T) {
	l := NewMemLog()
	ctx := context.Background()

	long := strings.Repeat("word ", 2000)
	for i := 0; i < 15; i++ {
		l.Append(ctx, "conv-1", types.ConversationMessage{Role: types.RoleUser, Content: long})
	}

	sum := &stubSummarizer{reply: "compacted summary"}
	if err := l.SummariseIfOver(ctx, "conv-1", 100, 10, sum); err != nil {
		t.Fatalf("summarise: %v", err)
	}
	if sum.calls != 1 {
		t.Fatalf("expected summarizer to be called once, got %d", sum.calls)
	}

	all, err := l.Recent(ctx, "conv-1", 100)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(all) != 11 {
		t.Fatalf("expected 1 summary + 10 verbatim messages, got %d", len(all))
	}
	if all[0].Role != types.RoleSystem || all[0].Content != "compacted summary" {
		t.Fatalf("expected first message to be the summary, got %+v", all[0])
	}
	for i := 1; i < len(all); i++ {
		if all[i].Content != long {
			t.Fatalf("expected verbatim tail preserved at index %d", i)
		}
	}
	for i := 1; i < len(all)-1; i++ {
		if all[i].Sequence >= all[i+1].Sequence {
			t.Fatalf("expected strictly increasing sequence, got %d then %d", all[i].Sequence, all[i+1].Sequence)
		}
	}
	if all[0].Sequence >= all[1].Sequence {
		t.Fatalf("expected summary sequence to precede kept tail, got %d then %d", all[0].Sequence, all[1].Sequence)
	}
}

func TestMemLogSummariseIfOverSkipsWhenUnderBudget(t *testing.T) {
	l := NewMemLog()
	ctx := context.Background()
	l.Append(ctx, "conv-1", types.ConversationMessage{Content: "short"})

	sum := &stubSummarizer{reply: "should not be used"}
	if err := l.SummariseIfOver(ctx, "conv-1", DefaultBudgetTokens, DefaultKeepVerbatim, sum); err != nil {
		t.Fatalf("summarise: %v", err)
	}
	if sum.calls != 0 {
		t.Fatal("expected summarizer not to be called when under budget")
	}
}
