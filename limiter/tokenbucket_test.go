package limiter

import (
	"context"
	"testing"
)

func TestTokenBucketPerModelIsolation(t *testing.T) {
	tb := NewTokenBucket(1, 1)

	if !tb.Allow("model-a") {
		t.Fatal("expected first call for model-a to be allowed")
	}
	if tb.Allow("model-a") {
		t.Fatal("expected second immediate call for model-a to be denied")
	}
	if !tb.Allow("model-b") {
		t.Fatal("expected model-b's bucket to be independent of model-a's")
	}
}

func TestTokenBucketWaitRespectsCancellation(t *testing.T) {
	tb := NewTokenBucket(0.001, 1)
	tb.Allow("model-a")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := tb.Wait(ctx, "model-a"); err == nil {
		t.Fatal("expected Wait to fail on an already-cancelled context")
	}
}
