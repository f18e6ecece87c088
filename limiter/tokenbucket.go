package limiter

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/agentmesh/engine/types"
)

// TokenBucket holds one golang.org/x/time/rate.Limiter per model id, so
// a slow or expensive model can be throttled independently of the
// others sharing the same process.
type TokenBucket struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	rps      float64
	burst    int
}

func NewTokenBucket(ratePerSecond float64, burst int) *TokenBucket {
	return &TokenBucket{
		limiters: make(map[string]*rate.Limiter),
		rps:      ratePerSecond,
		burst:    burst,
	}
}

// Wait blocks until modelID's bucket has a token available or ctx ends.
func (t *TokenBucket) Wait(ctx context.Context, modelID string) error {
	return t.WaitN(ctx, modelID, 1)
}

// WaitN blocks until modelID's bucket has n tokens available or ctx
// ends. Callers pre-charge n from an estimate (e.g. estimated prompt
// tokens) before a model call and may AllowN a further top-up once the
// actual usage is known.
func (t *TokenBucket) WaitN(ctx context.Context, modelID string, n int) error {
	if n <= 0 {
		n = 1
	}
	if err := t.limiterFor(modelID).WaitN(ctx, n); err != nil {
		return types.NewError(types.ErrThrottled, "token bucket: rate limit wait failed for model "+modelID).WithCause(err)
	}
	return nil
}

// Allow is the non-blocking counterpart of Wait.
func (t *TokenBucket) Allow(modelID string) bool {
	return t.limiterFor(modelID).Allow()
}

// AllowN is the non-blocking counterpart of WaitN, used to post-correct
// a pre-charge once actual token usage is known. It never blocks; a
// false return means the correction was not applied and is only
// surfaced as a metric, not an error, since the original call already
// completed.
func (t *TokenBucket) AllowN(modelID string, n int) bool {
	if n <= 0 {
		return true
	}
	return t.limiterFor(modelID).AllowN(time.Now(), n)
}

func (t *TokenBucket) limiterFor(modelID string) *rate.Limiter {
	t.mu.Lock()
	defer t.mu.Unlock()

	l, ok := t.limiters[modelID]
	if !ok {
		l = rate.NewLimiter(rate.Limit(t.rps), t.burst)
		t.limiters[modelID] = l
	}
	return l
}
