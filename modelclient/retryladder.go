package modelclient

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/agentmesh/engine/types"
)

// RetryDelays is the fixed retry ladder: one initial attempt plus up to
// three retries, waiting 1s, 4s and 12s before them, applied only to
// transient failures.
var RetryDelays = []time.Duration{time.Second, 4 * time.Second, 12 * time.Second}

// withRetry runs fn, retrying on a retryable *types.Error per
// RetryDelays, honouring ctx cancellation between attempts.
func withRetry(ctx context.Context, logger *zap.Logger, fn func() (Response, error)) (Response, error) {
	for attempt := 0; ; attempt++ {
		resp, err := fn()
		if err == nil {
			return resp, nil
		}
		if !types.IsRetryable(err) || attempt >= len(RetryDelays) {
			return Response{}, err
		}
		delay := RetryDelays[attempt]
		logger.Debug("modelclient: retrying",
			zap.Int("attempt", attempt+1),
			zap.Duration("delay", delay),
			zap.Error(err),
		)
		select {
		case <-ctx.Done():
			return Response{}, fmt.Errorf("modelclient: retry cancelled: %w", ctx.Err())
		case <-time.After(delay):
		}
	}
}
