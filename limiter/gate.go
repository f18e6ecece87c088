package limiter

import (
	"context"

	"github.com/agentmesh/engine/types"
)

// ConcurrencyGate is a buffered-channel semaphore bounding how many
// callers may hold it at once. Acquire blocks in channel-send order
// (FIFO) until a slot frees or ctx is done.
type ConcurrencyGate struct {
	slots chan struct{}
}

func NewConcurrencyGate(max int) *ConcurrencyGate {
	if max <= 0 {
		max = 1
	}
	return &ConcurrencyGate{slots: make(chan struct{}, max)}
}

// Acquire blocks until a slot is available or ctx is done, in which
// case it returns types.ErrThrottled.
func (g *ConcurrencyGate) Acquire(ctx context.Context) error {
	select {
	case g.slots <- struct{}{}:
		return nil
	case <-ctx.Done():
		return types.NewError(types.ErrThrottled, "concurrency gate: context done before a slot freed").WithCause(ctx.Err())
	}
}

// Release frees the slot acquired by a prior successful Acquire.
func (g *ConcurrencyGate) Release() {
	select {
	case <-g.slots:
	default:
	}
}

// InUse reports how many slots are currently held, for metrics.
func (g *ConcurrencyGate) InUse() int {
	return len(g.slots)
}

// Capacity returns the gate's maximum concurrent holders.
func (g *ConcurrencyGate) Capacity() int {
	return cap(g.slots)
}
