package limiter

import (
	"context"
	"sync"
)

// GatePool composes a single global ConcurrencyGate with one
// lazily-created per-requester ConcurrencyGate, so a single requester
// cannot starve the global budget by itself while the global cap still
// bounds total in-flight calls.
type GatePool struct {
	global       *ConcurrencyGate
	perRequester int
	mu           sync.Mutex
	byRequester  map[string]*ConcurrencyGate
}

func NewGatePool(globalMax, perRequesterMax int) *GatePool {
	return &GatePool{
		global:       NewConcurrencyGate(globalMax),
		perRequester: perRequesterMax,
		byRequester:  make(map[string]*ConcurrencyGate),
	}
}

// Acquire takes both the global and the requester's own slot. If the
// requester slot is obtained but the global one is not, the requester
// slot is released before returning the error.
func (p *GatePool) Acquire(ctx context.Context, requesterID string) (release func(), err error) {
	requesterGate := p.gateFor(requesterID)

	if err := requesterGate.Acquire(ctx); err != nil {
		return nil, err
	}
	if err := p.global.Acquire(ctx); err != nil {
		requesterGate.Release()
		return nil, err
	}

	return func() {
		p.global.Release()
		requesterGate.Release()
	}, nil
}

func (p *GatePool) gateFor(requesterID string) *ConcurrencyGate {
	p.mu.Lock()
	defer p.mu.Unlock()

	g, ok := p.byRequester[requesterID]
	if !ok {
		g = NewConcurrencyGate(p.perRequester)
		p.byRequester[requesterID] = g
	}
	return g
}
