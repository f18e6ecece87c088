// Package mock is a deterministic modelclient.Provider with no network
// access, used by unit and integration tests across the engine.
package mock

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/agentmesh/engine/modelclient"
)

// Provider returns a canned reply derived from the last user message,
// or a fixed Reply if one is set. Errs, if non-nil, is consulted before
// every call and returned verbatim when non-nil, letting tests exercise
// the retry ladder and error mapping deterministically.
type Provider struct {
	mu    sync.Mutex
	Reply string
	// ForceEmptyReply makes Complete return an empty Text even though
	// Reply is unset, for tests exercising shape validation.
	ForceEmptyReply bool
	Errs            []error
	calls           int
}

func New() *Provider { return &Provider{} }

func (p *Provider) Name() string { return "mock" }

// Calls reports how many times Complete has been invoked, for tests
// that assert on retry counts.
func (p *Provider) Calls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls
}

func (p *Provider) Complete(ctx context.Context, req modelclient.Request) (modelclient.Response, error) {
	p.mu.Lock()
	idx := p.calls
	p.calls++
	var err error
	if idx < len(p.Errs) {
		err = p.Errs[idx]
	}
	p.mu.Unlock()

	if err != nil {
		return modelclient.Response{}, err
	}

	text := p.Reply
	if text == "" && !p.ForceEmptyReply {
		text = fmt.Sprintf("mock reply to: %s", lastUserMessage(req))
	}
	return modelclient.Response{
		Text:         text,
		Model:        req.Model,
		FinishReason: "stop",
		Usage: modelclient.Usage{
			PromptTokens:     len(req.Messages),
			CompletionTokens: len(strings.Fields(text)),
			TotalTokens:      len(req.Messages) + len(strings.Fields(text)),
		},
	}, nil
}

func lastUserMessage(req modelclient.Request) string {
	for i := len(req.Messages) - 1; i >= 0; i-- {
		if req.Messages[i].Content != "" {
			return req.Messages[i].Content
		}
	}
	return ""
}
