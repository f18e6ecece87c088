package modelclient

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/agentmesh/engine/cache"
	"github.com/agentmesh/engine/limiter"
	"github.com/agentmesh/engine/types"
)

// DefaultTimeout is the provider call deadline for every agent except
// "engineer", which gets EngineerTimeout.
const DefaultTimeout = 30 * time.Second

// EngineerTimeout is the extended provider call deadline for the
// "engineer" agent's typically larger completions.
const EngineerTimeout = 60 * time.Second

// ModelCacheTTL is how long a completed response stays cached, keyed
// by the request fingerprint.
const ModelCacheTTL = 24 * time.Hour

// Client is the sole path from the rest of the engine to an external
// model: cache lookup, concurrency/rate gates, a bounded retry ladder,
// and response shape validation all live here so no caller has to
// reimplement them.
type Client struct {
	provider  Provider
	coalescer *cache.Coalescer
	gates     *limiter.GatePool
	bucket    *limiter.TokenBucket
	logger    *zap.Logger
}

func NewClient(provider Provider, coalescer *cache.Coalescer, gates *limiter.GatePool, bucket *limiter.TokenBucket, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		provider:  provider,
		coalescer: coalescer,
		gates:     gates,
		bucket:    bucket,
		logger:    logger,
	}
}

// Complete implements the full call pipeline described in C6: cache
// lookup, gates, timed provider call with retry, shape validation, and
// cache store, in that order. requesterID is the caller identity used
// to scope the per-requester concurrency slot.
func (c *Client) Complete(ctx context.Context, requesterID string, req Request) (Response, error) {
	key := fingerprint(req)

	raw, err := c.coalescer.GetOrLoad(ctx, cache.PurposeModel, key, ModelCacheTTL, func(ctx context.Context) ([]byte, error) {
		resp, err := c.call(ctx, requesterID, req)
		if err != nil {
			return nil, err
		}
		return json.Marshal(resp)
	})
	if err != nil {
		return Response{}, err
	}

	var resp Response
	if err := json.Unmarshal(raw, &resp); err != nil {
		return Response{}, types.NewError(types.ErrBadResponse, "modelclient: corrupt cached response").WithCause(err)
	}
	return resp, nil
}

// Summarize satisfies memory.Summarizer so the memory package can
// compact a conversation without importing modelclient.
func (c *Client) Summarize(ctx context.Context, prompt string) (string, error) {
	resp, err := c.Complete(ctx, "memory-summarizer", Request{
		Model:    "",
		Messages: []Message{{Role: types.RoleUser, Content: prompt}},
		Purpose:  string(cache.PurposeModel),
	})
	if err != nil {
		return "", err
	}
	return resp.Text, nil
}

func (c *Client) call(ctx context.Context, requesterID string, req Request) (Response, error) {
	release, err := c.gates.Acquire(ctx, requesterID)
	if err != nil {
		return Response{}, err
	}
	defer release()

	estimated := estimateTokens(req)
	if err := c.bucket.WaitN(ctx, req.Model, estimated); err != nil {
		return Response{}, err
	}

	timeout := DefaultTimeout
	if req.AgentID == types.AgentEngineer {
		timeout = EngineerTimeout
	}

	resp, err := withRetry(ctx, c.logger, func() (Response, error) {
		callCtx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()

		resp, err := c.provider.Complete(callCtx, req)
		if err != nil {
			return Response{}, mapProviderError(callCtx, c.provider.Name(), err)
		}
		return resp, nil
	})
	if err != nil {
		return Response{}, err
	}

	if err := validateShape(resp); err != nil {
		return Response{}, err
	}

	if resp.Usage.TotalTokens > estimated {
		c.bucket.AllowN(req.Model, resp.Usage.TotalTokens-estimated)
	}

	c.logger.Debug("modelclient: completion",
		zap.String("model", resp.Model),
		zap.Int("prompt_tokens", resp.Usage.PromptTokens),
		zap.Int("completion_tokens", resp.Usage.CompletionTokens),
	)
	return resp, nil
}

func validateShape(resp Response) error {
	if resp.Text == "" {
		return types.NewError(types.ErrBadResponse, "modelclient: provider returned empty completion")
	}
	return nil
}

func mapProviderError(ctx context.Context, providerName string, err error) error {
	if _, ok := err.(*types.Error); ok {
		return err
	}
	if ctx.Err() != nil {
		return types.NewError(types.ErrTimeout, fmt.Sprintf("modelclient: %s call timed out", providerName)).WithCause(err)
	}
	return types.NewError(types.ErrProviderError, fmt.Sprintf("modelclient: %s call failed", providerName)).WithCause(err)
}

func fingerprint(req Request) string {
	if req.IdempotencyKey != "" {
		sum := sha256.Sum256([]byte(req.IdempotencyKey))
		return hex.EncodeToString(sum[:])
	}
	data, err := json.Marshal(req)
	if err != nil {
		data = []byte(fmt.Sprintf("%v", req))
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
