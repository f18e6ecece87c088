// Package anthropic wraps github.com/anthropics/anthropic-sdk-go as a
// modelclient.Provider. Only non-streaming text completion is
// implemented; tool calling and extended thinking are out of scope for
// the engine's plain-text agent responses.
package anthropic

import (
	"context"
	"errors"
	"fmt"
	"strings"

	anthropicsdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/agentmesh/engine/modelclient"
	"github.com/agentmesh/engine/types"
)

const defaultMaxTokens int64 = 1024

// Config configures the Anthropic adapter.
type Config struct {
	APIKey       string
	BaseURL      string
	DefaultModel string
}

// Provider adapts the Anthropic Messages API to modelclient.Provider.
type Provider struct {
	sdk          anthropicsdk.Client
	defaultModel string
}

func New(cfg Config) *Provider {
	opts := []option.RequestOption{option.WithAPIKey(strings.TrimSpace(cfg.APIKey))}
	if base := strings.TrimSpace(cfg.BaseURL); base != "" {
		opts = append(opts, option.WithBaseURL(strings.TrimRight(base, "/")))
	}
	model := cfg.DefaultModel
	if model == "" {
		model = string(anthropicsdk.ModelClaude3_7SonnetLatest)
	}
	return &Provider{
		sdk:          anthropicsdk.NewClient(opts...),
		defaultModel: model,
	}
}

func (p *Provider) Name() string { return "anthropic" }

func (p *Provider) Complete(ctx context.Context, req modelclient.Request) (modelclient.Response, error) {
	model := req.Model
	if model == "" {
		model = p.defaultModel
	}

	messages := make([]anthropicsdk.MessageParam, 0, len(req.Messages))
	for _, m := range req.Messages {
		switch m.Role {
		case types.RoleAssistant:
			messages = append(messages, anthropicsdk.NewAssistantMessage(anthropicsdk.NewTextBlock(m.Content)))
		default:
			messages = append(messages, anthropicsdk.NewUserMessage(anthropicsdk.NewTextBlock(m.Content)))
		}
	}
	if len(messages) == 0 {
		return modelclient.Response{}, types.NewError(types.ErrBadRequest, "anthropic: at least one message is required")
	}

	maxTokens := int64(req.MaxTokens)
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}

	params := anthropicsdk.MessageNewParams{
		Model:     anthropicsdk.Model(model),
		Messages:  messages,
		MaxTokens: maxTokens,
	}
	if req.System != "" {
		params.System = []anthropicsdk.TextBlockParam{{Text: req.System}}
	}
	if req.Temperature > 0 {
		params.Temperature = anthropicsdk.Float(req.Temperature)
	}

	resp, err := p.sdk.Messages.New(ctx, params)
	if err != nil {
		return modelclient.Response{}, mapSDKError(err)
	}

	var sb strings.Builder
	for _, block := range resp.Content {
		if tb, ok := block.AsAny().(anthropicsdk.TextBlock); ok {
			sb.WriteString(tb.Text)
		}
	}
	if sb.Len() == 0 {
		return modelclient.Response{}, types.NewError(types.ErrBadResponse, "anthropic: response contained no text block")
	}

	return modelclient.Response{
		Text:         sb.String(),
		Model:        string(resp.Model),
		FinishReason: string(resp.StopReason),
		Usage: modelclient.Usage{
			PromptTokens:     int(resp.Usage.InputTokens),
			CompletionTokens: int(resp.Usage.OutputTokens),
			TotalTokens:      int(resp.Usage.InputTokens + resp.Usage.OutputTokens),
		},
	}, nil
}

func mapSDKError(err error) error {
	var apiErr *anthropicsdk.Error
	if errors.As(err, &apiErr) {
		switch apiErr.StatusCode {
		case 429:
			return types.NewError(types.ErrThrottled, "anthropic: rate limited").WithCause(err)
		case 401, 403:
			return types.NewError(types.ErrUnauthorized, "anthropic: auth rejected").WithCause(err)
		default:
			if apiErr.StatusCode >= 500 {
				return types.NewError(types.ErrProviderError, fmt.Sprintf("anthropic: upstream %d", apiErr.StatusCode)).WithCause(err)
			}
			return types.NewError(types.ErrBadResponse, fmt.Sprintf("anthropic: upstream %d", apiErr.StatusCode)).WithCause(err)
		}
	}
	return types.NewError(types.ErrProviderError, "anthropic: request failed").WithCause(err)
}
