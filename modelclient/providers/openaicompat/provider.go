// Package openaicompat is a minimal net/http JSON client for any
// OpenAI-Chat-Completions-compatible endpoint, covering OpenAI itself
// and self-hosted gateways without pulling in a vendor SDK.
package openaicompat

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/agentmesh/engine/modelclient"
	"github.com/agentmesh/engine/types"
)

// Config configures one OpenAI-compatible endpoint.
type Config struct {
	ProviderName string
	APIKey       string
	BaseURL      string
	EndpointPath string
	Timeout      time.Duration
}

// Provider is the base implementation for OpenAI-compatible providers.
type Provider struct {
	cfg    Config
	client *http.Client
}

func New(cfg Config) *Provider {
	if cfg.EndpointPath == "" {
		cfg.EndpointPath = "/v1/chat/completions"
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return &Provider{
		cfg:    cfg,
		client: &http.Client{Timeout: timeout},
	}
}

func (p *Provider) Name() string { return p.cfg.ProviderName }

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature,omitempty"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
}

type chatChoice struct {
	Message      chatMessage `json:"message"`
	FinishReason string      `json:"finish_reason"`
}

type chatUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

type chatResponse struct {
	Model   string       `json:"model"`
	Choices []chatChoice `json:"choices"`
	Usage   chatUsage    `json:"usage"`
	Error   *struct {
		Message string `json:"message"`
	} `json:"error"`
}

func (p *Provider) Complete(ctx context.Context, req modelclient.Request) (modelclient.Response, error) {
	messages := make([]chatMessage, 0, len(req.Messages)+1)
	if req.System != "" {
		messages = append(messages, chatMessage{Role: "system", Content: req.System})
	}
	for _, m := range req.Messages {
		messages = append(messages, chatMessage{Role: string(m.Role), Content: m.Content})
	}

	body := chatRequest{
		Model:       req.Model,
		Messages:    messages,
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return modelclient.Response{}, fmt.Errorf("openaicompat: encode request: %w", err)
	}

	url := strings.TrimRight(p.cfg.BaseURL, "/") + p.cfg.EndpointPath
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return modelclient.Response{}, fmt.Errorf("openaicompat: build request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+p.cfg.APIKey)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return modelclient.Response{}, types.NewError(types.ErrProviderError, "openaicompat: request failed").WithCause(err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return modelclient.Response{}, types.NewError(types.ErrProviderError, "openaicompat: read response failed").WithCause(err)
	}

	if resp.StatusCode >= 400 {
		return modelclient.Response{}, mapHTTPError(resp.StatusCode, raw, p.Name())
	}

	var oa chatResponse
	if err := json.Unmarshal(raw, &oa); err != nil {
		return modelclient.Response{}, types.NewError(types.ErrBadResponse, "openaicompat: decode response failed").WithCause(err)
	}
	if len(oa.Choices) == 0 {
		return modelclient.Response{}, types.NewError(types.ErrBadResponse, "openaicompat: no choices in response")
	}

	return modelclient.Response{
		Text:         oa.Choices[0].Message.Content,
		Model:        oa.Model,
		FinishReason: oa.Choices[0].FinishReason,
		Usage: modelclient.Usage{
			PromptTokens:     oa.Usage.PromptTokens,
			CompletionTokens: oa.Usage.CompletionTokens,
			TotalTokens:      oa.Usage.TotalTokens,
		},
	}, nil
}

func mapHTTPError(status int, body []byte, provider string) error {
	msg := strings.TrimSpace(string(body))
	if len(msg) > 300 {
		msg = msg[:300]
	}
	switch {
	case status == http.StatusTooManyRequests:
		return types.NewError(types.ErrThrottled, fmt.Sprintf("%s: rate limited: %s", provider, msg))
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return types.NewError(types.ErrUnauthorized, fmt.Sprintf("%s: auth rejected: %s", provider, msg))
	case status >= 500:
		return types.NewError(types.ErrProviderError, fmt.Sprintf("%s: upstream %d: %s", provider, status, msg))
	default:
		return types.NewError(types.ErrBadResponse, fmt.Sprintf("%s: upstream %d: %s", provider, status, msg))
	}
}
