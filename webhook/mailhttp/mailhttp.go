// Package mailhttp is a minimal net/http JSON client implementing
// webhook.MailGateway against a generic REST mail provider, the same
// shape research/searchhttp uses to talk to a vendor HTTP API without
// pulling in a dedicated SDK.
package mailhttp

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/agentmesh/engine/types"
	"github.com/agentmesh/engine/webhook"
)

// Config configures one mail provider endpoint.
type Config struct {
	APIKey  string
	BaseURL string
	Timeout time.Duration
}

// Gateway implements webhook.MailGateway.
type Gateway struct {
	cfg    Config
	client *http.Client
}

func New(cfg Config) *Gateway {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	return &Gateway{cfg: cfg, client: &http.Client{Timeout: timeout}}
}

type messageEnvelope struct {
	From    string `json:"from"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

// FetchMessage retrieves the full message the provider assigned
// providerID, the thin pointer an inbound mail webhook payload carries.
func (g *Gateway) FetchMessage(ctx context.Context, providerID string) (webhook.MailMessage, error) {
	url := fmt.Sprintf("%s/messages/%s", strings.TrimSuffix(g.cfg.BaseURL, "/"), providerID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return webhook.MailMessage{}, fmt.Errorf("mailhttp: build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+g.cfg.APIKey)

	resp, err := g.client.Do(req)
	if err != nil {
		return webhook.MailMessage{}, types.NewError(types.ErrProviderError, "mailhttp: request failed").WithCause(err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return webhook.MailMessage{}, types.NewError(types.ErrProviderError, "mailhttp: read response failed").WithCause(err)
	}

	if resp.StatusCode >= 400 {
		return webhook.MailMessage{}, mapHTTPError(resp.StatusCode, raw)
	}

	var envelope messageEnvelope
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return webhook.MailMessage{}, types.NewError(types.ErrBadResponse, "mailhttp: decode response failed").WithCause(err)
	}

	return webhook.MailMessage{
		ProviderID: providerID,
		From:       envelope.From,
		Subject:    envelope.Subject,
		Body:       envelope.Body,
	}, nil
}

func mapHTTPError(status int, body []byte) error {
	msg := strings.TrimSpace(string(body))
	if len(msg) > 300 {
		msg = msg[:300]
	}
	switch {
	case status == http.StatusTooManyRequests:
		return types.NewError(types.ErrThrottled, fmt.Sprintf("mailhttp: rate limited: %s", msg))
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return types.NewError(types.ErrUnauthorized, fmt.Sprintf("mailhttp: auth rejected: %s", msg))
	case status == http.StatusNotFound:
		return types.NewError(types.ErrNotFound, fmt.Sprintf("mailhttp: message not found: %s", msg))
	case status >= 500:
		return types.NewError(types.ErrProviderError, fmt.Sprintf("mailhttp: upstream %d: %s", status, msg))
	default:
		return types.NewError(types.ErrBadResponse, fmt.Sprintf("mailhttp: upstream %d: %s", status, msg))
	}
}

var _ webhook.MailGateway = (*Gateway)(nil)
