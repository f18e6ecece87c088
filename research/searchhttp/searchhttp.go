// Package searchhttp is a minimal net/http JSON client implementing
// research.SearchProvider against a Brave-Search-shaped web search API,
// mirroring how modelclient/providers/openaicompat talks to a vendor
// HTTP API without pulling in a dedicated SDK.
package searchhttp

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/agentmesh/engine/research"
	"github.com/agentmesh/engine/types"
)

// Config configures one search API endpoint.
type Config struct {
	APIKey  string
	BaseURL string
	Timeout time.Duration
}

// Provider implements research.SearchProvider.
type Provider struct {
	cfg    Config
	client *http.Client
}

func New(cfg Config) *Provider {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.search.brave.com/res/v1/web/search"
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	return &Provider{cfg: cfg, client: &http.Client{Timeout: timeout}}
}

type searchResponseEnvelope struct {
	Web struct {
		Results []struct {
			Title       string `json:"title"`
			URL         string `json:"url"`
			Description string `json:"description"`
		} `json:"results"`
	} `json:"web"`
}

func (p *Provider) Search(ctx context.Context, query string, maxResults int) ([]research.SearchResult, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.cfg.BaseURL, nil)
	if err != nil {
		return nil, fmt.Errorf("searchhttp: build request: %w", err)
	}
	q := req.URL.Query()
	q.Set("q", query)
	q.Set("count", strconv.Itoa(maxResults))
	req.URL.RawQuery = q.Encode()
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Subscription-Token", p.cfg.APIKey)

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, types.NewError(types.ErrProviderError, "searchhttp: request failed").WithCause(err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, types.NewError(types.ErrProviderError, "searchhttp: read response failed").WithCause(err)
	}

	if resp.StatusCode >= 400 {
		return nil, mapHTTPError(resp.StatusCode, raw)
	}

	var envelope searchResponseEnvelope
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return nil, types.NewError(types.ErrBadResponse, "searchhttp: decode response failed").WithCause(err)
	}

	results := make([]research.SearchResult, 0, len(envelope.Web.Results))
	for _, r := range envelope.Web.Results {
		if len(results) >= maxResults {
			break
		}
		results = append(results, research.SearchResult{
			Title:   r.Title,
			Snippet: r.Description,
			URL:     r.URL,
		})
	}
	return results, nil
}

func mapHTTPError(status int, body []byte) error {
	msg := strings.TrimSpace(string(body))
	if len(msg) > 300 {
		msg = msg[:300]
	}
	switch {
	case status == http.StatusTooManyRequests:
		return types.NewError(types.ErrThrottled, fmt.Sprintf("searchhttp: rate limited: %s", msg))
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return types.NewError(types.ErrUnauthorized, fmt.Sprintf("searchhttp: auth rejected: %s", msg))
	case status >= 500:
		return types.NewError(types.ErrProviderError, fmt.Sprintf("searchhttp: upstream %d: %s", status, msg))
	default:
		return types.NewError(types.ErrBadResponse, fmt.Sprintf("searchhttp: upstream %d: %s", status, msg))
	}
}

var _ research.SearchProvider = (*Provider)(nil)
