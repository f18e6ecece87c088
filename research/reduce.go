package research

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/url"
	"strings"

	readability "github.com/go-shiori/go-readability"
	"go.uber.org/zap"

	"github.com/agentmesh/engine/cache"
	"github.com/agentmesh/engine/modelclient"
	"github.com/agentmesh/engine/types"
)

const summarizePrompt = "Summarize the following page content in 3 to 6 sentences, focused on facts relevant to answering the user's research query. Do not editorialize.\n\nQuery: %s\n\nPage content:\n%s"

// reduceAll extracts the main article text from each fetched page
// (falling back to the raw page body when extraction fails), truncates
// it to MaxSourceChars, and summarizes it with the model client,
// caching each summary by content hash. A page whose text is empty or
// whose summarization fails is dropped rather than failing the batch.
func (r *Researcher) reduceAll(ctx context.Context, requesterID, model, query string, pages []fetchedPage) ([]string, []Source, error) {
	summaries := make([]string, 0, len(pages))
	sources := make([]Source, 0, len(pages))

	for _, page := range pages {
		text := extractArticleText(page)
		text = truncate(text, MaxSourceChars)
		if strings.TrimSpace(text) == "" {
			continue
		}

		summary, err := r.summarizePage(ctx, requesterID, model, query, text)
		if err != nil {
			r.logger.Debug("research: summarization failed, dropping source", zap.Error(err))
			continue
		}

		idx := len(sources) + 1
		sources = append(sources, Source{Index: idx, URL: page.source.URL, Title: page.source.Title})
		summaries = append(summaries, fmt.Sprintf("[%d] %s", idx, summary))
	}

	return summaries, sources, nil
}

func extractArticleText(page fetchedPage) string {
	base, err := url.Parse(page.source.URL)
	if err != nil {
		return page.text
	}
	article, err := readability.FromReader(strings.NewReader(page.text), base)
	if err != nil || strings.TrimSpace(article.TextContent) == "" {
		return page.text
	}
	return article.TextContent
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max]
}

func (r *Researcher) summarizePage(ctx context.Context, requesterID, model, query, text string) (string, error) {
	sum := sha256.Sum256([]byte(text))
	key := hex.EncodeToString(sum[:])

	raw, err := r.coalescer.GetOrLoad(ctx, cache.PurposePage, key, PageSummaryCacheTTL, func(ctx context.Context) ([]byte, error) {
		resp, err := r.client.Complete(ctx, requesterID, modelclient.Request{
			Model:   model,
			Purpose: "research_page_summary",
			Messages: []modelclient.Message{
				{Role: types.RoleUser, Content: fmt.Sprintf(summarizePrompt, query, text)},
			},
			Temperature: 0.2,
			MaxTokens:   400,
		})
		if err != nil {
			return nil, err
		}
		return []byte(resp.Text), nil
	})
	if err != nil {
		return "", err
	}
	return string(raw), nil
}
