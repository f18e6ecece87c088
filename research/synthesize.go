package research

import (
	"context"
	"fmt"
	"strings"

	"github.com/agentmesh/engine/modelclient"
	"github.com/agentmesh/engine/types"
)

const synthesizeSystemPrompt = "You are a research assistant. Answer the user's query using only the numbered source summaries provided. Cite sources inline using their bracketed number, e.g. [2]. If the summaries do not fully answer the query, say so explicitly rather than guessing."

// synthesize produces the final cited answer from the per-source
// summaries collected by reduceAll.
func (r *Researcher) synthesize(ctx context.Context, requesterID, model string, temperature float64, query string, summaries []string) (string, error) {
	prompt := fmt.Sprintf("Query: %s\n\nSources:\n%s", query, strings.Join(summaries, "\n\n"))

	resp, err := r.client.Complete(ctx, requesterID, modelclient.Request{
		Model:       model,
		System:      synthesizeSystemPrompt,
		Purpose:     "research_synthesis",
		Temperature: temperature,
		MaxTokens:   1200,
		Messages: []modelclient.Message{
			{Role: types.RoleUser, Content: prompt},
		},
	})
	if err != nil {
		return "", err
	}
	return resp.Text, nil
}
