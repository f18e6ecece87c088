package research

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/agentmesh/engine/cache"
)

func searchCacheKey(query string, maxResults int) string {
	sum := sha256.Sum256([]byte(fmt.Sprintf("%s\x00%d", query, maxResults)))
	return hex.EncodeToString(sum[:])
}

// runSearch calls the SearchProvider, caching the top maxResults hits
// for (query, maxResults) for SearchCacheTTL.
func (r *Researcher) runSearch(ctx context.Context, query string, maxResults int) ([]SearchResult, error) {
	key := searchCacheKey(query, maxResults)

	raw, err := r.coalescer.GetOrLoad(ctx, cache.PurposeResearch, key, SearchCacheTTL, func(ctx context.Context) ([]byte, error) {
		hits, err := r.search.Search(ctx, query, maxResults)
		if err != nil {
			return nil, err
		}
		return json.Marshal(hits)
	})
	if err != nil {
		return nil, err
	}

	var hits []SearchResult
	if err := json.Unmarshal(raw, &hits); err != nil {
		return nil, fmt.Errorf("research: corrupt cached search results: %w", err)
	}
	return hits, nil
}
