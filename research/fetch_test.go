package research_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/agentmesh/engine/cache"
	"github.com/agentmesh/engine/limiter"
	"github.com/agentmesh/engine/modelclient"
	"github.com/agentmesh/engine/modelclient/providers/mock"
	"github.com/agentmesh/engine/research"
)

func TestResearchDedupsDuplicateURLsAcrossSearchHits(t *testing.T) {
	var hits int
	page := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/robots.txt" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		hits++
		w.Write([]byte(`<html><body>content about the query, long enough to survive truncation checks here.</body></html>`))
	}))
	defer page.Close()

	search := &stubSearchProvider{results: []research.SearchResult{
		{Title: "A", URL: page.URL + "/article?utm_source=newsletter"},
		{Title: "A again", URL: page.URL + "/article?utm_source=twitter"},
	}}
	provider := mock.New()
	provider.Reply = "answer"

	coalescer := cache.NewCoalescer(cache.NewMemCache(0))
	client := modelclient.NewClient(provider, coalescer, limiter.NewGatePool(8, 4), limiter.NewTokenBucket(1e6, 1e6), nil)
	r := research.New(research.Config{
		Search:        search,
		Client:        client,
		Coalescer:     coalescer,
		Gates:         limiter.NewGatePool(8, 4),
		DomainBackoff: limiter.NewDomainBackoff(),
		DefaultModel:  "test-model",
	})

	result, err := r.Research(context.Background(), "requester-1", "query", 5, "")
	require.NoError(t, err)
	require.Equal(t, 1, hits)
	require.Equal(t, 1, result.PagesSynthesized)
}

func TestResearchSkipsPagesDisallowedByRobots(t *testing.T) {
	var fetchedArticle bool
	page := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/robots.txt":
			w.Write([]byte("User-agent: *\nDisallow: /private\n"))
		case "/private/page":
			fetchedArticle = true
			w.Write([]byte("<html><body>secret</body></html>"))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer page.Close()

	search := &stubSearchProvider{results: []research.SearchResult{
		{Title: "Blocked", URL: page.URL + "/private/page"},
	}}
	provider := mock.New()

	coalescer := cache.NewCoalescer(cache.NewMemCache(0))
	client := modelclient.NewClient(provider, coalescer, limiter.NewGatePool(8, 4), limiter.NewTokenBucket(1e6, 1e6), nil)
	r := research.New(research.Config{
		Search:        search,
		Client:        client,
		Coalescer:     coalescer,
		Gates:         limiter.NewGatePool(8, 4),
		DomainBackoff: limiter.NewDomainBackoff(),
		DefaultModel:  "test-model",
	})

	_, err := r.Research(context.Background(), "requester-1", "query", 5, "")
	require.Error(t, err)
	require.False(t, fetchedArticle)
}
