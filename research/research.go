// Package research implements the search -> fetch -> reduce ->
// synthesize pipeline behind the Researcher public operation: given a
// free-text query it returns a cited answer assembled from a handful
// of independently fetched and summarized web pages.
package research

import (
	"context"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/agentmesh/engine/cache"
	"github.com/agentmesh/engine/limiter"
	"github.com/agentmesh/engine/modelclient"
	"github.com/agentmesh/engine/types"
)

// DefaultMaxSources is M when the caller does not specify one.
const DefaultMaxSources = 5

// MaxSourceChars is the per-source character cap applied before
// summarization, matching the spec's default.
const MaxSourceChars = 8000

// FetchTimeout bounds a single page fetch.
const FetchTimeout = 15 * time.Second

// SearchCacheTTL is how long a (query, M) search result set is cached.
const SearchCacheTTL = 6 * time.Hour

// PageSummaryCacheTTL is how long a per-page summary is cached, keyed
// by the fetched content's hash so an unchanged page is never
// re-summarized.
const PageSummaryCacheTTL = 24 * time.Hour

// Source is one entry in the answer's citation list.
type Source struct {
	Index int    `json:"index"`
	URL   string `json:"url"`
	Title string `json:"title"`
}

// Result is the Researcher's public output.
type Result struct {
	Answer           string   `json:"answer"`
	Sources          []Source `json:"sources"`
	ModelUsed        string   `json:"model_used"`
	PagesSynthesized int      `json:"pages_synthesized"`
}

// SearchResult is one hit from a SearchProvider.
type SearchResult struct {
	Title   string
	Snippet string
	URL     string
}

// SearchProvider abstracts the general-purpose search backend.
type SearchProvider interface {
	Search(ctx context.Context, query string, maxResults int) ([]SearchResult, error)
}

// AgentResolver resolves a preferred-agent id to the model and
// temperature the synthesis step should use. Defined at the point of
// use, the way memory.Summarizer is, so research never imports agents.
type AgentResolver interface {
	ModelFor(agentID string) (model string, temperature float64, ok bool)
}

type fetchedPage struct {
	source  SearchResult
	text    string
	fetched bool
}

// Researcher wires the pipeline stages together.
type Researcher struct {
	search        SearchProvider
	client        *modelclient.Client
	coalescer     *cache.Coalescer
	gates         *limiter.GatePool
	domainBackoff *limiter.DomainBackoff
	resolver      AgentResolver
	httpClient    *http.Client
	logger        *zap.Logger
	defaultModel  string
}

// Config carries Researcher's dependencies.
type Config struct {
	Search        SearchProvider
	Client        *modelclient.Client
	Coalescer     *cache.Coalescer
	Gates         *limiter.GatePool
	DomainBackoff *limiter.DomainBackoff
	Resolver      AgentResolver
	HTTPClient    *http.Client
	Logger        *zap.Logger
	DefaultModel  string
}

func New(cfg Config) *Researcher {
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: FetchTimeout}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Researcher{
		search:        cfg.Search,
		client:        cfg.Client,
		coalescer:     cfg.Coalescer,
		gates:         cfg.Gates,
		domainBackoff: cfg.DomainBackoff,
		resolver:      cfg.Resolver,
		httpClient:    httpClient,
		logger:        logger.With(zap.String("component", "research")),
		defaultModel:  cfg.DefaultModel,
	}
}

// Research runs the full pipeline. preferredAgent, if non-empty and
// resolvable, picks the model/temperature used for the synthesis call.
func (r *Researcher) Research(ctx context.Context, requesterID, query string, maxSources int, preferredAgent string) (Result, error) {
	if maxSources <= 0 {
		maxSources = DefaultMaxSources
	}

	hits, err := r.runSearch(ctx, query, maxSources)
	if err != nil {
		return Result{}, err
	}

	pages := r.fetchAll(ctx, requesterID, hits)

	model, temperature := r.defaultModel, 0.3
	if preferredAgent != "" && r.resolver != nil {
		if m, t, ok := r.resolver.ModelFor(preferredAgent); ok {
			model, temperature = m, t
		}
	}

	summaries, sources, err := r.reduceAll(ctx, requesterID, model, query, pages)
	if err != nil {
		return Result{}, err
	}
	if len(summaries) == 0 {
		return Result{}, types.NewError(types.ErrNoSources, "research: no source could be fetched and summarized")
	}

	answer, err := r.synthesize(ctx, requesterID, model, temperature, query, summaries)
	if err != nil {
		return Result{}, err
	}

	return Result{
		Answer:           answer,
		Sources:          sources,
		ModelUsed:        model,
		PagesSynthesized: len(summaries),
	}, nil
}
