// Package engine is C12: the explicit wiring object the teacher's
// cmd/agentflow builds inline in main, pulled out into its own
// constructor so cmd/meshctl stays a thin flag-parsing shell. New
// builds every component named in SPEC_FULL.md §4 into one struct —
// no package-level globals, no init-time side effects — and Start/
// Shutdown drive the worker pool's lifecycle. The HTTP listeners are
// owned by cmd/meshctl.
package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/agentmesh/engine/agents"
	"github.com/agentmesh/engine/cache"
	"github.com/agentmesh/engine/config"
	"github.com/agentmesh/engine/limiter"
	"github.com/agentmesh/engine/memory"
	"github.com/agentmesh/engine/modelclient"
	"github.com/agentmesh/engine/modelclient/providers/anthropic"
	"github.com/agentmesh/engine/modelclient/providers/mock"
	"github.com/agentmesh/engine/modelclient/providers/openaicompat"
	"github.com/agentmesh/engine/orchestrator"
	"github.com/agentmesh/engine/queue"
	"github.com/agentmesh/engine/queue/memqueue"
	"github.com/agentmesh/engine/queue/redisqueue"
	"github.com/agentmesh/engine/research"
	"github.com/agentmesh/engine/research/searchhttp"
	"github.com/agentmesh/engine/store"
	"github.com/agentmesh/engine/store/memstore"
	"github.com/agentmesh/engine/store/postgres"
	"github.com/agentmesh/engine/store/sqlite"
	"github.com/agentmesh/engine/telemetry"
	"github.com/agentmesh/engine/types"
	"github.com/agentmesh/engine/webhook"
	"github.com/agentmesh/engine/webhook/mailhttp"
	"github.com/agentmesh/engine/worker"
)

// Engine holds every component the process needs, already wired to
// each other.
type Engine struct {
	Config *config.Config
	Logger *zap.Logger

	Store     store.Store
	Queue     queue.Queue
	Registry  *agents.Registry
	MemoryLog memory.Log

	Orchestrator *orchestrator.Orchestrator
	Runner       *agents.Runner
	Researcher   *research.Researcher
	Ingress      *webhook.Ingress
	WebhookHnd   *webhook.Handler
	Pool         *worker.Pool

	Metrics *telemetry.Collector
	Tracing *telemetry.TracerProvider

	redisClient *redis.Client
}

// New wires every component from cfg. It opens the configured store
// and (if configured) a shared Redis client, but does not start the
// worker pool or accept connections; call Start for that.
func New(cfg *config.Config, logger *zap.Logger) (*Engine, error) {
	st, err := openStore(cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("engine: open store: %w", err)
	}

	var redisClient *redis.Client
	var q queue.Queue
	var memCache cache.Cache
	var memLog memory.Log

	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:         cfg.Redis.Addr,
			Password:     cfg.Redis.Password,
			DB:           cfg.Redis.DB,
			PoolSize:     cfg.Redis.PoolSize,
			MinIdleConns: cfg.Redis.MinIdleConns,
		})

		redisQueue, err := redisqueue.New(redisqueue.Config{
			Addr:         cfg.Redis.Addr,
			Password:     cfg.Redis.Password,
			DB:           cfg.Redis.DB,
			PoolSize:     cfg.Redis.PoolSize,
			MinIdleConns: cfg.Redis.MinIdleConns,
		})
		if err != nil {
			return nil, fmt.Errorf("engine: open redis queue: %w", err)
		}
		q = redisQueue

		redisCache, err := cache.NewRedisCache(cache.RedisConfig{
			Addr:         cfg.Redis.Addr,
			Password:     cfg.Redis.Password,
			DB:           cfg.Redis.DB,
			PoolSize:     cfg.Redis.PoolSize,
			MinIdleConns: cfg.Redis.MinIdleConns,
		}, logger)
		if err != nil {
			return nil, fmt.Errorf("engine: open redis cache: %w", err)
		}
		memCache = redisCache
		memLog = memory.NewRedisLog(redisClient)
	} else {
		q = memqueue.New()
		memCache = cache.NewMemCache(time.Minute)
		memLog = memory.NewMemLog()
	}

	provider, err := buildModelProvider(cfg.LLM)
	if err != nil {
		return nil, err
	}

	coalescer := cache.NewCoalescer(memCache)
	gates := limiter.NewGatePool(cfg.Limiter.KGlobal, cfg.Limiter.KUser)
	bucket := limiter.NewTokenBucket(cfg.Limiter.BucketRefill, cfg.Limiter.BucketCapacity)
	domainBackoff := limiter.NewDomainBackoff()

	client := modelclient.NewClient(provider, coalescer, gates, bucket, logger)

	registry := buildRegistry(cfg.LLM)

	var searchProvider research.SearchProvider
	if cfg.Research.SearchAPIURL != "" || cfg.Research.SearchAPIKey != "" {
		searchProvider = searchhttp.New(searchhttp.Config{
			APIKey:  cfg.Research.SearchAPIKey,
			BaseURL: cfg.Research.SearchAPIURL,
		})
	}

	researcher := research.New(research.Config{
		Search:        searchProvider,
		Client:        client,
		Coalescer:     coalescer,
		Gates:         gates,
		DomainBackoff: domainBackoff,
		Resolver:      registry,
		Logger:        logger,
		DefaultModel:  cfg.LLM.DefaultModel,
	})

	runner := agents.NewRunner(agents.Config{
		Registry:   registry,
		Client:     client,
		MemoryLog:  memLog,
		Researcher: researcher,
		Store:      st,
		MaxDepth:   cfg.MaxDepth,
		Logger:     logger,
	})

	cancels := worker.NewCancelRegistry()

	orch := orchestrator.New(orchestrator.Config{
		Store:    st,
		Queue:    q,
		Registry: registry,
		Signaler: cancels,
		Logger:   logger,
	})

	secrets := make(map[types.Endpoint]string, len(cfg.Webhook.Secrets))
	for endpoint, secret := range cfg.Webhook.Secrets {
		secrets[types.Endpoint(endpoint)] = secret
	}
	ingress := webhook.New(webhook.Config{
		Secrets: secrets,
		Store:   st,
		Queue:   q,
		Logger:  logger,
	})

	var mailGateway webhook.MailGateway
	if cfg.Webhook.MailGatewayURL != "" {
		mailGateway = mailhttp.New(mailhttp.Config{
			APIKey:  cfg.Webhook.MailGatewayKey,
			BaseURL: cfg.Webhook.MailGatewayURL,
		})
	}
	webhookHandler := webhook.NewHandler(webhook.HandlerConfig{
		Mail:   mailGateway,
		Store:  st,
		Queue:  q,
		Logger: logger,
	})

	pool := worker.New(worker.Config{
		Queue:            q,
		Store:            st,
		Runner:           runner,
		Research:         researcher,
		Webhook:          webhookHandler,
		Cancels:          cancels,
		PoolSize:         cfg.Worker.PoolSize,
		ClaimTimeout:     cfg.Worker.ClaimTimeout,
		LeaseTTL:         cfg.Worker.LeaseTTL,
		HeartbeatFrac:    cfg.Worker.HeartbeatFrac,
		AgentDeadline:    cfg.Timeouts.Agent,
		ResearchDeadline: cfg.Timeouts.Research,
		Logger:           logger,
	})

	metrics := telemetry.NewCollector()
	tracing, err := telemetry.InitTracing(cfg.Telemetry, logger)
	if err != nil {
		return nil, fmt.Errorf("engine: init tracing: %w", err)
	}

	return &Engine{
		Config:       cfg,
		Logger:       logger,
		Store:        st,
		Queue:        q,
		Registry:     registry,
		MemoryLog:    memLog,
		Orchestrator: orch,
		Runner:       runner,
		Researcher:   researcher,
		Ingress:      ingress,
		WebhookHnd:   webhookHandler,
		Pool:         pool,
		Metrics:      metrics,
		Tracing:      tracing,
		redisClient:  redisClient,
	}, nil
}

// Start launches the worker pool's claimer goroutines. The HTTP and
// metrics listeners are started by cmd/meshctl, which owns the
// net/http.Server lifecycle around api.NewRouter.
func (e *Engine) Start(ctx context.Context) {
	e.Pool.Start(ctx)
}

// Shutdown drains the worker pool, flushes tracing, closes the Redis
// client if one was opened, and closes the store last, in that order
// so no in-flight task loses its store connection mid-write.
func (e *Engine) Shutdown(ctx context.Context) error {
	if err := e.Pool.Shutdown(ctx); err != nil {
		e.Logger.Warn("worker pool shutdown did not complete cleanly", zap.Error(err))
	}
	if err := e.Tracing.Shutdown(ctx); err != nil {
		e.Logger.Warn("tracing shutdown failed", zap.Error(err))
	}
	if e.redisClient != nil {
		if err := e.redisClient.Close(); err != nil {
			e.Logger.Warn("redis client close failed", zap.Error(err))
		}
	}
	return e.Store.Close()
}

func openStore(cfg config.DatabaseConfig) (store.Store, error) {
	switch cfg.Driver {
	case "memory":
		return memstore.New(), nil
	case "postgres", "mysql":
		return postgres.Open(cfg.DSN)
	case "sqlite":
		return sqlite.Open(cfg.DSN)
	default:
		return nil, fmt.Errorf("engine: unknown database driver %q", cfg.Driver)
	}
}

func buildModelProvider(cfg config.LLMConfig) (modelclient.Provider, error) {
	switch cfg.Provider {
	case "mock":
		return mock.New(), nil
	case "anthropic":
		return anthropic.New(anthropic.Config{
			APIKey:       cfg.APIKey,
			BaseURL:      cfg.ProviderBaseURL,
			DefaultModel: cfg.DefaultModel,
		}), nil
	case "openaicompat":
		return openaicompat.New(openaicompat.Config{
			ProviderName: "openaicompat",
			APIKey:       cfg.APIKey,
			BaseURL:      cfg.ProviderBaseURL,
		}), nil
	default:
		return nil, fmt.Errorf("engine: unknown llm provider %q", cfg.Provider)
	}
}

// buildRegistry builds the closed eight-agent table and applies any
// per-agent model id overrides from config.LLM.ModelIDs.
func buildRegistry(cfg config.LLMConfig) *agents.Registry {
	base := agents.NewDefaultRegistry(cfg.DefaultModel)
	if len(cfg.ModelIDs) == 0 {
		return base
	}
	records := base.All()
	for i := range records {
		if model, ok := cfg.ModelIDs[records[i].ID]; ok {
			records[i].ModelID = model
		}
	}
	return agents.NewRegistry(records...)
}
