package config

import (
	"time"

	"github.com/agentmesh/engine/agents"
	"github.com/agentmesh/engine/limiter"
	"github.com/agentmesh/engine/modelclient"
	"github.com/agentmesh/engine/orchestrator"
	"github.com/agentmesh/engine/research"
	"github.com/agentmesh/engine/webhook"
	"github.com/agentmesh/engine/worker"
)

// DefaultConfig returns the engine's defaults, matching the constants
// documented across spec.md's individual components. A loaded YAML
// file or environment variable only needs to name what it overrides.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			HTTPPort:        8080,
			MetricsPort:     9090,
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    15 * time.Second,
			ShutdownTimeout: 30 * time.Second,
		},
		Worker: WorkerConfig{
			PoolSize:      worker.DefaultPoolSize,
			ClaimTimeout:  worker.DefaultClaimTimeout,
			LeaseTTL:      worker.DefaultLeaseTTL,
			HeartbeatFrac: 3,
		},
		LLM: LLMConfig{
			Provider: "mock",
		},
		Database: DatabaseConfig{
			Driver: "memory",
		},
		Redis: RedisConfig{
			Addr:         "localhost:6379",
			PoolSize:     10,
			MinIdleConns: 2,
		},
		Limiter: LimiterConfig{
			KGlobal:        limiter.DefaultKGlobal,
			KUser:          limiter.DefaultKUser,
			BucketCapacity: limiter.DefaultBucketCapacity,
			BucketRefill:   limiter.DefaultBucketRefill,
		},
		Research: ResearchConfig{
			MaxSources:     research.DefaultMaxSources,
			PerSourceChars: research.MaxSourceChars,
		},
		Timeouts: TimeoutConfig{
			Agent:      orchestrator.DefaultAgentTaskDeadline,
			Research:   orchestrator.DefaultResearchTaskDeadline,
			WebhookAck: webhook.AckDeadline,
		},
		CacheTTL: CacheTTLConfig{
			Model:    modelclient.ModelCacheTTL,
			Page:     research.PageSummaryCacheTTL,
			Research: research.SearchCacheTTL,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
		Telemetry: TelemetryConfig{
			Enabled:     false,
			ServiceName: "agentmesh-engine",
			SampleRate:  0.1,
		},
		API: APIConfig{
			RateLimitRPS:   20,
			RateLimitBurst: 40,
		},
		MaxDepth: agents.DefaultMaxDepth,
	}
}
