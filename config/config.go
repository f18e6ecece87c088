package config

import "time"

// Config is the complete process-wide configuration surface from spec
// §6, grouped the way the teacher's config.Config groups Server/
// Database/Redis/LLM/Log/Telemetry.
type Config struct {
	Server    ServerConfig    `yaml:"server" env:"SERVER"`
	Worker    WorkerConfig    `yaml:"worker" env:"WORKER"`
	LLM       LLMConfig       `yaml:"llm" env:"LLM"`
	Webhook   WebhookConfig   `yaml:"webhook" env:"WEBHOOK"`
	Security  SecurityConfig  `yaml:"security" env:"SECURITY"`
	Database  DatabaseConfig  `yaml:"database" env:"DATABASE"`
	Redis     RedisConfig     `yaml:"redis" env:"REDIS"`
	Limiter   LimiterConfig   `yaml:"limiter" env:"LIMITER"`
	Research  ResearchConfig  `yaml:"research" env:"RESEARCH"`
	Timeouts  TimeoutConfig   `yaml:"timeouts" env:"TIMEOUTS"`
	CacheTTL  CacheTTLConfig  `yaml:"cache_ttls" env:"CACHE_TTLS"`
	Log       LogConfig       `yaml:"log" env:"LOG"`
	Telemetry TelemetryConfig `yaml:"telemetry" env:"TELEMETRY"`
	API       APIConfig       `yaml:"api" env:"API"`
	MaxDepth  int             `yaml:"max_depth" env:"MAX_DEPTH"`
}

// ServerConfig configures the HTTP listener and its own graceful
// shutdown window.
type ServerConfig struct {
	HTTPPort        int           `yaml:"http_port" env:"HTTP_PORT"`
	MetricsPort     int           `yaml:"metrics_port" env:"METRICS_PORT"`
	ReadTimeout     time.Duration `yaml:"read_timeout" env:"READ_TIMEOUT"`
	WriteTimeout    time.Duration `yaml:"write_timeout" env:"WRITE_TIMEOUT"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env:"SHUTDOWN_TIMEOUT"`
}

// WorkerConfig sizes the worker pool (C11).
type WorkerConfig struct {
	PoolSize      int           `yaml:"pool_size" env:"POOL_SIZE"`
	ClaimTimeout  time.Duration `yaml:"claim_timeout" env:"CLAIM_TIMEOUT"`
	LeaseTTL      time.Duration `yaml:"lease_ttl" env:"LEASE_TTL"`
	HeartbeatFrac int           `yaml:"heartbeat_frac" env:"HEARTBEAT_FRAC"`
}

// LLMConfig is the abstract ModelProvider's connection details plus the
// per-agent model id map from spec §6.
type LLMConfig struct {
	Provider     string            `yaml:"provider" env:"PROVIDER"` // "mock", "anthropic" or "openaicompat"
	ProviderBaseURL string         `yaml:"provider_base_url" env:"PROVIDER_BASE_URL"`
	APIKey       string            `yaml:"api_key" env:"API_KEY"`
	DefaultModel string            `yaml:"default_model" env:"DEFAULT_MODEL"`
	ModelIDs     map[string]string `yaml:"model_ids" env:"MODEL_IDS"`
}

// WebhookConfig carries the per-endpoint HMAC secrets verified by C2,
// plus the outbound mail provider the mail endpoint's follow-up
// handler fetches full messages from.
type WebhookConfig struct {
	Secrets        map[string]string `yaml:"secrets" env:"SECRETS"`
	MailGatewayURL string            `yaml:"mail_gateway_url" env:"MAIL_GATEWAY_URL"`
	MailGatewayKey string            `yaml:"mail_gateway_key" env:"MAIL_GATEWAY_KEY"`
}

// SecurityConfig configures the internal bearer issuer (C2).
type SecurityConfig struct {
	InternalBearerKey string `yaml:"internal_bearer_key" env:"INTERNAL_BEARER_KEY"`
}

// DatabaseConfig selects and connects the Store backend.
type DatabaseConfig struct {
	Driver string `yaml:"driver" env:"DRIVER"` // "postgres", "mysql", "sqlite", "memory"
	DSN    string `yaml:"dsn" env:"DSN"`
}

// RedisConfig backs both the Cache and Queue when configured.
type RedisConfig struct {
	Addr         string `yaml:"addr" env:"ADDR"`
	Password     string `yaml:"password" env:"PASSWORD"`
	DB           int    `yaml:"db" env:"DB"`
	PoolSize     int    `yaml:"pool_size" env:"POOL_SIZE"`
	MinIdleConns int    `yaml:"min_idle_conns" env:"MIN_IDLE_CONNS"`
}

// LimiterConfig is C4's global/per-requester/token-bucket knobs.
type LimiterConfig struct {
	KGlobal        int     `yaml:"k_global" env:"K_GLOBAL"`
	KUser          int     `yaml:"k_user" env:"K_USER"`
	BucketCapacity int     `yaml:"bucket_capacity" env:"BUCKET_CAPACITY"`
	BucketRefill   float64 `yaml:"bucket_refill" env:"BUCKET_REFILL"`
}

// ResearchConfig is C7's defaults.
type ResearchConfig struct {
	MaxSources      int    `yaml:"max_sources" env:"MAX_SOURCES"`
	PerSourceChars  int    `yaml:"per_source_char_cap" env:"PER_SOURCE_CHAR_CAP"`
	SearchAPIURL    string `yaml:"search_api_url" env:"SEARCH_API_URL"`
	SearchAPIKey    string `yaml:"search_api_key" env:"SEARCH_API_KEY"`
}

// TimeoutConfig holds the per-submit deadlines from spec §5.
type TimeoutConfig struct {
	Agent      time.Duration `yaml:"agent" env:"AGENT"`
	Research   time.Duration `yaml:"research" env:"RESEARCH"`
	WebhookAck time.Duration `yaml:"webhook_ack" env:"WEBHOOK_ACK"`
}

// CacheTTLConfig holds the per-purpose TTL defaults from spec §3.
type CacheTTLConfig struct {
	Model    time.Duration `yaml:"model" env:"MODEL"`
	Page     time.Duration `yaml:"page" env:"PAGE"`
	Research time.Duration `yaml:"research" env:"RESEARCH"`
}

// LogConfig mirrors the teacher's config.LogConfig shape exactly.
type LogConfig struct {
	Level            string   `yaml:"level" env:"LEVEL"`
	Format           string   `yaml:"format" env:"FORMAT"`
	OutputPaths      []string `yaml:"output_paths" env:"OUTPUT_PATHS"`
	EnableCaller     bool     `yaml:"enable_caller" env:"ENABLE_CALLER"`
	EnableStacktrace bool     `yaml:"enable_stacktrace" env:"ENABLE_STACKTRACE"`
}

// TelemetryConfig mirrors the teacher's config.TelemetryConfig shape.
type TelemetryConfig struct {
	Enabled      bool    `yaml:"enabled" env:"ENABLED"`
	OTLPEndpoint string  `yaml:"otlp_endpoint" env:"OTLP_ENDPOINT"`
	ServiceName  string  `yaml:"service_name" env:"SERVICE_NAME"`
	SampleRate   float64 `yaml:"sample_rate" env:"SAMPLE_RATE"`
}

// APIConfig configures the HTTP middleware chain in package api.
type APIConfig struct {
	Keys            []string `yaml:"keys" env:"KEYS"`
	RateLimitRPS    float64  `yaml:"rate_limit_rps" env:"RATE_LIMIT_RPS"`
	RateLimitBurst  int      `yaml:"rate_limit_burst" env:"RATE_LIMIT_BURST"`
	AllowedOrigins  []string `yaml:"allowed_origins" env:"ALLOWED_ORIGINS"`
}
