package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/agentmesh/engine/types"
)

// Loader builds a Config from defaults, an optional YAML file, and
// environment variable overrides, in that priority order, the same
// layering the teacher's config.Loader uses.
type Loader struct {
	configPath string
	envPrefix  string
}

// NewLoader returns a Loader with the engine's env prefix.
func NewLoader() *Loader {
	return &Loader{envPrefix: "AGENTMESH"}
}

// WithConfigPath sets the YAML file to layer over the defaults.
func (l *Loader) WithConfigPath(path string) *Loader {
	l.configPath = path
	return l
}

// Load runs the three-stage layering and validates the result.
func (l *Loader) Load() (*Config, error) {
	cfg := DefaultConfig()

	if l.configPath != "" {
		data, err := os.ReadFile(l.configPath)
		if err != nil {
			return nil, fmt.Errorf("config: read %s: %w", l.configPath, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("config: parse %s: %w", l.configPath, err)
		}
	}

	applyScalarEnvOverrides(l.envPrefix, cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyScalarEnvOverrides checks a small, explicit set of the most
// commonly deployment-varied scalars against PREFIX_SECTION_FIELD
// environment variables. It is not a struct-tag-driven reflective
// walk (the teacher's approach): only the fields listed below can be
// overridden from the environment; every other field comes from the
// defaults or the YAML file.
func applyScalarEnvOverrides(prefix string, cfg *Config) {
	if v, ok := os.LookupEnv(envKey(prefix, "DATABASE", "DRIVER")); ok {
		cfg.Database.Driver = v
	}
	if v, ok := os.LookupEnv(envKey(prefix, "DATABASE", "DSN")); ok {
		cfg.Database.DSN = v
	}
	if v, ok := os.LookupEnv(envKey(prefix, "LLM", "API_KEY")); ok {
		cfg.LLM.APIKey = v
	}
	if v, ok := os.LookupEnv(envKey(prefix, "LLM", "PROVIDER_BASE_URL")); ok {
		cfg.LLM.ProviderBaseURL = v
	}
	if v, ok := os.LookupEnv(envKey(prefix, "LLM", "PROVIDER")); ok {
		cfg.LLM.Provider = v
	}
	if v, ok := os.LookupEnv(envKey(prefix, "SECURITY", "INTERNAL_BEARER_KEY")); ok {
		cfg.Security.InternalBearerKey = v
	}
	if v, ok := os.LookupEnv(envKey(prefix, "REDIS", "ADDR")); ok {
		cfg.Redis.Addr = v
	}
	if v, ok := os.LookupEnv(envKey(prefix, "SERVER", "HTTP_PORT")); ok {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Server.HTTPPort = n
		}
	}
	if v, ok := os.LookupEnv(envKey(prefix, "LOG", "LEVEL")); ok {
		cfg.Log.Level = v
	}
}

func envKey(prefix, section, field string) string {
	parts := []string{prefix}
	if section != "" {
		parts = append(parts, section)
	}
	if field != "" {
		parts = append(parts, field)
	}
	return strings.ToUpper(strings.Join(parts, "_"))
}

// Validate checks the invariants the rest of the engine assumes hold
// once wired: a known database driver, a known LLM provider, and a
// positive MaxDepth.
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case "memory", "postgres", "mysql", "sqlite":
	default:
		return types.NewError(types.ErrBadRequest, "config: unknown database driver "+c.Database.Driver)
	}
	switch c.LLM.Provider {
	case "mock", "anthropic", "openaicompat":
	default:
		return types.NewError(types.ErrBadRequest, "config: unknown llm provider "+c.LLM.Provider)
	}
	if c.MaxDepth <= 0 {
		return types.NewError(types.ErrBadRequest, "config: max_depth must be positive")
	}
	if c.Database.Driver != "memory" && c.Database.DSN == "" {
		return types.NewError(types.ErrBadRequest, "config: database.dsn is required for driver "+c.Database.Driver)
	}
	return nil
}
