// Package config is the process-wide configuration surface described
// in spec §6: one Config struct loaded once at startup from defaults,
// an optional YAML file, and environment variable overrides, in that
// priority order, the same layering the teacher's config.Loader uses.
package config
