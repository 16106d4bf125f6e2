package entropyd

import (
	"entropyd/internal/app/config"
	"entropyd/internal/ports"
)

// Config re-exports the root configuration struct so embedders can
// construct or modify it programmatically.
type Config = config.Config

type (
	// SourceConfig holds the entropy device details.
	SourceConfig = config.SourceConfig
	// FeedConfig configures the pool target and watermark.
	FeedConfig = config.FeedConfig
	// TestsConfig holds the health-test opt-out.
	TestsConfig = config.TestsConfig
	// MetricsConfig configures the metrics HTTP server.
	MetricsConfig = config.MetricsConfig
	// SeedConfig configures seed persistence.
	SeedConfig = config.SeedConfig
	// Policy controls queue thresholds, retries, and backoff.
	Policy = ports.Policy
)

// LoadConfig loads and validates YAML from disk using the internal
// config reader.
func LoadConfig(path string) (*Config, error) {
	return config.Load(path)
}

// ReadConfig parses YAML and applies defaults without validating, for
// callers that merge further settings (CLI flags) before Validate.
func ReadConfig(path string) (*Config, error) {
	return config.Read(path)
}

// DefaultConfig returns a config with defaults applied and no source
// path set.
func DefaultConfig() *Config {
	return config.Default()
}
