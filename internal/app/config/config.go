package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"entropyd/internal/fips"
	"entropyd/internal/ports"
)

type Config struct {
	Source  SourceConfig  `yaml:"source"`
	Feed    FeedConfig    `yaml:"feed"`
	Policy  ports.Policy  `yaml:"policy"`
	Tests   TestsConfig   `yaml:"tests"`
	Metrics MetricsConfig `yaml:"metrics"`
	Seed    SeedConfig    `yaml:"seed"`

	Foreground bool   `yaml:"foreground"`
	RunAs      string `yaml:"run_as"`
}

type SourceConfig struct {
	Path        string        `yaml:"path"`
	Fallback    string        `yaml:"fallback"`
	BlockSize   int           `yaml:"block_size"`
	ReadTimeout time.Duration `yaml:"read_timeout"`

	// BitsPerByte is the entropy credit claimed per fed byte for the
	// primary source; FallbackBitsPerByte covers the fallback. The
	// conservative default for a fallback is zero credit.
	BitsPerByte         int `yaml:"bits_per_byte"`
	FallbackBitsPerByte int `yaml:"fallback_bits_per_byte"`
}

type FeedConfig struct {
	Device        string `yaml:"device"`
	WatermarkBits int    `yaml:"watermark_bits"`
}

type TestsConfig struct {
	// Disabled skips the health-test battery entirely. This is an
	// explicit opt-out and is logged at startup.
	Disabled bool `yaml:"disabled"`
}

type MetricsConfig struct {
	Addr string `yaml:"addr"`
}

type SeedConfig struct {
	File string `yaml:"file"`
}

func Load(path string) (*Config, error) {
	cfg, err := Read(path)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Read parses the file and applies defaults without validating, so CLI
// flags can still fill in required fields afterwards.
func Read(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return nil, err
	}

	cfg.ApplyDefaults()
	return &cfg, nil
}

// Default returns a config with every default applied and no source
// path; callers (CLI flags, embedding) fill in the rest.
func Default() *Config {
	var cfg Config
	cfg.ApplyDefaults()
	return &cfg
}

func (c *Config) ApplyDefaults() {
	if c.Source.BlockSize == 0 {
		c.Source.BlockSize = fips.BlockBytes
	}
	if c.Source.BitsPerByte == 0 {
		c.Source.BitsPerByte = 8
	}
	if c.Feed.Device == "" {
		c.Feed.Device = "/dev/random"
	}
	if c.Feed.WatermarkBits == 0 {
		c.Feed.WatermarkBits = 2048
	}
	if c.Policy.MaxQueueLen == 0 {
		c.Policy.MaxQueueLen = 16
	}
	if c.Policy.IdleSleep == 0 {
		c.Policy.IdleSleep = 5 * time.Millisecond
	}
	if c.Policy.OnQueueFull == "" {
		c.Policy.OnQueueFull = "block"
	}
	if c.Policy.ReadRetries == 0 {
		c.Policy.ReadRetries = 3
	}
	if c.Policy.RetryBackoff == 0 {
		c.Policy.RetryBackoff = 100 * time.Millisecond
	}
	if c.Policy.MaxConsecutiveFailures == 0 {
		c.Policy.MaxConsecutiveFailures = 3
	}
	if c.Policy.FeedBackoff == 0 {
		c.Policy.FeedBackoff = time.Second
	}
	if c.Policy.GracePeriod == 0 {
		c.Policy.GracePeriod = 5 * time.Second
	}
	if c.Metrics.Addr == "" {
		c.Metrics.Addr = ":9100"
	}
}

func (c *Config) Validate() error {
	if c.Source.Path == "" {
		return fmt.Errorf("source.path is required")
	}
	if !c.Tests.Disabled && c.Source.BlockSize != fips.BlockBytes {
		return fmt.Errorf("source.block_size must be %d while health tests are enabled", fips.BlockBytes)
	}
	if c.Source.BitsPerByte < 0 || c.Source.BitsPerByte > 8 {
		return fmt.Errorf("source.bits_per_byte must be in [0, 8]")
	}
	if c.Source.FallbackBitsPerByte < 0 || c.Source.FallbackBitsPerByte > 8 {
		return fmt.Errorf("source.fallback_bits_per_byte must be in [0, 8]")
	}
	if c.Feed.Device == "" {
		return fmt.Errorf("feed.device is required")
	}
	if c.Feed.WatermarkBits < 0 {
		return fmt.Errorf("feed.watermark_bits must be >= 0")
	}
	switch c.Policy.OnQueueFull {
	case "block", "drop":
	default:
		return fmt.Errorf("policy.on_queue_full must be \"block\" or \"drop\"")
	}
	return nil
}
