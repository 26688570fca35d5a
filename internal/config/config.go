// Package config loads previewctl client configuration from a YAML file
// with environment-variable overrides.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// ConfigFile is the per-project configuration file name
const ConfigFile = ".previewctl.yaml"

// Config holds client configuration for the preview orchestrator API
type Config struct {
	// APIBase is the orchestrator API base URL
	// Default: http://localhost:8100
	APIBase string `yaml:"api_base"`

	// TTLMinutes is the default sandbox time-to-live requested at start
	// Default: 30, Range: 1-1440
	TTLMinutes int `yaml:"ttl_minutes"`

	// PollIntervalSeconds is the orchestration status polling cadence
	// Default: 2, Range: 1-60
	PollIntervalSeconds int `yaml:"poll_interval_seconds"`

	// MaxWaitSeconds bounds the whole readiness wait
	// Default: 300, Range: 10-3600
	MaxWaitSeconds int `yaml:"max_wait_seconds"`

	// LogBufferSize bounds the per-session log replay buffer
	// Default: 200, Range: 10-10000
	LogBufferSize int `yaml:"log_buffer_size"`

	// LogSeedTail is how many historical log entries to fetch before
	// streaming
	// Default: 100, Range: 1-1000
	LogSeedTail int `yaml:"log_seed_tail"`

	// UserID is attached to start requests for attribution (optional)
	UserID string `yaml:"user_id,omitempty"`
}

// Default returns the default client configuration
func Default() Config {
	return Config{
		APIBase:             "http://localhost:8100",
		TTLMinutes:          30,
		PollIntervalSeconds: 2,
		MaxWaitSeconds:      300,
		LogBufferSize:       200,
		LogSeedTail:         100,
	}
}

// Validate checks if the configuration has valid values
func (c Config) Validate() error {
	if c.APIBase == "" {
		return fmt.Errorf("api_base cannot be empty")
	}
	if c.TTLMinutes < 1 || c.TTLMinutes > 1440 {
		return fmt.Errorf("ttl_minutes must be between 1 and 1440 (got %d)", c.TTLMinutes)
	}
	if c.PollIntervalSeconds < 1 || c.PollIntervalSeconds > 60 {
		return fmt.Errorf("poll_interval_seconds must be between 1 and 60 (got %d)", c.PollIntervalSeconds)
	}
	if c.MaxWaitSeconds < 10 || c.MaxWaitSeconds > 3600 {
		return fmt.Errorf("max_wait_seconds must be between 10 and 3600 (got %d)", c.MaxWaitSeconds)
	}
	if c.LogBufferSize < 10 || c.LogBufferSize > 10000 {
		return fmt.Errorf("log_buffer_size must be between 10 and 10000 (got %d)", c.LogBufferSize)
	}
	if c.LogSeedTail < 1 || c.LogSeedTail > 1000 {
		return fmt.Errorf("log_seed_tail must be between 1 and 1000 (got %d)", c.LogSeedTail)
	}
	return nil
}

// String returns a human-readable representation of the config
func (c Config) String() string {
	return fmt.Sprintf("Config{APIBase: %s, TTLMinutes: %d, PollInterval: %s, MaxWait: %s}",
		c.APIBase, c.TTLMinutes, c.PollInterval(), c.MaxWait())
}

// PollInterval returns the polling cadence as a time.Duration
func (c Config) PollInterval() time.Duration {
	return time.Duration(c.PollIntervalSeconds) * time.Second
}

// MaxWait returns the readiness deadline as a time.Duration
func (c Config) MaxWait() time.Duration {
	return time.Duration(c.MaxWaitSeconds) * time.Second
}

// Load builds the effective configuration: defaults, then the YAML file in
// dir (if present), then environment overrides. dir may be empty for the
// current directory.
func Load(dir string) (Config, error) {
	cfg := Default()

	path := filepath.Join(dir, ConfigFile)
	data, err := os.ReadFile(path)
	if err == nil {
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parsing %s: %w", path, err)
		}
	} else if !os.IsNotExist(err) {
		return cfg, fmt.Errorf("reading %s: %w", path, err)
	}

	if err := applyEnv(&cfg); err != nil {
		return cfg, err
	}

	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Save writes the configuration to the YAML file in dir
func Save(dir string, cfg Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	return os.WriteFile(filepath.Join(dir, ConfigFile), data, 0o644)
}

// applyEnv overrides config fields from PREVIEWCTL_* environment variables
func applyEnv(cfg *Config) error {
	if err := parseEnvString("PREVIEWCTL_API_BASE", &cfg.APIBase); err != nil {
		return err
	}
	if err := parseEnvInt("PREVIEWCTL_TTL_MINUTES", &cfg.TTLMinutes); err != nil {
		return err
	}
	if err := parseEnvInt("PREVIEWCTL_POLL_INTERVAL_SECONDS", &cfg.PollIntervalSeconds); err != nil {
		return err
	}
	if err := parseEnvInt("PREVIEWCTL_MAX_WAIT_SECONDS", &cfg.MaxWaitSeconds); err != nil {
		return err
	}
	if err := parseEnvInt("PREVIEWCTL_LOG_BUFFER_SIZE", &cfg.LogBufferSize); err != nil {
		return err
	}
	if err := parseEnvInt("PREVIEWCTL_LOG_SEED_TAIL", &cfg.LogSeedTail); err != nil {
		return err
	}
	if err := parseEnvString("PREVIEWCTL_USER_ID", &cfg.UserID); err != nil {
		return err
	}
	return nil
}

// parseEnvInt parses an int from an environment variable
func parseEnvInt(key string, dest *int) error {
	value := os.Getenv(key)
	if value == "" {
		return nil
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fmt.Errorf("invalid %s: %q is not an integer", key, value)
	}
	*dest = parsed
	return nil
}

// parseEnvString reads a string from an environment variable
func parseEnvString(key string, dest *string) error {
	if value := os.Getenv(key); value != "" {
		*dest = value
	}
	return nil
}
