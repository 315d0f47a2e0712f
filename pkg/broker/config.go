package broker

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the broker's tuning knobs. The zero value is usable: every field
// left at zero is replaced by its default at construction time.
type Config struct {
	// PollInterval bounds how long a queue consumer loop sleeps while its
	// buffer is empty, so channel deletion and shutdown are observed promptly.
	PollInterval time.Duration `yaml:"poll_interval"`

	// RequeueBackoffInitial and RequeueBackoffMax bound the exponential backoff
	// applied while a queued message is held for a late subscriber.
	RequeueBackoffInitial time.Duration `yaml:"requeue_backoff_initial"`
	RequeueBackoffMax     time.Duration `yaml:"requeue_backoff_max"`

	// ShutdownGrace is how long Shutdown waits for consumer loops to drain
	// before giving up on them.
	ShutdownGrace time.Duration `yaml:"shutdown_grace"`

	// DefaultRequestTimeout applies when Request is called without a positive
	// timeout.
	DefaultRequestTimeout time.Duration `yaml:"default_request_timeout"`
}

// DefaultConfig returns the broker defaults.
func DefaultConfig() Config {
	return Config{
		PollInterval:          100 * time.Millisecond,
		RequeueBackoffInitial: 100 * time.Millisecond,
		RequeueBackoffMax:     2 * time.Second,
		ShutdownGrace:         5 * time.Second,
		DefaultRequestTimeout: 30 * time.Second,
	}
}

// LoadConfig reads a YAML config file, filling unset fields with defaults.
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return cfg.withDefaults(), nil
}

// UnmarshalYAML decodes durations from strings like "100ms" or "5s", which the
// yaml package does not do for time.Duration on its own.
func (c *Config) UnmarshalYAML(node *yaml.Node) error {
	var raw struct {
		PollInterval          string `yaml:"poll_interval"`
		RequeueBackoffInitial string `yaml:"requeue_backoff_initial"`
		RequeueBackoffMax     string `yaml:"requeue_backoff_max"`
		ShutdownGrace         string `yaml:"shutdown_grace"`
		DefaultRequestTimeout string `yaml:"default_request_timeout"`
	}
	if err := node.Decode(&raw); err != nil {
		return err
	}
	fields := []struct {
		value  string
		target *time.Duration
		name   string
	}{
		{raw.PollInterval, &c.PollInterval, "poll_interval"},
		{raw.RequeueBackoffInitial, &c.RequeueBackoffInitial, "requeue_backoff_initial"},
		{raw.RequeueBackoffMax, &c.RequeueBackoffMax, "requeue_backoff_max"},
		{raw.ShutdownGrace, &c.ShutdownGrace, "shutdown_grace"},
		{raw.DefaultRequestTimeout, &c.DefaultRequestTimeout, "default_request_timeout"},
	}
	for _, f := range fields {
		if f.value == "" {
			continue
		}
		d, err := time.ParseDuration(f.value)
		if err != nil {
			return fmt.Errorf("invalid duration for %s: %w", f.name, err)
		}
		*f.target = d
	}
	return nil
}

func (c Config) withDefaults() Config {
	defaults := DefaultConfig()
	if c.PollInterval <= 0 {
		c.PollInterval = defaults.PollInterval
	}
	if c.RequeueBackoffInitial <= 0 {
		c.RequeueBackoffInitial = defaults.RequeueBackoffInitial
	}
	if c.RequeueBackoffMax <= 0 {
		c.RequeueBackoffMax = defaults.RequeueBackoffMax
	}
	if c.ShutdownGrace <= 0 {
		c.ShutdownGrace = defaults.ShutdownGrace
	}
	if c.DefaultRequestTimeout <= 0 {
		c.DefaultRequestTimeout = defaults.DefaultRequestTimeout
	}
	return c
}
