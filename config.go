package lostfound

import (
	"errors"
	"fmt"

	"github.com/poiesic/lostfound/core"
	"github.com/poiesic/lostfound/match"
	"github.com/poiesic/lostfound/trigger"
)

// ErrInvalidConfig indicates an engine configuration that cannot be opened.
var ErrInvalidConfig = errors.New("invalid engine config")

// Config holds configuration for an Engine.
type Config struct {
	// DataDir is where the embedded store keeps its files
	DataDir string

	// InMemory keeps the embedded store in memory; DataDir is ignored
	InMemory bool

	// PostgresDSN moves listings, accounts, notifications and thresholds to PostgreSQL
	PostgresDSN string

	// RedisURL moves threshold preferences to Redis. It wins over PostgresDSN for thresholds.
	RedisURL string

	// RedisPrefix namespaces Redis keys
	RedisPrefix string

	// DefaultThreshold applies to users without a stored preference
	DefaultThreshold float64

	// Weights are the similarity factor weights
	Weights match.Weights

	// Trigger configures background evaluations
	Trigger *trigger.Config
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		DataDir:          "lostfound.db",
		DefaultThreshold: core.DefaultThreshold,
		Weights:          match.DefaultWeights(),
		Trigger:          trigger.DefaultConfig(),
	}
}

// ConfigOption modifies a Config.
type ConfigOption func(*Config)

// WithDataDir sets the embedded store directory.
func WithDataDir(dir string) ConfigOption {
	return func(c *Config) { c.DataDir = dir }
}

// WithInMemory keeps the embedded store in memory.
func WithInMemory() ConfigOption {
	return func(c *Config) { c.InMemory = true }
}

// WithPostgres sets the PostgreSQL connection string.
func WithPostgres(dsn string) ConfigOption {
	return func(c *Config) { c.PostgresDSN = dsn }
}

// WithRedis sets the Redis URL and key prefix for threshold preferences.
func WithRedis(url, prefix string) ConfigOption {
	return func(c *Config) {
		c.RedisURL = url
		c.RedisPrefix = prefix
	}
}

// WithDefaultThreshold sets the threshold of users without a preference.
func WithDefaultThreshold(value float64) ConfigOption {
	return func(c *Config) { c.DefaultThreshold = value }
}

// WithWeights sets the similarity weights.
func WithWeights(weights match.Weights) ConfigOption {
	return func(c *Config) { c.Weights = weights }
}

// WithTrigger sets the background evaluation config.
func WithTrigger(config *trigger.Config) ConfigOption {
	return func(c *Config) { c.Trigger = config }
}

// NewConfig creates a Config from DefaultConfig with opts applied.
func NewConfig(opts ...ConfigOption) (*Config, error) {
	c := DefaultConfig()
	for _, opt := range opts {
		opt(c)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// Validate checks the config for usable values.
func (c *Config) Validate() error {
	if !c.InMemory && c.DataDir == "" {
		return fmt.Errorf("%w: data dir required unless in memory", ErrInvalidConfig)
	}
	if err := core.ValidateThreshold(c.DefaultThreshold); err != nil {
		return fmt.Errorf("%w: default threshold: %w", ErrInvalidConfig, err)
	}
	if err := c.Weights.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	if c.Trigger == nil {
		return fmt.Errorf("%w: trigger config required", ErrInvalidConfig)
	}
	if err := c.Trigger.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	return nil
}
