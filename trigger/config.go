package trigger

import (
	"fmt"
	"runtime"
	"time"
)

// Config holds configuration for background evaluations.
type Config struct {
	// PoolSize is the number of evaluations that may run at once
	PoolSize int

	// QueueSize is how many jobs may wait for a free worker. Jobs beyond
	// it stay in the ledger until the next sweep, or are resubmitted after
	// RetryDelay when sweeping is disabled.
	QueueSize int

	// Timeout bounds one evaluation job, retries included
	Timeout time.Duration

	// MaxAttempts is the maximum number of attempts per job
	MaxAttempts int

	// RetryDelay is the base delay for exponential backoff
	RetryDelay time.Duration

	// BatchSize is the number of listings handled per rescan batch
	BatchSize int

	// RescanOverlap widens every rescan backwards to catch listings whose
	// CreatedAt was stamped shortly before the previous scan began
	RescanOverlap time.Duration

	// SweepInterval is how often Run calls Recover. Zero disables sweeping;
	// jobs that find the queue full then keep resubmitting themselves.
	SweepInterval time.Duration
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	poolSize := runtime.NumCPU() / 2
	if poolSize < 1 {
		poolSize = 1
	}
	return &Config{
		PoolSize:      poolSize,
		QueueSize:     1024,
		Timeout:       30 * time.Second,
		MaxAttempts:   3,
		RetryDelay:    500 * time.Millisecond,
		BatchSize:     DefaultBatchSize,
		RescanOverlap: time.Minute,
		SweepInterval: 5 * time.Minute,
	}
}

// ConfigOption modifies a Config.
type ConfigOption func(*Config)

// WithPoolSize sets the number of concurrent evaluations.
func WithPoolSize(size int) ConfigOption {
	return func(c *Config) { c.PoolSize = size }
}

// WithTimeout sets the per-job timeout.
func WithTimeout(timeout time.Duration) ConfigOption {
	return func(c *Config) { c.Timeout = timeout }
}

// WithRetry sets the attempt count and base backoff delay.
func WithRetry(maxAttempts int, delay time.Duration) ConfigOption {
	return func(c *Config) {
		c.MaxAttempts = maxAttempts
		c.RetryDelay = delay
	}
}

// WithSweepInterval sets how often pending jobs are swept.
func WithSweepInterval(interval time.Duration) ConfigOption {
	return func(c *Config) { c.SweepInterval = interval }
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
	switch {
	case c.PoolSize < 1:
		return fmt.Errorf("%w: pool size must be at least 1", ErrInvalidConfig)
	case c.QueueSize < 1:
		return fmt.Errorf("%w: queue size must be at least 1", ErrInvalidConfig)
	case c.Timeout <= 0:
		return fmt.Errorf("%w: timeout must be positive", ErrInvalidConfig)
	case c.MaxAttempts < 1:
		return fmt.Errorf("%w: max attempts must be at least 1", ErrInvalidConfig)
	case c.RetryDelay < 0:
		return fmt.Errorf("%w: retry delay cannot be negative", ErrInvalidConfig)
	case c.BatchSize < 1:
		return fmt.Errorf("%w: batch size must be at least 1", ErrInvalidConfig)
	case c.RescanOverlap < 0:
		return fmt.Errorf("%w: rescan overlap cannot be negative", ErrInvalidConfig)
	case c.SweepInterval < 0:
		return fmt.Errorf("%w: sweep interval cannot be negative", ErrInvalidConfig)
	}
	return nil
}
