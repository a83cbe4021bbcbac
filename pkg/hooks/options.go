package hooks

import (
	"log/slog"
	"time"
)

// Config configures a Handle.
type Config struct {
	// DestroyDelay is how long a handle without subscribers keeps its
	// consumer alive (default: 0, destroyed on the next timer tick).
	DestroyDelay time.Duration

	// Label names the handle in logs.
	Label string

	// Logger defaults to the store's logger.
	Logger *slog.Logger
}

// Option configures a Handle.
type Option func(*Config)

// WithDestroyDelay sets the destroy delay.
func WithDestroyDelay(d time.Duration) Option {
	return func(c *Config) {
		c.DestroyDelay = d
	}
}

// WithLabel sets the label used in logs.
func WithLabel(label string) Option {
	return func(c *Config) {
		c.Label = label
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Config) {
		c.Logger = logger
	}
}

func applyOptions(opts []Option) Config {
	var cfg Config
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.DestroyDelay < 0 {
		cfg.DestroyDelay = 0
	}
	return cfg
}
