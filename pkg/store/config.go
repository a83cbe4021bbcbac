package store

import (
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

// DefaultMaxFlush is the default bound on notifications delivered by one
// flush.
const DefaultMaxFlush = 10000

const defaultTracerName = "github.com/vango-dev/statelift"

// Config configures a Store.
type Config struct {
	// Name identifies the store in logs, metrics and events
	// (default: "default").
	Name string

	// Strict makes reads of built-in objects fail instead of returning
	// them untracked.
	Strict bool

	// MaxFlush bounds how many notifications one flush delivers. Consumers
	// that keep scheduling each other past it are dropped and the overflow
	// is logged (default: DefaultMaxFlush).
	MaxFlush int

	// Logger receives the store's diagnostics (default: slog.Default()).
	Logger *slog.Logger

	// Registry registers the store's Prometheus metrics. Metrics are still
	// collected but not registered when nil.
	Registry prometheus.Registerer

	// Tracer opens the spans of BatchNamed (default: the global tracer
	// provider's tracer).
	Tracer trace.Tracer
}

// Option configures a Store.
type Option func(*Config)

// WithName sets the store name.
func WithName(name string) Option {
	return func(c *Config) {
		c.Name = name
	}
}

// WithStrict enables strict mode.
func WithStrict(strict bool) Option {
	return func(c *Config) {
		c.Strict = strict
	}
}

// WithMaxFlush sets the flush bound. Values <= 0 restore the default.
func WithMaxFlush(n int) Option {
	return func(c *Config) {
		c.MaxFlush = n
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Config) {
		c.Logger = logger
	}
}

// WithRegistry sets the Prometheus registry.
func WithRegistry(registry prometheus.Registerer) Option {
	return func(c *Config) {
		c.Registry = registry
	}
}

// WithTracer sets the tracer used by BatchNamed.
func WithTracer(tracer trace.Tracer) Option {
	return func(c *Config) {
		c.Tracer = tracer
	}
}

func defaultConfig() Config {
	return Config{
		Name:     "default",
		MaxFlush: DefaultMaxFlush,
		Logger:   slog.Default(),
	}
}

func (c *Config) normalize() {
	if c.Name == "" {
		c.Name = "default"
	}
	if c.MaxFlush <= 0 {
		c.MaxFlush = DefaultMaxFlush
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	if c.Tracer == nil {
		c.Tracer = otel.Tracer(defaultTracerName)
	}
}
