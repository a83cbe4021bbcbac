package inspector

import (
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel/trace"
)

// Config configures a Server.
type Config struct {
	// Addr is the listen address for Start (default: "127.0.0.1:7070").
	Addr string

	// Gatherer backs /metrics. The route is not mounted when nil.
	Gatherer prometheus.Gatherer

	// Registry receives the request metrics of the inspector itself. Requests
	// are not measured when nil.
	Registry prometheus.Registerer

	// Tracer traces requests (default: the global tracer provider's).
	Tracer trace.Tracer

	// Logger defaults to slog.Default().
	Logger *slog.Logger

	// ClientBuffer is the number of events buffered per websocket client.
	// Events are dropped for clients that fall further behind
	// (default: 256).
	ClientBuffer int

	// PingInterval is the websocket keepalive interval (default: 30s).
	PingInterval time.Duration

	// WriteTimeout bounds each websocket write (default: 10s).
	WriteTimeout time.Duration
}

// Option configures a Server.
type Option func(*Config)

// WithAddr sets the listen address.
func WithAddr(addr string) Option {
	return func(c *Config) {
		c.Addr = addr
	}
}

// WithGatherer mounts /metrics backed by g.
func WithGatherer(g prometheus.Gatherer) Option {
	return func(c *Config) {
		c.Gatherer = g
	}
}

// WithRegistry measures inspector requests into registry.
func WithRegistry(registry prometheus.Registerer) Option {
	return func(c *Config) {
		c.Registry = registry
	}
}

// WithTracer sets the request tracer.
func WithTracer(tracer trace.Tracer) Option {
	return func(c *Config) {
		c.Tracer = tracer
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Config) {
		c.Logger = logger
	}
}

// WithClientBuffer sets the per-client event buffer.
func WithClientBuffer(n int) Option {
	return func(c *Config) {
		c.ClientBuffer = n
	}
}

// WithPingInterval sets the websocket keepalive interval.
func WithPingInterval(d time.Duration) Option {
	return func(c *Config) {
		c.PingInterval = d
	}
}

func defaultConfig() Config {
	return Config{
		Addr:         "127.0.0.1:7070",
		Logger:       slog.Default(),
		ClientBuffer: 256,
		PingInterval: 30 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
}
