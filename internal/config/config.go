package config

import (
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"

	"github.com/vango-dev/statelift/internal/errors"
)

const (
	// ConfigFileName is the name of the configuration file.
	ConfigFileName = "statelift.json"

	// EnvPrefix prefixes every environment override.
	EnvPrefix = "STATELIFT_"

	DefaultRows          = 1000
	DefaultLotsRows      = 10000
	DefaultIterations    = 5
	DefaultInspectorAddr = "127.0.0.1:7070"
	DefaultMaxFlush      = 10000
)

// Config is the complete statelift.json configuration.
type Config struct {
	Store     StoreConfig     `json:"store" envPrefix:"STORE_"`
	Bench     BenchConfig     `json:"bench" envPrefix:"BENCH_"`
	Inspector InspectorConfig `json:"inspector" envPrefix:"INSPECTOR_"`
	Upload    UploadConfig    `json:"upload" envPrefix:"UPLOAD_"`
	Telemetry TelemetryConfig `json:"telemetry" envPrefix:"TELEMETRY_"`
	Log       LogConfig       `json:"log" envPrefix:"LOG_"`

	// configPath stores the path where the config was loaded from.
	configPath string
}

// StoreConfig configures the stores the command creates.
type StoreConfig struct {
	// Name is the store name used in metrics and events.
	Name string `json:"name,omitempty" env:"NAME"`

	// Strict enables strict mode.
	Strict bool `json:"strict,omitempty" env:"STRICT"`

	// MaxFlush bounds the notifications delivered by one flush.
	MaxFlush int `json:"maxFlush,omitempty" env:"MAX_FLUSH"`
}

// BenchConfig configures the rows workload.
type BenchConfig struct {
	// Rows is the table size of the run, add and update operations.
	Rows int `json:"rows,omitempty" env:"ROWS"`

	// LotsRows is the table size of the runLots operation.
	LotsRows int `json:"lotsRows,omitempty" env:"LOTS_ROWS"`

	// Iterations is how many times each operation is measured.
	Iterations int `json:"iterations,omitempty" env:"ITERATIONS"`

	// Seed makes the generated labels reproducible.
	Seed int64 `json:"seed,omitempty" env:"SEED"`
}

// InspectorConfig configures the inspector server.
type InspectorConfig struct {
	// Addr is the listen address.
	Addr string `json:"addr,omitempty" env:"ADDR"`

	// Interval is the pause between workload rounds of the inspect command.
	Interval Duration `json:"interval,omitempty" env:"INTERVAL"`
}

// UploadConfig configures where bench reports are uploaded.
type UploadConfig struct {
	// Target is an s3://bucket/prefix URL. Reports are not uploaded when
	// empty.
	Target string `json:"target,omitempty" env:"TARGET"`

	// Region is the bucket's AWS region.
	Region string `json:"region,omitempty" env:"REGION"`

	// Endpoint overrides the S3 endpoint, e.g. for a local S3-compatible
	// server.
	Endpoint string `json:"endpoint,omitempty" env:"ENDPOINT"`
}

// TelemetryConfig configures trace export.
type TelemetryConfig struct {
	// OTLPEndpoint is the host:port of an OTLP/HTTP collector. Tracing is
	// disabled when empty.
	OTLPEndpoint string `json:"otlpEndpoint,omitempty" env:"OTLP_ENDPOINT"`

	// Insecure disables TLS towards the collector.
	Insecure bool `json:"insecure,omitempty" env:"INSECURE"`

	// ServiceName is reported as the service.name resource attribute.
	ServiceName string `json:"serviceName,omitempty" env:"SERVICE_NAME"`
}

// LogConfig configures the command's logger.
type LogConfig struct {
	// Level is one of debug, info, warn, error.
	Level string `json:"level,omitempty" env:"LEVEL"`

	// Format is text or json.
	Format string `json:"format,omitempty" env:"FORMAT"`
}

// Duration is a time.Duration written as a string ("250ms") in JSON and in
// the environment.
type Duration time.Duration

// Std returns d as a time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	*d = Duration(parsed)
	return nil
}

// New creates a new Config with default values.
func New() *Config {
	return &Config{
		Store: StoreConfig{
			Name:     "rows",
			MaxFlush: DefaultMaxFlush,
		},
		Bench: BenchConfig{
			Rows:       DefaultRows,
			LotsRows:   DefaultLotsRows,
			Iterations: DefaultIterations,
			Seed:       1,
		},
		Inspector: InspectorConfig{
			Addr:     DefaultInspectorAddr,
			Interval: Duration(250 * time.Millisecond),
		},
		Telemetry: TelemetryConfig{
			ServiceName: "statelift",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load reads statelift.json from dir, falling back to the defaults when the
// file does not exist, and applies environment overrides.
func Load(dir string) (*Config, error) {
	path := filepath.Join(dir, ConfigFileName)
	if _, err := os.Stat(path); os.IsNotExist(err) {
		cfg := New()
		return cfg.finish()
	}
	return LoadFile(path)
}

// LoadFile reads the configuration file at path and applies environment
// overrides.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.New("SL200").
			WithDetail(err.Error()).
			WithSuggestion("Run 'statelift config init' to create " + ConfigFileName)
	}

	cfg := New()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, errors.New("SL201").
			WithDetail("Failed to parse " + filepath.Base(path) + ": " + err.Error()).
			WithSuggestion("Check that " + filepath.Base(path) + " is valid JSON")
	}
	cfg.configPath = path
	return cfg.finish()
}

func (c *Config) finish() (*Config, error) {
	if err := c.applyEnv(); err != nil {
		return nil, err
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Config) applyEnv() error {
	if err := env.ParseWithOptions(c, env.Options{Prefix: EnvPrefix}); err != nil {
		return errors.New("SL202").Wrap(err)
	}
	return nil
}

// SaveTo writes the configuration to the specified path.
func (c *Config) SaveTo(path string) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return errors.New("SL201").Wrap(err)
	}
	data = append(data, '\n')

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return errors.New("SL200").Wrap(err)
	}
	c.configPath = path
	return nil
}

// Path returns the path where the config was loaded from.
func (c *Config) Path() string {
	return c.configPath
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	switch {
	case c.Bench.Rows <= 0 || c.Bench.LotsRows <= 0:
		return errors.New("SL203").WithDetail("bench rows must be positive")
	case c.Bench.Rows < 2:
		return errors.New("SL203").WithDetail("bench rows must be at least 2 to swap rows")
	case c.Bench.Iterations <= 0:
		return errors.New("SL203").WithDetail("bench iterations must be positive")
	case c.Store.MaxFlush < 0:
		return errors.New("SL203").WithDetail("store maxFlush must not be negative")
	case c.Inspector.Interval < 0:
		return errors.New("SL203").WithDetail("inspector interval must not be negative")
	}
	if c.Upload.Target != "" && !strings.HasPrefix(c.Upload.Target, "s3://") {
		return errors.New("SL300").WithDetail("got " + c.Upload.Target)
	}
	if _, err := c.Log.SlogLevel(); err != nil {
		return err
	}
	return nil
}

// SlogLevel parses the configured log level.
func (l LogConfig) SlogLevel() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(l.Level)); err != nil {
		return 0, errors.New("SL203").WithDetail("log level " + l.Level + " is not one of debug, info, warn, error")
	}
	return level, nil
}

// Exists checks if a config file exists in the given directory.
func Exists(dir string) bool {
	_, err := os.Stat(filepath.Join(dir, ConfigFileName))
	return err == nil
}
