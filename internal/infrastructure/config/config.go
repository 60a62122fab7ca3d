package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/goccy/go-yaml"
	"github.com/kelseyhightower/envconfig"
	"github.com/pelletier/go-toml/v2"
	"go.uber.org/zap/zapcore"

	"github.com/ndrwrbgs/flowtrace/internal/event"
	"github.com/ndrwrbgs/flowtrace/internal/sink"
)

// Config holds all application configuration.
type Config struct {
	Logging LogConfig     `yaml:"logging" toml:"logging"`
	Output  OutputConfig  `yaml:"output" toml:"output"`
	Legacy  LegacyConfig  `yaml:"legacy" toml:"legacy"`
	Metrics MetricsConfig `yaml:"metrics" toml:"metrics"`
}

// LogConfig holds logging configuration for the process logger.
type LogConfig struct {
	Level       string `envconfig:"LOG_LEVEL" default:"info" yaml:"level" toml:"level"`
	Development bool   `envconfig:"LOG_DEV" default:"false" yaml:"development" toml:"development"`
}

// OutputConfig selects the sinks trace events are written to.
type OutputConfig struct {
	Console  bool   `envconfig:"FLOWTRACE_CONSOLE" default:"true" yaml:"console" toml:"console"`
	Colors   string `envconfig:"FLOWTRACE_COLORS" default:"level" yaml:"colors" toml:"colors"`
	JSONPath string `envconfig:"FLOWTRACE_JSON_PATH" yaml:"json_path" toml:"json_path"`
	Compress bool   `envconfig:"FLOWTRACE_COMPRESS" default:"false" yaml:"compress" toml:"compress"`
	MinLevel string `envconfig:"FLOWTRACE_MIN_LEVEL" default:"verbose" yaml:"min_level" toml:"min_level"`
	// Buffer is the async handoff capacity; 0 writes synchronously.
	Buffer int `envconfig:"FLOWTRACE_BUFFER" default:"0" yaml:"buffer" toml:"buffer"`
}

// LegacyConfig enables the legacy output surfaces.
type LegacyConfig struct {
	ConsoleOut     bool `envconfig:"FLOWTRACE_CONSOLE_OUT" default:"false" yaml:"console_out" toml:"console_out"`
	TraceWrite     bool `envconfig:"FLOWTRACE_TRACE_WRITE" default:"true" yaml:"trace_write" toml:"trace_write"`
	Correlation    bool `envconfig:"FLOWTRACE_CORRELATION" default:"false" yaml:"correlation" toml:"correlation"`
	NoTracingSetup bool `envconfig:"FLOWTRACE_NO_TRACING_SETUP" default:"false" yaml:"no_tracing_setup" toml:"no_tracing_setup"`
}

// MetricsConfig holds the metrics endpoint configuration. An empty address
// disables the endpoint.
type MetricsConfig struct {
	Addr         string   `envconfig:"METRICS_ADDR" yaml:"addr" toml:"addr"`
	AllowOrigins []string `envconfig:"METRICS_ALLOW_ORIGINS" yaml:"allow_origins" toml:"allow_origins"`
	// RunRate and RunBurst limit the traced /run endpoint.
	RunRate  float64 `envconfig:"METRICS_RUN_RATE" default:"1" yaml:"run_rate" toml:"run_rate"`
	RunBurst int     `envconfig:"METRICS_RUN_BURST" default:"2" yaml:"run_burst" toml:"run_burst"`
}

// Load loads configuration from environment variables.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return &cfg, nil
}

// LoadOrDefault loads configuration from environment or returns default.
func LoadOrDefault() *Config {
	cfg, err := Load()
	if err != nil {
		return Default()
	}
	return cfg
}

// LoadFile reads a YAML (.yaml, .yml) or TOML (.toml) file over the
// defaults. Environment variables are not consulted.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	cfg := Default()
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, cfg)
	case ".toml":
		err = toml.Unmarshal(data, cfg)
	default:
		return nil, fmt.Errorf("unsupported config format %q", ext)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return cfg, nil
}

// Default returns default configuration.
func Default() *Config {
	return &Config{
		Logging: LogConfig{
			Level:       "info",
			Development: false,
		},
		Output: OutputConfig{
			Console:  true,
			Colors:   "level",
			MinLevel: "verbose",
		},
		Legacy: LegacyConfig{
			TraceWrite: true,
		},
		Metrics: MetricsConfig{
			RunRate:  1,
			RunBurst: 2,
		},
	}
}

// Validate reports every invalid setting.
func (c *Config) Validate() error {
	var errs []error
	if _, err := zapcore.ParseLevel(c.Logging.Level); err != nil {
		errs = append(errs, fmt.Errorf("logging.level: %w", err))
	}
	if _, err := sink.ColorProviderByName(c.Output.Colors); err != nil {
		errs = append(errs, fmt.Errorf("output.colors: %w", err))
	}
	if _, err := event.ParseLevel(c.Output.MinLevel); err != nil {
		errs = append(errs, fmt.Errorf("output.min_level: %w", err))
	}
	if c.Output.Buffer < 0 {
		errs = append(errs, fmt.Errorf("output.buffer: must not be negative, got %d", c.Output.Buffer))
	}
	if c.Output.Compress && c.Output.JSONPath == "" {
		errs = append(errs, errors.New("output.compress: requires output.json_path"))
	}
	if c.Legacy.NoTracingSetup && !c.Legacy.ConsoleOut && !c.Legacy.TraceWrite {
		errs = append(errs, errors.New("legacy.no_tracing_setup: requires console_out or trace_write"))
	}
	if c.Metrics.RunRate <= 0 || c.Metrics.RunBurst < 1 {
		errs = append(errs, fmt.Errorf("metrics.run_rate: need a positive rate and burst, got %g/%d",
			c.Metrics.RunRate, c.Metrics.RunBurst))
	}
	return errors.Join(errs...)
}

// MinLevel returns the parsed output level, verbose if unset or invalid.
func (c *Config) MinLevel() event.Level {
	l, err := event.ParseLevel(c.Output.MinLevel)
	if err != nil || c.Output.MinLevel == "" {
		return event.LevelVerbose
	}
	return l
}
