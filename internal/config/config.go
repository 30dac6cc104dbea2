// Package config loads and layers cachegated's configuration: compiled-in
// defaults, then an optional YAML file, then environment variable
// overrides, in that order.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/cachegate/cachegate/internal/cachedef"
	"gopkg.in/yaml.v3"
)

// DaemonConfig holds process-level server settings.
type DaemonConfig struct {
	HTTPAddr string `yaml:"httpAddr"`
	LogLevel string `yaml:"logLevel"` // debug, info, warn, error
}

// PoolConfig holds connection-pool defaults applied to any Definition that
// does not set its own MaxConnections, plus the borrow timeout shared by
// every Loader.
type PoolConfig struct {
	DefaultMaxConnections int           `yaml:"defaultMaxConnections"`
	BorrowTimeout         time.Duration `yaml:"borrowTimeout"`
}

// TracingConfig holds OpenTelemetry tracing settings.
type TracingConfig struct {
	Enabled     bool    `yaml:"enabled"`
	Exporter    string  `yaml:"exporter"` // otlp-http, stdout
	Endpoint    string  `yaml:"endpoint"`
	ServiceName string  `yaml:"serviceName"`
	SampleRate  float64 `yaml:"sampleRate"`
}

// MetricsConfig holds Prometheus exporter settings.
type MetricsConfig struct {
	Enabled        bool          `yaml:"enabled"`
	Namespace      string        `yaml:"namespace"`
	PollInterval   time.Duration `yaml:"pollInterval"`
	HistogramMsBkt []float64     `yaml:"histogramBucketsMs"`
}

// LoggingConfig holds structured logging settings.
type LoggingConfig struct {
	Level          string `yaml:"level"` // debug, info, warn, error
	Format         string `yaml:"format"` // text, json
	IncludeTraceID bool   `yaml:"includeTraceId"`

	// LoadLogFile, when set, additionally writes one JSON LoadLog line per
	// lookup (hit/miss, duration, outcome) to this path. Console summary
	// lines are always emitted regardless of this setting.
	LoadLogFile string `yaml:"loadLogFile"`
}

// ObservabilityConfig groups the observability sub-configs.
type ObservabilityConfig struct {
	Tracing TracingConfig `yaml:"tracing"`
	Metrics MetricsConfig `yaml:"metrics"`
	Logging LoggingConfig `yaml:"logging"`
}

// Config is the root configuration object. Definitions is the bootstrap
// list of caches registered at startup; additional caches may still be
// registered at runtime by calling Engine.Register. This module has no REST
// endpoint or CLI command that registers a cache into a running server.
type Config struct {
	Daemon        DaemonConfig          `yaml:"daemon"`
	Pool          PoolConfig            `yaml:"pool"`
	Observability ObservabilityConfig   `yaml:"observability"`
	Definitions   []cachedef.Definition `yaml:"definitions"`
}

// DefaultConfig returns a Config with sensible defaults and no bootstrap
// cache definitions.
func DefaultConfig() *Config {
	return &Config{
		Daemon: DaemonConfig{
			HTTPAddr: ":8080",
			LogLevel: "info",
		},
		Pool: PoolConfig{
			DefaultMaxConnections: 10,
			BorrowTimeout:         5 * time.Second,
		},
		Observability: ObservabilityConfig{
			Tracing: TracingConfig{
				Enabled:     false,
				Exporter:    "otlp-http",
				Endpoint:    "localhost:4318",
				ServiceName: "cachegated",
				SampleRate:  1.0,
			},
			Metrics: MetricsConfig{
				Enabled:        true,
				Namespace:      "cachegate",
				PollInterval:   10 * time.Second,
				HistogramMsBkt: []float64{0.1, 0.5, 1, 2, 5, 10, 25, 50, 100, 250, 500},
			},
			Logging: LoggingConfig{
				Level:          "info",
				Format:         "text",
				IncludeTraceID: true,
			},
		},
	}
}

// LoadFromFile reads a YAML configuration file, starting from
// DefaultConfig and overlaying whatever fields the file sets.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config file: %w", err)
	}
	return cfg, nil
}

// LoadFromEnv applies environment variable overrides on top of cfg,
// in place. Individual cache definitions are not overridable this way;
// only process-level settings are.
func LoadFromEnv(cfg *Config) {
	if v := os.Getenv("CACHEGATE_HTTP_ADDR"); v != "" {
		cfg.Daemon.HTTPAddr = v
	}
	if v := os.Getenv("CACHEGATE_LOG_LEVEL"); v != "" {
		cfg.Daemon.LogLevel = v
	}

	if v := os.Getenv("CACHEGATE_POOL_DEFAULT_MAX_CONNECTIONS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Pool.DefaultMaxConnections = n
		}
	}
	if v := os.Getenv("CACHEGATE_POOL_BORROW_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Pool.BorrowTimeout = d
		}
	}

	if v := os.Getenv("CACHEGATE_TRACING_ENABLED"); v != "" {
		cfg.Observability.Tracing.Enabled = parseBool(v)
	}
	if v := os.Getenv("CACHEGATE_TRACING_ENDPOINT"); v != "" {
		cfg.Observability.Tracing.Endpoint = v
	}
	if v := os.Getenv("CACHEGATE_TRACING_EXPORTER"); v != "" {
		cfg.Observability.Tracing.Exporter = v
	}
	if v := os.Getenv("CACHEGATE_TRACING_SERVICE_NAME"); v != "" {
		cfg.Observability.Tracing.ServiceName = v
	}
	if v := os.Getenv("CACHEGATE_TRACING_SAMPLE_RATE"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Observability.Tracing.SampleRate = f
		}
	}

	if v := os.Getenv("CACHEGATE_METRICS_ENABLED"); v != "" {
		cfg.Observability.Metrics.Enabled = parseBool(v)
	}
	if v := os.Getenv("CACHEGATE_METRICS_NAMESPACE"); v != "" {
		cfg.Observability.Metrics.Namespace = v
	}
	if v := os.Getenv("CACHEGATE_METRICS_POLL_INTERVAL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Observability.Metrics.PollInterval = d
		}
	}

	if v := os.Getenv("CACHEGATE_LOG_FORMAT"); v != "" {
		cfg.Observability.Logging.Format = v
	}
	if v := os.Getenv("CACHEGATE_LOG_INCLUDE_TRACE_ID"); v != "" {
		cfg.Observability.Logging.IncludeTraceID = parseBool(v)
	}
}

func parseBool(s string) bool {
	s = strings.ToLower(s)
	return s == "true" || s == "1" || s == "yes"
}
