package config

import (
	"encoding/json"
	stderrors "errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/vango-dev/cells/internal/errors"
)

const (
	// ConfigFileName is the name of the configuration file.
	ConfigFileName = "cells.json"

	// DefaultAddress is the default listen address of the server.
	DefaultAddress = ":8080"

	// DefaultWatchBuffer is the default number of events buffered per
	// watch connection.
	DefaultWatchBuffer = 64

	// DefaultShutdownTimeout is the default graceful shutdown timeout.
	DefaultShutdownTimeout = "10s"

	// DefaultMetricsPath is the default path of the Prometheus endpoint.
	DefaultMetricsPath = "/metrics"

	// DefaultNamespace is the default metrics namespace and tracer name.
	DefaultNamespace = "cells"
)

// Config represents the complete cells.json configuration.
type Config struct {
	// Server contains HTTP server configuration.
	Server ServerConfig `json:"server"`

	// Log contains logging configuration.
	Log LogConfig `json:"log"`

	// Metrics contains Prometheus configuration.
	Metrics MetricsConfig `json:"metrics"`

	// Tracing contains OpenTelemetry configuration.
	Tracing TracingConfig `json:"tracing"`

	// Runtime contains propagation settings.
	Runtime RuntimeConfig `json:"runtime"`

	// configPath stores the path where the config was loaded from.
	configPath string
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	// Address is the address to listen on.
	Address string `json:"address,omitempty"`

	// WatchBuffer is the number of events buffered per watch connection
	// before the connection is dropped as too slow.
	WatchBuffer int `json:"watchBuffer,omitempty"`

	// ShutdownTimeout bounds graceful shutdown (e.g., "10s").
	ShutdownTimeout string `json:"shutdownTimeout,omitempty"`
}

// LogConfig contains logging settings.
type LogConfig struct {
	// Level is one of debug, info, warn or error.
	Level string `json:"level,omitempty"`

	// Format is text or json.
	Format string `json:"format,omitempty"`
}

// MetricsConfig contains Prometheus settings.
type MetricsConfig struct {
	// Enabled registers the metrics extension and exposes Path.
	Enabled bool `json:"enabled"`

	// Namespace is the metrics namespace.
	Namespace string `json:"namespace,omitempty"`

	// Path is the URL path of the metrics endpoint.
	Path string `json:"path,omitempty"`
}

// TracingConfig contains OpenTelemetry settings.
type TracingConfig struct {
	// Enabled registers the tracing extension.
	Enabled bool `json:"enabled"`

	// TracerName is the name of the tracer.
	TracerName string `json:"tracerName,omitempty"`
}

// RuntimeConfig contains propagation settings.
type RuntimeConfig struct {
	// MaxDepth bounds cascade nesting; 0 means unlimited.
	MaxDepth int `json:"maxDepth"`
}

// New creates a new Config with default values.
func New() *Config {
	return &Config{
		Server: ServerConfig{
			Address:         DefaultAddress,
			WatchBuffer:     DefaultWatchBuffer,
			ShutdownTimeout: DefaultShutdownTimeout,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Metrics: MetricsConfig{
			Enabled:   true,
			Namespace: DefaultNamespace,
			Path:      DefaultMetricsPath,
		},
		Tracing: TracingConfig{
			TracerName: DefaultNamespace,
		},
	}
}

// Load reads cells.json from the specified directory. A missing file is
// not an error: the defaults are returned, remembering the path so that
// Save creates the file there.
func Load(dir string) (*Config, error) {
	configPath := filepath.Join(dir, ConfigFileName)
	if !Exists(dir) {
		cfg := New()
		cfg.configPath = configPath
		return cfg, nil
	}
	return LoadFile(configPath)
}

// LoadFile reads configuration from the specified file path.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.New("C103").
			WithDetail("Could not read " + path).
			Wrap(err)
	}

	cfg := New()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, parseError(path, data, err)
	}

	cfg.configPath = path
	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// parseError points a JSON decoding error at its position in the file.
func parseError(path string, data []byte, err error) error {
	ce := errors.New("C101").Wrap(err)

	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	switch {
	case stderrors.As(err, &syntaxErr):
		ce.WithOffset(path, data, syntaxErr.Offset)
	case stderrors.As(err, &typeErr):
		ce.WithOffset(path, data, typeErr.Offset).
			WithSuggestion(fmt.Sprintf("%s must be a %s", typeErr.Field, typeErr.Type))
	}
	return ce
}

// Save writes the configuration to the file it was loaded from.
func (c *Config) Save() error {
	if c.configPath == "" {
		return errors.Newf(errors.CategoryConfig, "no config path set")
	}
	return c.SaveTo(c.configPath)
}

// SaveTo writes the configuration to the specified path.
func (c *Config) SaveTo(path string) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return errors.New("C103").Wrap(err)
	}

	// Add newline at end of file
	data = append(data, '\n')

	if err := os.WriteFile(path, data, 0644); err != nil {
		return errors.New("C103").Wrap(err)
	}

	c.configPath = path
	return nil
}

// Path returns the path where the config was loaded from.
func (c *Config) Path() string {
	return c.configPath
}

// applyDefaults fills in default values for empty fields.
func (c *Config) applyDefaults() {
	if c.Server.Address == "" {
		c.Server.Address = DefaultAddress
	}
	if c.Server.WatchBuffer == 0 {
		c.Server.WatchBuffer = DefaultWatchBuffer
	}
	if c.Server.ShutdownTimeout == "" {
		c.Server.ShutdownTimeout = DefaultShutdownTimeout
	}

	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "text"
	}

	if c.Metrics.Namespace == "" {
		c.Metrics.Namespace = DefaultNamespace
	}
	if c.Metrics.Path == "" {
		c.Metrics.Path = DefaultMetricsPath
	}

	if c.Tracing.TracerName == "" {
		c.Tracing.TracerName = DefaultNamespace
	}
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	invalid := func(detail string) error {
		return errors.New("C102").WithDetail(detail)
	}

	if c.Server.WatchBuffer < 0 {
		return invalid("server.watchBuffer must not be negative")
	}
	if d, err := time.ParseDuration(c.Server.ShutdownTimeout); err != nil || d < 0 {
		return invalid(fmt.Sprintf("server.shutdownTimeout %q is not a valid duration", c.Server.ShutdownTimeout))
	}
	if _, err := parseLevel(c.Log.Level); err != nil {
		return invalid(err.Error())
	}
	if c.Log.Format != "text" && c.Log.Format != "json" {
		return invalid(fmt.Sprintf("log.format must be text or json, not %q", c.Log.Format))
	}
	if !strings.HasPrefix(c.Metrics.Path, "/") {
		return invalid(fmt.Sprintf("metrics.path must start with /, not %q", c.Metrics.Path))
	}
	if c.Runtime.MaxDepth < 0 {
		return invalid("runtime.maxDepth must not be negative; use 0 for unlimited")
	}
	return nil
}

// ShutdownDuration returns the parsed shutdown timeout.
func (c *Config) ShutdownDuration() time.Duration {
	d, err := time.ParseDuration(c.Server.ShutdownTimeout)
	if err != nil {
		return 10 * time.Second
	}
	return d
}

// SlogLevel returns the configured log level.
func (c *Config) SlogLevel() slog.Level {
	level, _ := parseLevel(c.Log.Level)
	return level
}

func parseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelInfo, fmt.Errorf("log.level must be debug, info, warn or error, not %q", s)
	}
	return level, nil
}

// Exists checks if a config file exists in the given directory.
func Exists(dir string) bool {
	path := filepath.Join(dir, ConfigFileName)
	_, err := os.Stat(path)
	return err == nil
}
