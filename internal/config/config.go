package config

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/vango-dev/ripple/internal/errors"
	"github.com/vango-dev/ripple/pkg/reactive"
)

const (
	// ConfigFileName is the name of the configuration file.
	ConfigFileName = "ripple.json"

	// DefaultInspectAddr is the default inspector listen address.
	DefaultInspectAddr = "localhost:7070"

	// DefaultNamespace is the default Prometheus namespace.
	DefaultNamespace = "ripple"

	// DefaultLogLevel is the default log level.
	DefaultLogLevel = "info"

	// DefaultLogFormat is the default log format.
	DefaultLogFormat = "text"

	// DefaultBackend is the default persistence backend.
	DefaultBackend = "memory"
)

// Environment variables that override the file.
const (
	EnvInspectAddr = "RIPPLE_INSPECT_ADDR"
	EnvLogLevel    = "RIPPLE_LOG_LEVEL"
)

// Config represents the complete ripple.json configuration.
type Config struct {
	Log     LogConfig     `json:"log"`
	Inspect InspectConfig `json:"inspect"`
	Metrics MetricsConfig `json:"metrics"`
	Async   AsyncConfig   `json:"async"`
	Persist PersistConfig `json:"persist"`

	// configPath stores the path where the config was loaded from.
	configPath string
}

// LogConfig configures the slog handler.
type LogConfig struct {
	// Level is one of debug, info, warn, error.
	Level string `json:"level,omitempty"`

	// Format is text or json.
	Format string `json:"format,omitempty"`
}

// InspectConfig configures the inspector HTTP server.
type InspectConfig struct {
	Enabled bool   `json:"enabled"`
	Addr    string `json:"addr,omitempty"`
}

// MetricsConfig configures the Prometheus collectors.
type MetricsConfig struct {
	Namespace string `json:"namespace,omitempty"`
}

// AsyncConfig holds defaults for async derived values.
type AsyncConfig struct {
	// Strategy is queue, abort or debounce.
	Strategy string `json:"strategy,omitempty"`

	// Debounce is a duration string such as "50ms".
	Debounce string `json:"debounce,omitempty"`
}

// PersistConfig selects where persisted signals are stored.
type PersistConfig struct {
	// Backend is memory, disk or s3.
	Backend string `json:"backend,omitempty"`

	// Dir is the directory for the disk backend.
	Dir string `json:"dir,omitempty"`

	// Bucket is the S3 bucket. Required for the s3 backend.
	Bucket string `json:"bucket,omitempty"`

	// Prefix is prepended to every object key.
	Prefix string `json:"prefix,omitempty"`
}

// New creates a new Config with default values.
func New() *Config {
	return &Config{
		Log: LogConfig{
			Level:  DefaultLogLevel,
			Format: DefaultLogFormat,
		},
		Inspect: InspectConfig{
			Enabled: true,
			Addr:    DefaultInspectAddr,
		},
		Metrics: MetricsConfig{
			Namespace: DefaultNamespace,
		},
		Async: AsyncConfig{
			Strategy: reactive.Queue.String(),
			Debounce: reactive.DefaultDebounce.String(),
		},
		Persist: PersistConfig{
			Backend: DefaultBackend,
		},
	}
}

// Load reads configuration from the specified directory.
// It looks for ripple.json in the directory.
func Load(dir string) (*Config, error) {
	return LoadFile(filepath.Join(dir, ConfigFileName))
}

// LoadFile reads, defaults, overrides and validates the configuration at path.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.New(errors.CodeConfigRead).
				WithDetail("No %s found at %s", ConfigFileName, path).
				WithSuggestion("Create ripple.json or omit --config to use defaults")
		}
		return nil, errors.New(errors.CodeConfigRead).Wrap(err)
	}

	cfg := New()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, errors.New(errors.CodeConfigParse).
			WithDetail("Failed to parse %s: %s", path, err.Error()).
			WithSuggestion("Check that ripple.json is valid JSON")
	}

	cfg.configPath = path
	cfg.applyDefaults()
	cfg.applyEnv(os.LookupEnv)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Default returns the default configuration with environment overrides
// applied. It is used when no file is given.
func Default() (*Config, error) {
	cfg := New()
	cfg.applyEnv(os.LookupEnv)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
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
		return errors.New(errors.CodeConfigParse).Wrap(err)
	}
	data = append(data, '\n')

	if err := os.WriteFile(path, data, 0644); err != nil {
		return errors.New(errors.CodeConfigRead).Wrap(err)
	}

	c.configPath = path
	return nil
}

// Path returns the path where the config was loaded from.
func (c *Config) Path() string {
	return c.configPath
}

// applyDefaults fills in default values for fields the file left empty.
func (c *Config) applyDefaults() {
	d := New()
	if c.Log.Level == "" {
		c.Log.Level = d.Log.Level
	}
	if c.Log.Format == "" {
		c.Log.Format = d.Log.Format
	}
	if c.Inspect.Addr == "" {
		c.Inspect.Addr = d.Inspect.Addr
	}
	if c.Metrics.Namespace == "" {
		c.Metrics.Namespace = d.Metrics.Namespace
	}
	if c.Async.Strategy == "" {
		c.Async.Strategy = d.Async.Strategy
	}
	if c.Async.Debounce == "" {
		c.Async.Debounce = d.Async.Debounce
	}
	if c.Persist.Backend == "" {
		c.Persist.Backend = d.Persist.Backend
	}
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) {
	if v, ok := lookup(EnvInspectAddr); ok && v != "" {
		c.Inspect.Addr = v
	}
	if v, ok := lookup(EnvLogLevel); ok && v != "" {
		c.Log.Level = strings.ToLower(v)
	}
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if _, ok := parseLevel(c.Log.Level); !ok {
		return invalid("log.level", "must be one of debug, info, warn, error; got %q", c.Log.Level)
	}
	if c.Log.Format != "text" && c.Log.Format != "json" {
		return invalid("log.format", "must be text or json; got %q", c.Log.Format)
	}
	if c.Inspect.Enabled && c.Inspect.Addr == "" {
		return invalid("inspect.addr", "must not be empty when the inspector is enabled")
	}
	if _, err := c.Async.ParsedStrategy(); err != nil {
		return invalid("async.strategy", "%s", err.Error())
	}
	if d, err := time.ParseDuration(c.Async.Debounce); err != nil || d <= 0 {
		return invalid("async.debounce", "must be a positive duration; got %q", c.Async.Debounce)
	}
	switch c.Persist.Backend {
	case "memory":
	case "disk":
		if c.Persist.Dir == "" {
			return invalid("persist.dir", "is required for the disk backend")
		}
	case "s3":
		if c.Persist.Bucket == "" {
			return invalid("persist.bucket", "is required for the s3 backend")
		}
	default:
		return invalid("persist.backend", "must be memory, disk or s3; got %q", c.Persist.Backend)
	}
	return nil
}

func invalid(field, format string, args ...any) *errors.Error {
	return errors.New(errors.CodeConfigInvalid).
		WithDetail("%q %s", field, fmt.Sprintf(format, args...)).
		WithSuggestion("Fix " + field + " in " + ConfigFileName)
}

// ParsedStrategy returns the configured async strategy.
func (a AsyncConfig) ParsedStrategy() (reactive.Strategy, error) {
	return reactive.ParseStrategy(a.Strategy)
}

// DebounceDuration returns the configured debounce window, or the package
// default if it does not parse.
func (a AsyncConfig) DebounceDuration() time.Duration {
	d, err := time.ParseDuration(a.Debounce)
	if err != nil || d <= 0 {
		return reactive.DefaultDebounce
	}
	return d
}

// AsyncOptions returns the reactive options for the configured async defaults.
func (c *Config) AsyncOptions() []reactive.Option {
	strategy, err := c.Async.ParsedStrategy()
	if err != nil {
		strategy = reactive.Queue
	}
	return []reactive.Option{
		reactive.WithStrategy(strategy),
		reactive.WithDebounce(c.Async.DebounceDuration()),
	}
}

// Logger builds a slog logger writing to w per the log section.
func (c *Config) Logger(w io.Writer) *slog.Logger {
	level, _ := parseLevel(c.Log.Level)
	opts := &slog.HandlerOptions{Level: level}
	if c.Log.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

func parseLevel(s string) (slog.Level, bool) {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug, true
	case "info":
		return slog.LevelInfo, true
	case "warn", "warning":
		return slog.LevelWarn, true
	case "error":
		return slog.LevelError, true
	}
	return slog.LevelInfo, false
}
