package config

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vango-dev/ripple/internal/errors"
	"github.com/vango-dev/ripple/pkg/reactive"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ConfigFileName), []byte(body), 0644))
	return dir
}

func TestNew(t *testing.T) {
	cfg := New()

	assert.Equal(t, DefaultLogLevel, cfg.Log.Level)
	assert.Equal(t, DefaultLogFormat, cfg.Log.Format)
	assert.True(t, cfg.Inspect.Enabled)
	assert.Equal(t, DefaultInspectAddr, cfg.Inspect.Addr)
	assert.Equal(t, DefaultNamespace, cfg.Metrics.Namespace)
	assert.Equal(t, "queue", cfg.Async.Strategy)
	assert.Equal(t, reactive.DefaultDebounce, cfg.Async.DebounceDuration())
	assert.Equal(t, DefaultBackend, cfg.Persist.Backend)
	assert.NoError(t, cfg.Validate())
}

func TestLoad(t *testing.T) {
	_, err := Load(t.TempDir())
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.CodeConfigRead))

	dir := writeConfig(t, `{
  "log": {"level": "debug", "format": "json"},
  "inspect": {"addr": ":9090"},
  "async": {"strategy": "abort"},
  "persist": {"backend": "s3", "bucket": "state", "prefix": "ripple/"}
}
`)
	cfg, err := Load(dir)
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, ":9090", cfg.Inspect.Addr)
	assert.True(t, cfg.Inspect.Enabled, "missing keys keep their defaults")
	assert.Equal(t, DefaultNamespace, cfg.Metrics.Namespace)
	assert.Equal(t, "s3", cfg.Persist.Backend)
	assert.Equal(t, "state", cfg.Persist.Bucket)
	assert.Equal(t, "ripple/", cfg.Persist.Prefix)
	assert.Equal(t, filepath.Join(dir, ConfigFileName), cfg.Path())

	strategy, err := cfg.Async.ParsedStrategy()
	require.NoError(t, err)
	assert.Equal(t, reactive.Abort, strategy)
}

func TestLoadInvalidJSON(t *testing.T) {
	dir := writeConfig(t, `{"log": `)
	_, err := Load(dir)
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.CodeConfigParse))
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv(EnvInspectAddr, "0.0.0.0:8181")
	t.Setenv(EnvLogLevel, "WARN")

	dir := writeConfig(t, `{"inspect": {"addr": ":9090"}}`)
	cfg, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, "0.0.0.0:8181", cfg.Inspect.Addr)
	assert.Equal(t, "warn", cfg.Log.Level)

	cfg, err = Default()
	require.NoError(t, err)
	assert.Equal(t, "0.0.0.0:8181", cfg.Inspect.Addr)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		field  string
	}{
		{"bad level", func(c *Config) { c.Log.Level = "loud" }, "log.level"},
		{"bad format", func(c *Config) { c.Log.Format = "xml" }, "log.format"},
		{"empty addr", func(c *Config) { c.Inspect.Addr = "" }, "inspect.addr"},
		{"bad strategy", func(c *Config) { c.Async.Strategy = "race" }, "async.strategy"},
		{"bad debounce", func(c *Config) { c.Async.Debounce = "soon" }, "async.debounce"},
		{"zero debounce", func(c *Config) { c.Async.Debounce = "0s" }, "async.debounce"},
		{"bad backend", func(c *Config) { c.Persist.Backend = "sqlite" }, "persist.backend"},
		{"s3 without bucket", func(c *Config) { c.Persist.Backend = "s3" }, "persist.bucket"},
		{"disk without dir", func(c *Config) { c.Persist.Backend = "disk" }, "persist.dir"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := New()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.True(t, errors.HasCode(err, errors.CodeConfigInvalid))
			assert.Contains(t, err.Error(), tt.field)
		})
	}

	t.Run("disabled inspector may omit addr", func(t *testing.T) {
		cfg := New()
		cfg.Inspect.Enabled = false
		cfg.Inspect.Addr = ""
		assert.NoError(t, cfg.Validate())
	})
}

func TestSaveRoundTrip(t *testing.T) {
	cfg := New()
	assert.Error(t, cfg.Save(), "save without a path")

	cfg.Inspect.Enabled = false
	cfg.Async.Strategy = "debounce"
	cfg.Async.Debounce = "200ms"

	dir := t.TempDir()
	require.NoError(t, cfg.SaveTo(filepath.Join(dir, ConfigFileName)))

	data, err := os.ReadFile(filepath.Join(dir, ConfigFileName))
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(string(data), "\n"))

	loaded, err := Load(dir)
	require.NoError(t, err)
	assert.False(t, loaded.Inspect.Enabled)
	assert.Equal(t, 200*time.Millisecond, loaded.Async.DebounceDuration())
	assert.Len(t, loaded.AsyncOptions(), 2)
}

func TestLogger(t *testing.T) {
	var buf bytes.Buffer
	cfg := New()
	cfg.Log.Format = "json"
	cfg.Log.Level = "warn"

	logger := cfg.Logger(&buf)
	logger.Info("hidden")
	logger.Warn("shown", "node", "n1")

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, `"msg":"shown"`)
	assert.Contains(t, out, `"node":"n1"`)
}
