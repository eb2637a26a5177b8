package config

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadDefaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := Load("")
	require.NoError(t, err)
	assert.False(t, cfg.Store.Strict)
	assert.Equal(t, "", cfg.Journal.Path)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "text", cfg.Log.Format)
	assert.Equal(t, 100*time.Millisecond, cfg.Watch.Debounce)
}

func TestLoadYAML(t *testing.T) {
	path := writeConfig(t, "statetree.yaml", `
store:
  strict: true
journal:
  path: /tmp/j.db
metrics:
  enabled: true
log:
  level: debug
  format: json
watch:
  debounce: 250ms
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.True(t, cfg.Store.Strict)
	assert.False(t, cfg.Store.Production)
	assert.Equal(t, "/tmp/j.db", cfg.Journal.Path)
	assert.True(t, cfg.Metrics.Enabled)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, 250*time.Millisecond, cfg.Watch.Debounce)
}

func TestLoadTOML(t *testing.T) {
	path := writeConfig(t, "statetree.toml", "[store]\nproduction = true\n")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.True(t, cfg.Store.Production)
}

func TestEnvOverrides(t *testing.T) {
	path := writeConfig(t, "statetree.yaml", "store:\n  strict: false\n")
	t.Setenv("STATETREE_STORE_STRICT", "true")
	t.Setenv("STATETREE_LOG_LEVEL", "warn")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.True(t, cfg.Store.Strict)
	assert.Equal(t, "warn", cfg.Log.Level)
}

func TestLoadErrors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	_, err = Load(writeConfig(t, "bad.yaml", "log:\n  format: xml\n"))
	assert.ErrorContains(t, err, "log.format")

	_, err = Load(writeConfig(t, "bad.yaml", "log:\n  level: loud\n"))
	assert.ErrorContains(t, err, "log.level")
}

func TestStoreOptions(t *testing.T) {
	cfg := &Config{Log: LogConfig{Level: "info", Format: "text"}}
	logger := cfg.Logger(&bytes.Buffer{})

	assert.Len(t, cfg.StoreOptions(logger), 1)

	cfg.Store.Strict = true
	cfg.Store.Production = true
	assert.Len(t, cfg.StoreOptions(logger), 3)
}

func TestLoggerFormat(t *testing.T) {
	var buf bytes.Buffer
	cfg := &Config{Log: LogConfig{Level: "info", Format: "json"}}
	cfg.Logger(&buf).Info("hello", "k", 1)
	assert.Contains(t, buf.String(), `"msg":"hello"`)

	buf.Reset()
	cfg.Log.Level = "error"
	cfg.Logger(&buf).Info("hidden")
	assert.Empty(t, buf.String())
}

func TestOptionalResources(t *testing.T) {
	cfg := &Config{}
	j, err := cfg.OpenJournal(nil)
	require.NoError(t, err)
	assert.Nil(t, j)
	assert.Nil(t, cfg.MetricsPlugin(prometheus.NewRegistry()))

	cfg.Journal.Path = filepath.Join(t.TempDir(), "j.db")
	cfg.Metrics.Enabled = true
	j, err = cfg.OpenJournal(cfg.Logger(&bytes.Buffer{}))
	require.NoError(t, err)
	require.NotNil(t, j)
	defer j.Close()
	assert.NotNil(t, cfg.MetricsPlugin(prometheus.NewRegistry()))
}
