// Package config loads statetree settings from a config file and
// STATETREE_ environment variables using Viper, and maps them to store
// construction options.
package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/viper"

	"github.com/roach88/statetree/internal/journal"
	"github.com/roach88/statetree/internal/metrics"
	"github.com/roach88/statetree/internal/store"
)

// EnvPrefix prefixes every environment override, e.g. STATETREE_STORE_STRICT.
const EnvPrefix = "STATETREE"

type Config struct {
	Store   StoreConfig   `mapstructure:"store"`
	Journal JournalConfig `mapstructure:"journal"`
	Metrics MetricsConfig `mapstructure:"metrics"`
	Log     LogConfig     `mapstructure:"log"`
	Watch   WatchConfig   `mapstructure:"watch"`
}

type StoreConfig struct {
	Strict     bool `mapstructure:"strict"`
	Production bool `mapstructure:"production"`
}

// JournalConfig enables the devtools journal when Path is set.
type JournalConfig struct {
	Path string `mapstructure:"path"`
}

type MetricsConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type WatchConfig struct {
	Debounce time.Duration `mapstructure:"debounce"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("store.strict", false)
	v.SetDefault("store.production", false)
	v.SetDefault("journal.path", "")
	v.SetDefault("metrics.enabled", false)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
	v.SetDefault("watch.debounce", 100*time.Millisecond)
}

// Load reads configuration. With a non-empty path that file must exist;
// otherwise an optional statetree.{yaml,toml,json} in the working directory
// is used. Environment variables override both.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	} else {
		v.SetConfigName("statetree")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("read config: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks enumerated settings.
func (c *Config) Validate() error {
	if _, err := parseLevel(c.Log.Level); err != nil {
		return err
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		return fmt.Errorf("log.format must be text or json, got %q", c.Log.Format)
	}
	if c.Watch.Debounce < 0 {
		return fmt.Errorf("watch.debounce must not be negative")
	}
	return nil
}

// Logger builds the slog logger described by the log section.
func (c *Config) Logger(w io.Writer) *slog.Logger {
	level, _ := parseLevel(c.Log.Level)
	opts := &slog.HandlerOptions{Level: level}
	if c.Log.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// StoreOptions maps the store section to store options.
func (c *Config) StoreOptions(logger *slog.Logger) []store.Option {
	opts := []store.Option{store.WithLogger(logger)}
	if c.Store.Strict {
		opts = append(opts, store.WithStrict())
	}
	if c.Store.Production {
		opts = append(opts, store.WithProduction())
	}
	return opts
}

// OpenJournal opens the configured journal, or returns nil when none is
// configured.
func (c *Config) OpenJournal(logger *slog.Logger) (*journal.Journal, error) {
	if c.Journal.Path == "" {
		return nil, nil
	}
	j, err := journal.Open(c.Journal.Path, journal.WithLogger(logger))
	if err != nil {
		return nil, fmt.Errorf("open journal %s: %w", c.Journal.Path, err)
	}
	return j, nil
}

// MetricsPlugin returns a metrics plugin registered with reg, or nil when
// metrics are disabled.
func (c *Config) MetricsPlugin(reg prometheus.Registerer) *metrics.Plugin {
	if !c.Metrics.Enabled {
		return nil
	}
	return metrics.New(reg)
}

func parseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return level, fmt.Errorf("log.level: %w", err)
	}
	return level, nil
}
