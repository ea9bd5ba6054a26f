package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"

	"tasklist/app"
)

var (
	ErrInvalidBackend   = errors.New("invalid storage backend")
	ErrInvalidLogLevel  = errors.New("invalid log level")
	ErrInvalidLogFormat = errors.New("invalid log format")
)

// Storage backends.
const (
	BackendMemory = "memory"
	BackendFile   = "file"
	BackendSQLite = "sqlite"
)

// Config holds application configuration.
type Config struct {
	Storage StorageConfig
	Filter  FilterConfig
	Log     LogConfig
	Tracing TracingConfig
}

// StorageConfig selects where tasks live. Path is ignored by the memory backend.
type StorageConfig struct {
	Backend string
	Path    string
}

// FilterConfig names the preference key the active filter is saved under.
type FilterConfig struct {
	Key string
}

// LogConfig controls the slog handler. An empty Path discards logs, since the
// terminal belongs to the UI.
type LogConfig struct {
	Level  string
	Format string
	Path   string
}

type TracingConfig struct {
	Enabled bool
	Stdout  bool
}

func dataDir() string {
	return filepath.Join(os.Getenv("HOME"), ".local", "share", "tasks")
}

// Load reads configuration from file and env. Env var overrides use prefix TASKS_.
func Load() (Config, error) {
	v := viper.New()

	v.SetDefault("storage.backend", BackendFile)
	v.SetDefault("storage.path", "")
	v.SetDefault("filter.key", app.DefaultFilterKey)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
	v.SetDefault("log.path", "")
	v.SetDefault("tracing.enabled", false)
	v.SetDefault("tracing.stdout", false)

	v.SetConfigType("toml")

	cfgPath := os.Getenv("TASKS_CONFIG")
	if cfgPath != "" {
		v.SetConfigFile(cfgPath)
	} else {
		v.AddConfigPath(filepath.Join(os.Getenv("HOME"), ".config", "tasks"))
		v.SetConfigName("config")
	}

	v.SetEnvPrefix("TASKS")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		// An explicit TASKS_CONFIG must exist and parse.
		if cfgPath != "" || !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	c.Storage.Backend = strings.ToLower(strings.TrimSpace(c.Storage.Backend))
	if c.Storage.Path == "" {
		c.Storage.Path = defaultPath(c.Storage.Backend)
	}
	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

func defaultPath(backend string) string {
	switch backend {
	case BackendFile:
		return filepath.Join(dataDir(), "tasks.json")
	case BackendSQLite:
		return filepath.Join(dataDir(), "tasks.db")
	default:
		return ""
	}
}

// Validate reports the first invalid setting.
func (c Config) Validate() error {
	switch c.Storage.Backend {
	case BackendMemory:
	case BackendFile, BackendSQLite:
		if c.Storage.Path == "" {
			return fmt.Errorf("storage.path is required for backend %q", c.Storage.Backend)
		}
	default:
		return fmt.Errorf("%w: %q", ErrInvalidBackend, c.Storage.Backend)
	}
	if strings.TrimSpace(c.Filter.Key) == "" {
		return errors.New("filter.key must not be empty")
	}
	if _, err := c.Log.SlogLevel(); err != nil {
		return err
	}
	switch strings.ToLower(c.Log.Format) {
	case "text", "json":
	default:
		return fmt.Errorf("%w: %q", ErrInvalidLogFormat, c.Log.Format)
	}
	return nil
}

// SlogLevel parses Level.
func (l LogConfig) SlogLevel() (slog.Level, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(l.Level)); err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidLogLevel, l.Level)
	}
	return lvl, nil
}
