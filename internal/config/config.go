// Package config loads formflow settings from flags, FORMFLOW_* environment
// variables and an optional formflow.yaml, and builds the components they
// describe.
package config

import (
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/aretw0/formflow/internal/logging"
	"github.com/aretw0/formflow/pkg/progress"
	"github.com/aretw0/formflow/pkg/sanitize"
)

// EnvPrefix is the prefix of every environment variable, e.g. FORMFLOW_STORE_BACKEND.
const EnvPrefix = "FORMFLOW"

// Store backends.
const (
	BackendMemory = "memory"
	BackendFile   = "file"
	BackendRedis  = "redis"
	BackendSQLite = "sqlite"
)

// ErrInvalidConfig is returned when settings are inconsistent.
var ErrInvalidConfig = errors.New("invalid configuration")

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	Prefix   string `mapstructure:"prefix"`
}

type SQLiteConfig struct {
	Path string `mapstructure:"path"`
}

type StoreConfig struct {
	Backend string       `mapstructure:"backend"`
	Dir     string       `mapstructure:"dir"`
	Redis   RedisConfig  `mapstructure:"redis"`
	SQLite  SQLiteConfig `mapstructure:"sqlite"`
	// EncryptionKey is a hex encoded 32 byte key. Empty disables encryption.
	EncryptionKey string `mapstructure:"encryption_key"`
	// FallbackKeys are previous encryption keys still accepted for reading.
	FallbackKeys []string `mapstructure:"fallback_keys"`
}

type ProgressConfig struct {
	Retention time.Duration `mapstructure:"retention"`
	// Redact lists regular expressions of field ids never written to the store.
	Redact []string `mapstructure:"redact"`
}

type AutosaveConfig struct {
	Interval time.Duration `mapstructure:"interval"`
	Debounce time.Duration `mapstructure:"debounce"`
}

type SubmitConfig struct {
	URL     string        `mapstructure:"url"`
	Timeout time.Duration `mapstructure:"timeout"`
}

type SanitizeConfig struct {
	MaxInputSize int  `mapstructure:"max_input_size"`
	StripMarkup  bool `mapstructure:"strip_markup"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type ServerConfig struct {
	Addr        string        `mapstructure:"addr"`
	IdleTimeout time.Duration `mapstructure:"idle_timeout"`
}

// Config is the full formflow configuration.
type Config struct {
	Store    StoreConfig    `mapstructure:"store"`
	Progress ProgressConfig `mapstructure:"progress"`
	Autosave AutosaveConfig `mapstructure:"autosave"`
	Submit   SubmitConfig   `mapstructure:"submit"`
	Sanitize SanitizeConfig `mapstructure:"sanitize"`
	Log      LogConfig      `mapstructure:"log"`
	Server   ServerConfig   `mapstructure:"server"`
}

// SetDefaults registers the default of every key on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("store.backend", BackendFile)
	v.SetDefault("store.dir", ".formflow/progress")
	v.SetDefault("store.redis.addr", "localhost:6379")
	v.SetDefault("store.redis.db", 0)
	v.SetDefault("store.redis.prefix", "formflow:")
	v.SetDefault("store.sqlite.path", ".formflow/progress.db")
	v.SetDefault("store.encryption_key", "")
	v.SetDefault("store.fallback_keys", []string{})
	v.SetDefault("progress.retention", progress.DefaultRetention)
	v.SetDefault("progress.redact", []string{})
	v.SetDefault("autosave.interval", 30*time.Second)
	v.SetDefault("autosave.debounce", time.Second)
	v.SetDefault("submit.url", "")
	v.SetDefault("submit.timeout", 15*time.Second)
	v.SetDefault("sanitize.max_input_size", sanitize.DefaultMaxInputSize)
	v.SetDefault("sanitize.strip_markup", true)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.idle_timeout", 30*time.Minute)
}

// NewViper returns a viper instance with defaults and environment binding.
// When file is empty an optional formflow.yaml in the working directory is read.
func NewViper(file string) (*viper.Viper, error) {
	v := viper.New()
	SetDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config %s: %w", file, err)
		}
		return v, nil
	}

	v.SetConfigName("formflow")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}
	return v, nil
}

// Load decodes and validates the configuration held by v.
func Load(v *viper.Viper) (Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	// Comma separated lists arrive from the environment as a single string.
	cfg.Progress.Redact = splitList(cfg.Progress.Redact)
	cfg.Store.FallbackKeys = splitList(cfg.Store.FallbackKeys)
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks the settings without touching any backend.
func (c Config) Validate() error {
	switch c.Store.Backend {
	case BackendMemory, BackendFile, BackendRedis, BackendSQLite:
	default:
		return fmt.Errorf("%w: unknown store backend %q", ErrInvalidConfig, c.Store.Backend)
	}
	if c.Progress.Retention <= 0 {
		return fmt.Errorf("%w: progress.retention must be positive", ErrInvalidConfig)
	}
	if c.Autosave.Interval < 0 || c.Autosave.Debounce < 0 {
		return fmt.Errorf("%w: autosave durations cannot be negative", ErrInvalidConfig)
	}
	if c.Sanitize.MaxInputSize <= 0 {
		return fmt.Errorf("%w: sanitize.max_input_size must be positive", ErrInvalidConfig)
	}
	if _, _, err := c.Store.keys(); err != nil {
		return err
	}
	return nil
}

// Logger builds the application logger.
func (c Config) Logger() *slog.Logger {
	return logging.New(logging.ParseLevel(c.Log.Level), c.Log.Format)
}

// Sanitizer builds the answer sanitiser.
func (c Config) Sanitizer() *sanitize.Sanitizer {
	opts := []sanitize.Option{sanitize.WithMaxSize(c.Sanitize.MaxInputSize)}
	if !c.Sanitize.StripMarkup {
		opts = append(opts, sanitize.WithoutMarkupStripping())
	}
	return sanitize.New(opts...)
}

func (s StoreConfig) keys() ([]byte, [][]byte, error) {
	if s.EncryptionKey == "" {
		if len(s.FallbackKeys) > 0 {
			return nil, nil, fmt.Errorf("%w: fallback keys require store.encryption_key", ErrInvalidConfig)
		}
		return nil, nil, nil
	}
	active, err := decodeKey(s.EncryptionKey)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: store.encryption_key: %w", ErrInvalidConfig, err)
	}
	fallback := make([][]byte, 0, len(s.FallbackKeys))
	for i, k := range s.FallbackKeys {
		key, err := decodeKey(k)
		if err != nil {
			return nil, nil, fmt.Errorf("%w: store.fallback_keys[%d]: %w", ErrInvalidConfig, i, err)
		}
		fallback = append(fallback, key)
	}
	return active, fallback, nil
}

func decodeKey(s string) ([]byte, error) {
	key, err := hex.DecodeString(strings.TrimSpace(s))
	if err != nil {
		return nil, fmt.Errorf("not hex: %w", err)
	}
	if len(key) != 32 {
		return nil, fmt.Errorf("must be 32 bytes, got %d", len(key))
	}
	return key, nil
}

func splitList(in []string) []string {
	var out []string
	for _, item := range in {
		for _, part := range strings.Split(item, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}
