package config

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/blockcache/blockcache/pkg/origin"
	"github.com/blockcache/blockcache/pkg/types"
)

// Default values for the cache configuration.
const (
	DefaultHTTPPort        = 3030
	DefaultRefreshInterval = 30 * time.Second
	DefaultQueryTimeout    = 10 * time.Second
	DefaultStreamInterval  = 5 * time.Second
	DefaultLogLevel        = "info"

	DefaultMirrorAddr      = "127.0.0.1:6379"
	DefaultMirrorKeyPrefix = "blockcache:volume"
)

// DefaultPools are the pool addresses registered when cache.pools is absent.
var DefaultPools = []string{
	"CWjGo5jkduSW5LN5rxgiQ18vGnJJEKWPCXkpJGxKSQTH",
	"7xuPLn8Bun4ZGHeD95xYLnPKReKtSe7zfVRzRJWJZVZW",
	"6d4UYGAEs4Akq6py8Vb3Qv5PvMkecPLS1Z9bBCcip2R7",
}

// Config holds the cache-side configuration. The `server:` key in the same
// file is ignored.
type Config struct {
	Cache  CacheConfig   `yaml:"cache"`
	Origin origin.Config `yaml:"origin"`
}

// CacheConfig holds all cache-binary settings.
type CacheConfig struct {
	// HTTPPort serves POST /volume, /api/v1/*, /ws/stream and /metrics (default 3030).
	HTTPPort int `yaml:"http_port"`

	// LogLevel is one of: debug | info | warn | error. Hot-reloaded.
	LogLevel string `yaml:"log_level"`

	// Pools is the fixed registry of pool addresses held in the cache map.
	Pools []string `yaml:"pools"`

	// RefreshInterval is the period between refresh rounds (default 30s).
	RefreshInterval time.Duration `yaml:"refresh_interval"`

	// Window is the trailing aggregation window (default 5m).
	Window time.Duration `yaml:"window"`

	// QueryTimeout bounds a single origin aggregate call (default 10s).
	QueryTimeout time.Duration `yaml:"query_timeout"`

	// StreamInterval is how often /ws/stream pushes a snapshot (default 5s).
	StreamInterval time.Duration `yaml:"stream_interval"`

	// Mirror optionally copies every refreshed value into Redis.
	Mirror MirrorConfig `yaml:"mirror"`
}

// MirrorConfig controls the optional Redis mirror of the cache map.
type MirrorConfig struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr"`

	// PasswordEnv is the name of the environment variable holding the Redis password.
	PasswordEnv string `yaml:"password_env"`

	DB        int    `yaml:"db"`
	KeyPrefix string `yaml:"key_prefix"`
}

// Password returns the Redis password resolved from the environment.
func (m MirrorConfig) Password() string {
	if m.PasswordEnv == "" {
		return ""
	}
	return os.Getenv(m.PasswordEnv)
}

// Level returns the parsed log level. validate guarantees it parses.
func (c CacheConfig) Level() slog.Level {
	lvl, _ := parseLevel(c.LogLevel)
	return lvl
}

// Load reads and parses the config file at path, returning the cache configuration.
// Missing fields are filled with defaults before validation.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cache config: read %q: %w", path, err)
	}

	cfg := defaults()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("cache config: parse yaml: %w", err)
	}

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("cache config: %w", err)
	}

	return cfg, nil
}

// defaults returns a Config pre-populated with default values.
func defaults() *Config {
	return &Config{
		Cache: CacheConfig{
			HTTPPort:        DefaultHTTPPort,
			LogLevel:        DefaultLogLevel,
			Pools:           append([]string(nil), DefaultPools...),
			RefreshInterval: DefaultRefreshInterval,
			Window:          types.DefaultWindow,
			QueryTimeout:    DefaultQueryTimeout,
			StreamInterval:  DefaultStreamInterval,
			Mirror: MirrorConfig{
				Addr:      DefaultMirrorAddr,
				KeyPrefix: DefaultMirrorKeyPrefix,
			},
		},
		Origin: origin.DefaultConfig(),
	}
}

// validate checks structural constraints on the parsed configuration.
func validate(cfg *Config) error {
	c := cfg.Cache
	if c.HTTPPort <= 0 || c.HTTPPort > 65535 {
		return fmt.Errorf("cache.http_port %d is out of range [1, 65535]", c.HTTPPort)
	}
	if _, err := parseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("cache.log_level: %w", err)
	}
	if len(c.Pools) == 0 {
		return fmt.Errorf("cache.pools must list at least one pool")
	}
	for i, p := range c.Pools {
		if p == "" {
			return fmt.Errorf("cache.pools[%d] is empty", i)
		}
	}
	if c.RefreshInterval <= 0 {
		return fmt.Errorf("cache.refresh_interval must be positive")
	}
	if c.Window <= 0 {
		return fmt.Errorf("cache.window must be positive")
	}
	if c.QueryTimeout <= 0 {
		return fmt.Errorf("cache.query_timeout must be positive")
	}
	if c.StreamInterval <= 0 {
		return fmt.Errorf("cache.stream_interval must be positive")
	}
	if c.Mirror.Enabled && c.Mirror.Addr == "" {
		return fmt.Errorf("cache.mirror.addr is required when the mirror is enabled")
	}
	return cfg.Origin.Validate()
}

func parseLevel(s string) (slog.Level, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelInfo, fmt.Errorf("%q unknown: want debug|info|warn|error", s)
	}
	return lvl, nil
}
