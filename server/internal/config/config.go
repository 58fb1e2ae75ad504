package config

import (
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/blockcache/blockcache/pkg/origin"
	"github.com/blockcache/blockcache/pkg/types"
)

// Default values for the server configuration.
const (
	DefaultHTTPPort      = 8000
	DefaultPeerURL       = "http://127.0.0.1:3030/volume"
	DefaultPeerTimeout   = 5 * time.Second
	DefaultOriginTimeout = 5 * time.Second
	DefaultInsertTimeout = 5 * time.Second
	DefaultShutdownGrace = 10 * time.Second
	DefaultLogLevel      = "info"

	DefaultIngestInterval = 20 * time.Millisecond
	DefaultIngestPool     = "6d4UYGAEs4Akq6py8Vb3Qv5PvMkecPLS1Z9bBCcip2R7"
	DefaultMinAmount      = 0.1
	DefaultMaxAmount      = 10.0
	DefaultReportInterval = time.Second
)

// Config holds the server-side configuration.
type Config struct {
	Server ServerConfig  `yaml:"server"`
	Origin origin.Config `yaml:"origin"`
}

// ServerConfig holds all public-server settings.
type ServerConfig struct {
	// HTTPPort serves the public POST /volume, /api/v1/health and /metrics (default 8000).
	HTTPPort int `yaml:"http_port"`

	// LogLevel is one of: debug | info | warn | error.
	LogLevel string `yaml:"log_level"`

	// PeerURL is the cache binary's POST /volume endpoint.
	PeerURL string `yaml:"peer_url"`

	// PeerTimeout bounds one peer-cache call, connect to body (default 5s).
	PeerTimeout time.Duration `yaml:"peer_timeout"`

	// OriginTimeout bounds one fallback query against the origin store (default 5s).
	OriginTimeout time.Duration `yaml:"origin_timeout"`

	// Window is the trailing aggregation window used on origin fallback (default 5m).
	Window time.Duration `yaml:"window"`

	// ShutdownGrace is how long in-flight HTTP requests get after a stop signal.
	ShutdownGrace time.Duration `yaml:"shutdown_grace"`

	CORS   CORSConfig   `yaml:"cors"`
	Ingest IngestConfig `yaml:"ingest"`
}

// CORSConfig controls cross-origin access to the public endpoint.
type CORSConfig struct {
	// AllowedOrigins lists permitted Origin values; "*" allows any (default ["*"]).
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// IngestConfig controls the synthetic event generator.
type IngestConfig struct {
	Enabled        bool          `yaml:"enabled"`
	Interval       time.Duration `yaml:"interval"`
	Pool           string        `yaml:"pool"`
	MinAmount      float64       `yaml:"min_amount"`
	MaxAmount      float64       `yaml:"max_amount"`
	ReportInterval time.Duration `yaml:"report_interval"`

	// InsertTimeout bounds one insert. Inserts are not cut short by shutdown.
	InsertTimeout time.Duration `yaml:"insert_timeout"`
}

// Level returns the parsed log level. validate guarantees it parses.
func (s ServerConfig) Level() slog.Level {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(s.LogLevel)); err != nil {
		return slog.LevelInfo
	}
	return lvl
}

// Load reads and parses the config file at path, returning the server configuration.
// Missing fields are filled with defaults before validation.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("server config: read %q: %w", path, err)
	}

	cfg := defaults()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("server config: parse yaml: %w", err)
	}

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("server config: %w", err)
	}

	return cfg, nil
}

// defaults returns a Config pre-populated with default values.
func defaults() *Config {
	return &Config{
		Server: ServerConfig{
			HTTPPort:      DefaultHTTPPort,
			LogLevel:      DefaultLogLevel,
			PeerURL:       DefaultPeerURL,
			PeerTimeout:   DefaultPeerTimeout,
			OriginTimeout: DefaultOriginTimeout,
			Window:        types.DefaultWindow,
			ShutdownGrace: DefaultShutdownGrace,
			CORS: CORSConfig{
				AllowedOrigins: []string{"*"},
			},
			Ingest: IngestConfig{
				Enabled:        true,
				Interval:       DefaultIngestInterval,
				Pool:           DefaultIngestPool,
				MinAmount:      DefaultMinAmount,
				MaxAmount:      DefaultMaxAmount,
				ReportInterval: DefaultReportInterval,
				InsertTimeout:  DefaultInsertTimeout,
			},
		},
		Origin: origin.DefaultConfig(),
	}
}

// validate checks structural constraints on the parsed configuration.
func validate(cfg *Config) error {
	s := cfg.Server
	if s.HTTPPort <= 0 || s.HTTPPort > 65535 {
		return fmt.Errorf("server.http_port %d is out of range [1, 65535]", s.HTTPPort)
	}
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(s.LogLevel)); err != nil {
		return fmt.Errorf("server.log_level %q unknown: want debug|info|warn|error", s.LogLevel)
	}
	u, err := url.Parse(s.PeerURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("server.peer_url %q must be an absolute http(s) URL", s.PeerURL)
	}
	if s.PeerTimeout <= 0 {
		return fmt.Errorf("server.peer_timeout must be positive")
	}
	if s.OriginTimeout <= 0 {
		return fmt.Errorf("server.origin_timeout must be positive")
	}
	if s.Window <= 0 {
		return fmt.Errorf("server.window must be positive")
	}
	if s.ShutdownGrace < 0 {
		return fmt.Errorf("server.shutdown_grace must not be negative")
	}
	if in := s.Ingest; in.Enabled {
		if in.Interval <= 0 {
			return fmt.Errorf("server.ingest.interval must be positive")
		}
		if in.Pool == "" {
			return fmt.Errorf("server.ingest.pool is required when ingest is enabled")
		}
		if in.MinAmount < 0 || in.MaxAmount <= in.MinAmount {
			return fmt.Errorf("server.ingest amounts must satisfy 0 <= min_amount < max_amount")
		}
		if in.ReportInterval <= 0 {
			return fmt.Errorf("server.ingest.report_interval must be positive")
		}
		if in.InsertTimeout <= 0 {
			return fmt.Errorf("server.ingest.insert_timeout must be positive")
		}
	}
	return cfg.Origin.Validate()
}
