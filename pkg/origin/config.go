package origin

import (
	"fmt"
	"os"
	"time"
)

// Backend names accepted in origin.backend.
const (
	BackendPostgres = "postgres"
	BackendMemory   = "memory"
)

// Defaults for the origin block.
const (
	DefaultDSNEnv          = "BLOCKCACHE_PG_DSN"
	DefaultMaxOpenConns    = 10
	DefaultMaxIdleConns    = 2
	DefaultConnMaxIdleTime = 5 * time.Minute
)

// Config is the `origin:` section of config.yaml, shared by both binaries.
type Config struct {
	// Backend is one of: postgres | memory. Default: postgres.
	Backend string `yaml:"backend"`

	// DSNEnv is the name of the environment variable holding the Postgres DSN.
	// The DSN itself never lives in the config file.
	DSNEnv string `yaml:"dsn_env"`

	MaxOpenConns    int           `yaml:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	ConnMaxIdleTime time.Duration `yaml:"conn_max_idle_time"`

	// EnsureSchema creates the transactions table on startup when missing.
	EnsureSchema bool `yaml:"ensure_schema"`
}

// DefaultConfig returns the origin block defaults.
func DefaultConfig() Config {
	return Config{
		Backend:         BackendPostgres,
		DSNEnv:          DefaultDSNEnv,
		MaxOpenConns:    DefaultMaxOpenConns,
		MaxIdleConns:    DefaultMaxIdleConns,
		ConnMaxIdleTime: DefaultConnMaxIdleTime,
	}
}

// DSN returns the Postgres DSN resolved from the environment.
func (c Config) DSN() string {
	if c.DSNEnv == "" {
		return ""
	}
	return os.Getenv(c.DSNEnv)
}

// Validate checks structural constraints. The DSN is resolved at Open time,
// not here, so a config file can be validated without the secret present.
func (c Config) Validate() error {
	switch c.Backend {
	case BackendPostgres, BackendMemory:
	default:
		return fmt.Errorf("origin.backend %q unknown: want postgres|memory", c.Backend)
	}
	if c.MaxOpenConns < 0 || c.MaxIdleConns < 0 {
		return fmt.Errorf("origin connection pool sizes must not be negative")
	}
	if c.ConnMaxIdleTime < 0 {
		return fmt.Errorf("origin.conn_max_idle_time must not be negative")
	}
	return nil
}
