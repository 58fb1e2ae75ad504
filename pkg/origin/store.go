package origin

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	_ "github.com/lib/pq" // postgres driver

	"github.com/blockcache/blockcache/pkg/types"
)

// Store is the origin store contract.
type Store interface {
	// Aggregate returns the summed amount for pool over the trailing window.
	// No matching events yields exactly 0 and a nil error.
	Aggregate(ctx context.Context, pool string, window time.Duration) (float64, error)

	// Insert records ev. inserted is false when the signature already exists.
	Insert(ctx context.Context, ev types.Event) (inserted bool, err error)

	// Ping checks that the store is reachable.
	Ping(ctx context.Context) error

	// Close releases the underlying connections.
	Close() error
}

// Open builds the Store selected by cfg.Backend. The Postgres backend is
// pinged before Open returns, and its schema is created when cfg.EnsureSchema
// is set.
func Open(ctx context.Context, cfg Config) (Store, error) {
	switch cfg.Backend {
	case BackendMemory:
		slog.Warn("origin: using in-memory store, data is lost on exit")
		return NewMemory(), nil
	case BackendPostgres, "":
	default:
		return nil, fmt.Errorf("origin: unknown backend %q", cfg.Backend)
	}

	dsn := cfg.DSN()
	if dsn == "" {
		return nil, fmt.Errorf("origin: environment variable %q holds no DSN", cfg.DSNEnv)
	}

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("origin: open: %w", err)
	}
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	pg := NewPostgres(db)
	if err := pg.Ping(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("origin: %w", err)
	}
	if cfg.EnsureSchema {
		if err := pg.EnsureSchema(ctx); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("origin: %w", err)
		}
	}
	return pg, nil
}
