package origin

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/blockcache/blockcache/pkg/metrics"
	"github.com/blockcache/blockcache/pkg/types"
)

const (
	aggregateQuery = `SELECT COALESCE(SUM(amount), 0)::DOUBLE PRECISION FROM transactions WHERE pool_address = $1 AND timestamp >= NOW() - make_interval(secs => $2)`

	insertQuery = `INSERT INTO transactions (signature, pool_address, amount, timestamp) VALUES ($1, $2, $3, NOW()) ON CONFLICT (signature) DO NOTHING`

	schemaQuery = `CREATE TABLE IF NOT EXISTS transactions (
	signature    TEXT PRIMARY KEY,
	pool_address TEXT NOT NULL,
	amount       DOUBLE PRECISION NOT NULL CHECK (amount >= 0),
	timestamp    TIMESTAMPTZ NOT NULL DEFAULT NOW()
)`

	indexQuery = `CREATE INDEX IF NOT EXISTS transactions_pool_ts_idx ON transactions (pool_address, timestamp)`
)

// Postgres is the Store backed by a Postgres transactions table.
type Postgres struct {
	db *sql.DB
}

// NewPostgres wraps an already-opened database handle.
func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

// Aggregate implements Store.
func (p *Postgres) Aggregate(ctx context.Context, pool string, window time.Duration) (float64, error) {
	defer observe("aggregate", time.Now())

	var sum float64
	err := p.db.QueryRowContext(ctx, aggregateQuery, pool, window.Seconds()).Scan(&sum)
	if err != nil {
		return 0, fmt.Errorf("%w: aggregate %s: %w", types.ErrStoreUnavailable, pool, err)
	}
	if sum < 0 {
		return 0, fmt.Errorf("%w: aggregate %s: negative sum %v", types.ErrStoreUnavailable, pool, sum)
	}
	return sum, nil
}

// Insert implements Store. The row timestamp is the database's NOW(); any
// Timestamp set on ev is ignored.
func (p *Postgres) Insert(ctx context.Context, ev types.Event) (bool, error) {
	defer observe("insert", time.Now())

	res, err := p.db.ExecContext(ctx, insertQuery, ev.Signature, ev.Pool, ev.Amount)
	if err != nil {
		return false, fmt.Errorf("%w: insert %s: %w", types.ErrStoreUnavailable, ev.Signature, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("%w: insert %s: %w", types.ErrStoreUnavailable, ev.Signature, err)
	}
	return n > 0, nil
}

// EnsureSchema creates the transactions table and its lookup index if missing.
func (p *Postgres) EnsureSchema(ctx context.Context) error {
	for _, q := range []string{schemaQuery, indexQuery} {
		if _, err := p.db.ExecContext(ctx, q); err != nil {
			return fmt.Errorf("%w: ensure schema: %w", types.ErrStoreUnavailable, err)
		}
	}
	return nil
}

// Ping implements Store.
func (p *Postgres) Ping(ctx context.Context) error {
	if err := p.db.PingContext(ctx); err != nil {
		return fmt.Errorf("%w: ping: %w", types.ErrStoreUnavailable, err)
	}
	return nil
}

// Close implements Store.
func (p *Postgres) Close() error {
	return p.db.Close()
}

func observe(op string, start time.Time) {
	metrics.OriginQueryDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
}
