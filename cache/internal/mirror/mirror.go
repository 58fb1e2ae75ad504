// Package mirror copies refreshed cache values into Redis so that other
// readers can see the cache map without calling the cache binary. The mirror
// is write-only from the cache's point of view and never sits on the read path.
package mirror

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// Options configures the Redis connection.
type Options struct {
	Addr      string
	Password  string
	DB        int
	KeyPrefix string
}

// Mirror writes one Redis hash per pool: <prefix>:<pool> {volume, updated_at}.
type Mirror struct {
	rdb    *redis.Client
	prefix string
	now    func() time.Time
}

// New connects to Redis and pings it before returning.
func New(ctx context.Context, opts Options) (*Mirror, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("mirror: redis ping %s: %w", opts.Addr, err)
	}
	return &Mirror{rdb: rdb, prefix: opts.KeyPrefix, now: time.Now}, nil
}

func (m *Mirror) key(pool string) string {
	return m.prefix + ":" + pool
}

// Publish stores volume for pool.
func (m *Mirror) Publish(ctx context.Context, pool string, volume float64) error {
	err := m.rdb.HSet(ctx, m.key(pool),
		"volume", strconv.FormatFloat(volume, 'f', -1, 64),
		"updated_at", m.now().UTC().Format(time.RFC3339Nano),
	).Err()
	if err != nil {
		return fmt.Errorf("mirror: hset %s: %w", pool, err)
	}
	return nil
}

// Close releases the Redis connection pool.
func (m *Mirror) Close() error {
	return m.rdb.Close()
}
