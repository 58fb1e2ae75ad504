package origin

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/blockcache/blockcache/pkg/types"
)

// Memory is an in-process Store. Events are kept for the life of the process.
type Memory struct {
	mu     sync.Mutex
	events map[string]types.Event // keyed by signature
	closed bool
	now    func() time.Time // injectable for deterministic tests
}

// NewMemory returns an empty in-memory Store.
func NewMemory() *Memory {
	return &Memory{
		events: make(map[string]types.Event),
		now:    time.Now,
	}
}

// Aggregate implements Store.
func (m *Memory) Aggregate(ctx context.Context, pool string, window time.Duration) (float64, error) {
	if err := ctx.Err(); err != nil {
		return 0, fmt.Errorf("%w: aggregate %s: %w", types.ErrStoreUnavailable, pool, err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return 0, fmt.Errorf("%w: aggregate %s: store closed", types.ErrStoreUnavailable, pool)
	}

	cutoff := m.now().Add(-window)
	var sum float64
	for _, ev := range m.events {
		if ev.Pool == pool && !ev.Timestamp.Before(cutoff) {
			sum += ev.Amount
		}
	}
	return sum, nil
}

// Insert implements Store. The stored timestamp is the store clock's now.
func (m *Memory) Insert(ctx context.Context, ev types.Event) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, fmt.Errorf("%w: insert %s: %w", types.ErrStoreUnavailable, ev.Signature, err)
	}
	if ev.Amount < 0 {
		return false, fmt.Errorf("%w: insert %s: negative amount", types.ErrStoreUnavailable, ev.Signature)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return false, fmt.Errorf("%w: insert %s: store closed", types.ErrStoreUnavailable, ev.Signature)
	}
	if _, dup := m.events[ev.Signature]; dup {
		return false, nil
	}
	ev.Timestamp = m.now()
	m.events[ev.Signature] = ev
	return true, nil
}

// Ping implements Store.
func (m *Memory) Ping(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return fmt.Errorf("%w: store closed", types.ErrStoreUnavailable)
	}
	return ctx.Err()
}

// Close implements Store.
func (m *Memory) Close() error {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()
	return nil
}
