package volume

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/blockcache/blockcache/pkg/metrics"
	"github.com/blockcache/blockcache/pkg/types"
)

// Source answers volume lookups for a pool.
type Source interface {
	Volume(ctx context.Context, pool string) (float64, error)
}

// named is implemented by sources that label their own metrics.
type named interface {
	Name() string
}

func nameOf(s Source) string {
	if n, ok := s.(named); ok {
		return n.Name()
	}
	return "unknown"
}

// Aggregator is the slice of origin.Store that OriginSource needs.
type Aggregator interface {
	Aggregate(ctx context.Context, pool string, window time.Duration) (float64, error)
}

// OriginSource reads volumes straight from the origin store.
type OriginSource struct {
	agg     Aggregator
	window  time.Duration
	timeout time.Duration
}

// NewOriginSource returns a Source that aggregates over window. Each query
// is cut off after timeout; a non-positive timeout leaves it unbounded.
func NewOriginSource(agg Aggregator, window, timeout time.Duration) *OriginSource {
	return &OriginSource{agg: agg, window: window, timeout: timeout}
}

// Name implements named.
func (o *OriginSource) Name() string { return "origin" }

// Volume implements Source. Pools with no events answer 0.
func (o *OriginSource) Volume(ctx context.Context, pool string) (float64, error) {
	if o.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.timeout)
		defer cancel()
	}
	return o.agg.Aggregate(ctx, pool, o.window)
}

// Fallback asks Primary first and Secondary only when Primary fails.
type Fallback struct {
	Primary   Source
	Secondary Source
}

// Volume implements Source. When both sources fail the error wraps
// types.ErrUpstream and the secondary's cause.
func (f Fallback) Volume(ctx context.Context, pool string) (float64, error) {
	v, err := f.Primary.Volume(ctx, pool)
	if err == nil {
		metrics.ReadThrough.WithLabelValues(nameOf(f.Primary)).Inc()
		return v, nil
	}

	if errors.Is(err, types.ErrMalformedPeerResponse) {
		slog.Warn("volume: primary answered garbage, falling back",
			"pool", pool, "source", nameOf(f.Primary), "err", err)
	} else {
		slog.Debug("volume: primary failed, falling back",
			"pool", pool, "source", nameOf(f.Primary), "err", err)
	}

	v, err = f.Secondary.Volume(ctx, pool)
	if err != nil {
		metrics.ReadThrough.WithLabelValues("error").Inc()
		return 0, fmt.Errorf("%w: %w", types.ErrUpstream, err)
	}
	metrics.ReadThrough.WithLabelValues(nameOf(f.Secondary)).Inc()
	return v, nil
}
