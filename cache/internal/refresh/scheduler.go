package refresh

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/blockcache/blockcache/cache/internal/store"
	"github.com/blockcache/blockcache/pkg/metrics"
)

// Aggregator computes a pool's volume over a trailing window.
// origin.Store satisfies it.
type Aggregator interface {
	Aggregate(ctx context.Context, pool string, window time.Duration) (float64, error)
}

// Publisher receives every value written into the cache map.
type Publisher interface {
	Publish(ctx context.Context, pool string, volume float64) error
}

// Config holds the scheduler timings.
type Config struct {
	Interval     time.Duration
	Window       time.Duration
	QueryTimeout time.Duration
}

// Phase is the scheduler's current position in a refresh round.
type Phase int32

const (
	Idle Phase = iota
	Ticking
	Querying
	Publishing
)

func (p Phase) String() string {
	switch p {
	case Idle:
		return "idle"
	case Ticking:
		return "ticking"
	case Querying:
		return "querying"
	case Publishing:
		return "publishing"
	default:
		return "unknown"
	}
}

// Result summarises one refresh round.
type Result struct {
	Refreshed int
	Failed    int
	Skipped   int // not attempted, or discarded, because of cancellation
}

// Scheduler drives periodic refresh of a store.Store.
type Scheduler struct {
	st    *store.Store
	src   Aggregator
	cfg   Config
	pub   Publisher
	phase atomic.Int32
}

// New creates a Scheduler. The store and source are injected; the scheduler
// owns neither.
func New(st *store.Store, src Aggregator, cfg Config) *Scheduler {
	return &Scheduler{st: st, src: src, cfg: cfg}
}

// SetPublisher installs p to be called after every successful cache write.
// It must be called before Run.
func (s *Scheduler) SetPublisher(p Publisher) {
	s.pub = p
}

// Phase reports what the scheduler is doing right now.
func (s *Scheduler) Phase() Phase {
	return Phase(s.phase.Load())
}

func (s *Scheduler) setPhase(p Phase) {
	s.phase.Store(int32(p))
}

// Run refreshes once immediately and then every cfg.Interval until ctx is
// cancelled. Run blocks until the round in progress (if any) has stopped.
func (s *Scheduler) Run(ctx context.Context) {
	t := time.NewTicker(s.cfg.Interval)
	defer t.Stop()

	slog.Info("refresh: scheduler started",
		"pools", s.st.Len(), "interval", s.cfg.Interval, "window", s.cfg.Window)

	s.round(ctx)
	for {
		select {
		case <-ctx.Done():
			slog.Info("refresh: scheduler stopped")
			return
		case <-t.C:
			s.round(ctx)
		}
	}
}

func (s *Scheduler) round(ctx context.Context) {
	res := s.Tick(ctx)
	slog.Debug("refresh: round complete",
		"refreshed", res.Refreshed, "failed", res.Failed, "skipped", res.Skipped)
}

// Tick runs one refresh round over every registered pool.
func (s *Scheduler) Tick(ctx context.Context) Result {
	s.setPhase(Ticking)
	defer s.setPhase(Idle)

	start := time.Now()
	defer func() { metrics.RefreshDuration.Observe(time.Since(start).Seconds()) }()

	var res Result
	keys := s.st.Keys()
	for i, key := range keys {
		if ctx.Err() != nil {
			res.Skipped = len(keys) - i
			slog.Info("refresh: cancelled, remaining pools keep prior values", "skipped", res.Skipped)
			break
		}

		s.setPhase(Querying)
		vol, err := s.query(ctx, key)
		if err != nil {
			res.Failed++
			metrics.RefreshTotal.WithLabelValues("error").Inc()
			slog.Warn("refresh: query failed, keeping stale value", "pool", key, "err", err)
			continue
		}
		if ctx.Err() != nil {
			res.Skipped = len(keys) - i
			slog.Info("refresh: cancelled during query, result discarded",
				"pool", key, "skipped", res.Skipped)
			break
		}

		s.setPhase(Publishing)
		if err := s.st.Set(key, vol); err != nil {
			res.Failed++
			metrics.RefreshTotal.WithLabelValues("error").Inc()
			slog.Error("refresh: publish failed", "pool", key, "err", err)
			continue
		}
		res.Refreshed++
		metrics.RefreshTotal.WithLabelValues("ok").Inc()
		slog.Info("refresh: updated volume", "pool", key, "volume", vol)

		s.mirror(ctx, key, vol)
	}
	return res
}

// query runs one aggregate detached from ctx's cancellation and bounded by
// QueryTimeout.
func (s *Scheduler) query(ctx context.Context, key string) (float64, error) {
	qctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.cfg.QueryTimeout)
	defer cancel()
	return s.src.Aggregate(qctx, key, s.cfg.Window)
}

func (s *Scheduler) mirror(ctx context.Context, key string, vol float64) {
	if s.pub == nil {
		return
	}
	pctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.cfg.QueryTimeout)
	defer cancel()
	if err := s.pub.Publish(pctx, key, vol); err != nil {
		slog.Warn("refresh: mirror publish failed", "pool", key, "err", err)
	}
}
