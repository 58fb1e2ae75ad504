// Package ingest is the synthetic event source: it records one random trade
// against a configured pool every interval and logs throughput.
package ingest

import (
	"context"
	"log/slog"
	"math/rand/v2"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/blockcache/blockcache/pkg/metrics"
	"github.com/blockcache/blockcache/pkg/types"
)

const defaultInsertTimeout = 5 * time.Second

// Inserter records events idempotently. origin.Store satisfies it.
type Inserter interface {
	Insert(ctx context.Context, ev types.Event) (bool, error)
}

// Config controls the generator.
type Config struct {
	Interval       time.Duration
	ReportInterval time.Duration
	InsertTimeout  time.Duration // bounds one insert; shutdown never cuts it short
	Pool           string
	MinAmount      float64 // inclusive
	MaxAmount      float64 // exclusive
}

// Generator produces and inserts events.
type Generator struct {
	dst   Inserter
	cfg   Config
	rnd   *rand.Rand
	newID func() string

	total  atomic.Int64
	window int64 // inserted since the last report, owned by Run
}

// New creates a Generator writing to dst.
func New(dst Inserter, cfg Config) *Generator {
	return &Generator{
		dst:   dst,
		cfg:   cfg,
		rnd:   rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())),
		newID: uuid.NewString,
	}
}

// Next builds one event. The store assigns its timestamp on insert.
func (g *Generator) Next() types.Event {
	span := g.cfg.MaxAmount - g.cfg.MinAmount
	return types.Event{
		Signature: "tx_" + g.newID(),
		Pool:      g.cfg.Pool,
		Amount:    g.cfg.MinAmount + g.rnd.Float64()*span,
	}
}

// Inserted returns how many events have been durably inserted so far.
func (g *Generator) Inserted() int64 {
	return g.total.Load()
}

// Run inserts one event per Interval until ctx is cancelled. Insert errors
// are logged and the loop continues with the next tick.
func (g *Generator) Run(ctx context.Context) {
	tick := time.NewTicker(g.cfg.Interval)
	defer tick.Stop()
	report := time.NewTicker(g.cfg.ReportInterval)
	defer report.Stop()

	slog.Info("ingest: generator started",
		"pool", g.cfg.Pool, "interval", g.cfg.Interval)

	last := time.Now()
	for {
		select {
		case <-ctx.Done():
			slog.Info("ingest: generator stopped", "inserted_total", g.Inserted())
			return
		case <-tick.C:
			g.step(ctx)
		case now := <-report.C:
			slog.Info("ingest: throughput",
				"inserted", g.window, "seconds", now.Sub(last).Seconds())
			g.window = 0
			last = now
		}
	}
}

func (g *Generator) step(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	ev := g.Next()

	// An insert already started runs to completion even if ctx is cancelled.
	ictx, cancel := context.WithTimeout(context.WithoutCancel(ctx), g.insertTimeout())
	defer cancel()

	ok, err := g.dst.Insert(ictx, ev)
	if err != nil {
		slog.Error("ingest: insert failed", "signature", ev.Signature, "err", err)
		return
	}
	if !ok {
		slog.Debug("ingest: duplicate signature ignored", "signature", ev.Signature)
		return
	}
	g.window++
	g.total.Add(1)
	metrics.IngestedEvents.Inc()
}

func (g *Generator) insertTimeout() time.Duration {
	if g.cfg.InsertTimeout > 0 {
		return g.cfg.InsertTimeout
	}
	return defaultInsertTimeout
}
