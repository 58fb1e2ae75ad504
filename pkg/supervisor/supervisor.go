// Package supervisor runs the long-lived tasks of a binary as one joined
// group. Every task started with Go is retained and waited for by Wait; no
// goroutine is detached. The first task to fail cancels the group context so
// the remaining tasks stop in order.
package supervisor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"
)

// DefaultGrace bounds how long ServeHTTP waits for in-flight requests.
const DefaultGrace = 10 * time.Second

// Group is a named-task wrapper around errgroup.Group.
type Group struct {
	g   *errgroup.Group
	ctx context.Context
}

// New returns a Group whose context is derived from ctx. The group context
// is cancelled when ctx is cancelled or when any task returns a non-nil error
// other than context.Canceled.
func New(ctx context.Context) *Group {
	g, gctx := errgroup.WithContext(ctx)
	return &Group{g: g, ctx: gctx}
}

// Context returns the group context passed to every task.
func (g *Group) Context() context.Context { return g.ctx }

// Go starts fn as a supervised task.
func (g *Group) Go(name string, fn func(ctx context.Context) error) {
	g.g.Go(func() error {
		slog.Info("supervisor: task started", "task", name)
		err := fn(g.ctx)
		if err == nil || errors.Is(err, context.Canceled) {
			slog.Info("supervisor: task stopped", "task", name)
			return nil
		}
		slog.Error("supervisor: task failed", "task", name, "err", err)
		return fmt.Errorf("%s: %w", name, err)
	})
}

// Wait blocks until every task has returned and reports the first failure.
func (g *Group) Wait() error {
	return g.g.Wait()
}

// ServeHTTP runs srv until ctx is cancelled, then shuts it down with at most
// grace for in-flight requests to finish. A clean shutdown returns nil.
func ServeHTTP(ctx context.Context, srv *http.Server, grace time.Duration) error {
	if grace <= 0 {
		grace = DefaultGrace
	}

	errc := make(chan error, 1)
	go func() {
		slog.Info("http: listening", "addr", srv.Addr)
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("http: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), grace)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http: shutdown: %w", err)
	}
	if err := <-errc; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http: %w", err)
	}
	return nil
}
