package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/blockcache/blockcache/pkg/metrics"
	"github.com/blockcache/blockcache/pkg/origin"
	"github.com/blockcache/blockcache/pkg/supervisor"
	"github.com/blockcache/blockcache/server/internal/api"
	"github.com/blockcache/blockcache/server/internal/config"
	"github.com/blockcache/blockcache/server/internal/ingest"
	"github.com/blockcache/blockcache/server/internal/volume"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	envFile := flag.String("env", ".env", "optional dotenv file loaded before the config")
	flag.Parse()

	level := new(slog.LevelVar)
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	if err := godotenv.Load(*envFile); err != nil {
		slog.Debug("no dotenv file loaded", "path", *envFile, "err", err)
	}

	slog.Info("blockcache-server starting", "config", *configPath)

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "err", err)
		os.Exit(1)
	}
	level.Set(cfg.Server.Level())

	slog.Info("config loaded",
		"http_port", cfg.Server.HTTPPort,
		"peer_url", cfg.Server.PeerURL,
		"peer_timeout", cfg.Server.PeerTimeout,
		"origin_timeout", cfg.Server.OriginTimeout,
		"window", cfg.Server.Window,
		"ingest", cfg.Server.Ingest.Enabled,
		"origin_backend", cfg.Origin.Backend,
	)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	st, err := origin.Open(ctx, cfg.Origin)
	if err != nil {
		slog.Error("failed to open origin store", "err", err)
		os.Exit(1)
	}

	src := volume.Fallback{
		Primary:   volume.NewPeerSource(cfg.Server.PeerURL, cfg.Server.PeerTimeout),
		Secondary: volume.NewOriginSource(st, cfg.Server.Window, cfg.Server.OriginTimeout),
	}

	g := supervisor.New(ctx)

	mux := http.NewServeMux()
	public := api.New(g.Context(), src, cfg.Server.CORS.AllowedOrigins)
	mux.Handle("/volume", public)
	mux.Handle("/api/", public)
	mux.Handle("/metrics", metrics.Handler())

	httpSrv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.HTTPPort),
		Handler: mux,
	}
	g.Go("http", func(ctx context.Context) error {
		return supervisor.ServeHTTP(ctx, httpSrv, cfg.Server.ShutdownGrace)
	})

	if in := cfg.Server.Ingest; in.Enabled {
		gen := ingest.New(st, ingest.Config{
			Interval:       in.Interval,
			ReportInterval: in.ReportInterval,
			InsertTimeout:  in.InsertTimeout,
			Pool:           in.Pool,
			MinAmount:      in.MinAmount,
			MaxAmount:      in.MaxAmount,
		})
		g.Go("ingest", func(ctx context.Context) error {
			gen.Run(ctx)
			return nil
		})
	}

	waitErr := g.Wait()
	slog.Info("blockcache-server shutting down")

	// Every task has returned; nothing can still be using the store.
	if err := st.Close(); err != nil {
		slog.Warn("closing origin store", "err", err)
	}

	if waitErr != nil {
		slog.Error("blockcache-server stopped with error", "err", waitErr)
		os.Exit(1)
	}
}
