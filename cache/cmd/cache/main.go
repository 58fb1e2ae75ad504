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

	"github.com/blockcache/blockcache/cache/internal/api"
	"github.com/blockcache/blockcache/cache/internal/config"
	"github.com/blockcache/blockcache/cache/internal/mirror"
	"github.com/blockcache/blockcache/cache/internal/refresh"
	"github.com/blockcache/blockcache/cache/internal/store"
	"github.com/blockcache/blockcache/cache/internal/ws"
	"github.com/blockcache/blockcache/pkg/metrics"
	"github.com/blockcache/blockcache/pkg/origin"
	"github.com/blockcache/blockcache/pkg/supervisor"
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

	slog.Info("blockcache-cache starting", "config", *configPath)

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "err", err)
		os.Exit(1)
	}
	level.Set(cfg.Cache.Level())

	slog.Info("config loaded",
		"http_port", cfg.Cache.HTTPPort,
		"pools", len(cfg.Cache.Pools),
		"refresh_interval", cfg.Cache.RefreshInterval,
		"window", cfg.Cache.Window,
		"origin_backend", cfg.Origin.Backend,
		"mirror", cfg.Cache.Mirror.Enabled,
	)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	src, err := origin.Open(ctx, cfg.Origin)
	if err != nil {
		slog.Error("failed to open origin store", "err", err)
		os.Exit(1)
	}

	volumes := store.New(cfg.Cache.Pools)
	sched := refresh.New(volumes, src, refresh.Config{
		Interval:     cfg.Cache.RefreshInterval,
		Window:       cfg.Cache.Window,
		QueryTimeout: cfg.Cache.QueryTimeout,
	})

	// The mirror is optional; a Redis outage at startup only disables it.
	var mir *mirror.Mirror
	if m := cfg.Cache.Mirror; m.Enabled {
		mir, err = mirror.New(ctx, mirror.Options{
			Addr:      m.Addr,
			Password:  m.Password(),
			DB:        m.DB,
			KeyPrefix: m.KeyPrefix,
		})
		if err != nil {
			slog.Warn("redis mirror disabled", "err", err)
		} else {
			sched.SetPublisher(mir)
			slog.Info("redis mirror enabled", "addr", m.Addr)
		}
	}

	g := supervisor.New(ctx)

	hub := ws.New(volumes, sched, cfg.Cache.StreamInterval)
	handler := api.New(g.Context(), volumes, sched)

	mux := http.NewServeMux()
	mux.Handle("/volume", handler)
	mux.Handle("/api/", handler)
	mux.Handle("/ws/stream", hub)
	mux.Handle("/metrics", metrics.Handler())

	httpSrv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Cache.HTTPPort),
		Handler: mux,
	}

	g.Go("refresh", func(ctx context.Context) error {
		sched.Run(ctx)
		return nil
	})
	g.Go("ws-hub", func(ctx context.Context) error {
		hub.Run(ctx)
		return nil
	})
	g.Go("http", func(ctx context.Context) error {
		return supervisor.ServeHTTP(ctx, httpSrv, supervisor.DefaultGrace)
	})
	g.Go("config-watch", func(ctx context.Context) error {
		err := config.Watch(ctx, *configPath, func(c *config.Config) {
			level.Set(c.Cache.Level())
		})
		if err != nil {
			slog.Warn("config watch unavailable", "err", err)
		}
		return nil
	})

	waitErr := g.Wait()
	slog.Info("blockcache-cache shutting down")

	// Every task has returned; nothing can still be using the connections.
	if mir != nil {
		if err := mir.Close(); err != nil {
			slog.Warn("closing redis mirror", "err", err)
		}
	}
	if err := src.Close(); err != nil {
		slog.Warn("closing origin store", "err", err)
	}

	if waitErr != nil {
		slog.Error("blockcache-cache stopped with error", "err", waitErr)
		os.Exit(1)
	}
}
