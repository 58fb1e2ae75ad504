// Command healthcheck probes the cache and server binaries and prints one line
// per target. It exits 1 when any target is unhealthy or unreachable.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/blockcache/blockcache/tools/internal/probe"
)

func main() {
	targets := flag.String("targets", "http://127.0.0.1:3030,http://127.0.0.1:8000",
		"comma-separated base URLs to probe")
	timeout := flag.Duration("timeout", 5*time.Second, "per-request timeout")
	flag.Parse()

	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn})))

	ctx := context.Background()
	p := probe.New(*timeout)
	failed := 0
	for _, t := range strings.Split(*targets, ",") {
		t = strings.TrimSpace(t)
		if t == "" {
			continue
		}
		r := p.Probe(ctx, t)
		fmt.Println(r.String())
		if !r.Healthy || r.Err != nil {
			slog.Warn("healthcheck: target unhealthy", "target", r.Target, "err", r.Err)
			failed++
		}
	}

	if failed > 0 {
		os.Exit(1)
	}
}
