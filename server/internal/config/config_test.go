package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	p := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(p, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return p
}

func TestLoad_Defaults(t *testing.T) {
	// Only the cache section present; server section falls back to defaults.
	p := writeConfig(t, `cache:
  http_port: 3030
`)
	cfg, err := Load(p)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	s := cfg.Server
	if s.HTTPPort != DefaultHTTPPort {
		t.Errorf("http_port: got %d, want %d", s.HTTPPort, DefaultHTTPPort)
	}
	if s.PeerURL != DefaultPeerURL {
		t.Errorf("peer_url: got %q, want %q", s.PeerURL, DefaultPeerURL)
	}
	if s.PeerTimeout != 5*time.Second {
		t.Errorf("peer_timeout: got %v, want 5s", s.PeerTimeout)
	}
	if s.OriginTimeout != 5*time.Second {
		t.Errorf("origin_timeout: got %v, want 5s", s.OriginTimeout)
	}
	if s.Ingest.InsertTimeout != 5*time.Second {
		t.Errorf("ingest.insert_timeout: got %v, want 5s", s.Ingest.InsertTimeout)
	}
	if !s.Ingest.Enabled || s.Ingest.Interval != 20*time.Millisecond {
		t.Errorf("ingest: got %+v, want enabled every 20ms", s.Ingest)
	}
	if s.Ingest.MinAmount != 0.1 || s.Ingest.MaxAmount != 10 {
		t.Errorf("ingest amounts: got [%v, %v), want [0.1, 10)", s.Ingest.MinAmount, s.Ingest.MaxAmount)
	}
	if len(s.CORS.AllowedOrigins) != 1 || s.CORS.AllowedOrigins[0] != "*" {
		t.Errorf("cors.allowed_origins: got %v, want [*]", s.CORS.AllowedOrigins)
	}
	if s.Level() != slog.LevelInfo {
		t.Errorf("level: got %v, want INFO", s.Level())
	}
}

func TestLoad_Full(t *testing.T) {
	p := writeConfig(t, `server:
  http_port: 9000
  log_level: warn
  peer_url: "http://cache:3030/volume"
  peer_timeout: 750ms
  origin_timeout: 2s
  window: 1m
  shutdown_grace: 3s
  cors:
    allowed_origins: ["https://app.example"]
  ingest:
    enabled: false
origin:
  backend: memory
`)
	cfg, err := Load(p)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	s := cfg.Server
	if s.HTTPPort != 9000 {
		t.Errorf("http_port: got %d, want 9000", s.HTTPPort)
	}
	if s.Level() != slog.LevelWarn {
		t.Errorf("level: got %v, want WARN", s.Level())
	}
	if s.PeerTimeout != 750*time.Millisecond {
		t.Errorf("peer_timeout: got %v, want 750ms", s.PeerTimeout)
	}
	if s.OriginTimeout != 2*time.Second {
		t.Errorf("origin_timeout: got %v, want 2s", s.OriginTimeout)
	}
	if s.Ingest.Enabled {
		t.Error("ingest.enabled: got true, want false")
	}
	if s.CORS.AllowedOrigins[0] != "https://app.example" {
		t.Errorf("cors: got %v", s.CORS.AllowedOrigins)
	}
}

func TestLoad_Invalid(t *testing.T) {
	cases := []struct {
		name, yaml, want string
	}{
		{"port", "server:\n  http_port: 0\n", "http_port"},
		{"peer url", "server:\n  peer_url: \"cache:3030\"\n", "peer_url"},
		{"timeout", "server:\n  peer_timeout: 0s\n", "peer_timeout"},
		{"origin timeout", "server:\n  origin_timeout: 0s\n", "origin_timeout"},
		{"insert timeout", "server:\n  ingest:\n    insert_timeout: -1s\n", "insert_timeout"},
		{"amounts", "server:\n  ingest:\n    min_amount: 5\n    max_amount: 1\n", "amounts"},
		{"level", "server:\n  log_level: chatty\n", "log_level"},
		{"backend", "origin:\n  backend: mongo\n", "origin.backend"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tc.yaml))
			if err == nil {
				t.Fatal("Load: expected error, got nil")
			}
			if !strings.Contains(err.Error(), tc.want) {
				t.Errorf("error: got %q, want it to mention %q", err, tc.want)
			}
		})
	}
}

func TestLoad_DisabledIngestSkipsIngestChecks(t *testing.T) {
	p := writeConfig(t, "server:\n  ingest:\n    enabled: false\n    pool: \"\"\n")
	if _, err := Load(p); err != nil {
		t.Fatalf("Load: %v", err)
	}
}
