package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Server.Port != "8080" {
		t.Fatalf("expected default port 8080, got %q", cfg.Server.Port)
	}
	if cfg.Relay.TTL() != 30*time.Minute {
		t.Fatalf("expected 30m session TTL, got %v", cfg.Relay.TTL())
	}
	if cfg.Relay.CodeLength != 9 {
		t.Fatalf("expected 9-digit codes, got %d", cfg.Relay.CodeLength)
	}
	if cfg.Relay.SweepInterval() != 30*time.Second {
		t.Fatalf("expected 30s sweep, got %v", cfg.Relay.SweepInterval())
	}
	if len(cfg.WebRTC.ICEUrls) == 0 {
		t.Fatalf("expected a default STUN server")
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("RELAY_SESSION_TTL_MINUTES", "5")
	t.Setenv("RELAY_CODE_LENGTH", "6")
	t.Setenv("WEBRTC_ICE_URLS", "stun:a.example.com:3478, turn:b.example.com:3478")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Relay.TTL() != 5*time.Minute {
		t.Fatalf("expected 5m TTL, got %v", cfg.Relay.TTL())
	}
	if cfg.Relay.CodeLength != 6 {
		t.Fatalf("expected 6-digit codes, got %d", cfg.Relay.CodeLength)
	}
	if len(cfg.WebRTC.ICEUrls) != 2 || cfg.WebRTC.ICEUrls[1] != "turn:b.example.com:3478" {
		t.Fatalf("expected trimmed ICE url list, got %v", cfg.WebRTC.ICEUrls)
	}
}

func TestDatabaseDSN(t *testing.T) {
	c := DatabaseConfig{URL: "postgres://u:p@db:5432/support?sslmode=disable"}
	if c.DSN() != c.URL {
		t.Fatalf("expected URL passthrough, got %q", c.DSN())
	}
	c = DatabaseConfig{Host: "db", Port: "5432", User: "u", Password: "p", DBName: "support", SSLMode: "disable"}
	want := "postgres://u:p@db:5432/support?sslmode=disable"
	if got := c.DSN(); got != want {
		t.Fatalf("expected %q, got %q", want, got)
	}
}
