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
	if cfg.Port != "8080" {
		t.Fatalf("expected default port 8080, got %s", cfg.Port)
	}
	if cfg.ReservationSweepInterval != 30*time.Second {
		t.Fatalf("expected 30s sweep interval, got %s", cfg.ReservationSweepInterval)
	}
	if cfg.PromotionInterval != time.Minute {
		t.Fatalf("expected 1m promotion interval, got %s", cfg.PromotionInterval)
	}
	if cfg.ShutdownTimeout != 10*time.Second {
		t.Fatalf("expected 10s shutdown timeout, got %s", cfg.ShutdownTimeout)
	}
	if cfg.CounterBackend != "postgres" {
		t.Fatalf("expected postgres counter backend, got %s", cfg.CounterBackend)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("CORS_ORIGINS", "https://a.example,https://b.example")
	t.Setenv("RESERVATION_SWEEP_INTERVAL", "5s")
	t.Setenv("COUNTER_BACKEND", "memory")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Port != "9090" || cfg.LogLevel != "debug" {
		t.Fatalf("unexpected config: %+v", cfg)
	}
	if len(cfg.CORSOrigins) != 2 || cfg.CORSOrigins[1] != "https://b.example" {
		t.Fatalf("unexpected origins: %v", cfg.CORSOrigins)
	}
	if cfg.ReservationSweepInterval != 5*time.Second {
		t.Fatalf("expected 5s sweep interval, got %s", cfg.ReservationSweepInterval)
	}
	if cfg.CounterBackend != "memory" {
		t.Fatalf("expected memory counter backend, got %s", cfg.CounterBackend)
	}
}
