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

	if cfg.Port != 3000 {
		t.Errorf("port = %d", cfg.Port)
	}
	if cfg.RateLimit != 20 {
		t.Errorf("rate limit = %d", cfg.RateLimit)
	}
	if cfg.QueueDrainInterval != 5*time.Second {
		t.Errorf("drain interval = %v", cfg.QueueDrainInterval)
	}
	if cfg.ReceiptCheckInterval != 15*time.Minute {
		t.Errorf("receipt interval = %v", cfg.ReceiptCheckInterval)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("PORT", "8080")
	t.Setenv("RATE_LIMIT", "5")
	t.Setenv("QUEUE_DRAIN_INTERVAL", "10s")
	t.Setenv("REDIS_URL", "redis://kv.internal:6379/1")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if cfg.Port != 8080 {
		t.Errorf("port = %d", cfg.Port)
	}
	if cfg.RateLimit != 5 {
		t.Errorf("rate limit = %d", cfg.RateLimit)
	}
	if cfg.QueueDrainInterval != 10*time.Second {
		t.Errorf("drain interval = %v", cfg.QueueDrainInterval)
	}
	if cfg.RedisURL != "redis://kv.internal:6379/1" {
		t.Errorf("redis url = %q", cfg.RedisURL)
	}
}

func TestLoadInvalidValues(t *testing.T) {
	t.Setenv("PORT", "not-a-number")
	if _, err := Load(); err == nil {
		t.Error("expected error for invalid PORT")
	}

	t.Setenv("PORT", "3000")
	t.Setenv("RATE_LIMIT", "0")
	if _, err := Load(); err == nil {
		t.Error("expected error for zero RATE_LIMIT")
	}

	t.Setenv("RATE_LIMIT", "10")
	t.Setenv("RECEIPT_CHECK_INTERVAL", "soon")
	if _, err := Load(); err == nil {
		t.Error("expected error for invalid duration")
	}
}
