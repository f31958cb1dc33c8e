package config

import (
	"log/slog"
	"testing"
	"time"
)

func TestLoadRateLimitConfig_Clamps(t *testing.T) {
	t.Setenv("RATE_LIMIT_CAPACITY", "0")
	t.Setenv("RATE_LIMIT_REFILL_TOKENS", "-4")
	t.Setenv("RATE_LIMIT_REFILL_INTERVAL", "2s")
	t.Setenv("RATE_LIMIT_TTL", "1s")

	cfg := LoadRateLimitConfig()
	if cfg.Capacity != 1 {
		t.Fatalf("capacity = %d, want 1", cfg.Capacity)
	}
	if cfg.RefillTokens != 1 {
		t.Fatalf("refill tokens = %d, want 1", cfg.RefillTokens)
	}
	if cfg.TTL != 10*time.Second {
		t.Fatalf("ttl = %s, want 10s", cfg.TTL)
	}
}

func TestLoadRateLimitConfig_BurstOverrides(t *testing.T) {
	t.Setenv("RATE_LIMIT_BURST", "15")
	t.Setenv("RATE_LIMIT_REFILL_EVERY", "250ms")

	cfg := LoadRateLimitConfig()
	if cfg.Capacity != 15 || cfg.RefillTokens != 1 || cfg.RefillInterval != 250*time.Millisecond {
		t.Fatalf("unexpected config: %+v", cfg)
	}
}

func TestEnvBool(t *testing.T) {
	tests := []struct {
		val  string
		def  bool
		want bool
	}{
		{"", true, true},
		{"off", true, false},
		{"YES", false, true},
		{"maybe", true, true},
	}
	for _, tt := range tests {
		t.Setenv("X_FLAG", tt.val)
		if got := envBool("X_FLAG", tt.def); got != tt.want {
			t.Errorf("envBool(%q, %v) = %v, want %v", tt.val, tt.def, got, tt.want)
		}
	}
}

func TestLoadCacheConfig_Methods(t *testing.T) {
	t.Setenv("CACHE_METHODS", "get, head ,")
	cfg := LoadCacheConfig()
	if !cfg.Methods["GET"] || !cfg.Methods["HEAD"] || len(cfg.Methods) != 2 {
		t.Fatalf("methods = %v", cfg.Methods)
	}
}

func TestStorageConfig_Enabled(t *testing.T) {
	if (StorageConfig{}).Enabled() {
		t.Fatal("empty bucket should disable storage")
	}
	t.Setenv("S3_BUCKET", "images")
	if !LoadStorageConfig().Enabled() {
		t.Fatal("bucket set should enable storage")
	}
}

func TestParseLevel(t *testing.T) {
	if parseLevel("DEBUG") != slog.LevelDebug || parseLevel("nope") != slog.LevelInfo {
		t.Fatal("unexpected level mapping")
	}
}
