package config

import (
	"testing"
	"time"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg := LoadConfig("")
	if cfg.Server.Address != ":8080" {
		t.Fatalf("unexpected server address %q", cfg.Server.Address)
	}
	if cfg.Search.Provider != "searxng" {
		t.Fatalf("unexpected search provider %q", cfg.Search.Provider)
	}
	if cfg.Cache.Backend != "inmemory" || cfg.Cache.TTL != time.Hour {
		t.Fatalf("unexpected cache settings %+v", cfg.Cache)
	}
	if cfg.Worker.PoolSize != 4 {
		t.Fatalf("unexpected pool size %d", cfg.Worker.PoolSize)
	}
	if cfg.Fetch.Provider != "static" {
		t.Fatalf("unexpected fetch provider %q", cfg.Fetch.Provider)
	}
}

func TestLoadConfigEnvOverride(t *testing.T) {
	t.Setenv("MARKETSCOUT_SERVER_ADDRESS", ":9999")
	t.Setenv("MARKETSCOUT_SEARCH_MAX_RESULTS", "3")
	cfg := LoadConfig("")
	if cfg.Server.Address != ":9999" {
		t.Fatalf("expected env override, got %q", cfg.Server.Address)
	}
	if cfg.Search.MaxResults != 3 {
		t.Fatalf("expected env override, got %d", cfg.Search.MaxResults)
	}
}

func TestCacheConfigValidate(t *testing.T) {
	ok := CacheConfig{Backend: "inmemory", TTL: time.Minute}
	if err := ok.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	bad := CacheConfig{Backend: "memcached", TTL: time.Minute}
	if err := bad.Validate(); err == nil {
		t.Fatalf("expected unsupported backend to be rejected")
	}
	missing := CacheConfig{Backend: "redis", TTL: time.Minute}
	if err := missing.Validate(); err == nil {
		t.Fatalf("expected redis without host/port to be rejected")
	}
}

func TestLLMConfigValidate(t *testing.T) {
	if err := (LLMConfig{BaseURL: "http://localhost:8000/v1", Model: "m"}).Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := (LLMConfig{Model: "m"}).Validate(); err == nil {
		t.Fatalf("expected missing base_url to be rejected")
	}
	if err := (LLMConfig{BaseURL: "http://x"}).Validate(); err == nil {
		t.Fatalf("expected missing model to be rejected")
	}
}
