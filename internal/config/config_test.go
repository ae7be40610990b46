package config

import (
	"os"
	"path/filepath"
	"testing"
)

func validConfig() Config {
	cfg := Config{
		HTTP:      HTTPConfig{Port: 8080},
		Database:  DatabaseConfig{Addrs: []string{"localhost:6379"}},
		Embedding: EmbeddingConfig{Dimensions: 1536},
	}
	cfg.ApplyDefaults()
	return cfg
}

func TestApplyDefaults(t *testing.T) {
	cfg := Config{}
	cfg.ApplyDefaults()

	if cfg.HTTP.ReadTimeoutSec != 10 {
		t.Errorf("expected ReadTimeoutSec=10, got %d", cfg.HTTP.ReadTimeoutSec)
	}
	if cfg.HTTP.ShutdownSec != 10 {
		t.Errorf("expected ShutdownSec=10, got %d", cfg.HTTP.ShutdownSec)
	}
	if len(cfg.Search.VectorTypes) != 3 {
		t.Errorf("expected 3 default vector types, got %v", cfg.Search.VectorTypes)
	}
	if cfg.Search.Strategy != "rrf" {
		t.Errorf("expected strategy=rrf, got %q", cfg.Search.Strategy)
	}
	if cfg.Search.RRFK != 60 {
		t.Errorf("expected rrf_k=60, got %d", cfg.Search.RRFK)
	}
	if cfg.Search.PerTypeTimeoutMs != 5000 {
		t.Errorf("expected per_type_timeout_ms=5000, got %d", cfg.Search.PerTypeTimeoutMs)
	}
	if cfg.Search.DiversityThreshold != 0.7 {
		t.Errorf("expected diversity_threshold=0.7, got %f", cfg.Search.DiversityThreshold)
	}
	if cfg.Dedup.ContentThreshold != 0.85 {
		t.Errorf("expected content_threshold=0.85, got %f", cfg.Dedup.ContentThreshold)
	}
	if cfg.Cache.Embedding.Capacity != 1000 {
		t.Errorf("expected embedding cache capacity=1000, got %d", cfg.Cache.Embedding.Capacity)
	}
	if cfg.Cache.Embedding.Policy != "adaptive" {
		t.Errorf("expected policy=adaptive, got %q", cfg.Cache.Embedding.Policy)
	}
	if cfg.Cache.Result.TTLSec != 3600 {
		t.Errorf("expected result ttl=3600s, got %d", cfg.Cache.Result.TTLSec)
	}
	if cfg.Breakers.Vector.ResetSec != 30 {
		t.Errorf("expected vector breaker reset=30s, got %d", cfg.Breakers.Vector.ResetSec)
	}
	if cfg.Breakers.Embedding.ResetSec != 60 {
		t.Errorf("expected embedding breaker reset=60s, got %d", cfg.Breakers.Embedding.ResetSec)
	}
}

func TestApplyDefaults_NoOverride(t *testing.T) {
	cfg := Config{
		HTTP: HTTPConfig{ReadTimeoutSec: 30, WriteTimeoutSec: 60, ShutdownSec: 5},
		Search: SearchConfig{
			VectorTypes: []string{"semantic"},
			Strategy:    "hybrid",
			RRFK:        100,
		},
		Cache: CacheConfig{
			Embedding: EmbeddingCacheConfig{Capacity: 50, Policy: "lru"},
		},
	}
	cfg.ApplyDefaults()

	if cfg.HTTP.ReadTimeoutSec != 30 {
		t.Errorf("expected ReadTimeoutSec=30, got %d", cfg.HTTP.ReadTimeoutSec)
	}
	if cfg.Search.Strategy != "hybrid" {
		t.Errorf("expected strategy=hybrid, got %q", cfg.Search.Strategy)
	}
	if cfg.Search.RRFK != 100 {
		t.Errorf("expected rrf_k=100, got %d", cfg.Search.RRFK)
	}
	if len(cfg.Search.VectorTypes) != 1 {
		t.Errorf("expected configured vector types kept, got %v", cfg.Search.VectorTypes)
	}
	if cfg.Cache.Embedding.Capacity != 50 || cfg.Cache.Embedding.Policy != "lru" {
		t.Errorf("expected cache settings kept, got %+v", cfg.Cache.Embedding)
	}
}

func TestValidate_InvalidPort(t *testing.T) {
	cfg := validConfig()
	cfg.HTTP.Port = 0

	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for invalid port")
	}
}

func TestValidate_MissingAddrs(t *testing.T) {
	cfg := validConfig()
	cfg.Database.Addrs = nil

	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for missing database addrs")
	}
}

func TestValidate_InvalidStrategy(t *testing.T) {
	cfg := validConfig()
	cfg.Search.Strategy = "best_effort"

	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for unknown strategy")
	}
}

func TestValidate_InvalidScoreMerge(t *testing.T) {
	cfg := validConfig()
	cfg.Dedup.ScoreMerge = "average"

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected error for invalid score merge")
	}
	want := `dedup.score_merge must be "max" or "sum", got "average"`
	if err.Error() != want {
		t.Errorf("unexpected error message:\ngot:  %q\nwant: %q", err.Error(), want)
	}
}

func TestValidate_InvalidCachePolicy(t *testing.T) {
	cfg := validConfig()
	cfg.Cache.Embedding.Policy = "fifo"

	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for unknown cache policy")
	}
}

func TestValidate_MissingDimensions(t *testing.T) {
	cfg := validConfig()
	cfg.Embedding.Dimensions = 0

	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for missing embedding dimensions")
	}
}

func TestLoad_ExpandsEnvVars(t *testing.T) {
	dir := t.TempDir()
	cfgDir := filepath.Join(dir, "config")
	if err := os.MkdirAll(cfgDir, 0o755); err != nil {
		t.Fatal(err)
	}

	yaml := `
http:
  port: ${TOOLVEC_TEST_PORT:-8080}
database:
  addrs: ["${TOOLVEC_TEST_ADDR}"]
embedding:
  api_key: ${TOOLVEC_TEST_KEY:-fallback-key}
  dimensions: 8
`
	if err := os.WriteFile(filepath.Join(cfgDir, "test.yaml"), []byte(yaml), 0o644); err != nil {
		t.Fatal(err)
	}

	t.Setenv("TOOLVEC_TEST_ADDR", "redis-host:6379")
	oldWD, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() {
		if err := os.Chdir(oldWD); err != nil {
			t.Fatal(err)
		}
	})

	cfg, err := Load("test")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.HTTP.Port != 8080 {
		t.Errorf("port = %d, want default 8080", cfg.HTTP.Port)
	}
	if cfg.Database.Addrs[0] != "redis-host:6379" {
		t.Errorf("addr = %q, want env value", cfg.Database.Addrs[0])
	}
	if cfg.Embedding.APIKey != "fallback-key" {
		t.Errorf("api key = %q, want fallback", cfg.Embedding.APIKey)
	}
}
