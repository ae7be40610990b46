package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds the toolvec service configuration.
type Config struct {
	HTTP      HTTPConfig      `yaml:"http"`
	Auth      AuthConfig      `yaml:"auth"`
	Database  DatabaseConfig  `yaml:"database"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	Search    SearchConfig    `yaml:"search"`
	Dedup     DedupConfig     `yaml:"dedup"`
	Cache     CacheConfig     `yaml:"cache"`
	Breakers  BreakersConfig  `yaml:"breakers"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error (default: determined by env)
}

// AuthConfig holds API authentication settings.
type AuthConfig struct {
	APIKeys []string `yaml:"api_keys"`
}

// HTTPConfig holds HTTP server settings.
type HTTPConfig struct {
	Port            int `yaml:"port"`
	ReadTimeoutSec  int `yaml:"read_timeout_sec"`
	WriteTimeoutSec int `yaml:"write_timeout_sec"`
	ShutdownSec     int `yaml:"shutdown_timeout_sec"`
}

// DatabaseConfig holds database connection settings.
type DatabaseConfig struct {
	Addrs            []string `yaml:"addrs"`
	Username         string   `yaml:"username"`
	Password         string   `yaml:"password"`
	DB               int      `yaml:"db"`
	ReadinessTimeout int      `yaml:"readiness_timeout_sec"`
}

// EmbeddingConfig holds the embedding provider settings.
type EmbeddingConfig struct {
	Provider   string `yaml:"provider"`
	APIKey     string `yaml:"api_key"`
	BaseURL    string `yaml:"base_url"`
	Model      string `yaml:"model"`
	Dimensions int    `yaml:"dimensions"`
	User       string `yaml:"user"`
}

// SearchConfig holds orchestrator settings.
type SearchConfig struct {
	VectorTypes        []string           `yaml:"vector_types"`
	Strategy           string             `yaml:"strategy"` // rrf, weighted, hybrid
	RRFK               int                `yaml:"rrf_k"`
	TypeWeights        map[string]float64 `yaml:"type_weights"`
	PerTypeTimeoutMs   int                `yaml:"per_type_timeout_ms"`
	MaxPerVector       int                `yaml:"max_per_vector"`
	DiversityThreshold float64            `yaml:"diversity_threshold"`
}

// DedupConfig holds duplicate detection settings.
type DedupConfig struct {
	ContentThreshold float64 `yaml:"content_threshold"`
	FuzzyThreshold   float64 `yaml:"fuzzy_threshold"`
	ScoreMerge       string  `yaml:"score_merge"` // max, sum
}

// CacheConfig groups both cache layers.
type CacheConfig struct {
	Embedding EmbeddingCacheConfig `yaml:"embedding"`
	Result    ResultCacheConfig    `yaml:"result"`
}

// EmbeddingCacheConfig holds embedding cache settings.
type EmbeddingCacheConfig struct {
	Capacity           int     `yaml:"capacity"`
	BaseTTLSec         int     `yaml:"base_ttl_sec"`
	MinTTLSec          int     `yaml:"min_ttl_sec"`
	MaxTTLSec          int     `yaml:"max_ttl_sec"`
	Policy             string  `yaml:"policy"` // lru, lfu, priority, adaptive
	Compression        bool    `yaml:"compression"`
	CompressionMinSize int     `yaml:"compression_min_size"`
	SemanticFallback   bool    `yaml:"semantic_fallback"`
	SemanticThreshold  float64 `yaml:"semantic_threshold"`
	CleanupIntervalSec int     `yaml:"cleanup_interval_sec"`
}

// ResultCacheConfig holds result cache settings.
type ResultCacheConfig struct {
	Capacity int `yaml:"capacity"`
	TTLSec   int `yaml:"ttl_sec"`
}

// BreakersConfig holds circuit breaker settings per dependency class.
type BreakersConfig struct {
	Vector    BreakerConfig `yaml:"vector"`
	Embedding BreakerConfig `yaml:"embedding"`
}

// BreakerConfig holds one breaker's settings.
type BreakerConfig struct {
	Threshold int `yaml:"threshold"`
	ResetSec  int `yaml:"reset_sec"`
}

// Load reads configuration from a YAML file by environment name (local, dev, prod).
func Load(env string) (Config, error) {
	configPath := findConfigPath(env)

	data, err := os.ReadFile(filepath.Clean(configPath))
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config %s: %w", configPath, err)
	}

	// Substitute env variables of the form ${VAR}
	data = expandEnvVars(data)

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.ApplyDefaults()

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// MustLoad loads configuration or panics.
func MustLoad(env string) Config {
	cfg, err := Load(env)
	if err != nil {
		panic(err)
	}
	return cfg
}

// GetEnv returns the current environment from the ENV variable, defaulting to "local".
func GetEnv() string {
	if env := os.Getenv("ENV"); env != "" {
		return env
	}
	return "local"
}

// ApplyDefaults fills empty fields with default values.
func (c *Config) ApplyDefaults() {
	if c.HTTP.ReadTimeoutSec <= 0 {
		c.HTTP.ReadTimeoutSec = 10
	}
	if c.HTTP.WriteTimeoutSec <= 0 {
		c.HTTP.WriteTimeoutSec = 10
	}
	if c.HTTP.ShutdownSec <= 0 {
		c.HTTP.ShutdownSec = 10
	}
	if c.Database.ReadinessTimeout <= 0 {
		c.Database.ReadinessTimeout = 10
	}
	if len(c.Search.VectorTypes) == 0 {
		c.Search.VectorTypes = []string{"semantic", "categories", "functionality"}
	}
	if c.Search.Strategy == "" {
		c.Search.Strategy = "rrf"
	}
	if c.Search.RRFK <= 0 {
		c.Search.RRFK = 60
	}
	if c.Search.PerTypeTimeoutMs <= 0 {
		c.Search.PerTypeTimeoutMs = 5000
	}
	if c.Search.MaxPerVector <= 0 {
		c.Search.MaxPerVector = 50
	}
	if c.Search.DiversityThreshold <= 0 {
		c.Search.DiversityThreshold = 0.7
	}
	if c.Dedup.ContentThreshold <= 0 {
		c.Dedup.ContentThreshold = 0.85
	}
	if c.Dedup.FuzzyThreshold <= 0 {
		c.Dedup.FuzzyThreshold = 0.7
	}
	if c.Cache.Embedding.Capacity <= 0 {
		c.Cache.Embedding.Capacity = 1000
	}
	if c.Cache.Embedding.BaseTTLSec <= 0 {
		c.Cache.Embedding.BaseTTLSec = 3600
	}
	if c.Cache.Embedding.MinTTLSec <= 0 {
		c.Cache.Embedding.MinTTLSec = 300
	}
	if c.Cache.Embedding.MaxTTLSec <= 0 {
		c.Cache.Embedding.MaxTTLSec = 86400
	}
	if c.Cache.Embedding.Policy == "" {
		c.Cache.Embedding.Policy = "adaptive"
	}
	if c.Cache.Embedding.SemanticThreshold <= 0 {
		c.Cache.Embedding.SemanticThreshold = 0.8
	}
	if c.Cache.Embedding.CleanupIntervalSec == 0 {
		c.Cache.Embedding.CleanupIntervalSec = 300
	}
	if c.Cache.Result.Capacity <= 0 {
		c.Cache.Result.Capacity = 500
	}
	if c.Cache.Result.TTLSec <= 0 {
		c.Cache.Result.TTLSec = 3600
	}
	if c.Breakers.Vector.Threshold <= 0 {
		c.Breakers.Vector.Threshold = 5
	}
	if c.Breakers.Vector.ResetSec <= 0 {
		c.Breakers.Vector.ResetSec = 30
	}
	if c.Breakers.Embedding.Threshold <= 0 {
		c.Breakers.Embedding.Threshold = 5
	}
	if c.Breakers.Embedding.ResetSec <= 0 {
		c.Breakers.Embedding.ResetSec = 60
	}
}

// Validate checks the configuration for correctness.
func (c *Config) Validate() error {
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("http.port must be between 1 and 65535, got %d", c.HTTP.Port)
	}
	if len(c.Database.Addrs) == 0 {
		return fmt.Errorf("database.addrs is required")
	}
	switch c.Search.Strategy {
	case "rrf", "weighted", "hybrid":
	default:
		return fmt.Errorf("search.strategy must be rrf, weighted or hybrid, got %q", c.Search.Strategy)
	}
	switch c.Dedup.ScoreMerge {
	case "", "max", "sum":
	default:
		return fmt.Errorf("dedup.score_merge must be \"max\" or \"sum\", got %q", c.Dedup.ScoreMerge)
	}
	switch c.Cache.Embedding.Policy {
	case "lru", "lfu", "priority", "adaptive":
	default:
		return fmt.Errorf("cache.embedding.policy must be lru, lfu, priority or adaptive, got %q",
			c.Cache.Embedding.Policy)
	}
	if c.Embedding.Dimensions <= 0 {
		return fmt.Errorf("embedding.dimensions must be positive, got %d", c.Embedding.Dimensions)
	}
	return nil
}

// findConfigPath locates the config file.
func findConfigPath(env string) string {
	filename := fmt.Sprintf("%s.yaml", env)

	// 1. Check ./config/
	if path := filepath.Join("config", filename); fileExists(path) {
		return path
	}

	// 2. Check relative to the source file
	_, b, _, _ := runtime.Caller(0)
	projectRoot := filepath.Dir(filepath.Dir(filepath.Dir(b))) // internal/config -> project root
	if path := filepath.Join(projectRoot, "config", filename); fileExists(path) {
		return path
	}

	// 3. Fallback to ./config/
	return filepath.Join("config", filename)
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// expandEnvVars replaces ${VAR} and ${VAR:-default} with environment variable values.
var envVarRegex = regexp.MustCompile(`\$\{([^}]+)\}`)

func expandEnvVars(data []byte) []byte {
	return envVarRegex.ReplaceAllFunc(data, func(match []byte) []byte {
		expr := string(match[2 : len(match)-1]) // strip ${ and }
		varName, defaultVal, hasDefault := strings.Cut(expr, ":-")
		val := os.Getenv(varName)
		if val == "" && hasDefault {
			val = defaultVal
		}
		return []byte(val)
	})
}
