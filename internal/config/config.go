// Package config provides configuration loading and structs for the principia service.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the application.
type Config struct {
	Debug      bool            `yaml:"debug"`
	Server     ServerConfig    `yaml:"server"`
	Storage    StorageConfig   `yaml:"storage"`
	Embedding  EmbeddingConfig `yaml:"embedding"`
	Generation ModelConfig     `yaml:"generation"`
	Judge      JudgeConfig     `yaml:"judge"`
	Vector     VectorConfig    `yaml:"vector"`
	Rerank     RerankConfig    `yaml:"rerank"`
	Ingest     IngestConfig    `yaml:"ingest"`
	Telemetry  TelemetryConfig `yaml:"telemetry"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host           string        `yaml:"host"`
	Port           int           `yaml:"port"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
	CORSOrigins    []string      `yaml:"cors_origins"`
}

// StorageConfig holds the article database location.
type StorageConfig struct {
	DatabasePath string `yaml:"database_path"`
}

// EmbeddingConfig selects and configures the embedding service.
type EmbeddingConfig struct {
	Provider   string  `yaml:"provider"` // openai, gemini, mock
	Model      string  `yaml:"model"`
	Dimensions int     `yaml:"dimensions"`
	APIKey     string  `yaml:"api_key"`
	BaseURL    string  `yaml:"base_url"`
	BatchSize  int     `yaml:"batch_size"`
	MaxRetries int     `yaml:"max_retries"`
	RateLimit  float64 `yaml:"rate_limit"` // requests per second, 0 disables
	CacheSize  int     `yaml:"cache_size"` // ingestion-side cache only
}

// ModelConfig selects and configures a generative model.
type ModelConfig struct {
	Provider    string   `yaml:"provider"` // openai, anthropic, gemini
	Model       string   `yaml:"model"`
	APIKey      string   `yaml:"api_key"`
	BaseURL     string   `yaml:"base_url"`
	Temperature *float64 `yaml:"temperature"`
	MaxTokens   int      `yaml:"max_tokens"`
	MaxRetries  int      `yaml:"max_retries"`
	RateLimit   float64  `yaml:"rate_limit"`
}

// JudgeConfig configures the grounding judge. Empty model fields inherit from generation.
type JudgeConfig struct {
	ModelConfig  `yaml:",inline"`
	ContextChars int     `yaml:"context_chars"`
	Fallback     float64 `yaml:"fallback"`
}

// VectorConfig selects the vector index backend.
type VectorConfig struct {
	Backend    string         `yaml:"backend"` // qdrant, pgvector, memory
	Collection string         `yaml:"collection"`
	IndexPath  string         `yaml:"index_path"` // memory backend persistence
	Qdrant     QdrantConfig   `yaml:"qdrant"`
	PgVector   PgVectorConfig `yaml:"pgvector"`
}

// QdrantConfig holds connection settings for Qdrant. URL takes precedence over Host/Port.
type QdrantConfig struct {
	URL    string `yaml:"url"`
	Host   string `yaml:"host"`
	Port   int    `yaml:"port"`
	APIKey string `yaml:"api_key"`
	UseTLS bool   `yaml:"use_tls"`
}

// PgVectorConfig holds the Postgres connection string.
type PgVectorConfig struct {
	DSN string `yaml:"dsn"`
}

// RerankConfig configures candidate over-fetch, trimming, and the relevance scorer.
type RerankConfig struct {
	Backend      string `yaml:"backend"` // cross-encoder, lexical
	ModelPath    string `yaml:"model_path"`
	VocabPath    string `yaml:"vocab_path"`
	LibraryPath  string `yaml:"library_path"`
	MaxTokens    int    `yaml:"max_tokens"`
	PassageChars int    `yaml:"passage_chars"`
	Candidates   int    `yaml:"candidates"`
	TopK         int    `yaml:"top_k"`
}

// IngestConfig holds chunking and corpus import settings.
type IngestConfig struct {
	ChunkSize   int      `yaml:"chunk_size"`
	SourceType  string   `yaml:"source_type"`
	Directories []string `yaml:"directories"`
	Extensions  []string `yaml:"extensions"`
	Watch       bool     `yaml:"watch"`
}

// TelemetryConfig controls OpenTelemetry tracing.
type TelemetryConfig struct {
	Enabled     bool   `yaml:"enabled"`
	ServiceName string `yaml:"service_name"`
	Endpoint    string `yaml:"endpoint"`
}

// Load reads and parses the config file at path, expands paths, and applies defaults.
// Environment overrides are not applied here; see ApplyEnv.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	ApplyDefaults(&cfg)

	configDir := filepath.Dir(path)
	cfg.Storage.DatabasePath = expandPath(cfg.Storage.DatabasePath, configDir)
	if cfg.Vector.IndexPath != "" {
		cfg.Vector.IndexPath = expandPath(cfg.Vector.IndexPath, configDir)
	}
	if cfg.Rerank.ModelPath != "" {
		cfg.Rerank.ModelPath = expandPath(cfg.Rerank.ModelPath, configDir)
	}
	if cfg.Rerank.VocabPath != "" {
		cfg.Rerank.VocabPath = expandPath(cfg.Rerank.VocabPath, configDir)
	}
	for i := range cfg.Ingest.Directories {
		cfg.Ingest.Directories[i] = expandPath(cfg.Ingest.Directories[i], configDir)
	}

	return &cfg, nil
}

// Default returns a configuration with every default applied.
func Default() *Config {
	var cfg Config
	ApplyDefaults(&cfg)
	return &cfg
}

// Save writes the config to path.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// expandPath converts a path to absolute. Paths starting with "./" are relative to configDir;
// other relative paths are relative to the home directory.
func expandPath(path string, configDir string) string {
	if filepath.IsAbs(path) {
		return path
	}
	if strings.HasPrefix(path, "./") || path == "." {
		return filepath.Join(configDir, path)
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, path)
	}
	return path
}
