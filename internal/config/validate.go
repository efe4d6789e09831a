package config

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/hyperjump/principia/internal/models"
)

// Validate checks that the selected backends are known and have the credentials they need.
// Returned errors are *models.ConfigurationError.
func Validate(cfg *Config) error {
	switch cfg.Embedding.Provider {
	case "openai", "gemini":
		if cfg.Embedding.APIKey == "" {
			return missing("embedding.api_key", cfg.Embedding.Provider)
		}
	case "mock":
	default:
		return unknown("embedding.provider", cfg.Embedding.Provider)
	}
	if cfg.Embedding.Dimensions <= 0 {
		return &models.ConfigurationError{Key: "embedding.dimensions", Message: "must be positive"}
	}

	if err := validateModel("generation", &cfg.Generation); err != nil {
		return err
	}
	if err := validateModel("judge", &cfg.Judge.ModelConfig); err != nil {
		return err
	}
	if cfg.Judge.Fallback < 0 || cfg.Judge.Fallback > 1 {
		return &models.ConfigurationError{Key: "judge.fallback", Message: "must be within [0, 1]"}
	}

	switch cfg.Vector.Backend {
	case "qdrant":
		if cfg.Vector.Qdrant.URL == "" && cfg.Vector.Qdrant.Host == "" {
			return &models.ConfigurationError{Key: "vector.qdrant.url", Message: "QDRANT_URL is not set"}
		}
	case "pgvector":
		if cfg.Vector.PgVector.DSN == "" {
			return &models.ConfigurationError{Key: "vector.pgvector.dsn", Message: "PGVECTOR_DSN is not set"}
		}
	case "memory":
	default:
		return unknown("vector.backend", cfg.Vector.Backend)
	}

	switch cfg.Rerank.Backend {
	case "cross-encoder", "lexical":
	default:
		return unknown("rerank.backend", cfg.Rerank.Backend)
	}
	if cfg.Rerank.TopK <= 0 {
		return &models.ConfigurationError{Key: "rerank.top_k", Message: "must be positive"}
	}
	if cfg.Rerank.TopK > cfg.Rerank.Candidates {
		return &models.ConfigurationError{
			Key:     "rerank.top_k",
			Message: fmt.Sprintf("top_k %d exceeds candidates %d", cfg.Rerank.TopK, cfg.Rerank.Candidates),
		}
	}
	if cfg.Ingest.ChunkSize <= 0 {
		return &models.ConfigurationError{Key: "ingest.chunk_size", Message: "must be positive"}
	}
	return nil
}

func validateModel(section string, m *ModelConfig) error {
	switch m.Provider {
	case "openai", "anthropic", "gemini":
	case "mock":
		return nil
	default:
		return unknown(section+".provider", m.Provider)
	}
	if m.APIKey == "" {
		return missing(section+".api_key", m.Provider)
	}
	if m.Model == "" {
		return &models.ConfigurationError{Key: section + ".model", Message: "model is not set"}
	}
	return nil
}

func missing(key, provider string) error {
	env := strings.ToUpper(provider) + "_API_KEY"
	return &models.ConfigurationError{Key: key, Message: env + " is not set"}
}

func unknown(key, value string) error {
	return &models.ConfigurationError{Key: key, Message: fmt.Sprintf("unknown value %q", value)}
}

// QdrantEndpoint resolves host, port, and TLS from the Qdrant URL when one is set.
// Qdrant Cloud URLs name the REST port (6333); the gRPC client always uses the configured gRPC port.
func QdrantEndpoint(q QdrantConfig) (host string, port int, useTLS bool, err error) {
	if q.URL == "" {
		return q.Host, q.Port, q.UseTLS, nil
	}
	raw := q.URL
	if !strings.Contains(raw, "://") {
		raw = "http://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "", 0, false, &models.ConfigurationError{Key: "vector.qdrant.url", Message: err.Error()}
	}
	port = q.Port
	if p := u.Port(); p != "" && p != "6333" {
		if port, err = strconv.Atoi(p); err != nil {
			return "", 0, false, &models.ConfigurationError{Key: "vector.qdrant.url", Message: "invalid port"}
		}
	}
	return u.Hostname(), port, q.UseTLS || u.Scheme == "https", nil
}
