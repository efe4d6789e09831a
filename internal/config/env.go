package config

import (
	"errors"
	"io/fs"
	"os"

	"github.com/joho/godotenv"
)

// LoadDotEnv loads variables from the given .env files into the process environment.
// Missing files are ignored; variables already set are not overwritten.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return err
		}
	}
	return nil
}

// ApplyEnv fills credentials and endpoints from the environment when the config leaves them empty.
func ApplyEnv(cfg *Config) {
	apiKeyFor := func(provider string) string {
		switch provider {
		case "openai":
			return os.Getenv("OPENAI_API_KEY")
		case "anthropic":
			return os.Getenv("ANTHROPIC_API_KEY")
		case "gemini":
			return firstEnv("GEMINI_API_KEY", "GOOGLE_API_KEY")
		}
		return ""
	}

	if cfg.Embedding.APIKey == "" {
		cfg.Embedding.APIKey = apiKeyFor(cfg.Embedding.Provider)
	}
	if cfg.Generation.APIKey == "" {
		cfg.Generation.APIKey = apiKeyFor(cfg.Generation.Provider)
	}
	if cfg.Judge.APIKey == "" {
		cfg.Judge.APIKey = apiKeyFor(cfg.Judge.Provider)
	}

	if cfg.Vector.Qdrant.URL == "" && cfg.Vector.Qdrant.Host == "" {
		cfg.Vector.Qdrant.URL = firstEnv("QDRANT_URL", "QDRANT_CLOUD_URL")
	}
	if cfg.Vector.Qdrant.APIKey == "" {
		cfg.Vector.Qdrant.APIKey = firstEnv("QDRANT_API_KEY", "QDRANT_APIKEY")
	}
	if cfg.Vector.PgVector.DSN == "" {
		cfg.Vector.PgVector.DSN = firstEnv("PGVECTOR_DSN", "DATABASE_URL")
	}
}

func firstEnv(keys ...string) string {
	for _, k := range keys {
		if v := os.Getenv(k); v != "" {
			return v
		}
	}
	return ""
}
