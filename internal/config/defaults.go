package config

import "time"

const (
	DefaultCollection     = "newton_knowledge"
	DefaultEmbeddingModel = "text-embedding-3-small"
	DefaultDimensions     = 1536
	DefaultChatModel      = "gpt-4o-mini"
)

// ApplyDefaults sets default values for any zero values in cfg.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8000
	}
	if cfg.Server.RequestTimeout == 0 {
		cfg.Server.RequestTimeout = 60 * time.Second
	}
	if cfg.Server.CORSOrigins == nil {
		cfg.Server.CORSOrigins = []string{"*"}
	}
	if cfg.Storage.DatabasePath == "" {
		cfg.Storage.DatabasePath = "/usr/local/var/principia/data/db/articles.db"
	}

	if cfg.Embedding.Provider == "" {
		cfg.Embedding.Provider = "openai"
	}
	if cfg.Embedding.Model == "" {
		cfg.Embedding.Model = DefaultEmbeddingModel
	}
	if cfg.Embedding.Dimensions == 0 {
		cfg.Embedding.Dimensions = DefaultDimensions
	}
	if cfg.Embedding.BatchSize == 0 {
		cfg.Embedding.BatchSize = 100
	}
	if cfg.Embedding.MaxRetries == 0 {
		cfg.Embedding.MaxRetries = 2
	}
	if cfg.Embedding.CacheSize == 0 {
		cfg.Embedding.CacheSize = 10000
	}

	if cfg.Generation.Provider == "" {
		cfg.Generation.Provider = "openai"
	}
	if cfg.Generation.Model == "" {
		cfg.Generation.Model = DefaultChatModel
	}
	if cfg.Generation.Temperature == nil {
		cfg.Generation.Temperature = float64Ptr(0.3)
	}
	if cfg.Generation.MaxRetries == 0 {
		cfg.Generation.MaxRetries = 2
	}

	// The judge inherits the generation provider unless it names its own.
	if cfg.Judge.Provider == "" {
		cfg.Judge.Provider = cfg.Generation.Provider
		if cfg.Judge.APIKey == "" {
			cfg.Judge.APIKey = cfg.Generation.APIKey
		}
		if cfg.Judge.BaseURL == "" {
			cfg.Judge.BaseURL = cfg.Generation.BaseURL
		}
	}
	if cfg.Judge.Model == "" {
		cfg.Judge.Model = cfg.Generation.Model
	}
	if cfg.Judge.Temperature == nil {
		cfg.Judge.Temperature = float64Ptr(0.1)
	}
	if cfg.Judge.MaxTokens == 0 {
		cfg.Judge.MaxTokens = 10
	}
	if cfg.Judge.MaxRetries == 0 {
		cfg.Judge.MaxRetries = cfg.Generation.MaxRetries
	}
	if cfg.Judge.ContextChars == 0 {
		cfg.Judge.ContextChars = 2000
	}
	if cfg.Judge.Fallback == 0 {
		cfg.Judge.Fallback = 0.5
	}

	if cfg.Vector.Backend == "" {
		cfg.Vector.Backend = "qdrant"
	}
	if cfg.Vector.Collection == "" {
		cfg.Vector.Collection = DefaultCollection
	}
	if cfg.Vector.Qdrant.Port == 0 {
		cfg.Vector.Qdrant.Port = 6334
	}

	if cfg.Rerank.Backend == "" {
		cfg.Rerank.Backend = "cross-encoder"
	}
	if cfg.Rerank.ModelPath == "" {
		cfg.Rerank.ModelPath = "/usr/local/var/principia/data/models/ms-marco-MiniLM-L-6-v2.onnx"
	}
	if cfg.Rerank.VocabPath == "" {
		cfg.Rerank.VocabPath = "/usr/local/var/principia/data/models/vocab.txt"
	}
	if cfg.Rerank.MaxTokens == 0 {
		cfg.Rerank.MaxTokens = 512
	}
	if cfg.Rerank.PassageChars == 0 {
		cfg.Rerank.PassageChars = 512
	}
	if cfg.Rerank.Candidates == 0 {
		cfg.Rerank.Candidates = 20
	}
	if cfg.Rerank.TopK == 0 {
		cfg.Rerank.TopK = 5
	}

	if cfg.Ingest.ChunkSize == 0 {
		cfg.Ingest.ChunkSize = 800
	}
	if cfg.Ingest.SourceType == "" {
		cfg.Ingest.SourceType = "wikipedia"
	}
	if cfg.Ingest.Extensions == nil {
		cfg.Ingest.Extensions = []string{".json", ".txt", ".md", ".pdf", ".docx", ".odt", ".rtf", ".xlsx"}
	}

	if cfg.Telemetry.ServiceName == "" {
		cfg.Telemetry.ServiceName = "principia"
	}
}

func float64Ptr(v float64) *float64 { return &v }
