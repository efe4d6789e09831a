package vector

import (
	"context"
	"fmt"

	"github.com/hyperjump/principia/internal/config"
	"github.com/hyperjump/principia/internal/models"
	"go.uber.org/zap"
)

// Backend names a vector index implementation.
type Backend string

const (
	BackendQdrant   Backend = "qdrant"
	BackendPgVector Backend = "pgvector"
	BackendMemory   Backend = "memory"
)

// NewVectorIndex creates the vector index selected by cfg for vectors of the given dimensions.
func NewVectorIndex(ctx context.Context, cfg config.VectorConfig, dimensions int, logger *zap.Logger) (VectorIndex, error) {
	switch Backend(cfg.Backend) {
	case BackendQdrant:
		host, port, useTLS, err := config.QdrantEndpoint(cfg.Qdrant)
		if err != nil {
			return nil, err
		}
		return NewQdrantIndex(QdrantOptions{
			Host:       host,
			Port:       port,
			APIKey:     cfg.Qdrant.APIKey,
			UseTLS:     useTLS,
			Collection: cfg.Collection,
			Dimensions: dimensions,
			Logger:     logger,
		})
	case BackendPgVector:
		return NewPgVectorIndex(ctx, cfg.PgVector.DSN, cfg.Collection, dimensions)
	case BackendMemory, "":
		return NewPersistentMemoryIndex(dimensions, cfg.IndexPath)
	default:
		return nil, &models.ConfigurationError{
			Key:     "vector.backend",
			Message: fmt.Sprintf("unknown value %q (supported: qdrant, pgvector, memory)", cfg.Backend),
		}
	}
}
