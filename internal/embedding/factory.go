package embedding

import (
	"context"
	"fmt"
	"math"

	"github.com/hyperjump/principia/internal/config"
	"github.com/hyperjump/principia/internal/models"
	"golang.org/x/time/rate"
)

// New builds the embedder selected by cfg, rate limited when cfg.RateLimit is set.
func New(ctx context.Context, cfg config.EmbeddingConfig) (Embedder, error) {
	opts := []Option{
		WithToken(cfg.APIKey),
		WithURL(cfg.BaseURL),
		WithMaxRetries(cfg.MaxRetries),
		WithBatchSize(cfg.BatchSize),
	}

	var (
		e   Embedder
		err error
	)
	switch cfg.Provider {
	case "openai":
		e, err = NewOpenAIEmbedder(cfg.Model, cfg.Dimensions, opts...)
	case "gemini":
		e, err = NewGeminiEmbedder(ctx, cfg.Model, cfg.Dimensions, opts...)
	case "mock":
		e = NewMockEmbedder(cfg.Dimensions)
	default:
		return nil, &models.ConfigurationError{Key: "embedding.provider", Message: fmt.Sprintf("unknown value %q", cfg.Provider)}
	}
	if err != nil {
		return nil, err
	}

	if cfg.RateLimit > 0 {
		burst := int(math.Max(1, math.Ceil(cfg.RateLimit)))
		e = NewLimited(e, rate.NewLimiter(rate.Limit(cfg.RateLimit), burst))
	}
	return e, nil
}
