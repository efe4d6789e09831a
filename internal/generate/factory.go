package generate

import (
	"context"
	"fmt"
	"math"

	"github.com/hyperjump/principia/internal/config"
	"github.com/hyperjump/principia/internal/models"
	"golang.org/x/time/rate"
)

// New builds the completer selected by cfg, rate limited when cfg.RateLimit is set.
func New(ctx context.Context, cfg config.ModelConfig) (Completer, error) {
	options := []Option{
		WithToken(cfg.APIKey),
		WithURL(cfg.BaseURL),
		WithMaxRetries(cfg.MaxRetries),
	}

	var (
		c   Completer
		err error
	)
	switch cfg.Provider {
	case "openai":
		c, err = NewOpenAICompleter(cfg.Model, options...)
	case "anthropic":
		c, err = NewAnthropicCompleter(cfg.Model, options...)
	case "gemini":
		c, err = NewGeminiCompleter(ctx, cfg.Model, options...)
	case "mock":
		c = NewMockCompleter()
	default:
		return nil, &models.ConfigurationError{Key: "generation.provider", Message: fmt.Sprintf("unknown value %q", cfg.Provider)}
	}
	if err != nil {
		return nil, err
	}

	if cfg.RateLimit > 0 {
		burst := int(math.Max(1, math.Ceil(cfg.RateLimit)))
		c = NewLimited(c, rate.NewLimiter(rate.Limit(cfg.RateLimit), burst))
	}
	return c, nil
}
