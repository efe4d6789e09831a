package embedding

import (
	"context"

	"golang.org/x/time/rate"
)

// Limited wraps an Embedder so every request first waits on a shared rate limiter.
type Limited struct {
	Embedder
	limiter *rate.Limiter
}

func NewLimited(e Embedder, limiter *rate.Limiter) *Limited {
	return &Limited{Embedder: e, limiter: limiter}
}

func (l *Limited) Embed(ctx context.Context, text string) ([]float32, error) {
	if err := l.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	return l.Embedder.Embed(ctx, text)
}

func (l *Limited) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if err := l.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	return l.Embedder.EmbedBatch(ctx, texts)
}
