// Package embedding maps text to dense vectors through an external embedding service.
package embedding

import (
	"context"
	"fmt"
	"net/http"

	"github.com/hyperjump/principia/internal/models"
)

// Embedder produces vector embeddings for text.
// EmbedBatch returns one vector per input, in input order, all of length Dimensions().
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	Dimensions() int
	Close() error
}

// Config holds the connection settings shared by the remote embedders.
type Config struct {
	Token      string
	URL        string
	Client     *http.Client
	MaxRetries int
	BatchSize  int
}

// Option configures a remote embedder.
type Option func(*Config)

func WithToken(token string) Option {
	return func(c *Config) { c.Token = token }
}

func WithURL(url string) Option {
	return func(c *Config) { c.URL = url }
}

func WithClient(client *http.Client) Option {
	return func(c *Config) { c.Client = client }
}

func WithMaxRetries(n int) Option {
	return func(c *Config) { c.MaxRetries = n }
}

// WithBatchSize caps the number of texts sent in a single request.
func WithBatchSize(n int) Option {
	return func(c *Config) { c.BatchSize = n }
}

func newConfig(opts []Option) *Config {
	cfg := &Config{MaxRetries: 2, BatchSize: 100}
	for _, opt := range opts {
		opt(cfg)
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 100
	}
	return cfg
}

// embedInBatches calls fn for consecutive slices of at most size texts and concatenates the results.
func embedInBatches(texts []string, size int, fn func(batch []string) ([][]float32, error)) ([][]float32, error) {
	out := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += size {
		end := min(start+size, len(texts))
		vecs, err := fn(texts[start:end])
		if err != nil {
			return nil, err
		}
		out = append(out, vecs...)
	}
	return out, nil
}

// checkVectors verifies the response shape of an embedding service.
func checkVectors(service string, want int, dims int, vecs [][]float32) error {
	if len(vecs) != want {
		return models.NewServiceError(service, fmt.Errorf("expected %d embeddings, got %d", want, len(vecs)))
	}
	for i, v := range vecs {
		if len(v) != dims {
			return models.NewServiceError(service, fmt.Errorf("embedding %d has %d dimensions, expected %d", i, len(v), dims))
		}
	}
	return nil
}
