package embedding

import (
	"context"
	"fmt"
	"strings"

	"github.com/hyperjump/principia/internal/models"
	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
)

const openAIService = "openai embeddings"

// OpenAIEmbedder calls the OpenAI embeddings API.
type OpenAIEmbedder struct {
	client     openai.Client
	model      string
	dimensions int
	batchSize  int
}

// NewOpenAIEmbedder creates an embedder for model producing vectors of the given dimensions.
func NewOpenAIEmbedder(model string, dimensions int, opts ...Option) (*OpenAIEmbedder, error) {
	cfg := newConfig(opts)
	if cfg.Token == "" {
		return nil, &models.ConfigurationError{Key: "embedding.api_key", Message: "OPENAI_API_KEY is not set"}
	}

	reqOpts := []option.RequestOption{
		option.WithAPIKey(cfg.Token),
		option.WithMaxRetries(cfg.MaxRetries),
	}
	if cfg.URL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(cfg.URL))
	}
	if cfg.Client != nil {
		reqOpts = append(reqOpts, option.WithHTTPClient(cfg.Client))
	}

	return &OpenAIEmbedder{
		client:     openai.NewClient(reqOpts...),
		model:      model,
		dimensions: dimensions,
		batchSize:  cfg.BatchSize,
	}, nil
}

// Embed returns the embedding for a single text.
func (e *OpenAIEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vecs, err := e.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

// EmbedBatch embeds texts with one request per batch of up to batchSize texts.
func (e *OpenAIEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}
	vecs, err := embedInBatches(texts, e.batchSize, func(batch []string) ([][]float32, error) {
		return e.embed(ctx, batch)
	})
	if err != nil {
		return nil, err
	}
	if err := checkVectors(openAIService, len(texts), e.dimensions, vecs); err != nil {
		return nil, err
	}
	return vecs, nil
}

func (e *OpenAIEmbedder) embed(ctx context.Context, batch []string) ([][]float32, error) {
	params := openai.EmbeddingNewParams{
		Model: openai.EmbeddingModel(e.model),
		Input: openai.EmbeddingNewParamsInputUnion{OfArrayOfStrings: batch},
	}
	// Only the text-embedding-3 family accepts a dimensions parameter.
	if strings.HasPrefix(e.model, "text-embedding-3") {
		params.Dimensions = openai.Int(int64(e.dimensions))
	}

	resp, err := e.client.Embeddings.New(ctx, params)
	if err != nil {
		return nil, models.NewServiceError(openAIService, err)
	}
	if len(resp.Data) != len(batch) {
		return nil, models.NewServiceError(openAIService,
			fmt.Errorf("expected %d embeddings, got %d", len(batch), len(resp.Data)))
	}

	out := make([][]float32, len(batch))
	for _, d := range resp.Data {
		i := int(d.Index)
		if i < 0 || i >= len(batch) || out[i] != nil {
			return nil, models.NewServiceError(openAIService, fmt.Errorf("unexpected embedding index %d", d.Index))
		}
		vec := make([]float32, len(d.Embedding))
		for j, v := range d.Embedding {
			vec[j] = float32(v)
		}
		out[i] = vec
	}
	return out, nil
}

// Dimensions returns the embedding dimension.
func (e *OpenAIEmbedder) Dimensions() int {
	return e.dimensions
}

func (e *OpenAIEmbedder) Close() error {
	return nil
}
