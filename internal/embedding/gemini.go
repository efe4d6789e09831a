package embedding

import (
	"context"

	"github.com/hyperjump/principia/internal/models"
	"google.golang.org/genai"
)

const geminiService = "gemini embeddings"

// GeminiEmbedder calls the Gemini embedding API.
type GeminiEmbedder struct {
	client     *genai.Client
	model      string
	dimensions int
	batchSize  int
}

// NewGeminiEmbedder creates an embedder for model. Vectors are requested at the given dimensionality.
func NewGeminiEmbedder(ctx context.Context, model string, dimensions int, opts ...Option) (*GeminiEmbedder, error) {
	cfg := newConfig(opts)
	if cfg.Token == "" {
		return nil, &models.ConfigurationError{Key: "embedding.api_key", Message: "GEMINI_API_KEY is not set"}
	}

	cc := &genai.ClientConfig{
		APIKey:     cfg.Token,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: cfg.Client,
	}
	if cfg.URL != "" {
		cc.HTTPOptions.BaseURL = cfg.URL
	}
	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, models.NewServiceError(geminiService, err)
	}

	return &GeminiEmbedder{
		client:     client,
		model:      model,
		dimensions: dimensions,
		batchSize:  cfg.BatchSize,
	}, nil
}

func (e *GeminiEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vecs, err := e.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

func (e *GeminiEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}
	dims := int32(e.dimensions)
	vecs, err := embedInBatches(texts, e.batchSize, func(batch []string) ([][]float32, error) {
		contents := make([]*genai.Content, len(batch))
		for i, t := range batch {
			contents[i] = genai.NewContentFromText(t, genai.RoleUser)
		}
		resp, err := e.client.Models.EmbedContent(ctx, e.model, contents, &genai.EmbedContentConfig{
			OutputDimensionality: &dims,
		})
		if err != nil {
			return nil, models.NewServiceError(geminiService, err)
		}
		out := make([][]float32, 0, len(resp.Embeddings))
		for _, emb := range resp.Embeddings {
			out = append(out, emb.Values)
		}
		return out, nil
	})
	if err != nil {
		return nil, err
	}
	if err := checkVectors(geminiService, len(texts), e.dimensions, vecs); err != nil {
		return nil, err
	}
	return vecs, nil
}

func (e *GeminiEmbedder) Dimensions() int {
	return e.dimensions
}

func (e *GeminiEmbedder) Close() error {
	return nil
}
