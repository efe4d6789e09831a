package generate

import (
	"context"
	"errors"
	"strings"

	"github.com/hyperjump/principia/internal/models"
	"google.golang.org/genai"
)

var _ Completer = (*GeminiCompleter)(nil)

// GeminiCompleter uses the Gemini GenerateContent API.
type GeminiCompleter struct {
	*Config
	client *genai.Client
}

func NewGeminiCompleter(ctx context.Context, model string, options ...Option) (*GeminiCompleter, error) {
	cfg := newConfig(model, options)
	if cfg.token == "" {
		return nil, &models.ConfigurationError{Key: "generation.api_key", Message: "GEMINI_API_KEY is not set"}
	}
	cc := &genai.ClientConfig{
		APIKey:     cfg.token,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: cfg.client,
	}
	if url := baseURL(cfg.url); url != "" {
		cc.HTTPOptions.BaseURL = url
	}
	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, models.NewServiceError("gemini "+model, err)
	}
	return &GeminiCompleter{Config: cfg, client: client}, nil
}

func (c *GeminiCompleter) Complete(ctx context.Context, prompt string, options *CompleteOptions) (string, error) {
	if options == nil {
		options = new(CompleteOptions)
	}

	config := &genai.GenerateContentConfig{}
	if options.Temperature != nil {
		config.Temperature = genai.Ptr(float32(*options.Temperature))
	}
	if options.MaxTokens > 0 {
		config.MaxOutputTokens = int32(options.MaxTokens)
	}

	resp, err := c.client.Models.GenerateContent(ctx, c.model, genai.Text(prompt), config)
	if err != nil {
		return "", models.NewServiceError("gemini "+c.model, err)
	}
	text := strings.TrimSpace(resp.Text())
	if text == "" {
		return "", models.NewServiceError("gemini "+c.model, errors.New("no text content returned"))
	}
	return text, nil
}
