package generate

import (
	"context"
	"errors"
	"strings"

	"github.com/hyperjump/principia/internal/models"
	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
)

var _ Completer = (*OpenAICompleter)(nil)

// OpenAICompleter uses the OpenAI chat completions API.
type OpenAICompleter struct {
	*Config
	completions openai.ChatCompletionService
}

func NewOpenAICompleter(model string, options ...Option) (*OpenAICompleter, error) {
	cfg := newConfig(model, options)
	if cfg.token == "" {
		return nil, &models.ConfigurationError{Key: "generation.api_key", Message: "OPENAI_API_KEY is not set"}
	}
	return &OpenAICompleter{
		Config:      cfg,
		completions: openai.NewChatCompletionService(cfg.openAIOptions()...),
	}, nil
}

func (cfg *Config) openAIOptions() []option.RequestOption {
	options := []option.RequestOption{
		option.WithAPIKey(cfg.token),
		option.WithMaxRetries(cfg.maxRetries),
	}
	if url := baseURL(cfg.url); url != "" {
		options = append(options, option.WithBaseURL(url))
	}
	if cfg.client != nil {
		options = append(options, option.WithHTTPClient(cfg.client))
	}
	return options
}

func (c *OpenAICompleter) Complete(ctx context.Context, prompt string, options *CompleteOptions) (string, error) {
	if options == nil {
		options = new(CompleteOptions)
	}

	req := openai.ChatCompletionNewParams{
		Model: openai.ChatModel(c.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.UserMessage(prompt),
		},
	}
	if options.Temperature != nil {
		req.Temperature = openai.Float(*options.Temperature)
	}
	if options.MaxTokens > 0 {
		req.MaxTokens = openai.Int(int64(options.MaxTokens))
	}

	completion, err := c.completions.New(ctx, req)
	if err != nil {
		return "", models.NewServiceError("openai "+c.model, err)
	}
	if len(completion.Choices) == 0 {
		return "", models.NewServiceError("openai "+c.model, errors.New("no choices returned"))
	}
	return strings.TrimSpace(completion.Choices[0].Message.Content), nil
}
