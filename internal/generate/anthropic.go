package generate

import (
	"context"
	"errors"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/hyperjump/principia/internal/models"
)

var _ Completer = (*AnthropicCompleter)(nil)

// defaultAnthropicMaxTokens is used when no limit is requested; the Messages API requires one.
const defaultAnthropicMaxTokens = 1024

// AnthropicCompleter uses the Anthropic Messages API.
type AnthropicCompleter struct {
	*Config
	messages anthropic.MessageService
}

func NewAnthropicCompleter(model string, options ...Option) (*AnthropicCompleter, error) {
	cfg := newConfig(model, options)
	if cfg.token == "" {
		return nil, &models.ConfigurationError{Key: "generation.api_key", Message: "ANTHROPIC_API_KEY is not set"}
	}
	return &AnthropicCompleter{
		Config:   cfg,
		messages: anthropic.NewMessageService(cfg.anthropicOptions()...),
	}, nil
}

func (cfg *Config) anthropicOptions() []option.RequestOption {
	url := baseURL(cfg.url)
	if url == "" {
		url = "https://api.anthropic.com/"
	}
	options := []option.RequestOption{
		option.WithBaseURL(url),
		option.WithAPIKey(cfg.token),
		option.WithMaxRetries(cfg.maxRetries),
	}
	if cfg.client != nil {
		options = append(options, option.WithHTTPClient(cfg.client))
	}
	return options
}

func (c *AnthropicCompleter) Complete(ctx context.Context, prompt string, options *CompleteOptions) (string, error) {
	if options == nil {
		options = new(CompleteOptions)
	}

	req := anthropic.MessageNewParams{
		Model:     anthropic.Model(c.model),
		MaxTokens: defaultAnthropicMaxTokens,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	}
	if options.MaxTokens > 0 {
		req.MaxTokens = int64(options.MaxTokens)
	}
	if options.Temperature != nil {
		req.Temperature = anthropic.Float(*options.Temperature)
	}

	message, err := c.messages.New(ctx, req)
	if err != nil {
		return "", models.NewServiceError("anthropic "+c.model, err)
	}

	var text strings.Builder
	for _, block := range message.Content {
		if block.Type == "text" {
			text.WriteString(block.AsText().Text)
		}
	}
	if text.Len() == 0 {
		return "", models.NewServiceError("anthropic "+c.model, errors.New("no text content returned"))
	}
	return strings.TrimSpace(text.String()), nil
}
