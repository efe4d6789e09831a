// Package generate sends single-turn prompts to a generative model service.
package generate

import (
	"context"
	"net/http"
	"strings"
)

// CompleteOptions are per-request sampling settings. Nil fields use the provider default.
type CompleteOptions struct {
	Temperature *float64
	MaxTokens   int
}

// Completer returns the model's text reply to a single user prompt.
type Completer interface {
	Complete(ctx context.Context, prompt string, options *CompleteOptions) (string, error)
	Model() string
}

// Config holds the connection settings shared by the providers.
type Config struct {
	url   string
	token string
	model string

	client     *http.Client
	maxRetries int
}

type Option func(*Config)

func WithURL(url string) Option {
	return func(c *Config) { c.url = url }
}

func WithToken(token string) Option {
	return func(c *Config) { c.token = token }
}

func WithClient(client *http.Client) Option {
	return func(c *Config) { c.client = client }
}

func WithMaxRetries(n int) Option {
	return func(c *Config) { c.maxRetries = n }
}

func newConfig(model string, options []Option) *Config {
	cfg := &Config{model: model, maxRetries: 2}
	for _, option := range options {
		option(cfg)
	}
	return cfg
}

func (cfg *Config) Model() string { return cfg.model }

func baseURL(url string) string {
	if url == "" {
		return ""
	}
	return strings.TrimRight(url, "/") + "/"
}

// Float returns a pointer to v, for CompleteOptions.Temperature.
func Float(v float64) *float64 { return &v }
