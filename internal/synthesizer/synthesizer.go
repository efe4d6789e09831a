// Package synthesizer writes the final answer from the reranked passages.
package synthesizer

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/hyperjump/principia/internal/generate"
	"github.com/hyperjump/principia/internal/models"
	"go.uber.org/zap"
)

// DefaultTemperature is the sampling temperature for answers.
const DefaultTemperature = 0.3

const promptTemplate = `Based on this information about Isaac Newton, answer the question accurately.

Context: %s

Question: %s

Instructions:
- Answer based only on the provided context
- Be specific and cite Newton's actual work when possible
- If the context doesn't contain enough information, say so
- Keep your answer informative but concise

Answer:`

// BuildPrompt renders the answer prompt. Passage texts are joined with a blank line in rank order.
func BuildPrompt(question string, passages []models.ScoredPassage) string {
	return fmt.Sprintf(promptTemplate, strings.Join(models.Texts(passages), "\n\n"), question)
}

// Synthesizer asks a generative model to answer a question from the given passages.
type Synthesizer struct {
	completer   generate.Completer
	temperature float64
	maxTokens   int
	logger      *zap.Logger
}

type Option func(*Synthesizer)

func WithTemperature(t float64) Option {
	return func(s *Synthesizer) { s.temperature = t }
}

func WithMaxTokens(n int) Option {
	return func(s *Synthesizer) { s.maxTokens = n }
}

func WithLogger(l *zap.Logger) Option {
	return func(s *Synthesizer) { s.logger = l }
}

func New(completer generate.Completer, opts ...Option) *Synthesizer {
	s := &Synthesizer{completer: completer, temperature: DefaultTemperature, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Synthesize returns the model's answer to question grounded in passages.
// An empty reply is reported as a ServiceError.
func (s *Synthesizer) Synthesize(ctx context.Context, question string, passages []models.ScoredPassage) (string, error) {
	start := time.Now()
	prompt := BuildPrompt(question, passages)

	answer, err := s.completer.Complete(ctx, prompt, &generate.CompleteOptions{
		Temperature: generate.Float(s.temperature),
		MaxTokens:   s.maxTokens,
	})
	if err != nil {
		return "", err
	}
	answer = strings.TrimSpace(answer)
	if answer == "" {
		return "", models.NewServiceError(s.completer.Model(), errors.New("empty answer"))
	}

	s.logger.Debug("synthesized answer",
		zap.String("model", s.completer.Model()),
		zap.Int("passages", len(passages)),
		zap.Int("prompt_chars", len(prompt)),
		zap.Duration("elapsed", time.Since(start)))
	return answer, nil
}
