// Package rerank re-scores vector search candidates with a pairwise relevance model
// and keeps the most relevant few.
package rerank

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/hyperjump/principia/internal/models"
	"github.com/hyperjump/principia/pkg/utils"
	"go.uber.org/zap"
)

// DefaultPassageChars is the passage prefix length given to the scorer.
const DefaultPassageChars = 512

// Scorer rates how relevant each passage is to the query; higher is more relevant.
// The result has one score per passage. CrossEncoder scores each (query, passage) pair
// independently; LexicalScorer weighs terms over the whole passage list.
type Scorer interface {
	Score(ctx context.Context, query string, passages []string) ([]float64, error)
	Name() string
	Close() error
}

// Reranker orders candidates by Scorer relevance and trims them to the requested size.
type Reranker struct {
	scorer       Scorer
	passageChars int
	logger       *zap.Logger
}

// Option configures a Reranker.
type Option func(*Reranker)

// WithPassageChars sets how many leading characters of each passage are scored.
func WithPassageChars(n int) Option {
	return func(r *Reranker) { r.passageChars = n }
}

func WithLogger(l *zap.Logger) Option {
	return func(r *Reranker) { r.logger = l }
}

func New(scorer Scorer, opts ...Option) *Reranker {
	r := &Reranker{scorer: scorer, passageChars: DefaultPassageChars, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Scorer returns the underlying relevance model.
func (r *Reranker) Scorer() Scorer { return r.scorer }

// Rerank scores every candidate against query and returns the best min(topK, len(candidates))
// of them by relevance. Ties are broken by vector score, then by search position.
// An empty candidate list is returned as is, without calling the scorer.
func (r *Reranker) Rerank(ctx context.Context, query string, candidates []models.ScoredPassage, topK int) ([]models.ScoredPassage, error) {
	if len(candidates) == 0 {
		return []models.ScoredPassage{}, nil
	}

	start := time.Now()
	texts := make([]string, len(candidates))
	for i := range candidates {
		texts[i] = utils.Prefix(candidates[i].Text, r.passageChars)
	}
	scores, err := r.scorer.Score(ctx, query, texts)
	if err != nil {
		return nil, models.NewServiceError(r.scorer.Name(), err)
	}
	if len(scores) != len(candidates) {
		return nil, models.NewServiceError(r.scorer.Name(),
			fmt.Errorf("expected %d scores, got %d", len(candidates), len(scores)))
	}

	ranked := make([]models.ScoredPassage, len(candidates))
	copy(ranked, candidates)
	for i := range ranked {
		ranked[i].RelevanceScore = scores[i]
	}
	slices.SortStableFunc(ranked, func(a, b models.ScoredPassage) int {
		if c := cmp.Compare(b.RelevanceScore, a.RelevanceScore); c != 0 {
			return c
		}
		if c := cmp.Compare(b.VectorScore, a.VectorScore); c != 0 {
			return c
		}
		return cmp.Compare(a.Position, b.Position)
	})

	n := max(0, min(topK, len(ranked)))
	r.logger.Debug("reranked candidates",
		zap.String("scorer", r.scorer.Name()),
		zap.Int("candidates", len(candidates)),
		zap.Int("kept", n),
		zap.Duration("elapsed", time.Since(start)))
	return ranked[:n], nil
}

func (r *Reranker) Close() error {
	return r.scorer.Close()
}
