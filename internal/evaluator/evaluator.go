// Package evaluator scores retrieval quality and answer quality for a single query.
package evaluator

import (
	"context"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/hyperjump/principia/internal/embedding"
	"github.com/hyperjump/principia/internal/generate"
	"github.com/hyperjump/principia/internal/models"
	"github.com/hyperjump/principia/pkg/utils"
	"go.uber.org/zap"
)

const (
	DefaultContextChars   = 2000
	DefaultFallback       = 0.5
	DefaultJudgeMaxTokens = 10
	DefaultJudgeTemp      = 0.1
)

const judgeTemplate = `Evaluate if the answer is factually grounded in the context.

Context: %s
Answer: %s

Rate from 0.0 to 1.0 how well supported the answer is:
- 1.0: Fully supported
- 0.5: Partially supported
- 0.0: Not supported

Return only the numeric score:`

// scorePattern matches a reply that is a single number, optionally labeled "Score:" and
// followed by a period.
var scorePattern = regexp.MustCompile(`^(?i:score\s*:\s*)?(-?(?:\d+(?:\.\d*)?|\.\d+))\.?$`)

// Evaluator computes the retrieval and answer metrics of a query.
// The two stages are independent and may be called separately.
type Evaluator struct {
	embedder     embedding.Embedder
	judge        generate.Completer
	contextChars int
	fallback     float64
	temperature  float64
	maxTokens    int
	logger       *zap.Logger
}

type Option func(*Evaluator)

// WithContextChars sets how many characters of the joined passages the judge sees.
func WithContextChars(n int) Option {
	return func(e *Evaluator) { e.contextChars = n }
}

// WithFallback sets the grounding score reported when the judge cannot be used.
func WithFallback(score float64) Option {
	return func(e *Evaluator) { e.fallback = score }
}

func WithJudgeTemperature(t float64) Option {
	return func(e *Evaluator) { e.temperature = t }
}

func WithJudgeMaxTokens(n int) Option {
	return func(e *Evaluator) { e.maxTokens = n }
}

func WithLogger(l *zap.Logger) Option {
	return func(e *Evaluator) { e.logger = l }
}

func New(embedder embedding.Embedder, judge generate.Completer, opts ...Option) *Evaluator {
	e := &Evaluator{
		embedder:     embedder,
		judge:        judge,
		contextChars: DefaultContextChars,
		fallback:     DefaultFallback,
		temperature:  DefaultJudgeTemp,
		maxTokens:    DefaultJudgeMaxTokens,
		logger:       zap.NewNop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// EvaluateRetrieval returns the mean and maximum cosine similarity between query and each passage.
// Both are 0 when there are no passages.
func (e *Evaluator) EvaluateRetrieval(ctx context.Context, query string, passages []models.ScoredPassage) (*models.RetrievalMetrics, error) {
	if len(passages) == 0 {
		return &models.RetrievalMetrics{}, nil
	}

	texts := append([]string{query}, models.Texts(passages)...)
	vecs, err := e.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return nil, err
	}
	if len(vecs) != len(texts) {
		return nil, models.NewServiceError("embeddings", fmt.Errorf("expected %d vectors, got %d", len(texts), len(vecs)))
	}

	sims := make([]float64, len(passages))
	for i := range passages {
		sims[i] = utils.CosineSimilarity(vecs[0], vecs[i+1])
	}
	mean, top := utils.MeanMax(sims)
	return &models.RetrievalMetrics{AvgSimilarity: mean, MaxSimilarity: top, NumDocs: len(passages)}, nil
}

// EvaluateAnswer judges how well answer is supported by passages and how relevant it is to query.
// Judge failures never fail the call; they yield the fallback score with GroundingFallback set.
// Embedding failures are returned.
func (e *Evaluator) EvaluateAnswer(ctx context.Context, query, answer string, passages []models.ScoredPassage) (*models.AnswerMetrics, error) {
	metrics := &models.AnswerMetrics{}
	metrics.GroundingScore, metrics.GroundingFallback = e.grounding(ctx, answer, passages)

	vecs, err := e.embedder.EmbedBatch(ctx, []string{query, answer})
	if err != nil {
		return nil, err
	}
	if len(vecs) != 2 {
		return nil, models.NewServiceError("embeddings", fmt.Errorf("expected 2 vectors, got %d", len(vecs)))
	}
	metrics.AnswerRelevance = utils.CosineSimilarity(vecs[0], vecs[1])
	return metrics, nil
}

// JudgePrompt renders the grounding prompt for answer against the given context.
func JudgePrompt(evidence, answer string) string {
	return fmt.Sprintf(judgeTemplate, evidence, answer)
}

func (e *Evaluator) grounding(ctx context.Context, answer string, passages []models.ScoredPassage) (float64, bool) {
	start := time.Now()
	evidence := utils.Prefix(strings.Join(models.Texts(passages), "\n"), e.contextChars)

	reply, err := e.judge.Complete(ctx, JudgePrompt(evidence, answer), &generate.CompleteOptions{
		Temperature: generate.Float(e.temperature),
		MaxTokens:   e.maxTokens,
	})
	if err != nil {
		e.logger.Warn("grounding judge failed, using fallback score",
			zap.Error(err), zap.Float64("fallback", e.fallback))
		return e.fallback, true
	}

	score, ok := ParseScore(reply)
	if !ok {
		e.logger.Warn("unparsable grounding score, using fallback score",
			zap.String("reply", utils.Truncate(reply, 80)), zap.Float64("fallback", e.fallback))
		return e.fallback, true
	}
	e.logger.Debug("grounding judged",
		zap.Float64("score", score), zap.Duration("elapsed", time.Since(start)))
	return score, false
}

// ParseScore reads a judge reply as a score in [0, 1]. Only a reply holding a single
// number is accepted; fractions, scales ("7 out of 10") and prose are rejected so the
// caller falls back. Out of range values are clamped.
func ParseScore(reply string) (float64, bool) {
	m := scorePattern.FindStringSubmatch(strings.TrimSpace(reply))
	if m == nil {
		return 0, false
	}
	v, err := strconv.ParseFloat(m[1], 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return utils.Clamp(v, 0, 1), true
}
