// Package pipeline answers questions by running retrieval, reranking, synthesis and
// optional evaluation in sequence.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hyperjump/principia/internal/embedding"
	"github.com/hyperjump/principia/internal/models"
	"github.com/hyperjump/principia/internal/vector"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const instrumentationName = "github.com/hyperjump/principia/internal/pipeline"

const (
	DefaultCandidates = 20
	DefaultTopK       = 5
)

// Reranker orders candidates by relevance and keeps the best topK.
type Reranker interface {
	Rerank(ctx context.Context, query string, candidates []models.ScoredPassage, topK int) ([]models.ScoredPassage, error)
}

// Synthesizer writes an answer from the selected passages.
type Synthesizer interface {
	Synthesize(ctx context.Context, question string, passages []models.ScoredPassage) (string, error)
}

// Evaluator scores retrieval and answer quality.
type Evaluator interface {
	EvaluateRetrieval(ctx context.Context, query string, passages []models.ScoredPassage) (*models.RetrievalMetrics, error)
	EvaluateAnswer(ctx context.Context, query, answer string, passages []models.ScoredPassage) (*models.AnswerMetrics, error)
}

// Deps are the components a Pipeline runs. All are required.
type Deps struct {
	Embedder    embedding.Embedder
	Index       vector.VectorIndex
	Reranker    Reranker
	Synthesizer Synthesizer
	Evaluator   Evaluator
}

// Pipeline answers questions. It holds no per-query state and is safe for concurrent use
// when its components are.
type Pipeline struct {
	deps       Deps
	candidates int
	topK       int
	logger     *zap.Logger
	tracer     trace.Tracer
}

type Option func(*Pipeline)

// WithCandidates sets how many passages vector search over-fetches for reranking.
func WithCandidates(n int) Option {
	return func(p *Pipeline) { p.candidates = n }
}

// WithTopK sets how many reranked passages are kept for synthesis.
func WithTopK(n int) Option {
	return func(p *Pipeline) { p.topK = n }
}

func WithLogger(l *zap.Logger) Option {
	return func(p *Pipeline) { p.logger = l }
}

func WithTracer(t trace.Tracer) Option {
	return func(p *Pipeline) { p.tracer = t }
}

func New(deps Deps, opts ...Option) (*Pipeline, error) {
	switch {
	case deps.Embedder == nil:
		return nil, errors.New("pipeline: embedder is required")
	case deps.Index == nil:
		return nil, errors.New("pipeline: vector index is required")
	case deps.Reranker == nil:
		return nil, errors.New("pipeline: reranker is required")
	case deps.Synthesizer == nil:
		return nil, errors.New("pipeline: synthesizer is required")
	case deps.Evaluator == nil:
		return nil, errors.New("pipeline: evaluator is required")
	}

	p := &Pipeline{
		deps:       deps,
		candidates: DefaultCandidates,
		topK:       DefaultTopK,
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.tracer == nil {
		p.tracer = otel.Tracer(instrumentationName)
	}
	if p.topK <= 0 || p.candidates < p.topK {
		return nil, fmt.Errorf("pipeline: top k %d must be positive and at most candidates %d", p.topK, p.candidates)
	}
	return p, nil
}

// Retrieve embeds the question, over-fetches candidates from the vector index and
// reranks them down to the top k.
func (p *Pipeline) Retrieve(ctx context.Context, question string) ([]models.ScoredPassage, error) {
	var queryVec []float32
	err := p.stage(ctx, models.StageEmbed, func(ctx context.Context) (err error) {
		queryVec, err = p.deps.Embedder.Embed(ctx, question)
		return err
	})
	if err != nil {
		return nil, err
	}

	var candidates []models.ScoredPassage
	err = p.stage(ctx, models.StageSearch, func(ctx context.Context) error {
		results, err := p.deps.Index.Search(ctx, queryVec, p.candidates)
		if err != nil {
			return err
		}
		candidates = vector.ToScoredPassages(results)
		return nil
	})
	if err != nil {
		return nil, err
	}
	if len(candidates) == 0 {
		return nil, &models.ValidationError{Message: "no passages retrieved"}
	}

	var passages []models.ScoredPassage
	err = p.stage(ctx, models.StageRerank, func(ctx context.Context) (err error) {
		passages, err = p.deps.Reranker.Rerank(ctx, question, candidates, p.topK)
		return err
	})
	if err != nil {
		return nil, err
	}

	p.logger.Debug("retrieved passages",
		zap.Int("candidates", len(candidates)),
		zap.Int("passages", len(passages)))
	return passages, nil
}

// AnswerQuestion answers question from the indexed corpus. When evaluate is set, the
// retrieval and answer metrics are computed too; they never influence the answer.
// Any stage failure aborts the query and is returned tagged with its stage.
func (p *Pipeline) AnswerQuestion(ctx context.Context, question string, evaluate bool) (*models.AnswerRecord, error) {
	q := models.Question{Question: question}
	if err := q.Validate(); err != nil {
		return nil, err
	}
	question = q.Question

	ctx, span := p.tracer.Start(ctx, "answer_question", trace.WithAttributes(
		attribute.Bool("principia.evaluate", evaluate),
		attribute.Int("principia.question_chars", len(question)),
	))
	defer span.End()

	start := time.Now()
	record, err := p.answer(ctx, question, evaluate)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		p.logger.Debug("question failed", zap.Error(err), zap.Duration("elapsed", time.Since(start)))
		return nil, err
	}
	record.ElapsedMS = time.Since(start).Milliseconds()

	p.logger.Debug("question answered",
		zap.Int("num_docs", record.NumDocs),
		zap.Bool("evaluated", record.Evaluation != nil),
		zap.Duration("elapsed", time.Since(start)))
	return record, nil
}

func (p *Pipeline) answer(ctx context.Context, question string, evaluate bool) (*models.AnswerRecord, error) {
	passages, err := p.Retrieve(ctx, question)
	if err != nil {
		return nil, err
	}

	var retrieval *models.RetrievalMetrics
	if evaluate {
		err = p.stage(ctx, models.StageEvaluateRetrieval, func(ctx context.Context) (err error) {
			retrieval, err = p.deps.Evaluator.EvaluateRetrieval(ctx, question, passages)
			return err
		})
		if err != nil {
			return nil, err
		}
	}

	var answer string
	err = p.stage(ctx, models.StageSynthesize, func(ctx context.Context) (err error) {
		answer, err = p.deps.Synthesizer.Synthesize(ctx, question, passages)
		return err
	})
	if err != nil {
		return nil, err
	}

	record := &models.AnswerRecord{
		Question: question,
		Answer:   answer,
		Sources:  models.Titles(passages),
		NumDocs:  len(passages),
		Passages: passages,
	}

	if evaluate {
		var metrics *models.AnswerMetrics
		err = p.stage(ctx, models.StageEvaluateAnswer, func(ctx context.Context) (err error) {
			metrics, err = p.deps.Evaluator.EvaluateAnswer(ctx, question, answer, passages)
			return err
		})
		if err != nil {
			return nil, err
		}
		record.Evaluation = &models.Evaluation{Retrieval: retrieval, Answer: metrics}
	}
	return record, nil
}

// stage runs fn inside a span named after the stage and tags any error with it.
func (p *Pipeline) stage(ctx context.Context, stage models.Stage, fn func(context.Context) error) error {
	ctx, span := p.tracer.Start(ctx, string(stage))
	defer span.End()

	start := time.Now()
	err := fn(ctx)
	if err != nil {
		err = models.AtStage(stage, err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	p.logger.Debug("stage completed",
		zap.String("stage", string(stage)),
		zap.Duration("elapsed", time.Since(start)))
	return nil
}
