package pipeline

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/hyperjump/principia/internal/embedding"
	"github.com/hyperjump/principia/internal/evaluator"
	"github.com/hyperjump/principia/internal/generate"
	"github.com/hyperjump/principia/internal/ident"
	"github.com/hyperjump/principia/internal/models"
	"github.com/hyperjump/principia/internal/rerank"
	"github.com/hyperjump/principia/internal/synthesizer"
	"github.com/hyperjump/principia/internal/vector"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// trail records the order in which stages are called.
type trail struct{ calls []string }

func (t *trail) add(s string) { t.calls = append(t.calls, s) }

type fakeEmbedder struct {
	*trail
	err error
}

func (f *fakeEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	f.add("embed")
	if f.err != nil {
		return nil, f.err
	}
	return []float32{1, 0, 0}, nil
}

func (f *fakeEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{1, 0, 0}
	}
	return out, nil
}

func (f *fakeEmbedder) Dimensions() int { return 3 }
func (f *fakeEmbedder) Close() error    { return nil }

type fakeIndex struct {
	vector.VectorIndex
	*trail
	results []*vector.VectorResult
	err     error
	limit   int
}

func (f *fakeIndex) Search(ctx context.Context, query []float32, limit int) ([]*vector.VectorResult, error) {
	f.add("search")
	f.limit = limit
	return f.results, f.err
}

type fakeReranker struct {
	*trail
	err  error
	topK int
}

// Rerank reverses the candidates and keeps topK.
func (f *fakeReranker) Rerank(ctx context.Context, query string, candidates []models.ScoredPassage, topK int) ([]models.ScoredPassage, error) {
	f.add("rerank")
	f.topK = topK
	if f.err != nil {
		return nil, f.err
	}
	out := make([]models.ScoredPassage, 0, len(candidates))
	for i := len(candidates) - 1; i >= 0; i-- {
		out = append(out, candidates[i])
	}
	return out[:min(topK, len(out))], nil
}

type fakeSynthesizer struct {
	*trail
	err error
}

func (f *fakeSynthesizer) Synthesize(ctx context.Context, question string, passages []models.ScoredPassage) (string, error) {
	f.add("synthesize")
	if f.err != nil {
		return "", f.err
	}
	return fmt.Sprintf("answer to %q from %d passages", question, len(passages)), nil
}

type fakeEvaluator struct {
	*trail
	retrievalErr error
	answerErr    error
}

func (f *fakeEvaluator) EvaluateRetrieval(ctx context.Context, query string, passages []models.ScoredPassage) (*models.RetrievalMetrics, error) {
	f.add("evaluate_retrieval")
	if f.retrievalErr != nil {
		return nil, f.retrievalErr
	}
	return &models.RetrievalMetrics{AvgSimilarity: 0.7, MaxSimilarity: 0.9, NumDocs: len(passages)}, nil
}

func (f *fakeEvaluator) EvaluateAnswer(ctx context.Context, query, answer string, passages []models.ScoredPassage) (*models.AnswerMetrics, error) {
	f.add("evaluate_answer")
	if f.answerErr != nil {
		return nil, f.answerErr
	}
	return &models.AnswerMetrics{GroundingScore: 1, AnswerRelevance: 0.8}, nil
}

type fixture struct {
	trail       *trail
	embedder    *fakeEmbedder
	index       *fakeIndex
	reranker    *fakeReranker
	synthesizer *fakeSynthesizer
	evaluator   *fakeEvaluator
}

func newFixture(hits int) *fixture {
	tr := &trail{}
	results := make([]*vector.VectorResult, hits)
	for i := range results {
		results[i] = &vector.VectorResult{
			ID:    fmt.Sprintf("p%d", i),
			Score: 1 - float64(i)/100,
			Passage: models.Passage{
				Text:  fmt.Sprintf("passage %d", i),
				Title: fmt.Sprintf("Article %d", i),
			},
		}
	}
	return &fixture{
		trail:       tr,
		embedder:    &fakeEmbedder{trail: tr},
		index:       &fakeIndex{trail: tr, results: results},
		reranker:    &fakeReranker{trail: tr},
		synthesizer: &fakeSynthesizer{trail: tr},
		evaluator:   &fakeEvaluator{trail: tr},
	}
}

func (f *fixture) pipeline(t *testing.T, opts ...Option) *Pipeline {
	t.Helper()
	p, err := New(Deps{
		Embedder:    f.embedder,
		Index:       f.index,
		Reranker:    f.reranker,
		Synthesizer: f.synthesizer,
		Evaluator:   f.evaluator,
	}, opts...)
	require.NoError(t, err)
	return p
}

func TestAnswerQuestion_StageOrder(t *testing.T) {
	f := newFixture(20)
	p := f.pipeline(t)

	record, err := p.AnswerQuestion(context.Background(), "  Who was Isaac Newton?  ", true)
	require.NoError(t, err)

	assert.Equal(t, []string{"embed", "search", "rerank", "evaluate_retrieval", "synthesize", "evaluate_answer"}, f.trail.calls)
	assert.Equal(t, 20, f.index.limit)
	assert.Equal(t, 5, f.reranker.topK)

	assert.Equal(t, "Who was Isaac Newton?", record.Question)
	assert.Equal(t, 5, record.NumDocs)
	assert.Equal(t, []string{"Article 19", "Article 18", "Article 17", "Article 16", "Article 15"}, record.Sources)
	assert.Len(t, record.Passages, 5)
	require.NotNil(t, record.Evaluation)
	assert.Equal(t, 5, record.Evaluation.Retrieval.NumDocs)
	assert.Equal(t, 1.0, record.Evaluation.Answer.GroundingScore)
}

func TestAnswerQuestion_EvaluateDoesNotChangeAnswer(t *testing.T) {
	f := newFixture(20)
	p := f.pipeline(t)

	withEval, err := p.AnswerQuestion(context.Background(), "What is the Principia about?", true)
	require.NoError(t, err)
	f.trail.calls = nil
	withoutEval, err := p.AnswerQuestion(context.Background(), "What is the Principia about?", false)
	require.NoError(t, err)

	assert.Equal(t, withEval.Answer, withoutEval.Answer)
	assert.Equal(t, withEval.Sources, withoutEval.Sources)
	assert.Equal(t, withEval.NumDocs, withoutEval.NumDocs)
	assert.Nil(t, withoutEval.Evaluation)
	assert.Equal(t, []string{"embed", "search", "rerank", "synthesize"}, f.trail.calls)
}

func TestAnswerQuestion_FewerCandidatesThanTopK(t *testing.T) {
	f := newFixture(3)
	record, err := f.pipeline(t).AnswerQuestion(context.Background(), "q", false)
	require.NoError(t, err)
	assert.Equal(t, 3, record.NumDocs)
}

func TestAnswerQuestion_InvalidQuestion(t *testing.T) {
	f := newFixture(20)
	p := f.pipeline(t)

	for _, q := range []string{"", "   \n\t"} {
		_, err := p.AnswerQuestion(context.Background(), q, true)
		var ve *models.ValidationError
		require.True(t, errors.As(err, &ve), "question %q: got %v", q, err)
	}
	assert.Empty(t, f.trail.calls)
}

func TestAnswerQuestion_NoPassages(t *testing.T) {
	f := newFixture(0)
	_, err := f.pipeline(t).AnswerQuestion(context.Background(), "q", true)

	var ve *models.ValidationError
	require.True(t, errors.As(err, &ve), "got %v", err)
	assert.Equal(t, "no passages retrieved", ve.Error())
	assert.Equal(t, []string{"embed", "search"}, f.trail.calls)
}

func TestAnswerQuestion_StageErrors(t *testing.T) {
	boom := errors.New("boom")
	tests := []struct {
		stage models.Stage
		fail  func(f *fixture)
		calls []string
	}{
		{models.StageEmbed, func(f *fixture) { f.embedder.err = boom }, []string{"embed"}},
		{models.StageSearch, func(f *fixture) { f.index.err = boom }, []string{"embed", "search"}},
		{models.StageRerank, func(f *fixture) { f.reranker.err = boom }, []string{"embed", "search", "rerank"}},
		{models.StageEvaluateRetrieval, func(f *fixture) { f.evaluator.retrievalErr = boom },
			[]string{"embed", "search", "rerank", "evaluate_retrieval"}},
		{models.StageSynthesize, func(f *fixture) { f.synthesizer.err = models.NewServiceError("gpt-4o-mini", boom) },
			[]string{"embed", "search", "rerank", "evaluate_retrieval", "synthesize"}},
		{models.StageEvaluateAnswer, func(f *fixture) { f.evaluator.answerErr = boom },
			[]string{"embed", "search", "rerank", "evaluate_retrieval", "synthesize", "evaluate_answer"}},
	}
	for _, tt := range tests {
		t.Run(string(tt.stage), func(t *testing.T) {
			f := newFixture(20)
			tt.fail(f)

			record, err := f.pipeline(t).AnswerQuestion(context.Background(), "q", true)
			assert.Nil(t, record)

			var se *models.ServiceError
			require.True(t, errors.As(err, &se), "got %v", err)
			assert.Equal(t, tt.stage, se.Stage)
			assert.ErrorIs(t, err, boom)
			assert.Equal(t, tt.calls, f.trail.calls)
		})
	}
}

func TestNew_Validation(t *testing.T) {
	f := newFixture(1)
	deps := Deps{Embedder: f.embedder, Index: f.index, Reranker: f.reranker, Synthesizer: f.synthesizer, Evaluator: f.evaluator}

	_, err := New(deps, WithTopK(10), WithCandidates(5))
	assert.Error(t, err)

	_, err = New(deps, WithTopK(0))
	assert.Error(t, err)

	deps.Evaluator = nil
	_, err = New(deps)
	assert.Error(t, err)
}

// TestAnswerQuestion_RealComponents runs the pipeline over the in-memory index with
// the offline embedder, the lexical reranker and the mock completer.
func TestAnswerQuestion_RealComponents(t *testing.T) {
	ctx := context.Background()
	emb := embedding.NewMockEmbedder(64)
	idx, err := vector.NewMemoryIndex(64)
	require.NoError(t, err)

	articles := []struct{ title, text string }{
		{"Isaac Newton", "Isaac Newton was an English mathematician and physicist. He formulated the laws of motion."},
		{"Opticks", "Opticks is a book by Isaac Newton about light and colour. It describes the prism experiments."},
		{"Principia", "The Principia states the laws of motion and universal gravitation."},
	}
	var points []vector.Point
	for _, a := range articles {
		vec, err := emb.Embed(ctx, a.text)
		require.NoError(t, err)
		points = append(points, vector.Point{
			ID:      ident.PointID(a.title, 0),
			Vector:  vec,
			Passage: models.Passage{Text: a.text, Title: a.title, SourceType: models.SourceWikipedia},
		})
	}
	require.NoError(t, idx.Upsert(ctx, points))

	completer := generate.NewMockCompleter()
	p, err := New(Deps{
		Embedder:    emb,
		Index:       idx,
		Reranker:    rerank.New(rerank.NewLexicalScorer()),
		Synthesizer: synthesizer.New(completer),
		Evaluator:   evaluator.New(emb, completer),
	}, WithTopK(2), WithCandidates(3))
	require.NoError(t, err)

	record, err := p.AnswerQuestion(ctx, "What did Newton write about light and colour?", true)
	require.NoError(t, err)

	assert.Equal(t, 2, record.NumDocs)
	assert.Equal(t, "Opticks", record.Sources[0])
	assert.NotEmpty(t, record.Answer)
	require.NotNil(t, record.Evaluation)
	assert.Equal(t, 2, record.Evaluation.Retrieval.NumDocs)
	assert.GreaterOrEqual(t, record.Evaluation.Answer.GroundingScore, 0.0)
	assert.LessOrEqual(t, record.Evaluation.Answer.GroundingScore, 1.0)
}
