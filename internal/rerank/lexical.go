package rerank

import (
	"context"
	"strconv"

	"github.com/hyperjump/principia/internal/keyword"
	"github.com/hyperjump/principia/internal/models"
)

// LexicalScorer scores passages by term overlap with the query, using a throwaway
// in-memory Bleve index over the candidate set. Passages with no matching term score 0.
//
// Unlike a cross-encoder, scores are not independent per pair: term weights come from
// the candidate set (document frequency and average length), so the same passage can
// score differently against the same query in another candidate pool. Only the order
// within one call is meaningful.
type LexicalScorer struct{}

func NewLexicalScorer() *LexicalScorer { return &LexicalScorer{} }

func (s *LexicalScorer) Score(ctx context.Context, query string, passages []string) ([]float64, error) {
	scores := make([]float64, len(passages))
	if len(passages) == 0 {
		return scores, nil
	}

	idx, err := keyword.NewMemoryIndex()
	if err != nil {
		return nil, err
	}
	defer idx.Close()

	ids := make([]string, len(passages))
	docs := make([]models.Passage, len(passages))
	for i, p := range passages {
		ids[i] = strconv.Itoa(i)
		docs[i] = models.Passage{Text: p}
	}
	if err := idx.IndexBatch(ctx, ids, docs); err != nil {
		return nil, err
	}
	hits, err := idx.Search(ctx, query, len(passages))
	if err != nil {
		return nil, err
	}
	for _, h := range hits {
		i, err := strconv.Atoi(h.ID)
		if err != nil || i < 0 || i >= len(scores) {
			continue
		}
		scores[i] = h.Score
	}
	return scores, nil
}

func (s *LexicalScorer) Name() string { return "lexical" }

func (s *LexicalScorer) Close() error { return nil }
