package keyword

import (
	"context"
	"fmt"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/standard"
	"github.com/blevesearch/bleve/v2/mapping"
	"github.com/hyperjump/principia/internal/models"
)

var _ KeywordIndex = (*BleveIndex)(nil)

// BleveIndex implements KeywordIndex using Bleve.
type BleveIndex struct {
	index bleve.Index
}

type passageDoc struct {
	Text  string `json:"text"`
	Title string `json:"title"`
}

func newMapping() mapping.IndexMapping {
	im := bleve.NewIndexMapping()
	docMapping := bleve.NewDocumentMapping()
	textFieldMapping := bleve.NewTextFieldMapping()
	// Standard analyzer lowercases and tokenizes without stemming.
	textFieldMapping.Analyzer = standard.Name
	docMapping.AddFieldMappingsAt("text", textFieldMapping)
	docMapping.AddFieldMappingsAt("title", textFieldMapping)
	im.AddDocumentMapping("passage", docMapping)
	im.DefaultType = "passage"
	im.DefaultMapping = docMapping
	return im
}

// NewMemoryIndex creates an in-memory Bleve index, discarded on Close.
func NewMemoryIndex() (*BleveIndex, error) {
	index, err := bleve.NewMemOnly(newMapping())
	if err != nil {
		return nil, fmt.Errorf("failed to create Bleve index: %w", err)
	}
	return &BleveIndex{index: index}, nil
}

// Index indexes a passage by id.
func (b *BleveIndex) Index(ctx context.Context, id string, p *models.Passage) error {
	return b.index.Index(id, passageDoc{Text: p.Text, Title: p.Title})
}

// IndexBatch indexes passages in a single batch; ids and passages are parallel slices.
func (b *BleveIndex) IndexBatch(ctx context.Context, ids []string, passages []models.Passage) error {
	if len(ids) != len(passages) {
		return fmt.Errorf("ids and passages length mismatch")
	}
	batch := b.index.NewBatch()
	for i, p := range passages {
		if err := batch.Index(ids[i], passageDoc{Text: p.Text, Title: p.Title}); err != nil {
			return fmt.Errorf("batch index %s: %w", ids[i], err)
		}
	}
	return b.index.Batch(batch)
}

// Search runs a match query against passage text and returns up to limit hits by descending score.
func (b *BleveIndex) Search(ctx context.Context, query string, limit int) ([]*KeywordResult, error) {
	q := bleve.NewMatchQuery(query)
	q.SetField("text")
	req := bleve.NewSearchRequest(q)
	req.Size = limit
	results, err := b.index.SearchInContext(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("Bleve search failed: %w", err)
	}
	out := make([]*KeywordResult, len(results.Hits))
	for i, hit := range results.Hits {
		out[i] = &KeywordResult{ID: hit.ID, Score: hit.Score}
	}
	return out, nil
}

// DocCount returns the total number of passages in the index.
func (b *BleveIndex) DocCount() (uint64, error) {
	return b.index.DocCount()
}

func (b *BleveIndex) Close() error {
	return b.index.Close()
}
