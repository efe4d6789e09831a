// Package keyword provides a bleve-backed lexical index over passages.
package keyword

import (
	"context"

	"github.com/hyperjump/principia/internal/models"
)

// KeywordIndex defines keyword search operations over passages.
type KeywordIndex interface {
	Index(ctx context.Context, id string, p *models.Passage) error
	IndexBatch(ctx context.Context, ids []string, passages []models.Passage) error
	Search(ctx context.Context, query string, limit int) ([]*KeywordResult, error)
	DocCount() (uint64, error)
	Close() error
}

// KeywordResult is a single keyword search hit.
type KeywordResult struct {
	ID    string
	Score float64
}
