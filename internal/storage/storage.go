// Package storage persists the article corpus that the vector index is built from.
package storage

import (
	"context"
	"errors"
	"iter"

	"github.com/hyperjump/principia/internal/models"
)

// ErrNotFound is returned when an article does not exist.
var ErrNotFound = errors.New("article not found")

// Storage is the document store. Articles are unique by title.
type Storage interface {
	// UpsertArticle inserts the article or replaces the one with the same title.
	// It reports whether the stored content changed.
	UpsertArticle(ctx context.Context, in *models.ArticleInput) (*models.Article, bool, error)
	GetArticle(ctx context.Context, id string) (*models.Article, error)
	GetArticleByTitle(ctx context.Context, title string) (*models.Article, error)
	DeleteArticle(ctx context.Context, id string) error
	ListArticles(ctx context.Context, offset, limit int) ([]*models.Article, error)
	// Articles lazily yields every article ordered by title.
	Articles(ctx context.Context) iter.Seq2[*models.Article, error]
	ArticlesBySource(ctx context.Context, sourcePath string) ([]*models.Article, error)
	// MarkIngested records that the vectors of the article were built from content hash.
	MarkIngested(ctx context.Context, id, hash string, chunks int) error

	CountArticles(ctx context.Context) (int64, error)
	CountChunks(ctx context.Context) (int64, error)

	Close() error
}
