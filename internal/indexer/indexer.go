package indexer

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/hyperjump/principia/internal/embedding"
	"github.com/hyperjump/principia/internal/extract"
	"github.com/hyperjump/principia/internal/ident"
	"github.com/hyperjump/principia/internal/models"
	"github.com/hyperjump/principia/internal/storage"
	"github.com/hyperjump/principia/internal/vector"
	"go.uber.org/zap"
)

// IngestStats summarizes an ingestion run.
type IngestStats struct {
	Articles int           `json:"articles"` // articles chunked and embedded
	Skipped  int           `json:"skipped"`  // articles unchanged since their last ingestion
	Chunks   int           `json:"chunks"`
	Elapsed  time.Duration `json:"elapsed"`
}

func (s *IngestStats) add(o *IngestStats) {
	s.Articles += o.Articles
	s.Skipped += o.Skipped
	s.Chunks += o.Chunks
}

// Indexer moves articles from the document store into the vector index:
// clean, chunk, embed and upsert.
type Indexer struct {
	storage    storage.Storage
	embedder   embedding.Embedder
	index      vector.VectorIndex
	chunker    *Chunker
	loader     *extract.Loader
	collection string
	logger     *zap.Logger
}

// IndexerOption configures an Indexer.
type IndexerOption func(*Indexer)

func WithLogger(l *zap.Logger) IndexerOption {
	return func(idx *Indexer) { idx.logger = l }
}

// WithLoader sets the corpus file loader used by the import methods.
func WithLoader(l *extract.Loader) IndexerOption {
	return func(idx *Indexer) { idx.loader = l }
}

// WithCollection sets the vector collection ensured before ingestion.
func WithCollection(name string) IndexerOption {
	return func(idx *Indexer) { idx.collection = name }
}

// NewIndexer creates an indexer with the given dependencies.
func NewIndexer(store storage.Storage, embedder embedding.Embedder, index vector.VectorIndex, chunker *Chunker, opts ...IndexerOption) *Indexer {
	idx := &Indexer{
		storage:    store,
		embedder:   embedder,
		index:      index,
		chunker:    chunker,
		loader:     extract.NewLoader(),
		collection: "newton_knowledge",
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(idx)
	}
	return idx
}

// EnsureCollection creates the vector collection when it does not exist yet.
func (idx *Indexer) EnsureCollection(ctx context.Context) error {
	created, err := vector.EnsureCollection(ctx, idx.index, idx.collection, idx.embedder.Dimensions())
	if err != nil {
		return models.AtStage(models.StageIngest, err)
	}
	if created {
		idx.logger.Info("created vector collection",
			zap.String("collection", idx.collection),
			zap.Int("dimensions", idx.embedder.Dimensions()))
	}
	return nil
}

type ingested struct {
	id     string
	hash   string
	chunks int
}

// IngestAll ingests every article in the document store. Articles unchanged since their
// last ingestion are skipped unless force is set. The run stops at the first failure.
func (idx *Indexer) IngestAll(ctx context.Context, force bool) (*IngestStats, error) {
	start := time.Now()
	if err := idx.EnsureCollection(ctx); err != nil {
		return nil, err
	}

	stats := &IngestStats{}
	// Ingestion state is written after iteration so no write waits on the open read.
	var done []ingested
	var runErr error
	for article, err := range idx.storage.Articles(ctx) {
		if err != nil {
			runErr = fmt.Errorf("read articles: %w", err)
			break
		}
		if !force && !article.NeedsIngest() {
			stats.Skipped++
			continue
		}
		n, err := idx.ingest(ctx, article)
		if err != nil {
			runErr = err
			break
		}
		done = append(done, ingested{id: article.ID, hash: article.ContentHash, chunks: n})
		stats.Articles++
		stats.Chunks += n
	}

	for _, d := range done {
		if err := idx.storage.MarkIngested(ctx, d.id, d.hash, d.chunks); err != nil {
			return nil, fmt.Errorf("mark ingested: %w", err)
		}
	}
	if runErr != nil {
		return nil, runErr
	}

	stats.Elapsed = time.Since(start)
	idx.logger.Info("ingestion complete",
		zap.Int("articles", stats.Articles),
		zap.Int("skipped", stats.Skipped),
		zap.Int("chunks", stats.Chunks),
		zap.Duration("elapsed", stats.Elapsed))
	return stats, nil
}

// IngestArticle chunks, embeds and indexes a single stored article and records it as ingested.
// It returns the number of passages indexed.
func (idx *Indexer) IngestArticle(ctx context.Context, article *models.Article) (int, error) {
	n, err := idx.ingest(ctx, article)
	if err != nil {
		return 0, err
	}
	if err := idx.storage.MarkIngested(ctx, article.ID, article.ContentHash, n); err != nil {
		return 0, fmt.Errorf("mark ingested: %w", err)
	}
	return n, nil
}

func (idx *Indexer) ingest(ctx context.Context, article *models.Article) (int, error) {
	passages := idx.chunker.Chunk(CleanText(article.Content), article.Title, article.URL)
	if len(passages) == 0 {
		if err := idx.index.DeleteByTitle(ctx, article.Title); err != nil {
			return 0, models.AtStage(models.StageIngest, err)
		}
		idx.logger.Debug("article has no passages", zap.String("title", article.Title))
		return 0, nil
	}
	for i := range passages {
		if article.SourceType != "" {
			passages[i].SourceType = article.SourceType
		}
	}

	texts := make([]string, len(passages))
	for i := range passages {
		texts[i] = passages[i].Text
	}
	vectors, err := idx.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return 0, models.AtStage(models.StageIngest, fmt.Errorf("embed %q: %w", article.Title, err))
	}

	points := make([]vector.Point, len(passages))
	for i, p := range passages {
		points[i] = vector.Point{ID: ident.PointID(p.Title, p.ChunkIndex), Vector: vectors[i], Passage: p}
	}
	if err := idx.index.Upsert(ctx, points); err != nil {
		return 0, models.AtStage(models.StageIngest, fmt.Errorf("upsert %q: %w", article.Title, err))
	}

	idx.logger.Debug("article ingested",
		zap.String("title", article.Title),
		zap.Int("passages", len(passages)))
	return len(passages), nil
}

// AddArticle stores the article and ingests it when its content changed.
func (idx *Indexer) AddArticle(ctx context.Context, in *models.ArticleInput) (*models.Article, error) {
	if err := idx.EnsureCollection(ctx); err != nil {
		return nil, err
	}
	article, _, err := idx.storage.UpsertArticle(ctx, in)
	if err != nil {
		return nil, err
	}
	if !article.NeedsIngest() {
		return article, nil
	}
	if _, err := idx.IngestArticle(ctx, article); err != nil {
		return nil, err
	}
	return idx.storage.GetArticle(ctx, article.ID)
}

// ImportPath imports a corpus file or every supported file below a directory.
func (idx *Indexer) ImportPath(ctx context.Context, path string) (*IngestStats, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", path, err)
	}
	if info.IsDir() {
		return idx.ImportDirectory(ctx, path)
	}
	return idx.ImportFile(ctx, path)
}

// ImportFile loads the articles in the file at path into the document store and ingests
// those that changed. Articles previously imported from the same file but no longer in it
// are deleted.
func (idx *Indexer) ImportFile(ctx context.Context, path string) (*IngestStats, error) {
	start := time.Now()
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("stat file: %w", err)
	}
	if !info.Mode().IsRegular() {
		return nil, fmt.Errorf("not a regular file: %s", path)
	}
	inputs, err := idx.loader.Load(path)
	if err != nil {
		return nil, err
	}
	if err := idx.EnsureCollection(ctx); err != nil {
		return nil, err
	}

	stats := &IngestStats{}
	keep := make(map[string]bool, len(inputs))
	for _, in := range inputs {
		article, _, err := idx.storage.UpsertArticle(ctx, in)
		if err != nil {
			return nil, fmt.Errorf("store %q: %w", in.Title, err)
		}
		keep[article.ID] = true
		if !article.NeedsIngest() {
			stats.Skipped++
			continue
		}
		n, err := idx.IngestArticle(ctx, article)
		if err != nil {
			return nil, err
		}
		stats.Articles++
		stats.Chunks += n
	}

	previous, err := idx.storage.ArticlesBySource(ctx, ident.SourcePath(path))
	if err != nil {
		return nil, err
	}
	for _, a := range previous {
		if !keep[a.ID] {
			if err := idx.DeleteArticle(ctx, a.ID); err != nil {
				return nil, err
			}
		}
	}

	stats.Elapsed = time.Since(start)
	idx.logger.Debug("file imported",
		zap.String("path", path),
		zap.Int("articles", stats.Articles),
		zap.Int("skipped", stats.Skipped))
	return stats, nil
}

// ImportDirectory walks dir recursively and imports every regular file the loader supports.
func (idx *Indexer) ImportDirectory(ctx context.Context, dir string) (*IngestStats, error) {
	start := time.Now()
	stats := &IngestStats{}
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if d.IsDir() || !idx.loader.Supports(path) {
			return nil
		}
		// Resolve symlinks so only regular files are imported
		info, err := os.Stat(path)
		if err != nil || !info.Mode().IsRegular() {
			return nil
		}
		s, err := idx.ImportFile(ctx, path)
		if err != nil {
			return err
		}
		stats.add(s)
		return nil
	})
	if err != nil {
		return nil, err
	}
	stats.Elapsed = time.Since(start)
	return stats, nil
}

// Supports reports whether the file at path would be imported.
func (idx *Indexer) Supports(path string) bool {
	return idx.loader.Supports(path)
}

// RemoveSource deletes every article imported from the file at path.
// It returns the number of articles deleted.
func (idx *Indexer) RemoveSource(ctx context.Context, path string) (int, error) {
	articles, err := idx.storage.ArticlesBySource(ctx, ident.SourcePath(path))
	if err != nil {
		return 0, err
	}
	for _, a := range articles {
		if err := idx.DeleteArticle(ctx, a.ID); err != nil {
			return 0, err
		}
	}
	return len(articles), nil
}

// DeleteArticle removes an article's passages from the vector index and the article from the store.
func (idx *Indexer) DeleteArticle(ctx context.Context, id string) error {
	article, err := idx.storage.GetArticle(ctx, id)
	if err != nil {
		return err
	}
	if err := idx.index.DeleteByTitle(ctx, article.Title); err != nil {
		return models.AtStage(models.StageIngest, fmt.Errorf("delete vectors of %q: %w", article.Title, err))
	}
	if err := idx.storage.DeleteArticle(ctx, id); err != nil && !errors.Is(err, storage.ErrNotFound) {
		return err
	}
	idx.logger.Debug("article deleted", zap.String("id", id), zap.String("title", article.Title))
	return nil
}
