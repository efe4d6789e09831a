package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"iter"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/hyperjump/principia/internal/ident"
	"github.com/hyperjump/principia/internal/models"
)

const articleColumns = `id, title, url, content, source_type, source_path, content_hash,
	ingested_hash, chunk_count, ingested_at, metadata, created_at, updated_at`

// SQLiteStorage implements Storage using SQLite.
type SQLiteStorage struct {
	db *sql.DB
}

// NewSQLiteStorage opens or creates a SQLite database at dbPath and initializes the schema.
// Parent directories are created if they do not exist. ":memory:" opens a private in-memory database.
func NewSQLiteStorage(dbPath string) (*SQLiteStorage, error) {
	if dbPath != ":memory:" {
		if dir := filepath.Dir(dbPath); dir != "." {
			if err := os.MkdirAll(dir, 0755); err != nil {
				return nil, fmt.Errorf("failed to create database directory: %w", err)
			}
		}
	}
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if dbPath == ":memory:" {
		// every pooled connection would otherwise get its own empty database
		db.SetMaxOpenConns(1)
	} else if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL: %w", err)
	}

	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &SQLiteStorage{db: db}, nil
}

func initSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS articles (
		id TEXT PRIMARY KEY,
		title TEXT NOT NULL UNIQUE,
		url TEXT NOT NULL DEFAULT '',
		content TEXT NOT NULL,
		source_type TEXT NOT NULL DEFAULT 'wikipedia',
		source_path TEXT NOT NULL DEFAULT '',
		content_hash TEXT NOT NULL,
		ingested_hash TEXT NOT NULL DEFAULT '',
		chunk_count INTEGER NOT NULL DEFAULT 0,
		ingested_at TIMESTAMP,
		metadata TEXT,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_articles_source_path ON articles(source_path);
	CREATE INDEX IF NOT EXISTS idx_articles_created_at ON articles(created_at);
	`
	_, err := db.Exec(schema)
	return err
}

// UpsertArticle inserts the article or replaces the stored article with the same title.
// Ingestion state is kept, so an unchanged article is not re-embedded.
func (s *SQLiteStorage) UpsertArticle(ctx context.Context, in *models.ArticleInput) (*models.Article, bool, error) {
	if err := in.Validate(); err != nil {
		return nil, false, err
	}
	metadataJSON, err := json.Marshal(in.Metadata)
	if err != nil {
		return nil, false, fmt.Errorf("failed to marshal metadata: %w", err)
	}

	id := ident.ArticleID(in.Title)
	hash := ident.ContentHash(in.Title, in.URL, in.Content)

	var previous string
	err = s.db.QueryRowContext(ctx, `SELECT content_hash FROM articles WHERE id = ?`, id).Scan(&previous)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, false, err
	}
	changed := previous != hash

	now := time.Now()
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO articles (id, title, url, content, source_type, source_path, content_hash, metadata, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
			url = excluded.url,
			content = excluded.content,
			source_type = excluded.source_type,
			source_path = excluded.source_path,
			content_hash = excluded.content_hash,
			metadata = excluded.metadata,
			updated_at = excluded.updated_at`,
		id, in.Title, in.URL, in.Content, string(in.SourceType), in.SourcePath, hash, string(metadataJSON), now, now,
	)
	if err != nil {
		return nil, false, fmt.Errorf("failed to upsert article %q: %w", in.Title, err)
	}

	article, err := s.GetArticle(ctx, id)
	if err != nil {
		return nil, false, err
	}
	return article, changed, nil
}

// GetArticle returns an article by ID.
func (s *SQLiteStorage) GetArticle(ctx context.Context, id string) (*models.Article, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+articleColumns+` FROM articles WHERE id = ?`, id)
	article, err := scanArticle(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return article, err
}

// GetArticleByTitle returns an article by its exact title.
func (s *SQLiteStorage) GetArticleByTitle(ctx context.Context, title string) (*models.Article, error) {
	return s.GetArticle(ctx, ident.ArticleID(title))
}

// DeleteArticle removes an article by ID.
func (s *SQLiteStorage) DeleteArticle(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM articles WHERE id = ?`, id)
	if err != nil {
		return err
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return nil
}

// ListArticles returns articles with offset and limit, newest first.
func (s *SQLiteStorage) ListArticles(ctx context.Context, offset, limit int) ([]*models.Article, error) {
	return s.query(ctx,
		`SELECT `+articleColumns+` FROM articles ORDER BY created_at DESC, title LIMIT ? OFFSET ?`,
		limit, offset)
}

// ArticlesBySource returns the articles imported from the file at sourcePath.
func (s *SQLiteStorage) ArticlesBySource(ctx context.Context, sourcePath string) ([]*models.Article, error) {
	return s.query(ctx,
		`SELECT `+articleColumns+` FROM articles WHERE source_path = ? ORDER BY title`,
		sourcePath)
}

// Articles lazily yields every article ordered by title. Iteration stops at the first error.
func (s *SQLiteStorage) Articles(ctx context.Context) iter.Seq2[*models.Article, error] {
	return func(yield func(*models.Article, error) bool) {
		rows, err := s.db.QueryContext(ctx, `SELECT `+articleColumns+` FROM articles ORDER BY title`)
		if err != nil {
			yield(nil, err)
			return
		}
		defer rows.Close()

		for rows.Next() {
			article, err := scanArticle(rows)
			if err != nil {
				yield(nil, err)
				return
			}
			if !yield(article, nil) {
				return
			}
		}
		if err := rows.Err(); err != nil {
			yield(nil, err)
		}
	}
}

// MarkIngested records the content hash and chunk count the vectors were built from.
func (s *SQLiteStorage) MarkIngested(ctx context.Context, id, hash string, chunks int) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE articles SET ingested_hash = ?, chunk_count = ?, ingested_at = ? WHERE id = ?`,
		hash, chunks, time.Now(), id,
	)
	if err != nil {
		return err
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return nil
}

// CountArticles returns the total number of articles.
func (s *SQLiteStorage) CountArticles(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM articles`).Scan(&count)
	return count, err
}

// CountChunks returns the number of passages produced by the last ingestion of every article.
func (s *SQLiteStorage) CountChunks(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, `SELECT COALESCE(SUM(chunk_count), 0) FROM articles`).Scan(&count)
	return count, err
}

// Close closes the database connection.
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

func (s *SQLiteStorage) query(ctx context.Context, query string, args ...any) ([]*models.Article, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var articles []*models.Article
	for rows.Next() {
		article, err := scanArticle(rows)
		if err != nil {
			return nil, err
		}
		articles = append(articles, article)
	}
	return articles, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanArticle(row scanner) (*models.Article, error) {
	var (
		a            models.Article
		sourceType   string
		ingestedAt   sql.NullTime
		metadataJSON sql.NullString
	)
	err := row.Scan(&a.ID, &a.Title, &a.URL, &a.Content, &sourceType, &a.SourcePath, &a.ContentHash,
		&a.IngestedHash, &a.ChunkCount, &ingestedAt, &metadataJSON, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return nil, err
	}
	a.SourceType = models.SourceType(sourceType)
	if ingestedAt.Valid {
		t := ingestedAt.Time
		a.IngestedAt = &t
	}
	if metadataJSON.Valid && metadataJSON.String != "" && metadataJSON.String != "null" {
		if err := json.Unmarshal([]byte(metadataJSON.String), &a.Metadata); err != nil {
			return nil, fmt.Errorf("failed to unmarshal metadata: %w", err)
		}
	}
	return &a, nil
}
