package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/hyperjump/principia/internal/ident"
	"github.com/hyperjump/principia/internal/models"
)

func newTestStorage(t *testing.T) *SQLiteStorage {
	t.Helper()
	store, err := NewSQLiteStorage(filepath.Join(t.TempDir(), "db", "articles.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestSQLiteStorage_CRUD(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()

	in := &models.ArticleInput{
		Title:    "Isaac Newton",
		URL:      "https://en.wikipedia.org/wiki/Isaac_Newton",
		Content:  "Sir Isaac Newton was an English polymath.",
		Metadata: map[string]interface{}{"lang": "en"},
	}
	article, changed, err := store.UpsertArticle(ctx, in)
	if err != nil {
		t.Fatal(err)
	}
	if !changed {
		t.Error("new article should be reported as changed")
	}
	if article.ID != ident.ArticleID("Isaac Newton") {
		t.Errorf("ID = %q", article.ID)
	}
	if article.SourceType != models.SourceWikipedia {
		t.Errorf("SourceType = %q, want wikipedia", article.SourceType)
	}
	if article.CreatedAt.IsZero() {
		t.Error("CreatedAt should be set")
	}
	if article.Metadata["lang"] != "en" {
		t.Errorf("Metadata = %v", article.Metadata)
	}

	got, err := store.GetArticleByTitle(ctx, "Isaac Newton")
	if err != nil {
		t.Fatal(err)
	}
	if got.Content != in.Content || got.URL != in.URL {
		t.Errorf("got %+v", got)
	}

	list, err := store.ListArticles(ctx, 0, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 1 {
		t.Errorf("expected 1 article, got %d", len(list))
	}

	if err := store.DeleteArticle(ctx, article.ID); err != nil {
		t.Fatal(err)
	}
	if _, err := store.GetArticle(ctx, article.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetArticle after delete: %v, want ErrNotFound", err)
	}
	if err := store.DeleteArticle(ctx, article.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("second delete: %v, want ErrNotFound", err)
	}
}

func TestSQLiteStorage_UpsertByTitle(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()

	first, _, err := store.UpsertArticle(ctx, &models.ArticleInput{Title: "Opticks", Content: "v1"})
	if err != nil {
		t.Fatal(err)
	}
	if err := store.MarkIngested(ctx, first.ID, first.ContentHash, 3); err != nil {
		t.Fatal(err)
	}

	same, changed, err := store.UpsertArticle(ctx, &models.ArticleInput{Title: "Opticks", Content: "v1"})
	if err != nil {
		t.Fatal(err)
	}
	if changed {
		t.Error("identical content should not be reported as changed")
	}
	if same.NeedsIngest() {
		t.Error("unchanged ingested article should not need ingest")
	}

	updated, changed, err := store.UpsertArticle(ctx, &models.ArticleInput{Title: "Opticks", Content: "v2"})
	if err != nil {
		t.Fatal(err)
	}
	if !changed {
		t.Error("new content should be reported as changed")
	}
	if !updated.NeedsIngest() {
		t.Error("changed article should need ingest")
	}
	if updated.ChunkCount != 3 {
		t.Errorf("ChunkCount = %d, want ingestion state kept", updated.ChunkCount)
	}

	n, err := store.CountArticles(ctx)
	if err != nil || n != 1 {
		t.Errorf("CountArticles = %d, %v; want 1", n, err)
	}
}

func TestSQLiteStorage_ArticlesIterator(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()

	for _, title := range []string{"Principia", "Calculus", "Opticks"} {
		if _, _, err := store.UpsertArticle(ctx, &models.ArticleInput{Title: title, Content: title + " text"}); err != nil {
			t.Fatal(err)
		}
	}

	var titles []string
	for article, err := range store.Articles(ctx) {
		if err != nil {
			t.Fatal(err)
		}
		titles = append(titles, article.Title)
	}
	want := []string{"Calculus", "Opticks", "Principia"}
	if len(titles) != len(want) {
		t.Fatalf("got %v, want %v", titles, want)
	}
	for i := range want {
		if titles[i] != want[i] {
			t.Errorf("titles[%d] = %q, want %q", i, titles[i], want[i])
		}
	}

	// stopping early must release the query
	for range store.Articles(ctx) {
		break
	}
	if _, err := store.CountArticles(ctx); err != nil {
		t.Fatal(err)
	}
}

func TestSQLiteStorage_BySourceAndCounts(t *testing.T) {
	store, err := NewSQLiteStorage(":memory:")
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()
	ctx := context.Background()

	inputs := []*models.ArticleInput{
		{Title: "Letter A", Content: "a", SourceType: models.SourceDocument, SourcePath: "/corpus/letters.json"},
		{Title: "Letter B", Content: "b", SourceType: models.SourceDocument, SourcePath: "/corpus/letters.json"},
		{Title: "Notes", Content: "c", SourceType: models.SourceDocument, SourcePath: "/corpus/notes.txt"},
	}
	for _, in := range inputs {
		article, _, err := store.UpsertArticle(ctx, in)
		if err != nil {
			t.Fatal(err)
		}
		if err := store.MarkIngested(ctx, article.ID, article.ContentHash, 2); err != nil {
			t.Fatal(err)
		}
	}

	letters, err := store.ArticlesBySource(ctx, "/corpus/letters.json")
	if err != nil {
		t.Fatal(err)
	}
	if len(letters) != 2 || letters[0].Title != "Letter A" {
		t.Errorf("ArticlesBySource = %v", letters)
	}
	if letters[0].IngestedAt == nil {
		t.Error("IngestedAt should be set after MarkIngested")
	}

	chunks, err := store.CountChunks(ctx)
	if err != nil || chunks != 6 {
		t.Errorf("CountChunks = %d, %v; want 6", chunks, err)
	}

	if err := store.MarkIngested(ctx, "article:missing", "h", 1); !errors.Is(err, ErrNotFound) {
		t.Errorf("MarkIngested missing: %v, want ErrNotFound", err)
	}
}

func TestSQLiteStorage_RejectsInvalidInput(t *testing.T) {
	store := newTestStorage(t)
	_, _, err := store.UpsertArticle(context.Background(), &models.ArticleInput{Title: "Empty"})
	var ve *models.ValidationError
	if !errors.As(err, &ve) {
		t.Errorf("expected ValidationError, got %v", err)
	}
}
