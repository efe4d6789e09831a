package vector

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/hyperjump/principia/internal/ident"
	"github.com/hyperjump/principia/internal/models"
)

func point(title string, chunk int, text string, vec ...float32) Point {
	return Point{
		ID:     ident.PointID(title, chunk),
		Vector: vec,
		Passage: models.Passage{
			Text: text, Title: title, SourceURL: "https://en.wikipedia.org/wiki/" + title,
			ChunkIndex: chunk, SourceType: models.SourceWikipedia,
		},
	}
}

func TestEnsureCollection(t *testing.T) {
	idx, err := NewMemoryIndex(3)
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()

	created, err := EnsureCollection(ctx, idx, "newton_knowledge", 3)
	if err != nil || !created {
		t.Fatalf("first EnsureCollection: created=%v err=%v", created, err)
	}
	if err := idx.Upsert(ctx, []Point{point("Isaac Newton", 0, "x", 1, 0, 0)}); err != nil {
		t.Fatal(err)
	}
	created, err = EnsureCollection(ctx, idx, "newton_knowledge", 3)
	if err != nil || created {
		t.Fatalf("second EnsureCollection: created=%v err=%v", created, err)
	}
	if idx.Size() != 1 {
		t.Error("existing collection must not be recreated")
	}
	if _, err := EnsureCollection(ctx, idx, "other", 4); err == nil {
		t.Error("expected dimension mismatch error")
	}
}

func TestMemoryIndex_UpsertSearch(t *testing.T) {
	idx, err := NewMemoryIndex(3)
	if err != nil {
		t.Fatal(err)
	}
	defer idx.Close()
	ctx := context.Background()

	points := []Point{
		point("Isaac Newton", 0, "a", 1, 0, 0),
		point("Isaac Newton", 1, "b", 0.9, 0.1, 0),
		point("Opticks", 0, "c", 0, 1, 0),
	}
	if err := idx.Upsert(ctx, points); err != nil {
		t.Fatal(err)
	}
	if n, _ := idx.Count(ctx); n != 3 {
		t.Errorf("Count=%d", n)
	}

	results, err := idx.Search(ctx, []float32{1, 0, 0}, 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	if results[0].Passage.Text != "a" || results[1].Passage.Text != "b" {
		t.Errorf("unexpected order: %s, %s", results[0].Passage.Text, results[1].Passage.Text)
	}
	if results[0].Score < results[1].Score {
		t.Error("results must be ordered by descending score")
	}
	if results[0].Passage.Title != "Isaac Newton" || results[0].Passage.SourceType != models.SourceWikipedia {
		t.Errorf("payload not returned: %+v", results[0].Passage)
	}

	if _, err := idx.Search(ctx, []float32{1, 0}, 2); err == nil {
		t.Error("expected dimension mismatch error")
	}
	if res, _ := idx.Search(ctx, []float32{1, 0, 0}, 0); len(res) != 0 {
		t.Error("limit 0 should return nothing")
	}
}

func TestMemoryIndex_UpsertReplacesTitle(t *testing.T) {
	idx, _ := NewMemoryIndex(2)
	ctx := context.Background()

	_ = idx.Upsert(ctx, []Point{
		point("Isaac Newton", 0, "old 0", 1, 0),
		point("Isaac Newton", 1, "old 1", 1, 0),
		point("Isaac Newton", 2, "old 2", 1, 0),
		point("Calculus", 0, "calc", 0, 1),
	})
	if err := idx.Upsert(ctx, []Point{point("Isaac Newton", 0, "new 0", 1, 0)}); err != nil {
		t.Fatal(err)
	}
	if idx.Size() != 2 {
		t.Fatalf("expected stale chunks removed, size=%d", idx.Size())
	}
	results, _ := idx.Search(ctx, []float32{1, 0}, 10)
	if results[0].Passage.Text != "new 0" {
		t.Errorf("got %q", results[0].Passage.Text)
	}

	if err := idx.DeleteByTitle(ctx, "Calculus"); err != nil {
		t.Fatal(err)
	}
	if idx.Size() != 1 {
		t.Errorf("expected 1 point after delete, got %d", idx.Size())
	}
}

func TestMemoryIndex_TiesKeepInsertionOrder(t *testing.T) {
	idx, _ := NewMemoryIndex(2)
	ctx := context.Background()
	_ = idx.Upsert(ctx, []Point{
		point("A", 0, "first", 1, 1),
		point("B", 0, "second", 2, 2),
		point("C", 0, "third", 3, 3),
	})
	results, _ := idx.Search(ctx, []float32{1, 1}, 3)
	for i, want := range []string{"first", "second", "third"} {
		if results[i].Passage.Text != want {
			t.Errorf("result %d = %s, want %s", i, results[i].Passage.Text, want)
		}
	}
}

func TestMemoryIndex_SaveLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "index", "vectors.bin")
	ctx := context.Background()

	idx, err := NewPersistentMemoryIndex(3, path)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := EnsureCollection(ctx, idx, "newton_knowledge", 3); err != nil {
		t.Fatal(err)
	}
	_ = idx.Upsert(ctx, []Point{
		point("Isaac Newton", 0, "Newton was born in 1643.", 1, 0, 0),
		point("Opticks", 4, "Opticks was published in 1704.", 0, 1, 0),
	})
	if err := idx.Close(); err != nil {
		t.Fatal(err)
	}

	loaded, err := NewPersistentMemoryIndex(3, path)
	if err != nil {
		t.Fatal(err)
	}
	if loaded.Size() != 2 {
		t.Fatalf("loaded size = %d", loaded.Size())
	}
	exists, _ := loaded.CollectionExists(ctx, "newton_knowledge")
	if !exists {
		t.Error("collection should survive a reload")
	}
	results, _ := loaded.Search(ctx, []float32{0, 1, 0}, 1)
	got := results[0].Passage
	if got.Title != "Opticks" || got.ChunkIndex != 4 || got.Text != "Opticks was published in 1704." {
		t.Errorf("unexpected passage after load: %+v", got)
	}
	if results[0].ID != ident.PointID("Opticks", 4) {
		t.Errorf("ID not preserved: %s", results[0].ID)
	}

	if _, err := NewPersistentMemoryIndex(4, path); err == nil {
		t.Error("expected dimension mismatch loading into a 4-d index")
	}
}

func TestToScoredPassages(t *testing.T) {
	in := []*VectorResult{
		{ID: "1", Score: 0.9, Passage: models.Passage{Text: "a"}},
		{ID: "2", Score: 0.8, Passage: models.Passage{Text: "b"}},
	}
	out := ToScoredPassages(in)
	if len(out) != 2 || out[1].Position != 1 || out[1].VectorScore != 0.8 || out[0].Text != "a" {
		t.Errorf("unexpected conversion: %+v", out)
	}
}
