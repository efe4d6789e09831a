package embedding

import (
	"context"
	"testing"
)

func TestEmbeddingCache_GetSet(t *testing.T) {
	c := NewEmbeddingCache(2)
	if v, ok := c.Get("a"); ok || v != nil {
		t.Fatal("expected miss")
	}
	c.Set("a", []float32{1, 2, 3})
	v, ok := c.Get("a")
	if !ok || len(v) != 3 || v[0] != 1 {
		t.Errorf("Get: got %v, %v", v, ok)
	}
	c.Set("b", []float32{4, 5})
	c.Set("c", []float32{6}) // evicts a
	if _, ok := c.Get("a"); ok {
		t.Error("expected a to be evicted")
	}
	if _, ok := c.Get("b"); !ok {
		t.Error("expected b to remain")
	}
	if _, ok := c.Get("c"); !ok {
		t.Error("expected c to be present")
	}
}

type countingEmbedder struct {
	*MockEmbedder
	batches [][]string
}

func (c *countingEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	c.batches = append(c.batches, append([]string(nil), texts...))
	return c.MockEmbedder.EmbedBatch(ctx, texts)
}

func TestCached_EmbedsMissesOnly(t *testing.T) {
	inner := &countingEmbedder{MockEmbedder: NewMockEmbedder(16)}
	c := NewCached(inner, 10)
	ctx := context.Background()

	first, err := c.EmbedBatch(ctx, []string{"gravity", "optics"})
	if err != nil {
		t.Fatal(err)
	}
	second, err := c.EmbedBatch(ctx, []string{"optics", "calculus", "gravity"})
	if err != nil {
		t.Fatal(err)
	}
	if len(inner.batches) != 2 {
		t.Fatalf("expected 2 inner calls, got %d", len(inner.batches))
	}
	if len(inner.batches[1]) != 1 || inner.batches[1][0] != "calculus" {
		t.Errorf("second call should embed only the miss, got %v", inner.batches[1])
	}
	if second[0][0] != first[1][0] || second[2][0] != first[0][0] {
		t.Error("cached vectors must be returned in input order")
	}
	if c.cache.Len() != 3 {
		t.Errorf("cache len = %d, want 3", c.cache.Len())
	}

	if _, err := c.EmbedBatch(ctx, []string{"gravity"}); err != nil {
		t.Fatal(err)
	}
	if len(inner.batches) != 2 {
		t.Error("fully cached batch must not call the wrapped embedder")
	}
}
