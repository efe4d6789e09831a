// Package vector stores passage embeddings and searches them by cosine similarity.
package vector

import (
	"context"
	"fmt"

	"github.com/hyperjump/principia/internal/models"
)

// Distance is the similarity metric of a collection.
type Distance string

const DistanceCosine Distance = "cosine"

// Point is a passage and its embedding, addressed by a deterministic ID.
type Point struct {
	ID      string
	Vector  []float32
	Passage models.Passage
}

// VectorResult is a single search hit.
type VectorResult struct {
	ID      string
	Score   float64 // cosine similarity, higher is closer
	Passage models.Passage
}

// VectorIndex is a collection of passage vectors in a vector store.
type VectorIndex interface {
	CollectionExists(ctx context.Context, name string) (bool, error)
	CreateCollection(ctx context.Context, name string, dims int, distance Distance) error
	// Upsert replaces every stored point of each title present in points, then inserts points.
	Upsert(ctx context.Context, points []Point) error
	DeleteByTitle(ctx context.Context, title string) error
	// Search returns up to limit hits ordered by descending similarity.
	Search(ctx context.Context, query []float32, limit int) ([]*VectorResult, error)
	Count(ctx context.Context) (int64, error)
	Close() error
}

// EnsureCollection creates the collection when it does not exist yet. It reports whether it was created.
func EnsureCollection(ctx context.Context, idx VectorIndex, name string, dims int) (bool, error) {
	exists, err := idx.CollectionExists(ctx, name)
	if err != nil {
		return false, fmt.Errorf("check collection %s: %w", name, err)
	}
	if exists {
		return false, nil
	}
	if err := idx.CreateCollection(ctx, name, dims, DistanceCosine); err != nil {
		return false, fmt.Errorf("create collection %s: %w", name, err)
	}
	return true, nil
}

// ToScoredPassages converts search hits into candidates for reranking, keeping their rank.
func ToScoredPassages(results []*VectorResult) []models.ScoredPassage {
	out := make([]models.ScoredPassage, len(results))
	for i, r := range results {
		out[i] = models.ScoredPassage{Passage: r.Passage, VectorScore: r.Score, Position: i}
	}
	return out
}

func titlesOf(points []Point) []string {
	seen := make(map[string]bool, len(points))
	var titles []string
	for _, p := range points {
		if !seen[p.Passage.Title] {
			seen[p.Passage.Title] = true
			titles = append(titles, p.Passage.Title)
		}
	}
	return titles
}

func checkDims(points []Point, dims int) error {
	for _, p := range points {
		if len(p.Vector) != dims {
			return fmt.Errorf("vector dimension mismatch: got %d, expected %d", len(p.Vector), dims)
		}
	}
	return nil
}
