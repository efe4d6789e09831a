package vector

import (
	"context"
	"errors"
	"testing"

	"github.com/hyperjump/principia/internal/config"
	"github.com/hyperjump/principia/internal/models"
)

func TestNewVectorIndex_Memory(t *testing.T) {
	idx, err := NewVectorIndex(context.Background(), config.VectorConfig{Backend: "memory"}, 3, nil)
	if err != nil {
		t.Fatalf("NewVectorIndex(memory): %v", err)
	}
	defer idx.Close()
	if _, ok := idx.(*MemoryIndex); !ok {
		t.Errorf("expected *MemoryIndex, got %T", idx)
	}
}

func TestNewVectorIndex_Qdrant(t *testing.T) {
	// The gRPC client connects lazily, so construction succeeds without a server.
	idx, err := NewVectorIndex(context.Background(), config.VectorConfig{
		Backend:    "qdrant",
		Collection: "newton_knowledge",
		Qdrant:     config.QdrantConfig{Host: "localhost", Port: 6334},
	}, 3, nil)
	if err != nil {
		t.Fatalf("NewVectorIndex(qdrant): %v", err)
	}
	defer idx.Close()
	if _, ok := idx.(*QdrantIndex); !ok {
		t.Errorf("expected *QdrantIndex, got %T", idx)
	}
}

func TestNewVectorIndex_Unknown(t *testing.T) {
	_, err := NewVectorIndex(context.Background(), config.VectorConfig{Backend: "faiss"}, 3, nil)
	var ce *models.ConfigurationError
	if !errors.As(err, &ce) {
		t.Fatalf("expected ConfigurationError, got %v", err)
	}
}
