package models

import (
	"errors"
	"fmt"
	"testing"
)

func TestAtStage(t *testing.T) {
	t.Run("nil stays nil", func(t *testing.T) {
		if AtStage(StageEmbed, nil) != nil {
			t.Error("expected nil")
		}
	})

	t.Run("plain error becomes service error", func(t *testing.T) {
		err := AtStage(StageSearch, errors.New("connection refused"))
		var se *ServiceError
		if !errors.As(err, &se) {
			t.Fatalf("expected ServiceError, got %T", err)
		}
		if se.Stage != StageSearch {
			t.Errorf("Stage = %q, want %q", se.Stage, StageSearch)
		}
		if err.Error() != "search: connection refused" {
			t.Errorf("Error() = %q", err.Error())
		}
	})

	t.Run("service error keeps service name", func(t *testing.T) {
		inner := fmt.Errorf("embed batch: %w", NewServiceError("openai embeddings", errors.New("429")))
		err := AtStage(StageEmbed, inner)
		var se *ServiceError
		if !errors.As(err, &se) {
			t.Fatalf("expected ServiceError, got %T", err)
		}
		if se.Service != "openai embeddings" || se.Stage != StageEmbed {
			t.Errorf("got stage %q service %q", se.Stage, se.Service)
		}
		if err.Error() != "embed: openai embeddings: 429" {
			t.Errorf("Error() = %q", err.Error())
		}
	})

	t.Run("validation error passes through", func(t *testing.T) {
		ve := &ValidationError{Field: "question", Message: "question cannot be empty"}
		err := AtStage(StageRerank, ve)
		if err != ve {
			t.Errorf("expected the same validation error, got %v", err)
		}
		var se *ServiceError
		if errors.As(err, &se) {
			t.Error("validation error must not become a service error")
		}
	})
}

func TestConfigurationError(t *testing.T) {
	err := &ConfigurationError{Key: "embedding.api_key", Message: "OPENAI_API_KEY is not set"}
	if err.Error() != "configuration embedding.api_key: OPENAI_API_KEY is not set" {
		t.Errorf("Error() = %q", err.Error())
	}
}
