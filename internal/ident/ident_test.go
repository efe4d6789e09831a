package ident

import (
	"strings"
	"testing"

	"github.com/google/uuid"
)

func TestArticleID(t *testing.T) {
	a := ArticleID("Isaac Newton")
	if a != ArticleID("  Isaac Newton ") {
		t.Error("surrounding space should not change the ID")
	}
	if a == ArticleID("Principia Mathematica") {
		t.Error("different titles should yield different IDs")
	}
	if !strings.HasPrefix(a, "article:") || len(a) != len("article:")+64 {
		t.Errorf("unexpected ID format: %s", a)
	}
}

func TestPointID(t *testing.T) {
	id := PointID("Isaac Newton", 0)
	if _, err := uuid.Parse(id); err != nil {
		t.Fatalf("PointID is not a UUID: %v", err)
	}
	if id != PointID("Isaac Newton", 0) {
		t.Error("PointID must be deterministic")
	}
	if id == PointID("Isaac Newton", 1) {
		t.Error("chunk index must change the ID")
	}
	if id == PointID("Isaac Newton's laws of motion", 0) {
		t.Error("title must change the ID")
	}
}

func TestContentHash(t *testing.T) {
	h := ContentHash("t", "u", "c")
	if h != ContentHash("t", "u", "c") {
		t.Error("hash must be deterministic")
	}
	if h == ContentHash("tu", "", "c") {
		t.Error("field boundaries must matter")
	}
}
