// Package models defines core data structures for articles, passages, questions, and answers.
package models

import "time"

// Article is a source document in the knowledge base. Title is unique.
type Article struct {
	ID          string     `json:"id" db:"id"`
	Title       string     `json:"title" db:"title"`
	URL         string     `json:"url" db:"url"`
	Content     string     `json:"content" db:"content"`
	SourceType  SourceType `json:"source_type" db:"source_type"`
	SourcePath  string     `json:"source_path,omitempty" db:"source_path"`
	ContentHash string     `json:"content_hash" db:"content_hash"`
	// IngestedHash is the ContentHash the stored vectors were built from.
	IngestedHash string                 `json:"-" db:"ingested_hash"`
	ChunkCount   int                    `json:"chunk_count" db:"chunk_count"`
	IngestedAt   *time.Time             `json:"ingested_at,omitempty" db:"ingested_at"`
	Metadata     map[string]interface{} `json:"metadata,omitempty" db:"metadata"`
	CreatedAt    time.Time              `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time              `json:"updated_at" db:"updated_at"`
}

// NeedsIngest reports whether the article changed since it was last chunked and embedded.
func (a *Article) NeedsIngest() bool {
	return a.IngestedAt == nil || a.IngestedHash != a.ContentHash
}

// ArticleInput is the input for creating or replacing an article.
type ArticleInput struct {
	Title      string                 `json:"title"`
	URL        string                 `json:"url,omitempty"`
	Content    string                 `json:"content"`
	SourceType SourceType             `json:"source_type,omitempty"`
	SourcePath string                 `json:"-"`
	Metadata   map[string]interface{} `json:"metadata,omitempty"`
}

// Validate checks the fields required to store an article.
func (in *ArticleInput) Validate() error {
	if in.Title == "" {
		return &ValidationError{Field: "title", Message: "title cannot be empty"}
	}
	if in.Content == "" {
		return &ValidationError{Field: "content", Message: "content cannot be empty"}
	}
	if in.SourceType == "" {
		in.SourceType = SourceWikipedia
	}
	return nil
}
