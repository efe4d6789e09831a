// Package indexer provides article cleaning, chunking, and ingestion into the vector index.
package indexer

import (
	"strings"
	"unicode/utf8"

	"github.com/hyperjump/principia/internal/models"
)

const sentenceSeparator = ". "

// Chunker splits cleaned article text into sentence-aligned passages.
type Chunker struct {
	chunkSize  int
	sourceType models.SourceType
}

// NewChunker creates a chunker that emits passages of at most chunkSize characters,
// except for single sentences longer than chunkSize, which are emitted whole.
func NewChunker(chunkSize int, sourceType models.SourceType) *Chunker {
	if sourceType == "" {
		sourceType = models.SourceWikipedia
	}
	return &Chunker{chunkSize: chunkSize, sourceType: sourceType}
}

// ChunkSize returns the soft passage length limit.
func (c *Chunker) ChunkSize() int { return c.chunkSize }

// Chunk splits text on ". " boundaries and greedily packs sentences into passages.
// Output depends only on the inputs.
func (c *Chunker) Chunk(text, title, url string) []models.Passage {
	sentences := splitSentences(text)
	if len(sentences) == 0 {
		return []models.Passage{}
	}

	passages := make([]models.Passage, 0, len(sentences))
	var current strings.Builder
	currentLen := 0
	flush := func() {
		if currentLen == 0 {
			return
		}
		passages = append(passages, models.Passage{
			Text:       current.String(),
			Title:      title,
			SourceURL:  url,
			ChunkIndex: len(passages),
			SourceType: c.sourceType,
		})
		current.Reset()
		currentLen = 0
	}

	for _, s := range sentences {
		n := utf8.RuneCountInString(s)
		if currentLen > 0 && currentLen+1+n > c.chunkSize {
			flush()
		}
		if currentLen > 0 {
			current.WriteByte(' ')
			currentLen++
		}
		current.WriteString(s)
		currentLen += n
	}
	flush()
	return passages
}

// splitSentences splits on ". " and restores the period on every sentence but the last.
// Blank pieces are dropped.
func splitSentences(text string) []string {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	parts := strings.Split(text, sentenceSeparator)
	out := make([]string, 0, len(parts))
	for i, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		if i < len(parts)-1 {
			p += "."
		}
		out = append(out, p)
	}
	return out
}
