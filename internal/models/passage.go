package models

// SourceType names where a passage's article came from.
type SourceType string

const (
	SourceWikipedia SourceType = "wikipedia"
	SourceDocument  SourceType = "document"
)

// Passage is a bounded, sentence-aligned slice of an article used as the retrieval unit.
type Passage struct {
	Text       string     `json:"text"`
	Title      string     `json:"title"`
	SourceURL  string     `json:"url"`
	ChunkIndex int        `json:"chunk_index"`
	SourceType SourceType `json:"source_type"`
}

// ScoredPassage is a passage returned by vector search, optionally rescored by the reranker.
type ScoredPassage struct {
	Passage
	VectorScore    float64 `json:"vector_score"`
	RelevanceScore float64 `json:"relevance_score"`
	// Position is the passage's rank in the vector search result.
	Position int `json:"-"`
}

// Texts returns the passage texts in order.
func Texts(passages []ScoredPassage) []string {
	out := make([]string, len(passages))
	for i := range passages {
		out[i] = passages[i].Text
	}
	return out
}

// Titles returns the source title of every passage in order, duplicates included.
func Titles(passages []ScoredPassage) []string {
	out := make([]string, len(passages))
	for i := range passages {
		out[i] = passages[i].Title
	}
	return out
}
