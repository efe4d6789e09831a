// Package cli renders answers and service status for the principia command line.
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/hyperjump/principia/internal/models"
)

// OutputFormat is the format for answer output.
type OutputFormat string

const (
	// OutputText is human-readable text (default).
	OutputText OutputFormat = "text"
	// OutputJSON is the answer record as indented JSON.
	OutputJSON OutputFormat = "json"
)

var (
	heading = color.New(color.FgCyan, color.Bold)
	label   = color.New(color.Bold)
	faint   = color.New(color.Faint)
	warn    = color.New(color.FgYellow)
)

// WriteAnswer writes an answer record to w in the given format.
func WriteAnswer(w io.Writer, record *models.AnswerRecord, format OutputFormat) error {
	switch format {
	case OutputJSON:
		return writeJSON(w, record)
	default:
		writeAnswerText(w, record)
		return nil
	}
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func writeAnswerText(w io.Writer, record *models.AnswerRecord) {
	fmt.Fprintln(w)
	heading.Fprintf(w, "Q: %s\n\n", record.Question)
	fmt.Fprintf(w, "%s\n\n", record.Answer)

	label.Fprintf(w, "Sources (%d passages, %dms)\n", record.NumDocs, record.ElapsedMS)
	for i, title := range record.Sources {
		fmt.Fprintf(w, "  %d. %s\n", i+1, title)
	}

	if record.Evaluation != nil {
		fmt.Fprintln(w)
		label.Fprintln(w, "Evaluation")
		if r := record.Evaluation.Retrieval; r != nil {
			fmt.Fprintf(w, "  retrieval similarity  avg %.3f  max %.3f  (%d docs)\n",
				r.AvgSimilarity, r.MaxSimilarity, r.NumDocs)
		}
		if a := record.Evaluation.Answer; a != nil {
			fmt.Fprintf(w, "  grounding             %.3f", a.GroundingScore)
			if a.GroundingFallback {
				warn.Fprint(w, "  (judge unavailable, neutral score)")
			}
			fmt.Fprintln(w)
			fmt.Fprintf(w, "  answer relevance      %.3f\n", a.AnswerRelevance)
		}
	}

	if len(record.Passages) > 0 {
		fmt.Fprintln(w)
		label.Fprintln(w, "Passages")
		for i, p := range record.Passages {
			faint.Fprintf(w, "  [%d] %s #%d  relevance %.4f  vector %.4f\n",
				i+1, p.Title, p.ChunkIndex, p.RelevanceScore, p.VectorScore)
			fmt.Fprintf(w, "      %s\n", Truncate(p.Text, 200))
		}
	}
	fmt.Fprintln(w)
}

// PrintAnswer prints an answer record to stdout in text format.
func PrintAnswer(record *models.AnswerRecord) {
	_ = WriteAnswer(os.Stdout, record, OutputText)
}

// WriteExamples writes the example questions as a numbered list.
func WriteExamples(w io.Writer, questions []string, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, map[string][]string{"examples": questions})
	}
	for i, q := range questions {
		fmt.Fprintf(w, "%d. %s\n", i+1, q)
	}
	return nil
}

// Status summarizes the document store and vector index for display.
type Status struct {
	Articles       int      `json:"articles"`
	Chunks         int      `json:"chunks"`
	Vectors        int64    `json:"vectors"`
	VectorBackend  string   `json:"vector_backend"`
	Collection     string   `json:"collection"`
	EmbeddingModel string   `json:"embedding_model"`
	ChatModel      string   `json:"chat_model"`
	Reranker       string   `json:"reranker"`
	DiskUsage      int64    `json:"disk_usage_bytes"`
	Directories    []string `json:"directories,omitempty"`
}

// WriteStatus writes a status summary to w in the given format.
func WriteStatus(w io.Writer, s *Status, format OutputFormat, formatBytes func(int64) string) error {
	if format == OutputJSON {
		return writeJSON(w, s)
	}
	heading.Fprintln(w, "principia status")
	fmt.Fprintf(w, "  articles:   %d (%d chunks)\n", s.Articles, s.Chunks)
	fmt.Fprintf(w, "  vectors:    %d in %s/%s\n", s.Vectors, s.VectorBackend, s.Collection)
	fmt.Fprintf(w, "  embedding:  %s\n", s.EmbeddingModel)
	fmt.Fprintf(w, "  chat:       %s\n", s.ChatModel)
	fmt.Fprintf(w, "  reranker:   %s\n", s.Reranker)
	if formatBytes != nil {
		fmt.Fprintf(w, "  disk usage: %s\n", formatBytes(s.DiskUsage))
	}
	for _, d := range s.Directories {
		fmt.Fprintf(w, "  watching:   %s\n", d)
	}
	return nil
}

// Truncate truncates s to maxLen runes and appends "..." if truncated.
func Truncate(s string, maxLen int) string {
	if maxLen <= 0 {
		return s
	}
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	return string(r[:maxLen]) + "..."
}

// TruncateWords returns up to maxWords from the space-separated string.
func TruncateWords(s string, maxWords int) string {
	words := strings.Fields(s)
	if len(words) <= maxWords {
		return s
	}
	return strings.Join(words[:maxWords], " ") + "..."
}
