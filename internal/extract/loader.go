package extract

import (
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/hyperjump/principia/internal/ident"
	"github.com/hyperjump/principia/internal/models"
)

// DefaultExtensions are the corpus file types the Loader understands.
var DefaultExtensions = []string{".json", ".txt", ".md", ".pdf", ".docx", ".odt", ".rtf", ".xlsx"}

// Loader reads corpus files into article inputs.
//
// Supported files:
//   - .json: an article object or an array of them ({title, content, url, source_type})
//   - .xlsx: a manifest with title, content and optional url, source_type columns
//   - .txt, .md: optional "Title:" and "URL:" header lines followed by the article body
//   - .pdf, .docx, .odt, .rtf: one article titled after the file name
//
// Every returned input has SourcePath set to the normalized file path. Articles without
// a source type are "wikipedia" when their URL points at Wikipedia and "document" otherwise.
type Loader struct {
	extractor  *Extractor
	extensions []string
}

func NewLoader(extensions ...string) *Loader {
	if len(extensions) == 0 {
		extensions = DefaultExtensions
	}
	normalized := make([]string, len(extensions))
	for i, ext := range extensions {
		ext = strings.ToLower(ext)
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		normalized[i] = ext
	}
	return &Loader{extractor: NewExtractor(), extensions: normalized}
}

// Supports reports whether path has one of the loader's extensions.
func (l *Loader) Supports(path string) bool {
	return slices.Contains(l.extensions, strings.ToLower(filepath.Ext(path)))
}

// Load reads the articles in the file at path.
func (l *Loader) Load(path string) ([]*models.ArticleInput, error) {
	ext := strings.ToLower(filepath.Ext(path))
	if !slices.Contains(l.extensions, ext) {
		return nil, fmt.Errorf("unsupported file type %q", ext)
	}
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}

	var articles []*models.ArticleInput
	switch ext {
	case ".json":
		articles, err = readJSON(content)
	case ".xlsx":
		articles, err = readManifest(content)
	case ".txt", ".md":
		articles, err = l.readText(path, content)
	default:
		var text string
		if text, err = l.extractor.ExtractBytes(content, ext); err == nil {
			articles = []*models.ArticleInput{{Title: titleFromPath(path), Content: text}}
		}
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filepath.Base(path), err)
	}

	source := ident.SourcePath(path)
	kept := articles[:0]
	for _, in := range articles {
		in.Title = strings.TrimSpace(in.Title)
		in.Content = strings.TrimSpace(in.Content)
		if in.Title == "" || in.Content == "" {
			continue
		}
		in.SourcePath = source
		if in.SourceType == "" {
			in.SourceType = sourceTypeFor(in.URL)
		}
		kept = append(kept, in)
	}
	return kept, nil
}

func readJSON(content []byte) ([]*models.ArticleInput, error) {
	trimmed := strings.TrimSpace(string(content))
	if strings.HasPrefix(trimmed, "{") {
		var in models.ArticleInput
		if err := json.Unmarshal(content, &in); err != nil {
			return nil, fmt.Errorf("decode article: %w", err)
		}
		return []*models.ArticleInput{&in}, nil
	}
	var articles []*models.ArticleInput
	if err := json.Unmarshal(content, &articles); err != nil {
		return nil, fmt.Errorf("decode articles: %w", err)
	}
	return articles, nil
}

func (l *Loader) readText(path string, content []byte) ([]*models.ArticleInput, error) {
	text, err := extractPlain(content)
	if err != nil {
		return nil, err
	}
	headers, body := splitHeaders(text, "title", "url")
	title := headers["title"]
	if title == "" {
		title = titleFromPath(path)
	}
	return []*models.ArticleInput{{Title: title, URL: headers["url"], Content: body}}, nil
}

// titleFromPath turns "isaac_newton.pdf" into "isaac newton".
func titleFromPath(path string) string {
	name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	name = strings.NewReplacer("_", " ", "-", " ").Replace(name)
	return strings.Join(strings.Fields(name), " ")
}

func sourceTypeFor(rawURL string) models.SourceType {
	if u, err := url.Parse(rawURL); err == nil && strings.HasSuffix(u.Hostname(), "wikipedia.org") {
		return models.SourceWikipedia
	}
	return models.SourceDocument
}
