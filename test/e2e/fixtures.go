package e2e

import (
	"archive/zip"
	"bytes"
	"encoding/json"
	"fmt"
	"html"
	"strings"

	"github.com/xuri/excelize/v2"
)

// CorpusFileExtensions are the corpus file types written by the file-based E2E tests.
// PDF is covered by the extract package tests; no minimal PDF with extractable text is built here.
var CorpusFileExtensions = []string{".txt", ".md", ".json", ".docx", ".xlsx"}

// FileName returns the corpus file name of an article. For types that carry no title of
// their own (.docx), the loader derives the title from this name.
func FileName(a CorpusArticle, ext string) string {
	return strings.ReplaceAll(a.Title, " ", "_") + ext
}

// ArticleFile encodes the article as a corpus file of the given extension.
func ArticleFile(ext string, a CorpusArticle) ([]byte, error) {
	switch ext {
	case ".txt", ".md":
		return []byte(fmt.Sprintf("Title: %s\nURL: %s\n\n%s\n", a.Title, a.URL, a.Content)), nil
	case ".json":
		return json.Marshal(map[string]string{"title": a.Title, "url": a.URL, "content": a.Content})
	case ".docx":
		return minimalDocx(a.Content), nil
	case ".xlsx":
		return minimalManifest([]CorpusArticle{a})
	default:
		return nil, fmt.Errorf("unsupported extension %q", ext)
	}
}

// minimalDocx builds a .docx with one paragraph per sentence.
func minimalDocx(text string) []byte {
	var body strings.Builder
	for _, sentence := range strings.SplitAfter(text, ". ") {
		body.WriteString(`<w:p><w:r><w:t xml:space="preserve">` + html.EscapeString(strings.TrimSpace(sentence)) + `</w:t></w:r></w:p>`)
	}
	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	fw, _ := w.Create("[Content_Types].xml")
	_, _ = fw.Write([]byte(`<Types xmlns="http://schemas.openxmlformats.org/package/2006/content-types">` +
		`<Override PartName="/word/document.xml" ContentType="application/vnd.openxmlformats-officedocument.wordprocessingml.document.main+xml"/></Types>`))
	fw, _ = w.Create("word/document.xml")
	_, _ = fw.Write([]byte(`<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"><w:body>` +
		body.String() + `</w:body></w:document>`))
	_ = w.Close()
	return buf.Bytes()
}

// minimalManifest builds an .xlsx manifest with title, url and content columns.
func minimalManifest(articles []CorpusArticle) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()
	const sheet = "Sheet1"
	if err := f.SetSheetRow(sheet, "A1", &[]any{"title", "url", "content"}); err != nil {
		return nil, err
	}
	for i, a := range articles {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return nil, err
		}
		if err := f.SetSheetRow(sheet, cell, &[]any{a.Title, a.URL, a.Content}); err != nil {
			return nil, err
		}
	}
	var buf bytes.Buffer
	if _, err := f.WriteTo(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
