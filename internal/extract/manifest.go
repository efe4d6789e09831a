package extract

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/hyperjump/principia/internal/models"
)

// readManifest reads articles from a spreadsheet whose first row names the columns.
// "title" and "content" columns are required; "url" and "source_type" are optional.
// Every sheet is read; rows with an empty title or content are skipped.
func readManifest(content []byte) ([]*models.ArticleInput, error) {
	f, err := excelize.OpenReader(bytes.NewReader(content))
	if err != nil {
		return nil, fmt.Errorf("open Excel: %w", err)
	}
	defer f.Close()

	var articles []*models.ArticleInput
	for _, sheet := range f.GetSheetList() {
		rows, err := f.GetRows(sheet)
		if err != nil {
			return nil, fmt.Errorf("get rows for sheet %q: %w", sheet, err)
		}
		if len(rows) == 0 {
			continue
		}

		columns := make(map[string]int)
		for i, name := range rows[0] {
			columns[strings.ToLower(strings.TrimSpace(name))] = i
		}
		titleCol, okTitle := columns["title"]
		contentCol, okContent := columns["content"]
		if !okTitle || !okContent {
			return nil, fmt.Errorf("sheet %q: header must name title and content columns", sheet)
		}

		cell := func(row []string, name string) string {
			i, ok := columns[name]
			if !ok || i >= len(row) {
				return ""
			}
			return strings.TrimSpace(row[i])
		}
		for _, row := range rows[1:] {
			if titleCol >= len(row) || contentCol >= len(row) {
				continue
			}
			in := &models.ArticleInput{
				Title:      cell(row, "title"),
				URL:        cell(row, "url"),
				Content:    cell(row, "content"),
				SourceType: models.SourceType(cell(row, "source_type")),
			}
			if in.Title == "" || in.Content == "" {
				continue
			}
			articles = append(articles, in)
		}
	}
	return articles, nil
}
