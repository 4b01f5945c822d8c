package document

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// PageMarkdown is the converted text of one page.
type PageMarkdown struct {
	Page     Page
	Markdown string
}

// SavePage writes md to dir/<pdf_name>/<page_name>.md and returns the path.
func SavePage(dir, pdfName string, pm PageMarkdown) (string, error) {
	pageDir := filepath.Join(dir, pdfName)
	if err := os.MkdirAll(pageDir, 0o755); err != nil {
		return "", fmt.Errorf("create page dir: %w", err)
	}
	path := filepath.Join(pageDir, pm.Page.Name+".md")
	if err := os.WriteFile(path, []byte(pm.Markdown), 0o644); err != nil {
		return "", fmt.Errorf("write page %d: %w", pm.Page.Number, err)
	}
	return path, nil
}

// Join concatenates pages in increasing page order, each followed by a
// blank line.
func Join(pages []PageMarkdown) string {
	sorted := make([]PageMarkdown, len(pages))
	copy(sorted, pages)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Page.Number < sorted[j].Page.Number
	})

	var b strings.Builder
	for _, pm := range sorted {
		b.WriteString(pm.Markdown)
		b.WriteString("\n\n")
	}
	return b.String()
}

// WriteMarkdown writes Join(pages) to outDir/<pdf_name>.md and returns the
// path.
func WriteMarkdown(outDir, pdfName string, pages []PageMarkdown) (string, error) {
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return "", fmt.Errorf("create output dir: %w", err)
	}
	path := filepath.Join(outDir, pdfName+".md")
	if err := os.WriteFile(path, []byte(Join(pages)), 0o644); err != nil {
		return "", fmt.Errorf("write markdown: %w", err)
	}
	return path, nil
}
