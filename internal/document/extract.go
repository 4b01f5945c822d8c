// Package document turns a PDF into ordered per-page Markdown.
package document

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"

	"github.com/JoaoPedroMBiofy/ingestor/internal/errs"
)

// Page is a single-page PDF written to disk by an extractor.
type Page struct {
	// Number is 1-based.
	Number int
	// Name is "<pdf_name>-<number>".
	Name string
	Path string
}

// PageExtractor splits a PDF into ordered single-page files under workDir.
type PageExtractor interface {
	Extract(ctx context.Context, pdfPath, workDir string) ([]Page, error)
}

// PDFName is the file name of path without directory or extension.
func PDFName(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// PageName names page n of pdfName.
func PageName(pdfName string, n int) string {
	return pdfName + "-" + strconv.Itoa(n)
}

// PDFCPUExtractor writes each page with pdfcpu's trim operation.
type PDFCPUExtractor struct {
	conf *model.Configuration
}

func NewPDFCPUExtractor() *PDFCPUExtractor {
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	return &PDFCPUExtractor{conf: conf}
}

// Extract returns NoPages for a PDF without pages and ExtractionError for
// anything pdfcpu cannot read. A missing input keeps fs.ErrNotExist in the
// error chain.
func (e *PDFCPUExtractor) Extract(ctx context.Context, pdfPath, workDir string) ([]Page, error) {
	const op = "document.Extract"

	if _, err := os.Stat(pdfPath); err != nil {
		return nil, errs.E(errs.ExtractionError, op, err)
	}

	count, err := api.PageCountFile(pdfPath)
	if err != nil {
		return nil, errs.E(errs.ExtractionError, op, err)
	}
	if count == 0 {
		return nil, errs.Ef(errs.NoPages, op, pdfPath)
	}

	name := PDFName(pdfPath)
	dir := filepath.Join(workDir, name)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errs.E(errs.ExtractionError, op, err)
	}

	pages := make([]Page, 0, count)
	for n := 1; n <= count; n++ {
		if err := ctx.Err(); err != nil {
			return nil, errs.E(errs.ExtractionError, op, err)
		}
		p := Page{Number: n, Name: PageName(name, n)}
		p.Path = filepath.Join(dir, p.Name+".pdf")
		if err := api.TrimFile(pdfPath, p.Path, []string{strconv.Itoa(n)}, e.conf); err != nil {
			return nil, errs.E(errs.ExtractionError, op, fmt.Errorf("page %d: %w", n, err))
		}
		pages = append(pages, p)
	}
	return pages, nil
}

var _ PageExtractor = (*PDFCPUExtractor)(nil)
