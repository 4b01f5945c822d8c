// Package ingest runs one PDF through extraction, OCR conversion, splitting,
// embedding and upsert.
//
// Each document moves through
//
//	Extracting → Converting → Splitting → Embedding → Upserted | Failed
//
// and any failure is returned as an *errs.Error naming the stage.
package ingest

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/JoaoPedroMBiofy/ingestor/internal/chunk"
	"github.com/JoaoPedroMBiofy/ingestor/internal/document"
	"github.com/JoaoPedroMBiofy/ingestor/internal/errs"
	"github.com/JoaoPedroMBiofy/ingestor/internal/vector"
)

// Mode selects how converted Markdown becomes documents.
type Mode string

const (
	// WholeDocument stores the concatenated Markdown as one document.
	WholeDocument Mode = "whole_document"
	// PerPage stores each page's Markdown as one document.
	PerPage Mode = "per_page"
	// Chunked runs the splitter over each page.
	Chunked Mode = "chunked"
)

// ParseMode validates a mode name.
func ParseMode(s string) (Mode, error) {
	switch m := Mode(strings.TrimSpace(s)); m {
	case WholeDocument, PerPage, Chunked:
		return m, nil
	}
	return "", errs.Ef(errs.UnknownStrategy, "ingest.ParseMode", fmt.Sprintf("unknown mode %q", s))
}

// State is the stage a document is in.
type State string

const (
	Extracting State = "extracting"
	Converting State = "converting"
	Splitting  State = "splitting"
	Embedding  State = "embedding"
	Upserted   State = "upserted"
	Failed     State = "failed"
)

// Metadata keys set on every stored document.
const (
	MetaSourceFile = "source_file"
	MetaFileName   = "file_name"
	MetaPage       = "page"
)

// Event reports progress of one ingestion.
type Event struct {
	State State
	// Page and Pages are set while converting, after each page.
	Page  int
	Pages int
	Err   error
}

// Request describes one document to ingest.
type Request struct {
	// PDFPath is the file on disk.
	PDFPath string
	// SourceName is the original file name, e.g. the upload name. Defaults
	// to the base of PDFPath.
	SourceName string
	// Collection defaults to SourceName without its extension.
	Collection string
	// Strategy and Mode default to the pipeline's configured values.
	Strategy chunk.Strategy
	Mode     Mode

	// Observer, if set, receives every state change.
	Observer func(Event) `json:"-"`
}

// Result summarizes a successful ingestion.
type Result struct {
	CollectionName string   `json:"collection_name"`
	DocumentCount  int      `json:"document_count"`
	SplitterType   string   `json:"splitter_type"`
	Mode           string   `json:"mode"`
	Pages          int      `json:"pages"`
	MarkdownFile   string   `json:"markdown_file,omitempty"`
	BucketURL      string   `json:"bucket_url,omitempty"`
	PointIDs       []string `json:"point_ids,omitempty"`
}

// Options are the pipeline settings shared by every request.
type Options struct {
	Chunk           chunk.Options
	DefaultStrategy chunk.Strategy
	DefaultMode     Mode

	VectorSize int
	Distance   vector.Distance

	// OutputDir receives <pdf_name>.md and, with KeepPageMarkdown, the
	// per-page files under <pdf_name>/.
	OutputDir        string
	WriteMarkdown    bool
	KeepPageMarkdown bool

	// WorkDir is the parent of per-call temp directories. Empty means the
	// system temp dir.
	WorkDir string
}

// DefaultOptions matches the configuration defaults.
func DefaultOptions() Options {
	return Options{
		Chunk:           chunk.DefaultOptions(),
		DefaultStrategy: chunk.RecursiveCharacter,
		DefaultMode:     Chunked,
		VectorSize:      1024,
		Distance:        vector.Cosine,
		OutputDir:       "output",
		WriteMarkdown:   true,
	}
}

type resolved struct {
	pdfPath    string
	pdfName    string
	sourceName string
	collection string
	strategy   chunk.Strategy
	mode       Mode
	observer   func(Event)
}

func (o Options) resolve(req Request) (resolved, error) {
	const op = "ingest.Resolve"

	if strings.TrimSpace(req.PDFPath) == "" {
		return resolved{}, errs.Ef(errs.EmptyInput, op, "pdf path is empty")
	}

	r := resolved{pdfPath: req.PDFPath, sourceName: req.SourceName, observer: req.Observer}
	if r.sourceName == "" {
		r.sourceName = filepath.Base(req.PDFPath)
	}
	r.pdfName = document.PDFName(req.PDFPath)

	r.collection = strings.TrimSpace(req.Collection)
	if r.collection == "" {
		r.collection = document.PDFName(r.sourceName)
	}

	strategy := req.Strategy
	if strategy == "" {
		strategy = o.DefaultStrategy
	}
	st, err := chunk.ParseStrategy(string(strategy))
	if err != nil {
		return resolved{}, err
	}
	r.strategy = st

	mode := req.Mode
	if mode == "" {
		mode = o.DefaultMode
	}
	if mode == "" {
		mode = Chunked
	}
	m, err := ParseMode(string(mode))
	if err != nil {
		return resolved{}, err
	}
	r.mode = m
	return r, nil
}

func (r resolved) emit(e Event) {
	if r.observer != nil {
		r.observer(e)
	}
}
