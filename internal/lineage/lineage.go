// Package lineage records which document, page and chunk produced each point
// in the vector store.
package lineage

import (
	"context"
	"time"
)

// Record describes one completed ingestion.
type Record struct {
	Document   string
	SourceFile string
	Collection string
	Strategy   string
	Mode       string
	Pages      []Page
	Chunks     []Chunk
	IngestedAt time.Time
}

// Page is one converted PDF page.
type Page struct {
	Number int
	Name   string
}

// Chunk ties a stored point back to its page. Page is 0 when the chunk spans
// the whole document.
type Chunk struct {
	PointID string
	Page    int
	Index   int
}

// Recorder stores lineage records.
type Recorder interface {
	// RecordIngestion writes the graph for r. It is idempotent per document.
	RecordIngestion(ctx context.Context, r Record) error
	// Documents returns the document names indexed into collection.
	Documents(ctx context.Context, collection string) ([]string, error)
	Close(ctx context.Context) error
}

// Nop discards all records.
type Nop struct{}

func (Nop) RecordIngestion(context.Context, Record) error      { return nil }
func (Nop) Documents(context.Context, string) ([]string, error) { return nil, nil }
func (Nop) Close(context.Context) error                         { return nil }

var _ Recorder = Nop{}
