// Package chunk splits text into embeddable chunks.
//
// Two strategies are available and selected explicitly:
//
//   - recursive_character: fixed-size windows with a fixed overlap, cut at the
//     nearest paragraph, line or word boundary.
//   - semantic_chunker: sentence groups separated where the embedding distance
//     between neighbouring sentences is an interquartile-range outlier.
package chunk

import (
	"context"
	"fmt"
	"maps"
	"strconv"
	"strings"

	"github.com/JoaoPedroMBiofy/ingestor/internal/embedding"
	"github.com/JoaoPedroMBiofy/ingestor/internal/errs"
	"github.com/JoaoPedroMBiofy/ingestor/internal/vector"
)

// Strategy names a splitting algorithm.
type Strategy string

const (
	RecursiveCharacter Strategy = "recursive_character"
	Semantic           Strategy = "semantic_chunker"
)

// Metadata keys set on every chunk.
const (
	MetaChunk      = "chunk"
	MetaStartIndex = "start_index"
)

// ParseStrategy validates a strategy name.
func ParseStrategy(s string) (Strategy, error) {
	switch st := Strategy(strings.TrimSpace(s)); st {
	case RecursiveCharacter, Semantic:
		return st, nil
	}
	return "", errs.Ef(errs.UnknownStrategy, "chunk.ParseStrategy", fmt.Sprintf("%q", s))
}

// Splitter turns one text into an ordered chunk sequence. Each chunk carries a
// copy of base metadata plus its chunk index.
type Splitter interface {
	Split(ctx context.Context, text string, base map[string]string) ([]vector.Document, error)
	Strategy() Strategy
}

// Options holds the parameters of both strategies.
type Options struct {
	Size    int
	Overlap int

	BufferSize      int
	ThresholdAmount float64
}

// DefaultOptions returns the default chunking parameters.
func DefaultOptions() Options {
	return Options{Size: 1000, Overlap: 100, BufferSize: 1, ThresholdAmount: 1.5}
}

// ProviderFunc supplies an embedding provider on demand.
type ProviderFunc func() (embedding.Provider, error)

// New builds the splitter for strategy. provider is only called for the
// semantic strategy.
func New(strategy Strategy, opts Options, provider ProviderFunc) (Splitter, error) {
	const op = "chunk.New"

	switch strategy {
	case RecursiveCharacter:
		return NewRecursiveCharacter(opts.Size, opts.Overlap)
	case Semantic:
		if provider == nil {
			return nil, errs.Ef(errs.SplitFailure, op, "semantic strategy needs an embedding provider")
		}
		p, err := provider()
		if err != nil {
			return nil, errs.E(errs.SplitFailure, op, err)
		}
		return NewSemantic(p, opts.BufferSize, opts.ThresholdAmount), nil
	}
	return nil, errs.Ef(errs.UnknownStrategy, op, fmt.Sprintf("%q", strategy))
}

func requireText(op, text string) error {
	if strings.TrimSpace(text) == "" {
		return errs.Ef(errs.EmptyInput, op, "text is blank")
	}
	return nil
}

func newDoc(content string, base map[string]string, index int) vector.Document {
	meta := make(map[string]string, len(base)+2)
	maps.Copy(meta, base)
	meta[MetaChunk] = strconv.Itoa(index)
	return vector.Document{Content: content, Metadata: meta}
}
