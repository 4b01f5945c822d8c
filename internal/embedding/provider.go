// Package embedding turns text into fixed-length vectors through a remote
// embedding service.
package embedding

import (
	"context"
	"errors"
	"fmt"
)

// ErrEmbedding wraps failures reported by an embedding backend.
var ErrEmbedding = errors.New("embedding failed")

// Provider is the interface all embedding backends must implement.
type Provider interface {
	// Embed returns one vector per input text, in input order.
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	// Name returns the provider identifier (e.g. "oci", "openai").
	Name() string
}

// EmbedOne embeds a single text.
func EmbedOne(ctx context.Context, p Provider, text string) ([]float32, error) {
	vecs, err := p.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(vecs) != 1 {
		return nil, fmt.Errorf("%w: %s returned %d vectors for 1 text", ErrEmbedding, p.Name(), len(vecs))
	}
	return vecs[0], nil
}

// CheckBatch verifies a backend returned exactly one vector per input.
func CheckBatch(name string, texts []string, vecs [][]float32) error {
	if len(vecs) != len(texts) {
		return fmt.Errorf("%w: %s returned %d vectors for %d texts", ErrEmbedding, name, len(vecs), len(texts))
	}
	return nil
}
