// Package embeddingtest provides an in-memory embedding provider for tests.
package embeddingtest

import (
	"context"
	"fmt"
	"hash/fnv"
	"math"
	"sync"

	"github.com/JoaoPedroMBiofy/ingestor/internal/embedding"
)

// Provider returns deterministic vectors derived from a hash of each text.
type Provider struct {
	Dims int

	// Vectors overrides the vector returned for an exact text.
	Vectors map[string][]float32

	// Err, when set, is returned from every Embed call.
	Err error

	mu    sync.Mutex
	calls int
	texts int
}

// New creates a provider producing vectors of the given length.
func New(dims int) *Provider {
	return &Provider{Dims: dims, Vectors: make(map[string][]float32)}
}

func (p *Provider) Name() string { return "test" }

func (p *Provider) Embed(_ context.Context, texts []string) ([][]float32, error) {
	p.mu.Lock()
	p.calls++
	p.texts += len(texts)
	p.mu.Unlock()

	if p.Err != nil {
		return nil, fmt.Errorf("%w: %v", embedding.ErrEmbedding, p.Err)
	}

	out := make([][]float32, len(texts))
	for i, text := range texts {
		if v, ok := p.Vectors[text]; ok {
			out[i] = v
			continue
		}
		out[i] = hashVector(text, p.Dims)
	}
	return out, nil
}

// Calls returns how many Embed calls were made.
func (p *Provider) Calls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls
}

// Texts returns how many texts were embedded in total.
func (p *Provider) Texts() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.texts
}

func hashVector(text string, dims int) []float32 {
	v := make([]float32, dims)
	var norm float64
	for i := range v {
		h := fnv.New64a()
		fmt.Fprintf(h, "%d:%s", i, text)
		x := float64(h.Sum64()%2000)/1000 - 1
		v[i] = float32(x)
		norm += x * x
	}
	if norm == 0 {
		return v
	}
	scale := float32(1 / math.Sqrt(norm))
	for i := range v {
		v[i] *= scale
	}
	return v
}

var _ embedding.Provider = (*Provider)(nil)
