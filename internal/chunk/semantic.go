package chunk

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
	"unicode"

	"github.com/JoaoPedroMBiofy/ingestor/internal/embedding"
	"github.com/JoaoPedroMBiofy/ingestor/internal/errs"
	"github.com/JoaoPedroMBiofy/ingestor/internal/vector"
)

// SemanticSplitter groups sentences and starts a new chunk wherever the
// embedding distance to the next sentence is an outlier:
//
//	distance > mean(distances) + amount * IQR(distances)
type SemanticSplitter struct {
	provider   embedding.Provider
	bufferSize int
	amount     float64
}

// NewSemantic creates a semantic splitter. bufferSize is the number of
// neighbouring sentences on each side embedded together with a sentence.
func NewSemantic(provider embedding.Provider, bufferSize int, amount float64) *SemanticSplitter {
	if bufferSize < 0 {
		bufferSize = 0
	}
	if amount <= 0 {
		amount = 1.5
	}
	return &SemanticSplitter{provider: provider, bufferSize: bufferSize, amount: amount}
}

func (s *SemanticSplitter) Strategy() Strategy { return Semantic }

// Split embeds every sentence window in one call. Any embedding failure
// aborts with SplitFailure.
func (s *SemanticSplitter) Split(ctx context.Context, text string, base map[string]string) ([]vector.Document, error) {
	const op = "chunk.Semantic"

	if err := requireText(op, text); err != nil {
		return nil, err
	}

	sentences := splitSentences(text)
	if len(sentences) == 1 {
		return []vector.Document{newDoc(sentences[0], base, 0)}, nil
	}

	windows := combineSentences(sentences, s.bufferSize)
	vecs, err := s.provider.Embed(ctx, windows)
	if err != nil {
		return nil, errs.E(errs.SplitFailure, op, err)
	}
	if len(vecs) != len(windows) {
		return nil, errs.Ef(errs.SplitFailure, op,
			fmt.Sprintf("provider %s returned %d vectors for %d sentences", s.provider.Name(), len(vecs), len(windows)))
	}

	distances := make([]float64, len(vecs)-1)
	for i := range distances {
		distances[i] = 1 - vector.CosineSimilarity(vecs[i], vecs[i+1])
	}
	threshold := breakpointThreshold(distances, s.amount)

	var docs []vector.Document
	start := 0
	for i, d := range distances {
		if d > threshold {
			docs = append(docs, newDoc(strings.Join(sentences[start:i+1], " "), base, len(docs)))
			start = i + 1
		}
	}
	if start < len(sentences) {
		docs = append(docs, newDoc(strings.Join(sentences[start:], " "), base, len(docs)))
	}
	return docs, nil
}

// splitSentences breaks text after '.', '?' or '!' followed by whitespace.
// Blank pieces are dropped.
func splitSentences(text string) []string {
	runes := []rune(text)
	var out []string
	start := 0
	for i := 0; i < len(runes); i++ {
		if !isTerminal(runes[i]) || i+1 >= len(runes) || !unicode.IsSpace(runes[i+1]) {
			continue
		}
		out = appendSentence(out, runes[start:i+1])
		j := i + 1
		for j < len(runes) && unicode.IsSpace(runes[j]) {
			j++
		}
		start = j
		i = j - 1
	}
	out = appendSentence(out, runes[start:])
	return out
}

func appendSentence(out []string, r []rune) []string {
	s := strings.TrimSpace(string(r))
	if s == "" {
		return out
	}
	return append(out, s)
}

func isTerminal(r rune) bool {
	return r == '.' || r == '?' || r == '!'
}

// combineSentences joins each sentence with up to buffer neighbours on each side.
func combineSentences(sentences []string, buffer int) []string {
	out := make([]string, len(sentences))
	for i := range sentences {
		lo := max(0, i-buffer)
		hi := min(len(sentences), i+buffer+1)
		out[i] = strings.Join(sentences[lo:hi], " ")
	}
	return out
}

func breakpointThreshold(distances []float64, amount float64) float64 {
	if len(distances) == 0 {
		return math.Inf(1)
	}
	sorted := append([]float64(nil), distances...)
	sort.Float64s(sorted)

	var sum float64
	for _, d := range distances {
		sum += d
	}
	mean := sum / float64(len(distances))
	iqr := percentile(sorted, 75) - percentile(sorted, 25)
	return mean + amount*iqr
}

// percentile interpolates linearly between closest ranks of sorted.
func percentile(sorted []float64, p float64) float64 {
	if len(sorted) == 1 {
		return sorted[0]
	}
	rank := p / 100 * float64(len(sorted)-1)
	lo := int(math.Floor(rank))
	hi := int(math.Ceil(rank))
	return sorted[lo] + (sorted[hi]-sorted[lo])*(rank-float64(lo))
}
