package chunk

import (
	"context"
	"fmt"
	"strconv"
	"unicode"

	"github.com/JoaoPedroMBiofy/ingestor/internal/errs"
	"github.com/JoaoPedroMBiofy/ingestor/internal/vector"
)

// separators are tried in order when looking for a cut point.
var separators = [][]rune{[]rune("\n\n"), []rune("\n"), []rune(" ")}

// RecursiveCharacterSplitter cuts text into windows of at most size runes
// where consecutive windows share exactly overlap runes.
type RecursiveCharacterSplitter struct {
	size    int
	overlap int
}

// NewRecursiveCharacter validates the window parameters.
func NewRecursiveCharacter(size, overlap int) (*RecursiveCharacterSplitter, error) {
	if size <= 0 {
		return nil, errs.Ef(errs.SplitFailure, "chunk.NewRecursiveCharacter", fmt.Sprintf("size must be positive, got %d", size))
	}
	if overlap < 0 || overlap >= size {
		return nil, errs.Ef(errs.SplitFailure, "chunk.NewRecursiveCharacter",
			fmt.Sprintf("overlap must be in [0, %d), got %d", size, overlap))
	}
	return &RecursiveCharacterSplitter{size: size, overlap: overlap}, nil
}

func (s *RecursiveCharacterSplitter) Strategy() Strategy { return RecursiveCharacter }

// Split never calls out and ignores ctx.
func (s *RecursiveCharacterSplitter) Split(_ context.Context, text string, base map[string]string) ([]vector.Document, error) {
	if err := requireText("chunk.RecursiveCharacter", text); err != nil {
		return nil, err
	}

	var docs []vector.Document
	for _, w := range s.windows([]rune(text)) {
		if !hasContent(w.text) {
			continue
		}
		d := newDoc(string(w.text), base, len(docs))
		d.Metadata[MetaStartIndex] = strconv.Itoa(w.start)
		docs = append(docs, d)
	}
	return docs, nil
}

type window struct {
	start int
	text  []rune
}

func (s *RecursiveCharacterSplitter) windows(runes []rune) []window {
	var out []window
	n := len(runes)
	start := 0
	for {
		end := start + s.size
		if end >= n {
			out = append(out, window{start: start, text: runes[start:n]})
			return out
		}
		end = s.cutPoint(runes, start, end)
		out = append(out, window{start: start, text: runes[start:end]})
		start = end - s.overlap
	}
}

// cutPoint returns the end of the window starting at start. It prefers the
// position right after the last separator in the window, trying separators in
// order, as long as the next window still starts after this one.
func (s *RecursiveCharacterSplitter) cutPoint(runes []rune, start, end int) int {
	minCut := start + s.overlap + 1
	for _, sep := range separators {
		for i := end - len(sep); i >= start; i-- {
			cut := i + len(sep)
			if cut < minCut {
				break
			}
			if hasPrefixAt(runes, i, sep) && hasContent(runes[start:cut]) {
				return cut
			}
		}
	}
	return end
}

func hasPrefixAt(runes []rune, i int, sep []rune) bool {
	if i+len(sep) > len(runes) {
		return false
	}
	for j, r := range sep {
		if runes[i+j] != r {
			return false
		}
	}
	return true
}

func hasContent(runes []rune) bool {
	for _, r := range runes {
		if !unicode.IsSpace(r) {
			return true
		}
	}
	return false
}
