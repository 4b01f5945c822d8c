package document

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pagesOutOfOrder() []PageMarkdown {
	order := []int{3, 1, 5, 2, 4}
	out := make([]PageMarkdown, 0, len(order))
	for _, n := range order {
		out = append(out, PageMarkdown{
			Page:     Page{Number: n, Name: PageName("book", n)},
			Markdown: "page " + PageName("book", n),
		})
	}
	return out
}

func TestJoin_OrdersPages(t *testing.T) {
	want := "page book-1\n\npage book-2\n\npage book-3\n\npage book-4\n\npage book-5\n\n"
	assert.Equal(t, want, Join(pagesOutOfOrder()))
}

func TestWriteMarkdown(t *testing.T) {
	out := filepath.Join(t.TempDir(), "output")

	path, err := WriteMarkdown(out, "book", pagesOutOfOrder())
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(out, "book.md"), path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, Join(pagesOutOfOrder()), string(data))
}

func TestSavePage(t *testing.T) {
	dir := t.TempDir()
	pm := PageMarkdown{Page: Page{Number: 2, Name: "book-2"}, Markdown: "## Two"}

	path, err := SavePage(dir, "book", pm)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "book", "book-2.md"), path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "## Two", string(data))
}
