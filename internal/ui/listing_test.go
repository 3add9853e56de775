package ui

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTableAlignsColumns(t *testing.T) {
	tbl := NewTable().
		Row("concat", "Concatenate items.").
		Row("fetch_page", "Fetch a page.")
	assert.Equal(t, "concat      Concatenate items.\nfetch_page  Fetch a page.\n", tbl.String())
}

func TestTableRaggedRows(t *testing.T) {
	tbl := NewTable().Row("a", "b", "c").Row("dd")
	assert.Equal(t, "a   b  c\ndd\n", tbl.String())
}

func TestListingRendersEveryRow(t *testing.T) {
	l := NewListing(100)
	l.Add("First note", "note · markdown", "notes/first.note.md")
	l.Add("A page", "resource · url", "resources/a_page.resource.md")
	assert.Equal(t, 2, l.Len())

	out := l.Render()
	lines := strings.Split(out, "\n")
	assert.Len(t, lines, 2)
	assert.Contains(t, lines[0], "First note")
	assert.Contains(t, lines[1], "resources/a_page.resource.md")
	assert.True(t, strings.HasPrefix(strings.TrimSpace(lines[1]), "2"))
}

func TestListingEmpty(t *testing.T) {
	assert.Empty(t, NewListing(80).Render())
}

func TestListingTruncatesLongTitles(t *testing.T) {
	l := NewListing(60)
	l.Add(strings.Repeat("word ", 40), "note · markdown", "notes/long.note.md")
	assert.Contains(t, l.Render(), "…")
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", Truncate("short", 10))
	assert.Equal(t, "a long se…", Truncate("a long sentence here", 10))
	assert.Equal(t, "a long…", Truncate("a long sentence", 8))
	assert.Equal(t, "…", Truncate("abcdef", 1))
	assert.Equal(t, "", Truncate("abcdef", 0))
}
