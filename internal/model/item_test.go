package model

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fixedClock(t *testing.T, ts time.Time) {
	t.Helper()
	prev := Now
	Now = func() time.Time { return ts }
	t.Cleanup(func() { Now = prev })
}

func TestFolderMapping(t *testing.T) {
	for _, typ := range ItemTypes {
		got, err := TypeForFolder(typ.Folder())
		require.NoError(t, err)
		assert.Equal(t, typ, got)
	}

	_, err := TypeForFolder("widgets")
	assert.ErrorIs(t, err, ErrUnknownFolder)

	_, err = ParseItemType("notes")
	assert.ErrorIs(t, err, ErrUnknownItemType, "folder names are not type names")
}

func TestMetadataExcludesBodyAndAbsentFields(t *testing.T) {
	item := New(TypeNote, FormatMarkdown)
	item.Title = "Hello"
	item.Body = "text"
	item.StorePath = "notes/hello.note.md"

	meta := item.Metadata()
	assert.Equal(t, "note", meta[KeyType])
	assert.Equal(t, "Hello", meta[KeyTitle])
	assert.NotContains(t, meta, "body")
	assert.NotContains(t, meta, "store_path")
	assert.NotContains(t, meta, KeyURL)
	assert.NotContains(t, meta, KeyRelations)
}

func TestFromMetadataRoundTrip(t *testing.T) {
	fixedClock(t, time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC))

	item := New(TypeResource, FormatURL)
	item.Title = "Example"
	item.URL = "https://example.com/"
	item.Relations.DerivedFrom = []string{"resources/a.resource.md"}
	item.Source = &Operation{ActionName: "fetch_page", Arguments: []string{"resources/a.resource.md"}}
	item.Extra = map[string]any{"tags": []any{"x", "y"}}

	got, err := FromMetadata(item.Metadata(), "")
	require.NoError(t, err)
	assert.Equal(t, item, got)
}

func TestFromMetadataUnknownType(t *testing.T) {
	_, err := FromMetadata(map[string]any{KeyType: "widget"}, "")
	assert.ErrorIs(t, err, ErrUnknownItemType)
}

func TestFromMetadataStringTimestamps(t *testing.T) {
	got, err := FromMetadata(map[string]any{
		KeyType:      "note",
		KeyCreatedAt: "2024-01-02T03:04:05.123456",
	}, "")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 1, 2, 3, 4, 5, 123456000, time.UTC), got.CreatedAt)
}

func TestCopyWithDoesNotAlias(t *testing.T) {
	fixedClock(t, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	old := New(TypeNote, FormatMarkdown)
	old.StorePath = "notes/a.note.md"
	old.Relations.DerivedFrom = []string{"resources/r.resource.md"}
	old.Extra = map[string]any{"k": map[string]any{"n": 1}}

	fixedClock(t, time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC))
	cp := CopyWith(old, WithTitle("New"))

	assert.Empty(t, cp.StorePath)
	assert.Equal(t, "New", cp.Title)
	assert.True(t, cp.CreatedAt.After(old.CreatedAt))

	cp.Relations.DerivedFrom[0] = "changed"
	cp.Extra["k"].(map[string]any)["n"] = 2
	assert.Equal(t, "resources/r.resource.md", old.Relations.DerivedFrom[0])
	assert.Equal(t, 1, old.Extra["k"].(map[string]any)["n"])
}

func TestDerivedCopy(t *testing.T) {
	old := New(TypeResource, FormatURL)
	_, err := DerivedCopy(old)
	assert.True(t, errors.Is(err, ErrNoStorePath))

	old.StorePath = "resources/r.resource.md"
	cp, err := DerivedCopy(old, WithType(TypeNote), WithFormat(FormatMarkdown))
	require.NoError(t, err)
	assert.Equal(t, []string{"resources/r.resource.md"}, cp.Relations.DerivedFrom)
	assert.Equal(t, ExtMarkdown, cp.Ext())
}

func TestValidate(t *testing.T) {
	item := New(TypeNote, FormatMarkdown)
	require.NoError(t, item.Validate())

	item.URL = "not a url"
	assert.Error(t, item.Validate())

	bad := New(ItemType("widget"), FormatMarkdown)
	assert.ErrorIs(t, bad.Validate(), ErrUnknownItemType)

	bin := New(TypeExport, FormatPDF)
	bin.IsBinary = true
	assert.Error(t, bin.Validate(), "binary items need an external path")
	bin.ExternalPath = "/tmp/x.pdf"
	bin.FileExt = ExtPDF
	assert.NoError(t, bin.Validate())
}

func TestSlugSourceFallbacks(t *testing.T) {
	item := &Item{Type: TypeNote}
	assert.Equal(t, "untitled", item.SlugSource())

	item.Body = "# First heading\nrest"
	assert.Equal(t, "First heading", item.SlugSource())

	item.URL = "https://example.com"
	assert.Equal(t, "https://example.com", item.SlugSource())

	item.Title = "Title"
	assert.Equal(t, "Title", item.SlugSource())
}
