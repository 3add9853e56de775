package selection

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func allExist(string) bool { return true }

func TestSetPersistsAndReloads(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".settings", "selection.yml")
	h, err := Open(path, allExist, nil)
	require.NoError(t, err)
	assert.Empty(t, h.Current())

	require.NoError(t, h.Set([]string{"notes/a.note.md", "notes/b.note.md", "notes/a.note.md"}))
	assert.Equal(t, []string{"notes/a.note.md", "notes/b.note.md"}, h.Current())

	reopened, err := Open(path, allExist, nil)
	require.NoError(t, err)
	assert.Equal(t, h.Current(), reopened.Current())
}

func TestSetReplacesWholesale(t *testing.T) {
	h, err := Open(filepath.Join(t.TempDir(), "sel.yml"), allExist, nil)
	require.NoError(t, err)

	require.NoError(t, h.Set([]string{"a"}))
	require.NoError(t, h.Set([]string{"b", "c"}))
	assert.Equal(t, []string{"b", "c"}, h.Current())
}

func TestBackAndForward(t *testing.T) {
	h, err := Open(filepath.Join(t.TempDir(), "sel.yml"), allExist, nil)
	require.NoError(t, err)

	_, err = h.Back()
	assert.ErrorIs(t, err, ErrNoHistory)

	require.NoError(t, h.Set([]string{"a"}))
	require.NoError(t, h.Set([]string{"b"}))

	prev, err := h.Back()
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, prev)

	next, err := h.Forward()
	require.NoError(t, err)
	assert.Equal(t, []string{"b"}, next)

	_, err = h.Forward()
	assert.ErrorIs(t, err, ErrNoHistory)

	// A new selection after stepping back drops the forward entries.
	_, err = h.Back()
	require.NoError(t, err)
	require.NoError(t, h.Set([]string{"c"}))
	entries, cur := h.Entries()
	assert.Equal(t, [][]string{{"a"}, {"c"}}, entries)
	assert.Equal(t, 1, cur)
}

func TestHistoryIsBounded(t *testing.T) {
	h, err := Open(filepath.Join(t.TempDir(), "sel.yml"), allExist, nil)
	require.NoError(t, err)
	for i := 0; i < MaxHistory+10; i++ {
		require.NoError(t, h.Set([]string{fmt.Sprintf("notes/%d.note.md", i)}))
	}
	entries, cur := h.Entries()
	assert.Len(t, entries, MaxHistory)
	assert.Equal(t, MaxHistory-1, cur)
	assert.Equal(t, []string{"notes/10.note.md"}, entries[0])
}

func TestOpenFiltersMissingPaths(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sel.yml")
	require.NoError(t, os.WriteFile(path, []byte(`history:
  - [gone.md]
  - [keep.md, gone.md]
current: 1
`), 0o644))

	exists := func(p string) bool { return p == "keep.md" }
	h, err := Open(path, exists, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"keep.md"}, h.Current())
	entries, _ := h.Entries()
	assert.Len(t, entries, 1)
}

func TestRemoveDropsPathsFromEveryEntry(t *testing.T) {
	h, err := Open(filepath.Join(t.TempDir(), "sel.yml"), allExist, nil)
	require.NoError(t, err)
	require.NoError(t, h.Set([]string{"a", "b"}))
	require.NoError(t, h.Set([]string{"a", "c"}))

	require.NoError(t, h.Remove("a"))
	assert.Equal(t, []string{"c"}, h.Current())

	prev, err := h.Back()
	require.NoError(t, err)
	assert.Equal(t, []string{"b"}, prev)
}

func TestClear(t *testing.T) {
	h, err := Open(filepath.Join(t.TempDir(), "sel.yml"), allExist, nil)
	require.NoError(t, err)
	require.NoError(t, h.Set([]string{"a"}))
	require.NoError(t, h.Clear())
	assert.Empty(t, h.Current())
}
