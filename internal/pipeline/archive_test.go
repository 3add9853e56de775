package pipeline

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aidanlsb/kmd/internal/store"
)

func TestArchiveSelection(t *testing.T) {
	e := newEnv(t, nil)
	a := e.note(t, "A", "a\n")
	b := e.note(t, "B", "b\n")
	require.NoError(t, e.sel.Set([]string{a, b}))

	out, err := e.ctl.Archive(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, []string{".archive/notes/a.note.md", ".archive/notes/b.note.md"}, out.Archived)
	assert.Empty(t, e.files(t))
	assert.Empty(t, e.sel.Current())

	entries := e.entries(t)
	require.Len(t, entries, 1)
	assert.Equal(t, OpArchive, entries[0].Operation)
}

func TestArchiveNeedsInputs(t *testing.T) {
	e := newEnv(t, nil)
	_, err := e.ctl.Archive(context.Background(), nil)
	assert.ErrorIs(t, err, ErrNothingToDo)
}

func TestUnarchiveSelectsRestored(t *testing.T) {
	e := newEnv(t, nil)
	a := e.note(t, "A", "a\n")
	_, err := e.ctl.Archive(context.Background(), []string{a})
	require.NoError(t, err)

	out, err := e.ctl.Unarchive(context.Background(), []string{".archive/notes/a.note.md"})
	require.NoError(t, err)
	assert.Equal(t, []string{a}, out.Outputs)
	assert.Equal(t, []string{a}, e.sel.Current())
	assert.Equal(t, []string{a}, e.files(t))
}

func TestUnarchiveRejectsLiveItems(t *testing.T) {
	e := newEnv(t, nil)
	a := e.note(t, "A", "a\n")
	_, err := e.ctl.Unarchive(context.Background(), []string{a})
	assert.ErrorIs(t, err, store.ErrNotArchived)
}
