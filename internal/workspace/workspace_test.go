package workspace

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aidanlsb/kmd/internal/config"
	"github.com/aidanlsb/kmd/internal/logging"
	"github.com/aidanlsb/kmd/internal/model"
)

func open(t *testing.T, root string) *Workspace {
	t.Helper()
	ws, err := Open(root, Options{Logger: logging.Nop()})
	require.NoError(t, err)
	t.Cleanup(func() { _ = ws.Close() })
	return ws
}

func TestInitCreatesLayout(t *testing.T) {
	root := t.TempDir()
	res, err := Init(root)
	require.NoError(t, err)
	assert.True(t, res.Created)

	for _, d := range HiddenDirs {
		assert.DirExists(t, filepath.Join(root, d))
	}
	for _, typ := range model.ItemTypes {
		assert.DirExists(t, filepath.Join(root, typ.Folder()))
	}
	assert.FileExists(t, res.Settings)

	gi, err := os.ReadFile(filepath.Join(root, ".gitignore"))
	require.NoError(t, err)
	assert.Contains(t, string(gi), ".index/")
	assert.Contains(t, string(gi), ".cache/")
}

func TestInitKeepsExistingSettings(t *testing.T) {
	root := t.TempDir()
	_, err := Init(root)
	require.NoError(t, err)

	path := filepath.Join(root, SettingsDir, SettingsFile)
	s := config.DefaultSettings()
	s.DefaultModel = "custom-model"
	require.NoError(t, config.SaveSettings(path, s))

	res, err := Init(root)
	require.NoError(t, err)
	assert.False(t, res.Created)

	loaded, err := config.LoadSettings(path)
	require.NoError(t, err)
	assert.Equal(t, "custom-model", loaded.DefaultModel)
}

func TestOpenRequiresInit(t *testing.T) {
	_, err := Open(t.TempDir(), Options{Logger: logging.Nop()})
	assert.ErrorIs(t, err, ErrNotWorkspace)
}

func TestOpenWiresPipeline(t *testing.T) {
	root := t.TempDir()
	_, err := Init(root)
	require.NoError(t, err)
	ws := open(t, root)

	_, err = ws.Registry.Lookup("concat")
	require.NoError(t, err)

	src := filepath.Join(t.TempDir(), "hello.md")
	require.NoError(t, os.WriteFile(src, []byte("# Hello\n\nworld\n"), 0o644))
	out, err := ws.Pipeline.Import(context.Background(), []string{src})
	require.NoError(t, err)
	assert.Equal(t, []string{"resources/hello.resource.md"}, out.Outputs)

	// The index sees saved items.
	entry, err := ws.Index.Get(out.Outputs[0])
	require.NoError(t, err)
	assert.Equal(t, "hello", entry.Title)

	concat, err := ws.Pipeline.Run(context.Background(), "concat", nil)
	require.NoError(t, err)
	require.Len(t, concat.Outputs, 1)
	assert.Equal(t, concat.Outputs, ws.Selection.Current())

	entries, err := ws.History.Read()
	require.NoError(t, err)
	assert.Len(t, entries, 2)
}

func TestLLMActionsNeedAKey(t *testing.T) {
	root := t.TempDir()
	_, err := Init(root)
	require.NoError(t, err)
	ws := open(t, root)

	src := filepath.Join(t.TempDir(), "text.md")
	require.NoError(t, os.WriteFile(src, []byte("some text\n"), 0o644))
	_, err = ws.Pipeline.Import(context.Background(), []string{src})
	require.NoError(t, err)

	_, err = ws.Pipeline.Run(context.Background(), "proofread", nil)
	assert.ErrorContains(t, err, "no completion backend")
}

func TestNumberedReferences(t *testing.T) {
	root := t.TempDir()
	_, err := Init(root)
	require.NoError(t, err)
	ws := open(t, root)

	require.NoError(t, ws.RememberListing("list", []string{"notes/a.note.md", "notes/b.note.md", "notes/c.note.md"}))

	paths, err := ws.ResolveNumbers([]string{"1,3"})
	require.NoError(t, err)
	assert.Equal(t, []string{"notes/a.note.md", "notes/c.note.md"}, paths)

	plain, err := ws.ResolveNumbers([]string{"notes/b.note.md"})
	require.NoError(t, err)
	assert.Equal(t, []string{"notes/b.note.md"}, plain)

	_, err = ws.ResolveNumbers([]string{"9"})
	assert.Error(t, err)
}
