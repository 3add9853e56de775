package pipeline

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aidanlsb/kmd/internal/action"
	"github.com/aidanlsb/kmd/internal/history"
	"github.com/aidanlsb/kmd/internal/model"
	"github.com/aidanlsb/kmd/internal/selection"
	"github.com/aidanlsb/kmd/internal/store"
)

type env struct {
	root  string
	store *store.Store
	sel   *selection.History
	hist  *history.Log
	ctl   *Controller
	tmp   string
}

func newEnv(t *testing.T, resources ResourceFetcher, actions ...action.Action) *env {
	t.Helper()
	root := t.TempDir()
	st, err := store.Open(root, store.Options{})
	require.NoError(t, err)
	sel, err := selection.Open(filepath.Join(root, ".settings", "selection.yml"), st.Exists, nil)
	require.NoError(t, err)
	hist := history.New(filepath.Join(root, ".logs", "history.jsonl"))
	reg, err := action.NewRegistry(actions...)
	require.NoError(t, err)
	tmp := filepath.Join(root, ".tmp")
	require.NoError(t, os.MkdirAll(tmp, 0o755))
	return &env{
		root:  root,
		store: st,
		sel:   sel,
		hist:  hist,
		tmp:   tmp,
		ctl: New(Options{
			Store:     st,
			Selection: sel,
			History:   hist,
			Registry:  reg,
			Resources: resources,
			TempDir:   tmp,
		}),
	}
}

func (e *env) note(t *testing.T, title, body string) string {
	t.Helper()
	it := model.New(model.TypeNote, model.FormatMarkdown)
	it.Title = title
	it.Body = body
	path, err := e.store.Save(it)
	require.NoError(t, err)
	return path
}

func (e *env) files(t *testing.T) []string {
	t.Helper()
	paths, err := e.store.List()
	require.NoError(t, err)
	return paths
}

func (e *env) entries(t *testing.T) []history.Entry {
	t.Helper()
	entries, err := e.hist.Read()
	require.NoError(t, err)
	return entries
}

// upper returns a new note per input with the body upper-cased and no
// derived_from set.
var upper = action.NewFunc(action.Spec{
	Name:         "upper",
	MinArgs:      1,
	Precondition: action.HasBody,
}, func(_ context.Context, items []*model.Item) ([]*model.Item, error) {
	var out []*model.Item
	for _, it := range items {
		out = append(out, model.CopyWith(it,
			model.WithTitle("Upper "+it.Title),
			model.WithBody(strings.ToUpper(it.Body)),
		))
	}
	return out, nil
})

var passThrough = action.NewFunc(action.Spec{Name: "pass"}, func(_ context.Context, items []*model.Item) ([]*model.Item, error) {
	return items, nil
})

func TestRunThreadsSelection(t *testing.T) {
	e := newEnv(t, nil, upper)
	src := e.note(t, "First", "one\n")

	out, err := e.ctl.Run(context.Background(), "upper", []string{src})
	require.NoError(t, err)
	require.Len(t, out.Outputs, 1)
	assert.Equal(t, "notes/upper_first.note.md", out.Outputs[0])
	assert.Equal(t, []string{src}, out.Inputs)
	assert.Equal(t, out.Outputs, e.sel.Current())

	derived, err := e.store.Load(out.Outputs[0])
	require.NoError(t, err)
	assert.Equal(t, "ONE\n", derived.Body)
	assert.Equal(t, []string{src}, derived.Relations.DerivedFrom, "derived_from is backfilled from the inputs")

	// No arguments: the previous outputs are the inputs.
	next, err := e.ctl.Run(context.Background(), "upper", nil)
	require.NoError(t, err)
	assert.Equal(t, out.Outputs, next.Inputs)
	assert.Equal(t, next.Outputs, e.sel.Current())

	entries := e.entries(t)
	require.Len(t, entries, 2)
	assert.Equal(t, OpRun, entries[0].Operation)
	assert.Equal(t, "upper", entries[0].Action)
	assert.Equal(t, history.StatusOK, entries[1].Status)
	assert.Equal(t, next.HistoryID, entries[1].ID)
}

func TestPreconditionFailureWritesNothing(t *testing.T) {
	needsURL := action.NewFunc(action.Spec{
		Name:         "needs_url",
		MinArgs:      1,
		Precondition: action.HasURL,
	}, func(_ context.Context, items []*model.Item) ([]*model.Item, error) {
		t.Fatal("action must not run")
		return nil, nil
	})
	e := newEnv(t, nil, needsURL, upper)
	src := e.note(t, "Plain", "text\n")
	require.NoError(t, e.sel.Set([]string{src}))
	before := e.files(t)

	_, err := e.ctl.Run(context.Background(), "needs_url", nil)
	assert.ErrorIs(t, err, action.ErrPreconditionFailed)

	// Too few inputs is a precondition failure too.
	require.NoError(t, e.sel.Clear())
	_, err = e.ctl.Run(context.Background(), "upper", nil)
	assert.ErrorIs(t, err, action.ErrPreconditionFailed)

	assert.Equal(t, before, e.files(t))
	assert.Empty(t, e.sel.Current())
	assert.Empty(t, e.entries(t))
}

func TestUnknownAction(t *testing.T) {
	e := newEnv(t, nil)
	_, err := e.ctl.Run(context.Background(), "nope", nil)
	assert.ErrorIs(t, err, action.ErrUnknownAction)
}

func TestFailedActionLeavesSelection(t *testing.T) {
	boom := action.NewFunc(action.Spec{Name: "boom"}, func(_ context.Context, items []*model.Item) ([]*model.Item, error) {
		return nil, errors.New("exploded")
	})
	e := newEnv(t, nil, boom)
	src := e.note(t, "Keep", "k\n")
	require.NoError(t, e.sel.Set([]string{src}))

	_, err := e.ctl.Run(context.Background(), "boom", nil)
	assert.ErrorContains(t, err, "exploded")
	assert.Equal(t, []string{src}, e.sel.Current())
	assert.Equal(t, []string{src}, e.files(t))

	entries := e.entries(t)
	require.Len(t, entries, 1)
	assert.Equal(t, history.StatusFailed, entries[0].Status)
	assert.Contains(t, entries[0].Error, "exploded")
}

func TestCommitFailureRollsBack(t *testing.T) {
	partial := action.NewFunc(action.Spec{Name: "partial", MinArgs: 1}, func(_ context.Context, items []*model.Item) ([]*model.Item, error) {
		updated := items[0].Clone()
		updated.Body = "overwritten\n"
		fresh := model.New(model.TypeNote, model.FormatMarkdown)
		fresh.Title = "Fresh"
		fresh.Body = "new\n"
		invalid := model.New("", model.FormatMarkdown)
		invalid.Title = "Broken"
		return []*model.Item{updated, fresh, invalid}, nil
	})
	e := newEnv(t, nil, partial)
	src := e.note(t, "Original", "original\n")
	require.NoError(t, e.sel.Set([]string{src}))

	_, err := e.ctl.Run(context.Background(), "partial", nil)
	require.Error(t, err)

	assert.Equal(t, []string{src}, e.files(t), "new files are discarded")
	loaded, err := e.store.Load(src)
	require.NoError(t, err)
	assert.Equal(t, "original\n", loaded.Body, "overwritten files are restored")
	assert.Equal(t, []string{src}, e.sel.Current())

	// The slug freed by the rollback is available again.
	_, path, err := e.store.PathFor(&model.Item{Type: model.TypeNote, Title: "Fresh", Format: model.FormatMarkdown})
	require.NoError(t, err)
	assert.Equal(t, "notes/fresh.note.md", path)
}

func TestSequenceCommitsFinalAndArchivesIntermediate(t *testing.T) {
	twice, err := action.NewSequence(action.Spec{Name: "upper_twice", Steps: []string{"upper", "upper"}})
	require.NoError(t, err)
	e := newEnv(t, nil, twice, upper)
	src := e.note(t, "Draft", "draft\n")

	out, err := e.ctl.Run(context.Background(), "upper_twice", []string{src})
	require.NoError(t, err)
	assert.Equal(t, []string{"notes/upper_upper_draft.note.md"}, out.Outputs)
	assert.Equal(t, []string{".archive/notes/upper_draft.note.md"}, out.Archived)
	assert.Equal(t, []string{src, "notes/upper_upper_draft.note.md"}, e.files(t))
	assert.Equal(t, out.Outputs, e.sel.Current())

	final, err := e.store.Load(out.Outputs[0])
	require.NoError(t, err)
	assert.Equal(t, "DRAFT\n", final.Body)
	assert.Equal(t, []string{src}, final.Relations.DerivedFrom)

	step, err := e.store.Load(out.Archived[0])
	require.NoError(t, err)
	assert.Equal(t, []string{src}, step.Relations.DerivedFrom)
}

func TestSequenceCommitFailureRollsBackIntermediate(t *testing.T) {
	breaker := action.NewFunc(action.Spec{Name: "breaker", MinArgs: 1}, func(_ context.Context, items []*model.Item) ([]*model.Item, error) {
		invalid := model.New("", model.FormatMarkdown)
		invalid.Title = "Broken"
		return []*model.Item{invalid}, nil
	})
	seq, err := action.NewSequence(action.Spec{Name: "upper_then_break", Steps: []string{"upper", "breaker"}})
	require.NoError(t, err)
	e := newEnv(t, nil, seq, upper, breaker)
	src := e.note(t, "Draft", "draft\n")
	require.NoError(t, e.sel.Set([]string{src}))

	_, err = e.ctl.Run(context.Background(), "upper_then_break", nil)
	require.Error(t, err)

	assert.Equal(t, []string{src}, e.files(t))
	assert.NoFileExists(t, e.store.Path(".archive/notes/upper_draft.note.md"))
	assert.Equal(t, []string{src}, e.sel.Current())
	entries := e.entries(t)
	require.NotEmpty(t, entries)
	assert.Equal(t, history.StatusFailed, entries[len(entries)-1].Status)
}

func TestComboArchivesNewParts(t *testing.T) {
	combo, err := action.NewCombo(action.Spec{Name: "with_upper", Steps: []string{"upper", "pass"}}, nil)
	require.NoError(t, err)
	e := newEnv(t, nil, combo, upper, passThrough)
	src := e.note(t, "Draft", "draft\n")

	out, err := e.ctl.Run(context.Background(), "with_upper", []string{src})
	require.NoError(t, err)
	require.Len(t, out.Outputs, 1)
	assert.Equal(t, []string{".archive/notes/upper_draft.note.md"}, out.Archived)
	assert.FileExists(t, e.store.Path(src), "copied inputs are left alone")

	combined, err := e.store.Load(out.Outputs[0])
	require.NoError(t, err)
	assert.Equal(t, "DRAFT\n\ndraft\n", combined.Body)
	assert.Equal(t, []string{src}, combined.Relations.DerivedFrom)
}

func TestReplacesInputArchives(t *testing.T) {
	replace := action.NewFunc(action.Spec{Name: "rewrite", MinArgs: 1, ReplacesInput: true}, func(_ context.Context, items []*model.Item) ([]*model.Item, error) {
		return []*model.Item{model.CopyWith(items[0], model.WithTitle("Rewritten"), model.WithBody("better\n"))}, nil
	})
	e := newEnv(t, nil, replace)
	src := e.note(t, "Draft", "drafty\n")

	out, err := e.ctl.Run(context.Background(), "rewrite", []string{src})
	require.NoError(t, err)
	assert.Equal(t, []string{".archive/notes/draft.note.md"}, out.Archived)
	assert.Equal(t, []string{"notes/rewritten.note.md"}, e.files(t))
	assert.Equal(t, out.Outputs, e.sel.Current())
}

func TestReplacedInputsLeaveSelectionHistory(t *testing.T) {
	replace := action.NewFunc(action.Spec{Name: "rewrite", MinArgs: 1, ReplacesInput: true}, func(_ context.Context, items []*model.Item) ([]*model.Item, error) {
		return []*model.Item{model.CopyWith(items[0], model.WithTitle("Rewritten"), model.WithBody("better\n"))}, nil
	})
	e := newEnv(t, nil, replace, passThrough)
	src := e.note(t, "Draft", "drafty\n")
	other := e.note(t, "Other", "other\n")

	_, err := e.ctl.Run(context.Background(), "pass", []string{src, other})
	require.NoError(t, err)
	_, err = e.ctl.Run(context.Background(), "rewrite", []string{src})
	require.NoError(t, err)

	prev, err := e.sel.Back()
	require.NoError(t, err)
	assert.Equal(t, []string{other}, prev, "archived inputs are not selectable again")
	entries, _ := e.sel.Entries()
	for _, sel := range entries {
		assert.NotContains(t, sel, ".archive/notes/draft.note.md")
	}
}

func TestPassThroughWritesNothing(t *testing.T) {
	e := newEnv(t, nil, passThrough)
	a := e.note(t, "A", "a\n")
	b := e.note(t, "B", "b\n")
	st, err := os.Stat(e.store.Path(a))
	require.NoError(t, err)

	out, err := e.ctl.Run(context.Background(), "pass", []string{a, b, a})
	require.NoError(t, err)
	assert.Equal(t, []string{a, b}, out.Outputs, "duplicate arguments collapse")
	assert.Equal(t, []string{a, b}, e.sel.Current())

	after, err := os.Stat(e.store.Path(a))
	require.NoError(t, err)
	assert.Equal(t, st.ModTime(), after.ModTime())
}

func TestRunOnStagedURL(t *testing.T) {
	titled := action.NewFunc(action.Spec{Name: "title_it", MinArgs: 1, Precondition: action.HasURL}, func(_ context.Context, items []*model.Item) ([]*model.Item, error) {
		return []*model.Item{model.MergedCopy(items[0], &model.Item{Title: "Fetched"})}, nil
	})
	noteOf := action.NewFunc(action.Spec{Name: "note_of", MinArgs: 1, Precondition: action.HasURL}, func(_ context.Context, items []*model.Item) ([]*model.Item, error) {
		n := model.CopyWith(items[0], model.WithType(model.TypeNote), model.WithFormat(model.FormatMarkdown), model.WithBody("about it\n"))
		n.Relations.DerivedFrom = []string{items[0].StorePath}
		return []*model.Item{n}, nil
	})
	e := newEnv(t, nil, titled, noteOf)

	out, err := e.ctl.Run(context.Background(), "title_it", []string{"https://example.com/one"})
	require.NoError(t, err)
	require.Len(t, out.Outputs, 1)
	assert.True(t, strings.HasPrefix(out.Outputs[0], "resources/"))
	assert.False(t, e.store.IsReserved(out.Outputs[0]))
	saved, err := e.store.Load(out.Outputs[0])
	require.NoError(t, err)
	assert.Equal(t, "Fetched", saved.Title)

	// The same URL now resolves to the saved resource.
	items, err := e.ctl.Resolve([]string{"https://example.com/one"})
	require.NoError(t, err)
	assert.Equal(t, out.Outputs[0], items[0].StorePath)

	// A new URL is saved alongside the derived note.
	out, err = e.ctl.Run(context.Background(), "note_of", []string{"https://example.com/two"})
	require.NoError(t, err)
	require.Len(t, out.Inputs, 1)
	assert.True(t, e.store.Exists(out.Inputs[0]), "staged input is saved")
	note, err := e.store.Load(out.Outputs[0])
	require.NoError(t, err)
	assert.Equal(t, out.Inputs, note.Relations.DerivedFrom)
}

func TestTempFilesAreRemoved(t *testing.T) {
	var tmpFile string
	export := action.NewFunc(action.Spec{Name: "export", MinArgs: 1, MaxArgs: 1, Terminal: true}, func(_ context.Context, items []*model.Item) ([]*model.Item, error) {
		if err := os.WriteFile(tmpFile, []byte("%PDF-1.4 x"), 0o644); err != nil {
			return nil, err
		}
		return []*model.Item{model.CopyWith(items[0],
			model.WithType(model.TypeExport),
			model.WithFormat(model.FormatPDF),
			model.WithExternalPath(tmpFile, model.ExtPDF),
		)}, nil
	})
	e := newEnv(t, nil, export)
	tmpFile = filepath.Join(e.tmp, "export-1.pdf")
	src := e.note(t, "Doc", "# Doc\n")

	out, err := e.ctl.Run(context.Background(), "export", []string{src})
	require.NoError(t, err)
	assert.True(t, out.Terminal)
	assert.Equal(t, []string{"exports/doc.export.pdf"}, out.Outputs)
	assert.FileExists(t, e.store.Path(out.Outputs[0]))
	assert.NoFileExists(t, tmpFile)
}

type fakeResources struct {
	calls int
	err   error
}

func (f *fakeResources) FetchResource(_ context.Context, url string) (*model.Item, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	it := model.New(model.TypeResource, model.FormatURL)
	it.URL = url
	it.Title = "Example Domain"
	it.Description = "For examples."
	return it, nil
}

func TestFetchAndSave(t *testing.T) {
	res := &fakeResources{}
	e := newEnv(t, res)

	out, err := e.ctl.FetchAndSave(context.Background(), "https://example.com/")
	require.NoError(t, err)
	assert.Equal(t, []string{"resources/example_domain.resource.md"}, out.Outputs)
	assert.Equal(t, out.Outputs, e.sel.Current())

	item, err := e.store.Load(out.Outputs[0])
	require.NoError(t, err)
	assert.Equal(t, "https://example.com/", item.URL)
	assert.Equal(t, "For examples.", item.Description)

	again, err := e.ctl.FetchAndSave(context.Background(), "https://example.com/")
	require.NoError(t, err)
	assert.Equal(t, out.Outputs, again.Outputs)
	assert.Equal(t, 1, res.calls, "existing resources are not fetched again")

	_, err = e.ctl.FetchAndSave(context.Background(), "not a url")
	assert.ErrorIs(t, err, ErrNotURL)
}

func TestFetchAndSaveFailureWritesNothing(t *testing.T) {
	e := newEnv(t, &fakeResources{err: errors.New("offline")})
	_, err := e.ctl.FetchAndSave(context.Background(), "https://example.com/")
	assert.ErrorContains(t, err, "offline")
	assert.Empty(t, e.files(t))
	assert.Empty(t, e.sel.Current())
}

func TestImport(t *testing.T) {
	e := newEnv(t, nil)
	dir := t.TempDir()
	txt := filepath.Join(dir, "notes.txt")
	pdf := filepath.Join(dir, "paper.pdf")
	require.NoError(t, os.WriteFile(txt, []byte("hello\n"), 0o644))
	require.NoError(t, os.WriteFile(pdf, []byte("%PDF-1.4 paper"), 0o644))

	out, err := e.ctl.Import(context.Background(), []string{txt, pdf})
	require.NoError(t, err)
	assert.Equal(t, []string{"resources/notes.resource.txt", "resources/paper.resource.pdf"}, out.Outputs)
	assert.Equal(t, out.Outputs, e.sel.Current())

	text, err := e.store.Load(out.Outputs[0])
	require.NoError(t, err)
	assert.Equal(t, "hello\n", text.Body)
	assert.Equal(t, model.FormatPlaintext, text.Format)

	raw, err := os.ReadFile(e.store.Path(out.Outputs[1]))
	require.NoError(t, err)
	assert.Equal(t, "%PDF-1.4 paper", string(raw))

	// Importing a file already in the workspace just selects it.
	again, err := e.ctl.Import(context.Background(), []string{e.store.Path(out.Outputs[0])})
	require.NoError(t, err)
	assert.Equal(t, out.Outputs[:1], again.Outputs)
	assert.Len(t, e.files(t), 2)
}

func TestImportRollsBackOnBadFile(t *testing.T) {
	e := newEnv(t, nil)
	dir := t.TempDir()
	good := filepath.Join(dir, "good.md")
	bad := filepath.Join(dir, "image.png")
	require.NoError(t, os.WriteFile(good, []byte("# Good\n"), 0o644))
	require.NoError(t, os.WriteFile(bad, []byte{0x89, 'P', 'N', 'G'}, 0o644))

	_, err := e.ctl.Import(context.Background(), []string{good, bad})
	require.Error(t, err)
	assert.Empty(t, e.files(t))
	assert.Empty(t, e.sel.Current())
}

func TestIsURL(t *testing.T) {
	assert.True(t, IsURL("https://example.com/x"))
	assert.True(t, IsURL("http://example.com"))
	assert.False(t, IsURL("notes/a.note.md"))
	assert.False(t, IsURL("ftp://example.com"))
	assert.False(t, IsURL("https://"))
}
