package index

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTest(t *testing.T) *Database {
	t.Helper()
	db, err := OpenInMemory()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func entry(path, typ, url string, created time.Time) Entry {
	return Entry{StorePath: path, Type: typ, Format: "url", URL: url, CreatedAt: created, ModifiedAt: created}
}

func TestUpsertAndGet(t *testing.T) {
	db := openTest(t)
	now := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)

	e := entry("resources/a.resource.md", "resource", "https://a.example/", now)
	e.Title = "A"
	e.DerivedFrom = []string{"notes/x.note.md"}
	require.NoError(t, db.Upsert(e))

	got, err := db.Get(e.StorePath)
	require.NoError(t, err)
	assert.Equal(t, e, *got)

	e.Title = "A2"
	require.NoError(t, db.Upsert(e))
	got, err = db.Get(e.StorePath)
	require.NoError(t, err)
	assert.Equal(t, "A2", got.Title)

	_, err = db.Get("missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestFindByURL(t *testing.T) {
	db := openTest(t)
	t0 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	require.NoError(t, db.Upsert(entry("resources/b.resource.md", "resource", "https://x.example/", t0.Add(time.Hour))))
	require.NoError(t, db.Upsert(entry("resources/a.resource.md", "resource", "https://x.example/", t0)))
	require.NoError(t, db.Upsert(entry("notes/n.note.md", "note", "https://y.example/", t0)))

	path, err := db.FindByURL("https://x.example/")
	require.NoError(t, err)
	assert.Equal(t, "resources/a.resource.md", path)

	_, err = db.FindByURL("https://y.example/")
	assert.ErrorIs(t, err, ErrNotFound, "only resources carry URL identity")

	require.NoError(t, db.Move("resources/a.resource.md", ".archive/resources/a.resource.md", true))
	path, err = db.FindByURL("https://x.example/")
	require.NoError(t, err)
	assert.Equal(t, "resources/b.resource.md", path)
}

func TestListAndStats(t *testing.T) {
	db := openTest(t)
	t0 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	require.NoError(t, db.Upsert(entry("notes/a.note.md", "note", "", t0)))
	require.NoError(t, db.Upsert(entry("notes/b.note.md", "note", "", t0.Add(time.Minute))))
	require.NoError(t, db.Upsert(entry("resources/r.resource.md", "resource", "https://r.example/", t0)))
	require.NoError(t, db.Move("resources/r.resource.md", ".archive/resources/r.resource.md", true))

	notes, err := db.List(ListOptions{Type: "note"})
	require.NoError(t, err)
	require.Len(t, notes, 2)
	assert.Equal(t, "notes/b.note.md", notes[0].StorePath, "newest first")

	all, err := db.List(ListOptions{IncludeArchived: true})
	require.NoError(t, err)
	assert.Len(t, all, 3)

	stats, err := db.Stats()
	require.NoError(t, err)
	assert.Equal(t, 2, stats.ItemCount)
	assert.Equal(t, 1, stats.ArchivedCount)
	assert.Equal(t, 2, stats.ByType["note"])
}

func TestLookupPreservesOrder(t *testing.T) {
	db := openTest(t)
	t0 := time.Now().UTC()
	require.NoError(t, db.Upsert(entry("notes/a.note.md", "note", "", t0)))
	require.NoError(t, db.Upsert(entry("notes/b.note.md", "note", "", t0)))

	got, err := db.Lookup([]string{"notes/b.note.md", "missing", "notes/a.note.md"})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "notes/b.note.md", got[0].StorePath)
	assert.Equal(t, "notes/a.note.md", got[1].StorePath)
}

func TestDerivedFrom(t *testing.T) {
	db := openTest(t)
	t0 := time.Now().UTC()
	child := entry("notes/c.note.md", "note", "", t0)
	child.DerivedFrom = []string{"resources/r.resource.md"}
	require.NoError(t, db.Upsert(child))
	require.NoError(t, db.Upsert(entry("notes/d.note.md", "note", "", t0)))

	got, err := db.DerivedFrom("resources/r.resource.md")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "notes/c.note.md", got[0].StorePath)
}

func TestRebuildReplacesRows(t *testing.T) {
	dir := t.TempDir()
	db, err := Open(dir)
	require.NoError(t, err)
	defer db.Close()

	t0 := time.Now().UTC()
	require.NoError(t, db.Upsert(entry("notes/stale.note.md", "note", "", t0)))
	require.NoError(t, db.Rebuild([]Entry{entry("notes/fresh.note.md", "note", "", t0)}))

	all, err := db.List(ListOptions{IncludeArchived: true})
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, "notes/fresh.note.md", all[0].StorePath)
}
