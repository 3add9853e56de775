// Package index keeps a SQLite lookup table over the items in a workspace.
//
// The files are the source of truth; the index only answers questions that
// would otherwise need a full directory walk (which resource has this URL,
// what is in a folder) and can always be rebuilt from disk.
package index

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/aidanlsb/kmd/internal/model"
)

// Dir is the index directory relative to the workspace root.
const Dir = ".index"

var (
	// ErrNotFound indicates no indexed item matched.
	ErrNotFound = errors.New("item not found in index")
	// ErrIndexLocked indicates another process is rebuilding the index.
	ErrIndexLocked = errors.New("index is locked for rebuild")
)

// Database is the SQLite database handle.
type Database struct {
	db  *sql.DB
	dir string
}

// Entry is one indexed item.
type Entry struct {
	StorePath   string    `json:"store_path"`
	Type        string    `json:"type"`
	Format      string    `json:"format,omitempty"`
	Title       string    `json:"title,omitempty"`
	URL         string    `json:"url,omitempty"`
	Description string    `json:"description,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	ModifiedAt  time.Time `json:"modified_at"`
	DerivedFrom []string  `json:"derived_from,omitempty"`
	Archived    bool      `json:"archived,omitempty"`
}

// EntryFor builds the index row for a saved item.
func EntryFor(item *model.Item) Entry {
	return Entry{
		StorePath:   item.StorePath,
		Type:        string(item.Type),
		Format:      string(item.Format),
		Title:       item.Title,
		URL:         item.URL,
		Description: item.Description,
		CreatedAt:   item.CreatedAt,
		ModifiedAt:  item.ModifiedAt,
		DerivedFrom: item.Relations.DerivedFrom,
	}
}

// Open opens or creates the index under root/.index.
func Open(root string) (*Database, error) {
	dir := filepath.Join(root, Dir)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create %s directory: %w", Dir, err)
	}

	db, err := sql.Open("sqlite", filepath.Join(dir, "items.db"))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	d := &Database{db: db, dir: dir}
	if err := d.initialize(); err != nil {
		db.Close()
		return nil, err
	}
	return d, nil
}

// OpenInMemory opens an in-memory database (for testing).
func OpenInMemory() (*Database, error) {
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		return nil, err
	}
	// Each pooled connection would otherwise get its own empty memory database.
	db.SetMaxOpenConns(1)

	d := &Database{db: db}
	if err := d.initialize(); err != nil {
		db.Close()
		return nil, err
	}
	return d, nil
}

// Close closes the database.
func (d *Database) Close() error {
	return d.db.Close()
}

// CurrentDBVersion is the current database schema version.
const CurrentDBVersion = 1

func (d *Database) initialize() error {
	schema := `
		PRAGMA journal_mode = WAL;
		PRAGMA synchronous = NORMAL;
		PRAGMA busy_timeout = 5000;

		CREATE TABLE IF NOT EXISTS meta (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);

		CREATE TABLE IF NOT EXISTS items (
			store_path TEXT PRIMARY KEY,
			type TEXT NOT NULL,
			format TEXT,
			title TEXT,
			url TEXT,
			description TEXT,
			created_at TEXT,
			modified_at TEXT,
			derived_from TEXT NOT NULL DEFAULT '[]',
			archived INTEGER NOT NULL DEFAULT 0
		);

		CREATE INDEX IF NOT EXISTS idx_items_type ON items(type);
		CREATE INDEX IF NOT EXISTS idx_items_url ON items(url) WHERE url IS NOT NULL AND url != '';
	`
	if _, err := d.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to initialize database schema: %w", err)
	}

	_, err := d.db.Exec(`INSERT OR REPLACE INTO meta (key, value) VALUES ('version', ?)`,
		fmt.Sprintf("%d", CurrentDBVersion))
	if err != nil {
		return fmt.Errorf("failed to set database version: %w", err)
	}
	return nil
}

type execer interface {
	Exec(query string, args ...any) (sql.Result, error)
}

// Upsert inserts or replaces the row for e.StorePath.
func (d *Database) Upsert(e Entry) error {
	return upsert(d.db, e)
}

func upsert(x execer, e Entry) error {
	derived, err := json.Marshal(nonNil(e.DerivedFrom))
	if err != nil {
		return err
	}
	_, err = x.Exec(`
		INSERT OR REPLACE INTO items
			(store_path, type, format, title, url, description, created_at, modified_at, derived_from, archived)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.StorePath, e.Type, e.Format, e.Title, e.URL, e.Description,
		formatTime(e.CreatedAt), formatTime(e.ModifiedAt), string(derived), boolInt(e.Archived),
	)
	if err != nil {
		return fmt.Errorf("index %s: %w", e.StorePath, err)
	}
	return nil
}

// Remove deletes the row for a store path. Missing rows are not an error.
func (d *Database) Remove(storePath string) error {
	_, err := d.db.Exec(`DELETE FROM items WHERE store_path = ?`, storePath)
	return err
}

// Move re-keys a row after a file moved, e.g. into or out of the archive.
func (d *Database) Move(oldPath, newPath string, archived bool) error {
	res, err := d.db.Exec(`UPDATE items SET store_path = ?, archived = ? WHERE store_path = ?`,
		newPath, boolInt(archived), oldPath)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%s: %w", oldPath, ErrNotFound)
	}
	return nil
}

// Get returns the row for a store path.
func (d *Database) Get(storePath string) (*Entry, error) {
	entries, err := d.queryEntries(selectColumns+` WHERE store_path = ?`, storePath)
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return nil, fmt.Errorf("%s: %w", storePath, ErrNotFound)
	}
	return &entries[0], nil
}

// FindByURL returns the store path of the oldest live resource with this URL.
func (d *Database) FindByURL(url string) (string, error) {
	var path string
	err := d.db.QueryRow(`
		SELECT store_path FROM items
		WHERE url = ? AND type = ? AND archived = 0
		ORDER BY created_at, store_path
		LIMIT 1`, url, string(model.TypeResource)).Scan(&path)
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("%s: %w", url, ErrNotFound)
	}
	if err != nil {
		return "", err
	}
	return path, nil
}

// ListOptions filters List.
type ListOptions struct {
	Type            string
	IncludeArchived bool
	Limit           int
}

// List returns rows newest first.
func (d *Database) List(opts ListOptions) ([]Entry, error) {
	q := selectColumns + ` WHERE 1=1`
	var args []any
	if opts.Type != "" {
		q += ` AND type = ?`
		args = append(args, opts.Type)
	}
	if !opts.IncludeArchived {
		q += ` AND archived = 0`
	}
	q += ` ORDER BY modified_at DESC, store_path`
	if opts.Limit > 0 {
		q += ` LIMIT ?`
		args = append(args, opts.Limit)
	}
	return d.queryEntries(q, args...)
}

// Lookup returns the rows for the given store paths, in the given order.
// Paths with no row are skipped.
func (d *Database) Lookup(paths []string) ([]Entry, error) {
	in, args := inList(paths)
	entries, err := d.queryEntries(selectColumns+` WHERE store_path IN `+in, args...)
	if err != nil {
		return nil, err
	}
	byPath := make(map[string]Entry, len(entries))
	for _, e := range entries {
		byPath[e.StorePath] = e
	}
	out := make([]Entry, 0, len(paths))
	for _, p := range paths {
		if e, ok := byPath[p]; ok {
			out = append(out, e)
		}
	}
	return out, nil
}

// DerivedFrom returns the live items that list storePath as a source.
func (d *Database) DerivedFrom(storePath string) ([]Entry, error) {
	return d.queryEntries(selectColumns+`
		WHERE archived = 0 AND EXISTS (
			SELECT 1 FROM json_each(items.derived_from) WHERE json_each.value = ?
		)
		ORDER BY created_at`, storePath)
}

// Stats summarizes the index.
type Stats struct {
	ItemCount     int            `json:"item_count"`
	ArchivedCount int            `json:"archived_count"`
	ByType        map[string]int `json:"by_type"`
}

// Stats returns item counts.
func (d *Database) Stats() (*Stats, error) {
	rows, err := d.db.Query(`SELECT type, archived, COUNT(*) FROM items GROUP BY type, archived`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	s := &Stats{ByType: map[string]int{}}
	for rows.Next() {
		var typ string
		var archived, n int
		if err := rows.Scan(&typ, &archived, &n); err != nil {
			return nil, err
		}
		if archived != 0 {
			s.ArchivedCount += n
			continue
		}
		s.ItemCount += n
		s.ByType[typ] += n
	}
	return s, rows.Err()
}

// Rebuild replaces the whole table with entries. It takes a file lock so
// two processes do not rebuild at once.
func (d *Database) Rebuild(entries []Entry) error {
	if d.dir != "" {
		unlock, err := lockRebuild(filepath.Join(d.dir, lockFile), lockWait)
		if err != nil {
			return err
		}
		defer unlock()
	}

	tx, err := d.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM items`); err != nil {
		return fmt.Errorf("clear index: %w", err)
	}
	for _, e := range entries {
		if err := upsert(tx, e); err != nil {
			return err
		}
	}
	return tx.Commit()
}

const selectColumns = `
	SELECT store_path, type, format, title, url, description, created_at, modified_at, derived_from, archived
	FROM items`

func scanEntry(rows *sql.Rows) (Entry, error) {
	var e Entry
	var format, title, url, desc, created, modified sql.NullString
	var derived string
	var archived int
	if err := rows.Scan(&e.StorePath, &e.Type, &format, &title, &url, &desc, &created, &modified, &derived, &archived); err != nil {
		return Entry{}, err
	}
	e.Format = format.String
	e.Title = title.String
	e.URL = url.String
	e.Description = desc.String
	e.CreatedAt = parseTime(created.String)
	e.ModifiedAt = parseTime(modified.String)
	e.Archived = archived != 0
	if derived != "" {
		if err := json.Unmarshal([]byte(derived), &e.DerivedFrom); err != nil {
			return Entry{}, fmt.Errorf("decode derived_from for %s: %w", e.StorePath, err)
		}
	}
	if len(e.DerivedFrom) == 0 {
		e.DerivedFrom = nil
	}
	return e, nil
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
