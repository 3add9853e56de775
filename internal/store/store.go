// Package store persists items as files in a workspace directory, one folder
// per item type, with collision-free slugged filenames.
package store

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"

	"github.com/aidanlsb/kmd/internal/atomicfile"
	"github.com/aidanlsb/kmd/internal/frontmatter"
	"github.com/aidanlsb/kmd/internal/index"
	"github.com/aidanlsb/kmd/internal/model"
	"github.com/aidanlsb/kmd/internal/slugs"
	"github.com/aidanlsb/kmd/internal/textnorm"
)

// ArchiveDir holds archived items, mirroring the type folders.
const ArchiveDir = ".archive"

// maxCreateAttempts bounds slug re-allocation when another writer keeps
// claiming the chosen filename.
const maxCreateAttempts = 16

var (
	ErrMissingMetadata = errors.New("item file has no metadata header")
	ErrSlugCollision   = errors.New("could not allocate a unique filename")
	ErrNotInWorkspace  = errors.New("path is outside the workspace")
	ErrBinaryItem      = errors.New("binary item has no external payload")
	ErrNotArchived     = errors.New("item is not archived")
)

// Options configures a Store.
type Options struct {
	// Index receives a row for every saved item. Optional.
	Index *index.Database
	// Logger defaults to a no-op logger.
	Logger *zap.Logger
	// CacheSize bounds the number of loaded items kept in memory.
	CacheSize int
}

type cachedItem struct {
	modTime time.Time
	size    int64
	item    *model.Item
}

// Store is safe for concurrent use. One mutex guards slug allocation and
// reservations; file writes themselves are atomic renames.
type Store struct {
	root  string
	index *index.Database
	log   *zap.Logger
	cache *lru.Cache[string, cachedItem]

	mu       sync.Mutex
	taken    map[string]map[string]struct{} // folder -> slug stems in use
	reserved map[string]struct{}            // store paths allocated but not written
}

// Open scans root and returns a store for it.
func Open(root string, opts Options) (*Store, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.CacheSize <= 0 {
		opts.CacheSize = 512
	}
	cache, err := lru.New[string, cachedItem](opts.CacheSize)
	if err != nil {
		return nil, err
	}

	s := &Store{
		root:     abs,
		index:    opts.Index,
		log:      opts.Logger,
		cache:    cache,
		taken:    map[string]map[string]struct{}{},
		reserved: map[string]struct{}{},
	}
	for _, t := range model.ItemTypes {
		folder := t.Folder()
		if err := os.MkdirAll(filepath.Join(abs, folder), 0o755); err != nil {
			return nil, fmt.Errorf("create %s: %w", folder, err)
		}
		stems, err := s.scanStems(folder)
		if err != nil {
			return nil, err
		}
		s.taken[folder] = stems
	}
	return s, nil
}

// Root returns the absolute workspace directory.
func (s *Store) Root() string { return s.root }

// Path converts a store path to an absolute filesystem path.
func (s *Store) Path(storePath string) string {
	return filepath.Join(s.root, filepath.FromSlash(storePath))
}

func (s *Store) scanStems(folder string) (map[string]struct{}, error) {
	stems := map[string]struct{}{}
	entries, err := os.ReadDir(filepath.Join(s.root, folder))
	if err != nil {
		return nil, fmt.Errorf("scan %s: %w", folder, err)
	}
	for _, e := range entries {
		if e.IsDir() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		stems[slugs.StemOf(e.Name())] = struct{}{}
	}
	return stems, nil
}

// PathFor returns the workspace root and the store path an item would be
// saved to. An item that already has a store path keeps it. Nothing is
// reserved.
func (s *Store) PathFor(item *model.Item) (baseDir, rel string, err error) {
	if item.StorePath != "" {
		return s.root, item.StorePath, nil
	}
	if !item.Type.Valid() {
		return "", "", fmt.Errorf("%w: %q", model.ErrUnknownItemType, item.Type)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	folder := item.Type.Folder()
	stem := slugs.For(item, s.takenIn(folder))
	return s.root, folder + "/" + slugs.Filename(stem, item), nil
}

// Reserve allocates a new store path for item without writing anything.
// The slug stays taken until the item is saved or the path is released.
func (s *Store) Reserve(item *model.Item) (string, error) {
	if !item.Type.Valid() {
		return "", fmt.Errorf("%w: %q", model.ErrUnknownItemType, item.Type)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.allocateLocked(item), nil
}

// Release frees a reserved path that was never written.
func (s *Store) Release(storePath string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.releaseLocked(storePath)
}

func (s *Store) releaseLocked(storePath string) {
	if _, ok := s.reserved[storePath]; !ok {
		return
	}
	delete(s.reserved, storePath)
	folder, name := splitStorePath(storePath)
	if stems, ok := s.taken[folder]; ok {
		delete(stems, slugs.StemOf(name))
	}
}

// IsReserved reports whether storePath is allocated but not yet written.
func (s *Store) IsReserved(storePath string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.reserved[storePath]
	return ok
}

func (s *Store) allocateLocked(item *model.Item) string {
	folder := item.Type.Folder()
	stem := slugs.For(item, s.takenIn(folder))
	s.markTakenLocked(folder, stem)
	path := folder + "/" + slugs.Filename(stem, item)
	s.reserved[path] = struct{}{}
	return path
}

func (s *Store) takenIn(folder string) func(string) bool {
	stems := s.taken[folder]
	return func(stem string) bool {
		_, ok := stems[stem]
		return ok
	}
}

func (s *Store) markTakenLocked(folder, stem string) {
	stems, ok := s.taken[folder]
	if !ok {
		stems = map[string]struct{}{}
		s.taken[folder] = stems
	}
	stems[stem] = struct{}{}
}

// Save validates and writes item. Save takes ownership of item: on success
// the item describes the saved file, with its StorePath, missing timestamps
// filled in, the normalized body for text items and the stored file as the
// external path for binary items. Callers that need the unsaved item pass a
// Clone.
//
// An item with an existing store path is overwritten in place. A reserved
// or new item is created exclusively; if another writer claimed the name
// first, a fresh slug is allocated.
func (s *Store) Save(item *model.Item) (string, error) {
	if err := item.Validate(); err != nil {
		return "", err
	}
	if item.CreatedAt.IsZero() {
		item.CreatedAt = model.Now()
	}
	if item.ModifiedAt.IsZero() {
		item.ModifiedAt = item.CreatedAt
	}

	var (
		path string
		err  error
	)
	if item.IsText() {
		path, err = s.saveText(item)
	} else {
		path, err = s.saveBinary(item)
	}
	if err != nil {
		return "", err
	}

	item.StorePath = path
	if !strings.HasPrefix(path, ArchiveDir+"/") {
		folder, name := splitStorePath(path)
		s.mu.Lock()
		s.markTakenLocked(folder, slugs.StemOf(name))
		s.mu.Unlock()
	}
	s.cache.Remove(path)
	s.indexItem(item)
	s.log.Debug("saved item", zap.String("path", path), zap.String("type", string(item.Type)))
	return path, nil
}

func (s *Store) saveText(item *model.Item) (string, error) {
	item.Body = textnorm.Body(item.Body, item.Format)
	data, err := frontmatter.Encode(item.Body, item.Metadata(), frontmatter.Options{
		Style:    StyleFor(item.Ext()),
		KeyOrder: model.KeyOrder,
	})
	if err != nil {
		return "", err
	}

	if item.StorePath != "" && !s.IsReserved(item.StorePath) {
		if err := atomicfile.WriteFile(s.Path(item.StorePath), data, 0o644); err != nil {
			return "", &frontmatter.FileError{Path: item.StorePath, Err: err}
		}
		return item.StorePath, nil
	}

	return s.createExclusive(item, func(abs string) error {
		return atomicfile.CreateNew(abs, data, 0o644)
	})
}

// createExclusive writes a new file, trying the reserved path first.
func (s *Store) createExclusive(item *model.Item, create func(abs string) error) (string, error) {
	path := item.StorePath
	for attempt := 0; attempt < maxCreateAttempts; attempt++ {
		if path == "" {
			s.mu.Lock()
			path = s.allocateLocked(item)
			s.mu.Unlock()
		}
		err := create(s.Path(path))
		if err == nil {
			s.mu.Lock()
			delete(s.reserved, path)
			s.mu.Unlock()
			return path, nil
		}
		if !errors.Is(err, os.ErrExist) {
			s.Release(path)
			return "", &frontmatter.FileError{Path: path, Err: err}
		}
		// Someone else owns this name on disk: keep the stem taken, drop the
		// reservation and try the next one.
		s.mu.Lock()
		delete(s.reserved, path)
		s.mu.Unlock()
		s.log.Info("slug collision, reallocating", zap.String("path", path))
		path = ""
	}
	return "", fmt.Errorf("%s: %w", item.SlugSource(), ErrSlugCollision)
}

func (s *Store) saveBinary(item *model.Item) (string, error) {
	if item.ExternalPath == "" {
		return "", fmt.Errorf("%s: %w", item.SlugSource(), ErrBinaryItem)
	}
	src, err := filepath.Abs(item.ExternalPath)
	if err != nil {
		return "", err
	}

	if item.StorePath != "" && !s.IsReserved(item.StorePath) {
		dst := s.Path(item.StorePath)
		if src != dst {
			if err := atomicfile.CopyFile(src, dst); err != nil {
				return "", &frontmatter.FileError{Path: item.StorePath, Err: err}
			}
		}
		item.ExternalPath = dst
		return item.StorePath, nil
	}

	path, err := s.createExclusive(item, func(abs string) error {
		if _, err := os.Lstat(abs); err == nil {
			return os.ErrExist
		}
		if src == abs {
			return nil
		}
		return atomicfile.CopyFile(src, abs)
	})
	if err != nil {
		return "", err
	}
	item.ExternalPath = s.Path(path)
	return path, nil
}

func (s *Store) indexItem(item *model.Item) {
	if s.index == nil {
		return
	}
	if err := s.index.Upsert(index.EntryFor(item)); err != nil {
		s.log.Warn("index update failed", zap.String("path", item.StorePath), zap.Error(err))
	}
}

// StyleFor returns the header style used for files with the given extension.
func StyleFor(ext model.FileExt) frontmatter.Style {
	switch ext {
	case model.ExtHTML:
		return frontmatter.StyleHTML
	case model.ExtPython:
		return frontmatter.StyleHash
	default:
		return frontmatter.StyleYAML
	}
}

// Load reads the item at storePath. Archived paths are accepted.
func (s *Store) Load(storePath string) (*model.Item, error) {
	storePath = filepath.ToSlash(filepath.Clean(storePath))
	folder, name := splitStorePath(storePath)
	typ, err := model.TypeForFolder(folder)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", storePath, err)
	}

	abs := s.Path(storePath)
	st, err := os.Stat(abs)
	if err != nil {
		return nil, err
	}
	if c, ok := s.cache.Get(storePath); ok && c.modTime.Equal(st.ModTime()) && c.size == st.Size() {
		return c.item.Clone(), nil
	}

	ext, extErr := model.ParseFileExt(filepath.Ext(name))
	var item *model.Item
	if extErr == nil && !ext.IsText() {
		item = s.binaryItem(storePath, typ, ext, st)
	} else {
		item, err = s.loadText(storePath, abs, typ)
		if err != nil {
			return nil, err
		}
		if extErr == nil && item.Ext() != ext {
			item.FileExt = ext
		}
	}
	item.StorePath = storePath

	s.cache.Add(storePath, cachedItem{modTime: st.ModTime(), size: st.Size(), item: item.Clone()})
	return item, nil
}

func (s *Store) loadText(storePath, abs string, typ model.ItemType) (*model.Item, error) {
	body, meta, err := frontmatter.Read(abs)
	if err != nil {
		return nil, err
	}
	if len(meta) == 0 {
		return nil, &frontmatter.FileError{Path: storePath, Err: ErrMissingMetadata}
	}
	item, err := model.FromMetadata(meta, body)
	if err != nil {
		return nil, &frontmatter.FileError{Path: storePath, Err: err}
	}
	if item.Type != typ {
		if item.Type != "" {
			s.log.Warn("item type does not match folder",
				zap.String("path", storePath),
				zap.String("header_type", string(item.Type)))
		}
		item.Type = typ
	}
	return item, nil
}

// binaryItem describes a stored binary file. Its metadata lives only in the
// index, so fields beyond type and extension are best-effort.
func (s *Store) binaryItem(storePath string, typ model.ItemType, ext model.FileExt, st fs.FileInfo) *model.Item {
	item := &model.Item{
		Type:         typ,
		Format:       model.FormatForExt(ext),
		FileExt:      ext,
		IsBinary:     true,
		ExternalPath: s.Path(storePath),
		CreatedAt:    st.ModTime().UTC(),
		ModifiedAt:   st.ModTime().UTC(),
	}
	if s.index != nil {
		if e, err := s.index.Get(storePath); err == nil {
			item.Title = e.Title
			item.URL = e.URL
			item.Description = e.Description
			item.Relations.DerivedFrom = e.DerivedFrom
			if !e.CreatedAt.IsZero() {
				item.CreatedAt = e.CreatedAt
			}
		}
	}
	return item
}

// Exists reports whether a file is present at storePath.
func (s *Store) Exists(storePath string) bool {
	_, err := os.Stat(s.Path(storePath))
	return err == nil
}

// List returns the store paths of live items of the given types (all types
// when none are given), sorted.
func (s *Store) List(types ...model.ItemType) ([]string, error) {
	if len(types) == 0 {
		types = model.ItemTypes
	}
	var out []string
	for _, t := range types {
		entries, err := os.ReadDir(filepath.Join(s.root, t.Folder()))
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				continue
			}
			return nil, err
		}
		for _, e := range entries {
			if e.IsDir() || strings.HasPrefix(e.Name(), ".") {
				continue
			}
			out = append(out, t.Folder()+"/"+e.Name())
		}
	}
	slices.Sort(out)
	return out, nil
}

// Resolve maps a user-supplied path (store-relative, or a filesystem path
// inside the workspace) to a store path of an existing file.
func (s *Store) Resolve(arg string) (string, error) {
	candidates := []string{}
	if filepath.IsAbs(arg) {
		candidates = append(candidates, arg)
	} else {
		candidates = append(candidates, s.Path(arg))
		if abs, err := filepath.Abs(arg); err == nil {
			candidates = append(candidates, abs)
		}
	}
	var inside bool
	for _, abs := range candidates {
		rel, err := filepath.Rel(s.root, abs)
		if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
			continue
		}
		inside = true
		if _, err := os.Stat(abs); err == nil {
			return filepath.ToSlash(rel), nil
		}
	}
	if !inside {
		return "", fmt.Errorf("%s: %w", arg, ErrNotInWorkspace)
	}
	return "", fmt.Errorf("%s: %w", arg, os.ErrNotExist)
}

// FindByURL returns the store path of the existing resource with this URL.
func (s *Store) FindByURL(url string) (string, bool) {
	if s.index != nil {
		if path, err := s.index.FindByURL(url); err == nil && s.Exists(path) {
			return path, true
		}
		return "", false
	}
	paths, err := s.List(model.TypeResource)
	if err != nil {
		return "", false
	}
	for _, p := range paths {
		if item, err := s.Load(p); err == nil && item.URL == url {
			return p, true
		}
	}
	return "", false
}

func splitStorePath(storePath string) (folder, name string) {
	storePath = strings.TrimPrefix(storePath, ArchiveDir+"/")
	folder, name, _ = strings.Cut(storePath, "/")
	return folder, name
}
