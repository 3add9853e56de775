package store

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"go.uber.org/zap"

	"github.com/aidanlsb/kmd/internal/atomicfile"
	"github.com/aidanlsb/kmd/internal/index"
	"github.com/aidanlsb/kmd/internal/slugs"
)

// Archive moves a live item under .archive/, keeping its folder and name.
// It returns the new store path.
func (s *Store) Archive(storePath string) (string, error) {
	if strings.HasPrefix(storePath, ArchiveDir+"/") {
		return storePath, nil
	}
	folder, name := splitStorePath(storePath)

	s.mu.Lock()
	defer s.mu.Unlock()

	dest := s.freeNameLocked(ArchiveDir+"/"+folder, name, func(stem string) bool {
		return s.existsAnySuffix(ArchiveDir+"/"+folder, stem)
	})
	if err := atomicfile.Move(s.Path(storePath), s.Path(dest)); err != nil {
		return "", fmt.Errorf("archive %s: %w", storePath, err)
	}
	if stems, ok := s.taken[folder]; ok {
		delete(stems, slugs.StemOf(name))
	}
	s.cache.Remove(storePath)
	s.moveIndexed(storePath, dest, true)
	s.log.Info("archived item", zap.String("from", storePath), zap.String("to", dest))
	return dest, nil
}

// Unarchive moves an archived item back to its type folder, choosing a new
// name if the original is taken. It returns the new store path.
func (s *Store) Unarchive(archivedPath string) (string, error) {
	if !strings.HasPrefix(archivedPath, ArchiveDir+"/") {
		return "", fmt.Errorf("%s: %w", archivedPath, ErrNotArchived)
	}
	folder, name := splitStorePath(archivedPath)

	s.mu.Lock()
	defer s.mu.Unlock()

	dest := s.freeNameLocked(folder, name, s.takenIn(folder))
	if err := atomicfile.Move(s.Path(archivedPath), s.Path(dest)); err != nil {
		return "", fmt.Errorf("unarchive %s: %w", archivedPath, err)
	}
	_, destName := splitStorePath(dest)
	s.markTakenLocked(folder, slugs.StemOf(destName))
	s.cache.Remove(archivedPath)
	s.moveIndexed(archivedPath, dest, false)
	s.log.Info("unarchived item", zap.String("from", archivedPath), zap.String("to", dest))
	return dest, nil
}

// freeNameLocked returns dir/name, or dir/<stem>_N<suffix> if the stem is taken.
func (s *Store) freeNameLocked(dir, name string, taken func(string) bool) string {
	stem := slugs.StemOf(name)
	suffix := strings.TrimPrefix(name, stem)
	return dir + "/" + slugs.Unique(stem, taken) + suffix
}

func (s *Store) existsAnySuffix(dir, stem string) bool {
	entries, err := os.ReadDir(s.Path(dir))
	if err != nil {
		return false
	}
	for _, e := range entries {
		if slugs.StemOf(e.Name()) == stem {
			return true
		}
	}
	return false
}

func (s *Store) moveIndexed(from, to string, archived bool) {
	if s.index == nil {
		return
	}
	if err := s.index.Move(from, to, archived); err != nil && !errors.Is(err, index.ErrNotFound) {
		s.log.Warn("index move failed", zap.String("from", from), zap.Error(err))
	}
}

// Snapshot captures a file's current bytes so a failed multi-file operation
// can put it back.
type Snapshot struct {
	StorePath string
	data      []byte
	existed   bool
}

// Snapshot records the current state of storePath (which may not exist).
func (s *Store) Snapshot(storePath string) (*Snapshot, error) {
	data, err := os.ReadFile(s.Path(storePath))
	if errors.Is(err, os.ErrNotExist) {
		return &Snapshot{StorePath: storePath}, nil
	}
	if err != nil {
		return nil, err
	}
	return &Snapshot{StorePath: storePath, data: data, existed: true}, nil
}

// Restore puts a snapshotted file back as it was, removing it if it did not
// exist at snapshot time.
func (s *Store) Restore(snap *Snapshot) error {
	if !snap.existed {
		return s.Discard(snap.StorePath)
	}
	if err := atomicfile.WriteFile(s.Path(snap.StorePath), snap.data, 0); err != nil {
		return err
	}
	s.cache.Remove(snap.StorePath)
	if s.index != nil {
		if item, err := s.Load(snap.StorePath); err == nil {
			s.indexItem(item)
		}
	}
	return nil
}

// Discard deletes a file written by a step that is being rolled back and
// frees its slug.
func (s *Store) Discard(storePath string) error {
	if err := os.Remove(s.Path(storePath)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	s.mu.Lock()
	delete(s.reserved, storePath)
	if !strings.HasPrefix(storePath, ArchiveDir+"/") {
		folder, name := splitStorePath(storePath)
		if stems, ok := s.taken[folder]; ok {
			delete(stems, slugs.StemOf(name))
		}
	}
	s.mu.Unlock()
	s.cache.Remove(storePath)
	if s.index != nil {
		if err := s.index.Remove(storePath); err != nil {
			s.log.Warn("index remove failed", zap.String("path", storePath), zap.Error(err))
		}
	}
	return nil
}

// Reindex rebuilds the index from the files on disk. Unreadable files are
// skipped and reported.
func (s *Store) Reindex() (indexed int, skipped []string, err error) {
	if s.index == nil {
		return 0, nil, errors.New("store has no index")
	}

	live, err := s.List()
	if err != nil {
		return 0, nil, err
	}
	archived, err := s.listArchived()
	if err != nil {
		return 0, nil, err
	}

	var entries []index.Entry
	for _, group := range []struct {
		paths    []string
		archived bool
	}{{live, false}, {archived, true}} {
		for _, p := range group.paths {
			item, err := s.Load(p)
			if err != nil {
				s.log.Warn("skipping unreadable item", zap.String("path", p), zap.Error(err))
				skipped = append(skipped, p)
				continue
			}
			e := index.EntryFor(item)
			e.Archived = group.archived
			entries = append(entries, e)
		}
	}
	if err := s.index.Rebuild(entries); err != nil {
		return 0, skipped, err
	}
	return len(entries), skipped, nil
}

func (s *Store) listArchived() ([]string, error) {
	var out []string
	for folder := range s.taken {
		entries, err := os.ReadDir(s.Path(ArchiveDir + "/" + folder))
		if errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, err
		}
		for _, e := range entries {
			if !e.IsDir() && !strings.HasPrefix(e.Name(), ".") {
				out = append(out, ArchiveDir+"/"+folder+"/"+e.Name())
			}
		}
	}
	return out, nil
}
