package pipeline

import (
	"go.uber.org/zap"

	"github.com/aidanlsb/kmd/internal/model"
	"github.com/aidanlsb/kmd/internal/store"
)

// txn records every file a commit touches so a failed commit can be undone.
type txn struct {
	store *store.Store
	log   *zap.Logger

	snaps    []*store.Snapshot
	created  []string
	archived [][2]string
	restored [][2]string
}

// save writes item, snapshotting the file first when it overwrites one.
func (t *txn) save(item *model.Item) (string, error) {
	if item.StorePath != "" && !t.store.IsReserved(item.StorePath) {
		snap, err := t.store.Snapshot(item.StorePath)
		if err != nil {
			return "", err
		}
		path, err := t.store.Save(item)
		if err != nil {
			return "", err
		}
		t.snaps = append(t.snaps, snap)
		return path, nil
	}
	path, err := t.store.Save(item)
	if err != nil {
		return "", err
	}
	t.created = append(t.created, path)
	return path, nil
}

func (t *txn) archive(storePath string) (string, error) {
	dest, err := t.store.Archive(storePath)
	if err != nil {
		return "", err
	}
	t.archived = append(t.archived, [2]string{storePath, dest})
	return dest, nil
}

func (t *txn) unarchive(archivedPath string) (string, error) {
	dest, err := t.store.Unarchive(archivedPath)
	if err != nil {
		return "", err
	}
	t.restored = append(t.restored, [2]string{archivedPath, dest})
	return dest, nil
}

// rollback undoes the commit in reverse order. Failures are logged; there is
// nothing more useful to do with them.
func (t *txn) rollback() {
	for i := len(t.restored) - 1; i >= 0; i-- {
		if _, err := t.store.Archive(t.restored[i][1]); err != nil {
			t.log.Error("rollback: re-archive failed", zap.String("path", t.restored[i][1]), zap.Error(err))
		}
	}
	for i := len(t.archived) - 1; i >= 0; i-- {
		from, to := t.archived[i][0], t.archived[i][1]
		back, err := t.store.Unarchive(to)
		if err != nil {
			t.log.Error("rollback: unarchive failed", zap.String("path", to), zap.Error(err))
			continue
		}
		if back != from {
			t.log.Warn("rollback: item restored under a new name", zap.String("was", from), zap.String("now", back))
		}
	}
	for i := len(t.created) - 1; i >= 0; i-- {
		if err := t.store.Discard(t.created[i]); err != nil {
			t.log.Error("rollback: discard failed", zap.String("path", t.created[i]), zap.Error(err))
		}
	}
	for i := len(t.snaps) - 1; i >= 0; i-- {
		if err := t.store.Restore(t.snaps[i]); err != nil {
			t.log.Error("rollback: restore failed", zap.String("path", t.snaps[i].StorePath), zap.Error(err))
		}
	}
	if n := len(t.restored) + len(t.archived) + len(t.created) + len(t.snaps); n > 0 {
		t.log.Info("rolled back commit", zap.Int("files", n))
	}
}
