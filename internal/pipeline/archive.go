package pipeline

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/aidanlsb/kmd/internal/model"
	"github.com/aidanlsb/kmd/internal/store"
)

// Operation names for archive steps.
const (
	OpArchive   = "archive"
	OpUnarchive = "unarchive"
)

// Archive moves items out of their type folders. With no arguments the
// current selection is archived. Archived items leave the selection.
func (c *Controller) Archive(ctx context.Context, args []string) (*Outcome, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	start := time.Now()
	items, err := c.resolve(args)
	if err != nil {
		return nil, err
	}
	var paths []string
	for _, it := range items {
		if it.StorePath == "" {
			return nil, fmt.Errorf("%s: %w", it.URL, model.ErrNoStorePath)
		}
		paths = append(paths, it.StorePath)
	}
	if len(paths) == 0 {
		return nil, ErrNothingToDo
	}

	tx := &txn{store: c.store, log: c.log}
	var archived []string
	for _, p := range paths {
		if err := ctx.Err(); err != nil {
			tx.rollback()
			return nil, err
		}
		dest, err := tx.archive(p)
		if err != nil {
			tx.rollback()
			c.recordFailure(OpArchive, "", items, err, start)
			return nil, err
		}
		archived = append(archived, dest)
	}
	if err := c.selection.Remove(paths...); err != nil {
		tx.rollback()
		return nil, err
	}

	out := &Outcome{Operation: OpArchive, Inputs: paths, Outputs: []string{}, Archived: archived}
	c.finish(out, start)
	return out, nil
}

// Unarchive moves archived items back to their type folders and selects
// them. Each argument must name a file under the archive directory.
func (c *Controller) Unarchive(ctx context.Context, args []string) (*Outcome, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(args) == 0 {
		return nil, ErrNothingToDo
	}
	start := time.Now()

	var paths []string
	for _, arg := range args {
		p, err := c.store.Resolve(arg)
		if err != nil {
			return nil, err
		}
		if !strings.HasPrefix(p, store.ArchiveDir+"/") {
			return nil, fmt.Errorf("%s: %w", p, store.ErrNotArchived)
		}
		paths = append(paths, p)
	}
	paths = dedupe(paths)

	tx := &txn{store: c.store, log: c.log}
	var restored []string
	for _, p := range paths {
		if err := ctx.Err(); err != nil {
			tx.rollback()
			return nil, err
		}
		dest, err := tx.unarchive(p)
		if err != nil {
			tx.rollback()
			return nil, err
		}
		c.log.Debug("unarchived item", zap.String("from", p), zap.String("to", dest))
		restored = append(restored, dest)
	}
	if err := c.selection.Set(restored); err != nil {
		tx.rollback()
		return nil, err
	}

	out := &Outcome{Operation: OpUnarchive, Inputs: paths, Outputs: restored}
	c.finish(out, start)
	return out, nil
}
