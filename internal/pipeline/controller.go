// Package pipeline runs actions against a workspace: it resolves inputs,
// checks them, runs the action and commits the result as one step that
// either fully lands (files, selection, history) or leaves nothing behind.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/aidanlsb/kmd/internal/action"
	"github.com/aidanlsb/kmd/internal/frontmatter"
	"github.com/aidanlsb/kmd/internal/history"
	"github.com/aidanlsb/kmd/internal/model"
	"github.com/aidanlsb/kmd/internal/selection"
	"github.com/aidanlsb/kmd/internal/store"
)

// Operation names recorded in history.
const (
	OpRun    = "run"
	OpAdd    = "add"
	OpImport = "import"
)

var (
	ErrNotURL        = errors.New("not an http(s) URL")
	ErrNoFetcher     = errors.New("no resource fetcher configured")
	ErrNothingToDo   = errors.New("no inputs given")
	ErrDirectoryArgs = errors.New("directories cannot be imported")
)

// ResourceFetcher turns a URL into an unsaved resource item.
type ResourceFetcher interface {
	FetchResource(ctx context.Context, url string) (*model.Item, error)
}

// Options configures a Controller. Store, Selection and Registry are
// required.
type Options struct {
	Store     *store.Store
	Selection *selection.History
	History   *history.Log
	Registry  *action.Registry
	Resources ResourceFetcher
	// TempDir is where actions leave files for the store to copy in. Such
	// files are removed once the step finishes.
	TempDir string
	Logger  *zap.Logger
}

// Controller serializes steps within a process.
type Controller struct {
	store     *store.Store
	selection *selection.History
	history   *history.Log
	registry  *action.Registry
	resources ResourceFetcher
	tempDir   string
	log       *zap.Logger

	mu sync.Mutex
}

// New returns a controller.
func New(opts Options) *Controller {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &Controller{
		store:     opts.Store,
		selection: opts.Selection,
		history:   opts.History,
		registry:  opts.Registry,
		resources: opts.Resources,
		tempDir:   opts.TempDir,
		log:       opts.Logger,
	}
}

// Outcome describes a committed step.
type Outcome struct {
	Operation string        `json:"operation"`
	Action    string        `json:"action,omitempty"`
	Inputs    []string      `json:"inputs,omitempty"`
	Outputs   []string      `json:"outputs"`
	Archived  []string      `json:"archived,omitempty"`
	Terminal  bool          `json:"terminal,omitempty"`
	HistoryID string        `json:"history_id,omitempty"`
	Items     []*model.Item `json:"-"`
	Duration  time.Duration `json:"-"`
}

// IsURL reports whether s is an absolute http or https URL.
func IsURL(s string) bool {
	u, err := url.Parse(s)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

// Resolve maps arguments to items. Arguments are store paths, filesystem
// paths inside the workspace, or URLs; a URL resolves to the saved resource
// with that URL or else to a staged resource with no store path. With no
// arguments the current selection is used.
func (c *Controller) Resolve(args []string) ([]*model.Item, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.resolve(args)
}

func (c *Controller) resolve(args []string) ([]*model.Item, error) {
	if len(args) == 0 {
		var items []*model.Item
		for _, p := range c.selection.Current() {
			it, err := c.store.Load(p)
			if err != nil {
				return nil, fmt.Errorf("selection: %w", err)
			}
			items = append(items, it)
		}
		return items, nil
	}

	seen := make(map[string]bool, len(args))
	items := make([]*model.Item, 0, len(args))
	for _, arg := range args {
		it, err := c.resolveArg(arg)
		if err != nil {
			return nil, err
		}
		key := it.StorePath
		if key == "" {
			key = it.URL
		}
		if seen[key] {
			continue
		}
		seen[key] = true
		items = append(items, it)
	}
	return items, nil
}

func (c *Controller) resolveArg(arg string) (*model.Item, error) {
	if IsURL(arg) {
		if path, ok := c.store.FindByURL(arg); ok {
			return c.store.Load(path)
		}
		it := model.New(model.TypeResource, model.FormatURL)
		it.URL = arg
		return it, nil
	}
	path, err := c.store.Resolve(arg)
	if err != nil {
		return nil, err
	}
	return c.store.Load(path)
}

// Run resolves args, runs the named action and commits its result. Nothing
// is written when the inputs fail the action's checks or the action fails.
func (c *Controller) Run(ctx context.Context, name string, args []string) (*Outcome, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	start := time.Now()
	a, err := c.registry.Lookup(name)
	if err != nil {
		return nil, err
	}
	spec := a.Spec()

	inputs, err := c.resolve(args)
	if err != nil {
		return nil, err
	}
	if err := action.CheckInputs(spec, inputs); err != nil {
		return nil, err
	}

	staged, err := c.stage(inputs)
	if err != nil {
		return nil, err
	}
	defer c.releaseStaged(staged)

	log := c.log.With(zap.String("action", name))
	log.Info("running action", zap.Int("inputs", len(inputs)))

	res, err := a.Run(ctx, inputs)
	if err == nil && res == nil {
		res = &action.Result{}
	}
	if err != nil {
		c.recordFailure(OpRun, name, inputs, err, start)
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	defer c.removeTemp(c.tempFiles(append(slices.Clone(res.Items), res.Intermediate...)))

	out, err := c.commit(spec, inputs, staged, res)
	if err != nil {
		c.recordFailure(OpRun, name, inputs, err, start)
		return nil, fmt.Errorf("%s: commit: %w", name, err)
	}
	out.Operation = OpRun
	out.Action = name
	out.Terminal = spec.Terminal
	c.finish(out, start)
	log.Info("action committed",
		zap.Strings("outputs", out.Outputs),
		zap.Strings("archived", out.Archived),
		zap.Duration("took", out.Duration))
	return out, nil
}

// stage reserves store paths for inputs that are not saved yet, so the
// action can refer to them by path.
func (c *Controller) stage(inputs []*model.Item) (map[string]bool, error) {
	staged := map[string]bool{}
	for _, it := range inputs {
		if it.StorePath != "" {
			continue
		}
		path, err := c.store.Reserve(it)
		if err != nil {
			c.releaseStaged(staged)
			return nil, err
		}
		it.StorePath = path
		staged[path] = true
	}
	return staged, nil
}

func (c *Controller) releaseStaged(staged map[string]bool) {
	for path := range staged {
		if c.store.IsReserved(path) {
			c.store.Release(path)
		}
	}
}

// tempFiles lists the items' payload files that live under TempDir.
func (c *Controller) tempFiles(items []*model.Item) []string {
	if c.tempDir == "" {
		return nil
	}
	tmp, err := filepath.Abs(c.tempDir)
	if err != nil {
		return nil
	}
	var files []string
	for _, it := range items {
		if it.ExternalPath == "" {
			continue
		}
		abs, err := filepath.Abs(it.ExternalPath)
		if err == nil && filepath.Dir(abs) == tmp {
			files = append(files, abs)
		}
	}
	return files
}

func (c *Controller) removeTemp(files []string) {
	for _, f := range files {
		if err := os.Remove(f); err != nil && !errors.Is(err, os.ErrNotExist) {
			c.log.Warn("failed to remove temp file", zap.String("path", f), zap.Error(err))
		}
	}
}

// commit saves staged inputs and outputs, archives replaced inputs and
// moves the selection to the outputs.
func (c *Controller) commit(spec action.Spec, inputs []*model.Item, staged map[string]bool, res *action.Result) (*Outcome, error) {
	tx := &txn{store: c.store, log: c.log}
	fail := func(err error) (*Outcome, error) {
		tx.rollback()
		return nil, err
	}

	outputs := res.Items
	target := map[string]bool{}
	for _, out := range outputs {
		if out.StorePath != "" {
			target[out.StorePath] = true
		}
	}
	// The last intermediate version of a saved path is the one written,
	// unless an output writes that path too.
	latest := map[string]*model.Item{}
	for _, it := range res.Intermediate {
		if it.StorePath != "" && !target[it.StorePath] {
			latest[it.StorePath] = it
		}
	}
	unchanged := map[*model.Item]bool{}
	for _, in := range inputs {
		if !staged[in.StorePath] {
			unchanged[in] = true
		}
	}

	remap := map[string]string{}
	finalInputs := func() []string {
		p := inputPaths(inputs)
		remapPaths(p, remap)
		return p
	}
	for _, in := range inputs {
		if !staged[in.StorePath] || target[in.StorePath] || latest[in.StorePath] != nil {
			continue
		}
		reserved := in.StorePath
		path, err := tx.save(in)
		if err != nil {
			return fail(err)
		}
		if path != reserved {
			remap[reserved] = path
		}
	}

	transient, err := c.commitIntermediate(tx, res.Intermediate, latest, unchanged, remap, finalInputs)
	if err != nil {
		return fail(err)
	}

	// Updates to existing paths go first so that new items see final paths.
	paths := make([]string, len(outputs))
	for pass := 0; pass < 2; pass++ {
		for i, out := range outputs {
			if (out.StorePath != "") != (pass == 0) {
				continue
			}
			if unchanged[out] {
				paths[i] = out.StorePath
				continue
			}
			remapPaths(out.Relations.DerivedFrom, remap)
			if out.Source != nil {
				remapPaths(out.Source.Arguments, remap)
			}
			if pass == 1 && len(out.Relations.DerivedFrom) == 0 {
				out.Relations.DerivedFrom = finalInputs()
			}
			before := out.StorePath
			path, err := tx.save(out)
			if err != nil {
				return fail(err)
			}
			if before != "" && path != before {
				remap[before] = path
			}
			paths[i] = path
		}
	}
	paths = dedupe(paths)

	var archived []string
	for _, path := range transient {
		dest, err := tx.archive(path)
		if err != nil {
			return fail(err)
		}
		archived = append(archived, dest)
	}
	if res.ReplacesInput || spec.ReplacesInput {
		kept := make(map[string]bool, len(paths))
		for _, p := range paths {
			kept[p] = true
		}
		for _, in := range inputs {
			if in.StorePath == "" || kept[in.StorePath] || staged[in.StorePath] {
				continue
			}
			dest, err := tx.archive(in.StorePath)
			if err != nil {
				return fail(err)
			}
			archived = append(archived, dest)
		}
	}

	if err := c.selection.Set(paths); err != nil {
		return fail(err)
	}
	if len(tx.archived) > 0 {
		gone := make([]string, 0, len(tx.archived))
		for _, mv := range tx.archived {
			gone = append(gone, mv[0])
		}
		if err := c.selection.Remove(gone...); err != nil {
			c.log.Warn("failed to update selection history", zap.Error(err))
		}
	}

	return &Outcome{
		Inputs:   finalInputs(),
		Outputs:  paths,
		Archived: archived,
		Items:    outputs,
	}, nil
}

// commitIntermediate saves the intermediate items of a compound action.
// Updates to saved items are kept; the paths of new items are returned for
// archiving once the outputs are written.
func (c *Controller) commitIntermediate(tx *txn, items []*model.Item, latest map[string]*model.Item,
	unchanged map[*model.Item]bool, remap map[string]string, finalInputs func() []string,
) ([]string, error) {
	var transient []string
	for _, it := range items {
		if unchanged[it] {
			continue
		}
		if it.StorePath != "" {
			if latest[it.StorePath] != it {
				continue
			}
			reserved := it.StorePath
			path, err := tx.save(it)
			if err != nil {
				return nil, err
			}
			if path != reserved {
				remap[reserved] = path
			}
			continue
		}
		if len(it.Relations.DerivedFrom) == 0 {
			it.Relations.DerivedFrom = finalInputs()
		}
		remapPaths(it.Relations.DerivedFrom, remap)
		path, err := tx.save(it)
		if err != nil {
			return nil, err
		}
		transient = append(transient, path)
	}
	if len(transient) > 0 {
		c.log.Debug("saved intermediate items", zap.Strings("paths", transient))
	}
	return transient, nil
}

func remapPaths(paths []string, remap map[string]string) {
	for i, p := range paths {
		if n, ok := remap[p]; ok {
			paths[i] = n
		}
	}
}

func inputPaths(inputs []*model.Item) []string {
	out := make([]string, 0, len(inputs))
	for _, in := range inputs {
		if in.StorePath != "" {
			out = append(out, in.StorePath)
		}
	}
	return out
}

func dedupe(paths []string) []string {
	seen := make(map[string]bool, len(paths))
	out := paths[:0]
	for _, p := range paths {
		if p == "" || seen[p] {
			continue
		}
		seen[p] = true
		out = append(out, p)
	}
	return out
}

func (c *Controller) finish(out *Outcome, start time.Time) {
	out.Duration = time.Since(start)
	entry, err := c.history.Append(history.Entry{
		Operation: out.Operation,
		Action:    out.Action,
		Inputs:    out.Inputs,
		Outputs:   out.Outputs,
		Archived:  out.Archived,
		Status:    history.StatusOK,
		Duration:  out.Duration.Round(time.Millisecond).String(),
	})
	if err != nil {
		c.log.Warn("failed to append history", zap.Error(err))
		return
	}
	out.HistoryID = entry.ID
}

func (c *Controller) recordFailure(op, name string, inputs []*model.Item, cause error, start time.Time) {
	var in []string
	for _, it := range inputs {
		if it.StorePath != "" && !c.store.IsReserved(it.StorePath) {
			in = append(in, it.StorePath)
		} else if it.URL != "" {
			in = append(in, it.URL)
		}
	}
	if _, err := c.history.Append(history.Entry{
		Operation: op,
		Action:    name,
		Inputs:    in,
		Status:    history.StatusFailed,
		Error:     cause.Error(),
		Duration:  time.Since(start).Round(time.Millisecond).String(),
	}); err != nil {
		c.log.Warn("failed to append history", zap.Error(err))
	}
	c.log.Error("step failed", zap.String("op", op), zap.String("action", name), zap.Error(cause))
}

// FetchAndSave saves url as a resource titled from the fetched page and
// selects it. A resource already saved with this URL is selected instead.
func (c *Controller) FetchAndSave(ctx context.Context, rawURL string) (*Outcome, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !IsURL(rawURL) {
		return nil, fmt.Errorf("%s: %w", rawURL, ErrNotURL)
	}
	start := time.Now()

	if path, ok := c.store.FindByURL(rawURL); ok {
		item, err := c.store.Load(path)
		if err != nil {
			return nil, err
		}
		if err := c.selection.Set([]string{path}); err != nil {
			return nil, err
		}
		c.log.Info("resource already saved", zap.String("url", rawURL), zap.String("path", path))
		out := &Outcome{Operation: OpAdd, Outputs: []string{path}, Items: []*model.Item{item}}
		c.finish(out, start)
		return out, nil
	}

	if c.resources == nil {
		return nil, ErrNoFetcher
	}
	item, err := c.resources.FetchResource(ctx, rawURL)
	if err != nil {
		c.recordFailure(OpAdd, "", []*model.Item{{URL: rawURL}}, err, start)
		return nil, err
	}
	item.Source = &model.Operation{ActionName: "fetch_page", Arguments: []string{rawURL}}

	tx := &txn{store: c.store, log: c.log}
	path, err := tx.save(item)
	if err != nil {
		tx.rollback()
		return nil, err
	}
	if err := c.selection.Set([]string{path}); err != nil {
		tx.rollback()
		return nil, err
	}

	out := &Outcome{Operation: OpAdd, Outputs: []string{path}, Items: []*model.Item{item}}
	c.finish(out, start)
	c.log.Info("saved resource", zap.String("url", rawURL), zap.String("path", path))
	return out, nil
}

// Import copies local files into the store and selects them. Files already
// inside the workspace are selected without copying. Text files with a
// metadata header keep it; others become resources titled by filename.
func (c *Controller) Import(ctx context.Context, paths []string) (*Outcome, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(paths) == 0 {
		return nil, ErrNothingToDo
	}
	start := time.Now()
	tx := &txn{store: c.store, log: c.log}

	var (
		saved []string
		items []*model.Item
	)
	for _, p := range paths {
		if err := ctx.Err(); err != nil {
			tx.rollback()
			return nil, err
		}
		if existing, err := c.store.Resolve(p); err == nil {
			it, err := c.store.Load(existing)
			if err != nil {
				tx.rollback()
				return nil, err
			}
			saved = append(saved, existing)
			items = append(items, it)
			continue
		}

		it, err := importFile(p)
		if err != nil {
			tx.rollback()
			return nil, err
		}
		path, err := tx.save(it)
		if err != nil {
			tx.rollback()
			return nil, err
		}
		c.log.Debug("imported file", zap.String("from", p), zap.String("to", path))
		saved = append(saved, path)
		items = append(items, it)
	}
	saved = dedupe(saved)

	if err := c.selection.Set(saved); err != nil {
		tx.rollback()
		return nil, err
	}
	out := &Outcome{Operation: OpImport, Outputs: saved, Items: items}
	c.finish(out, start)
	return out, nil
}

// importFile builds an unsaved item from a local file.
func importFile(p string) (*model.Item, error) {
	abs, err := filepath.Abs(p)
	if err != nil {
		return nil, err
	}
	st, err := os.Stat(abs)
	if err != nil {
		return nil, err
	}
	if st.IsDir() {
		return nil, fmt.Errorf("%s: %w", p, ErrDirectoryArgs)
	}
	ext, err := model.ParseFileExt(filepath.Ext(abs))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", p, err)
	}
	title := strings.TrimSuffix(filepath.Base(abs), filepath.Ext(abs))

	if !ext.IsText() {
		it := model.New(model.TypeResource, model.FormatForExt(ext))
		it.Title = title
		model.WithExternalPath(abs, ext)(it)
		return it, nil
	}

	body, meta, err := frontmatter.Read(abs)
	if err != nil {
		return nil, err
	}
	if len(meta) > 0 {
		it, err := model.FromMetadata(meta, body)
		if err != nil {
			return nil, &frontmatter.FileError{Path: p, Err: err}
		}
		if it.Type == "" {
			it.Type = model.TypeResource
		}
		if it.Format == "" {
			it.Format = model.FormatForExt(ext)
		}
		if it.Title == "" {
			it.Title = title
		}
		it.FileExt = ext
		return it, nil
	}

	it := model.New(model.TypeResource, model.FormatForExt(ext))
	it.Title = title
	it.Body = body
	it.FileExt = ext
	return it, nil
}
