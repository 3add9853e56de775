// Package workspace opens a kmd workspace directory and wires its parts
// together: store, index, selection, history, settings, logging and the
// action registry the pipeline runs against.
package workspace

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/aidanlsb/kmd/internal/action"
	"github.com/aidanlsb/kmd/internal/actions"
	"github.com/aidanlsb/kmd/internal/config"
	"github.com/aidanlsb/kmd/internal/history"
	"github.com/aidanlsb/kmd/internal/index"
	"github.com/aidanlsb/kmd/internal/lastresults"
	"github.com/aidanlsb/kmd/internal/llm"
	"github.com/aidanlsb/kmd/internal/logging"
	"github.com/aidanlsb/kmd/internal/model"
	"github.com/aidanlsb/kmd/internal/pdf"
	"github.com/aidanlsb/kmd/internal/pipeline"
	"github.com/aidanlsb/kmd/internal/selection"
	"github.com/aidanlsb/kmd/internal/store"
	"github.com/aidanlsb/kmd/internal/transcribe"
	"github.com/aidanlsb/kmd/internal/web"
	"github.com/aidanlsb/kmd/internal/webcache"
)

// Hidden directories inside a workspace.
const (
	SettingsDir = ".settings"
	LogsDir     = ".logs"
	TmpDir      = ".tmp"
)

// Files inside the hidden directories.
const (
	SettingsFile  = "settings.toml"
	SelectionFile = "selection.yml"
	HistoryFile   = "history.jsonl"
	gitignoreFile = ".gitignore"
)

// HiddenDirs lists every hidden directory a workspace has.
var HiddenDirs = []string{store.ArchiveDir, SettingsDir, LogsDir, webcache.Dir, index.Dir, TmpDir}

var ErrNotWorkspace = errors.New("not a kmd workspace")

// Options tune how a workspace is opened.
type Options struct {
	// LogLevel is passed to the file logger; empty means info.
	LogLevel string
	// Debug mirrors warnings to stderr.
	Debug bool
	// APIKey enables LLM actions. Without it they fail when run.
	APIKey string
	// Logger replaces the file logger (tests).
	Logger *zap.Logger
}

// Workspace is an open workspace. Close releases the index.
type Workspace struct {
	Root      string
	Settings  *config.Settings
	Store     *store.Store
	Index     *index.Database
	Selection *selection.History
	History   *history.Log
	Registry  *action.Registry
	Pipeline  *pipeline.Controller
	Deps      *actions.Deps
	Logger    *zap.Logger
}

// InitResult reports what Init did.
type InitResult struct {
	Root     string `json:"root"`
	Created  bool   `json:"created"`
	Settings string `json:"settings"`
}

// Init creates the workspace layout at root. It is safe to run on an
// existing workspace; existing settings are left alone.
func Init(root string) (*InitResult, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}
	created := !IsWorkspace(abs)

	dirs := append([]string{}, HiddenDirs...)
	for _, t := range model.ItemTypes {
		dirs = append(dirs, t.Folder())
	}
	for _, d := range dirs {
		if err := os.MkdirAll(filepath.Join(abs, d), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create %s: %w", d, err)
		}
	}

	settingsPath := filepath.Join(abs, SettingsDir, SettingsFile)
	if _, err := os.Stat(settingsPath); errors.Is(err, os.ErrNotExist) {
		if err := config.SaveSettings(settingsPath, config.DefaultSettings()); err != nil {
			return nil, err
		}
	}
	if err := ensureGitignore(abs); err != nil {
		return nil, err
	}
	return &InitResult{Root: abs, Created: created, Settings: settingsPath}, nil
}

// ensureGitignore adds the derived directories to .gitignore.
func ensureGitignore(root string) error {
	path := filepath.Join(root, gitignoreFile)
	existing := ""
	if data, err := os.ReadFile(path); err == nil {
		existing = string(data)
	}
	var missing []string
	for _, entry := range []string{index.Dir + "/", webcache.Dir + "/", TmpDir + "/", LogsDir + "/"} {
		if !strings.Contains(existing, entry) {
			missing = append(missing, entry)
		}
	}
	if len(missing) == 0 {
		return nil
	}
	content := existing
	if content == "" {
		content = "# kmd derived files (rebuilt with 'kmd reindex')\n"
	} else {
		content = strings.TrimRight(content, "\n") + "\n\n# kmd\n"
	}
	content += strings.Join(missing, "\n") + "\n"
	return os.WriteFile(path, []byte(content), 0o644)
}

// IsWorkspace reports whether root has a settings directory.
func IsWorkspace(root string) bool {
	st, err := os.Stat(filepath.Join(root, SettingsDir))
	return err == nil && st.IsDir()
}

// Open opens an initialized workspace.
func Open(root string, opts Options) (*Workspace, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}
	if !IsWorkspace(abs) {
		return nil, fmt.Errorf("%s: %w", abs, ErrNotWorkspace)
	}
	for _, d := range HiddenDirs {
		if err := os.MkdirAll(filepath.Join(abs, d), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create %s: %w", d, err)
		}
	}

	logger := opts.Logger
	if logger == nil {
		logger, err = logging.New(filepath.Join(abs, LogsDir), opts.LogLevel, opts.Debug)
		if err != nil {
			return nil, err
		}
	}

	settings, err := config.LoadSettings(filepath.Join(abs, SettingsDir, SettingsFile))
	if err != nil {
		return nil, err
	}

	db, err := index.Open(abs)
	if err != nil {
		return nil, err
	}
	ws := &Workspace{Root: abs, Settings: settings, Index: db, Logger: logger}
	if err := ws.wire(opts); err != nil {
		db.Close()
		return nil, err
	}
	logger.Debug("workspace opened", zap.String("root", abs), zap.Int("actions", ws.Registry.Len()))
	return ws, nil
}

func (ws *Workspace) wire(opts Options) error {
	var err error
	ws.Store, err = store.Open(ws.Root, store.Options{Index: ws.Index, Logger: ws.Logger.Named("store")})
	if err != nil {
		return err
	}

	ws.Selection, err = selection.Open(ws.path(SettingsDir, SelectionFile), ws.Store.Exists, ws.Logger.Named("selection"))
	if err != nil {
		return err
	}
	ws.History = history.New(ws.path(LogsDir, HistoryFile))

	s := ws.Settings
	ws.Deps = &actions.Deps{
		Fetcher: web.NewFetcher(
			web.WithTimeout(s.HTTP.Timeout()),
			web.WithUserAgent(s.HTTP.UserAgent),
			web.WithRateLimit(s.HTTP.RequestsPerSecond),
			web.WithLogger(ws.Logger.Named("web")),
		),
		Renderer: pdf.NewRenderer(ws.Logger.Named("pdf")),
		Cache:    webcache.New(ws.path(webcache.Dir)),
		TempDir:  ws.path(TmpDir),
		Logger:   ws.Logger.Named("actions"),
	}
	if len(s.Transcribe.Command) > 0 {
		ws.Deps.Transcriber = transcribe.New(s.Transcribe.Command, 0, ws.Logger.Named("transcribe"))
	}
	if opts.APIKey != "" {
		client, err := llm.NewClaude(opts.APIKey, ws.Logger.Named("llm"))
		if err != nil {
			return err
		}
		ws.Deps.Completer = client
	}

	ws.Registry, err = actions.NewRegistry(ws.Deps, s)
	if err != nil {
		return err
	}

	ws.Pipeline = pipeline.New(pipeline.Options{
		Store:     ws.Store,
		Selection: ws.Selection,
		History:   ws.History,
		Registry:  ws.Registry,
		Resources: ws.Deps,
		TempDir:   ws.Deps.TempDir,
		Logger:    ws.Logger.Named("pipeline"),
	})
	return nil
}

func (ws *Workspace) path(elem ...string) string {
	return filepath.Join(append([]string{ws.Root}, elem...)...)
}

// SettingsPath returns the workspace settings file.
func (ws *Workspace) SettingsPath() string {
	return ws.path(SettingsDir, SettingsFile)
}

// RememberListing records a numbered listing for later `select 1,3` style
// references.
func (ws *Workspace) RememberListing(source string, paths []string) error {
	return lastresults.Save(ws.path(SettingsDir), lastresults.Listing{
		Source: source,
		At:     model.Now(),
		Paths:  paths,
	})
}

// ResolveNumbers maps "1,3-5"-style arguments to store paths from the last
// listing. Any other arguments are returned unchanged.
func (ws *Workspace) ResolveNumbers(args []string) ([]string, error) {
	if !lastresults.IsReference(args) {
		return args, nil
	}
	l, err := lastresults.Load(ws.path(SettingsDir))
	if err != nil {
		return nil, err
	}
	return l.Pick(args)
}

// Close flushes the logger and closes the index.
func (ws *Workspace) Close() error {
	_ = ws.Logger.Sync()
	if ws.Index != nil {
		return ws.Index.Close()
	}
	return nil
}
