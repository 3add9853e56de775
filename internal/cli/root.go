// Package cli implements the command-line interface.
package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/aidanlsb/kmd/internal/config"
	"github.com/aidanlsb/kmd/internal/ui"
	"github.com/aidanlsb/kmd/internal/workspace"
)

var (
	// Global flags
	workspaceName      string // Named workspace from config
	workspacePathFlag  string // Explicit path
	configPath         string
	debugFlag          bool
	resolvedRoot       string
	resolvedConfigPath string
	resolvedStatePath  string
	cfg                *config.Config
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "kmd",
	Short: "kmd - a workspace for collecting and transforming content",
	Long: `kmd keeps notes, web resources, questions and exports as plain files in a
workspace, and runs actions over them: fetching pages, converting formats,
summarizing with an LLM, exporting PDFs.

Every action works on the current selection unless given explicit items, and
its outputs become the new selection, so steps chain naturally:

  kmd add https://example.com/article
  kmd run fetch_text
  kmd run summarize_as_bullets`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, resolvedConfigPath, err = loadGlobalConfigWithPath()
		if err != nil {
			return handleError(ErrConfigInvalid, err, "Check your config.toml syntax")
		}
		resolvedStatePath = config.ResolveStatePath(resolvedConfigPath, cfg)
		ui.ConfigureTheme(cfg.UI.Accent)
		ui.ConfigureMarkdownCodeTheme(cfg.UI.CodeTheme)

		// Skip workspace resolution for commands that don't need it
		switch cmd.Name() {
		case "init", "completion", "help", "version", "workspaces", "use":
			return nil
		}
		if cmd.Parent() != nil && cmd.Parent().Name() == "completion" {
			return nil
		}

		resolvedRoot, err = resolveWorkspaceRoot()
		if err != nil {
			return handleErrorMsg(ErrWorkspaceNotSpecified, err.Error(), "")
		}
		if !workspace.IsWorkspace(resolvedRoot) {
			return handleErrorMsg(ErrWorkspaceNotFound,
				fmt.Sprintf("not a kmd workspace: %s", resolvedRoot),
				fmt.Sprintf("Run 'kmd init %s' to create it", resolvedRoot))
		}
		return nil
	},
}

// Execute runs the CLI.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&workspaceName, "workspace", "w", "", "Named workspace from config")
	rootCmd.PersistentFlags().StringVar(&workspacePathFlag, "workspace-path", "", "Explicit path to workspace directory")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to config file")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Output in JSON format (for agent/script use)")
	rootCmd.PersistentFlags().BoolVar(&debugFlag, "debug", false, "Mirror warnings from the log to stderr")
}

// resolveWorkspaceRoot picks the workspace: explicit path > named workspace >
// active workspace from state > default workspace > enclosing directory.
func resolveWorkspaceRoot() (string, error) {
	if workspacePathFlag != "" {
		return filepath.Abs(workspacePathFlag)
	}
	if workspaceName != "" {
		path, err := cfg.GetWorkspacePath(workspaceName)
		if err != nil {
			return "", fmt.Errorf("workspace '%s' not found\n\nRun 'kmd workspaces' to see configured workspaces", workspaceName)
		}
		return expandHome(path), nil
	}

	state, err := config.LoadState(resolvedStatePath)
	if err != nil {
		return "", fmt.Errorf("failed to load state: %w", err)
	}
	if active := strings.TrimSpace(state.ActiveWorkspace); active != "" {
		if path, err := cfg.GetWorkspacePath(active); err == nil {
			return expandHome(path), nil
		}
		if !jsonOutput {
			fmt.Fprintf(os.Stderr, "warning: active workspace '%s' not found in config, falling back\n", active)
		}
	}
	if cfg.DefaultWorkspace != "" {
		if path, err := cfg.GetWorkspacePath(""); err == nil {
			return expandHome(path), nil
		}
	}

	if root, ok := findEnclosingWorkspace(); ok {
		return root, nil
	}
	return "", errors.New(`no workspace specified

Either:
  1. Use --workspace <name> (from config)
  2. Use --workspace-path /path/to/workspace
  3. Run 'kmd use <name>' to set the active workspace
  4. Set default_workspace in ~/.config/kmd/config.toml
  5. Run kmd from inside a workspace, or 'kmd init <path>' to create one`)
}

func findEnclosingWorkspace() (string, bool) {
	dir, err := os.Getwd()
	if err != nil {
		return "", false
	}
	for {
		if workspace.IsWorkspace(dir) {
			return dir, true
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", false
		}
		dir = parent
	}
}

func expandHome(path string) string {
	if path == "~" || strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, strings.TrimPrefix(path, "~"))
		}
	}
	return path
}

// openWorkspace opens the resolved workspace. Callers must Close it.
func openWorkspace() (*workspace.Workspace, error) {
	return workspace.Open(resolvedRoot, workspace.Options{
		LogLevel: cfg.GetLogLevel(),
		Debug:    debugFlag,
		APIKey:   cfg.APIKey(),
	})
}

// loadGlobalConfigWithPath loads --config or the default config. A missing
// file is an empty Config so first runs and `kmd init` work.
func loadGlobalConfigWithPath() (*config.Config, string, error) {
	path := config.ResolveConfigPath(configPath)
	loaded, err := config.LoadFrom(path)
	if errors.Is(err, os.ErrNotExist) {
		return &config.Config{}, path, nil
	}
	if err != nil {
		return nil, "", err
	}
	return loaded, path, nil
}
