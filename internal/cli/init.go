package cli

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/aidanlsb/kmd/internal/config"
	"github.com/aidanlsb/kmd/internal/ui"
	"github.com/aidanlsb/kmd/internal/workspace"
)

var initName string

var initCmd = &cobra.Command{
	Use:   "init [path]",
	Short: "Initialize a new workspace",
	Long: `Creates a workspace at the given path (default: current directory).

Creates:
  - one folder per item type (notes/, resources/, exports/, ...)
  - .settings/settings.toml  (workspace settings and user actions)
  - .archive/ .cache/ .index/ .logs/ .tmp/
  - .gitignore               (ignores derived files)

Running init on an existing workspace only fills in what is missing.

Examples:
  kmd init ~/research
  kmd init ~/research --name research`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := "."
		if len(args) == 1 {
			path = args[0]
		}

		res, err := workspace.Init(path)
		if err != nil {
			return handleError(ErrInternal, err, "")
		}

		registered := ""
		if initName != "" {
			if err := registerWorkspace(initName, res.Root); err != nil {
				return handleError(ErrConfigInvalid, err, "")
			}
			registered = initName
		}

		if isJSONOutput() {
			outputSuccess(map[string]interface{}{
				"root":       res.Root,
				"created":    res.Created,
				"settings":   res.Settings,
				"registered": registered,
			}, nil)
			return nil
		}

		if res.Created {
			fmt.Println(ui.Successf("Initialized workspace at %s", ui.FilePath(res.Root)))
		} else {
			fmt.Println(ui.Infof("Workspace already exists at %s", ui.FilePath(res.Root)))
		}
		if registered != "" {
			fmt.Println(ui.Successf("Registered as '%s' in %s", registered, resolvedConfigPath))
		}
		fmt.Println()
		fmt.Println(ui.Hint("Next: kmd add <url>  or  kmd import <file>"))
		return nil
	},
}

// registerWorkspace adds root to the global config under name. The first
// registered workspace becomes the default.
func registerWorkspace(name, root string) error {
	if cfg.Workspaces == nil {
		cfg.Workspaces = map[string]string{}
	}
	cfg.Workspaces[name] = filepath.Clean(root)
	if cfg.DefaultWorkspace == "" {
		cfg.DefaultWorkspace = name
	}
	return config.SaveTo(resolvedConfigPath, cfg)
}

func init() {
	initCmd.Flags().StringVar(&initName, "name", "", "Register the workspace under this name in the global config")
	rootCmd.AddCommand(initCmd)
}
