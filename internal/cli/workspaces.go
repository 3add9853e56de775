package cli

import (
	"fmt"
	"sort"
	"time"

	"github.com/spf13/cobra"

	"github.com/aidanlsb/kmd/internal/config"
	"github.com/aidanlsb/kmd/internal/ui"
)

type workspaceInfo struct {
	Name    string `json:"name"`
	Path    string `json:"path"`
	Default bool   `json:"default,omitempty"`
	Active  bool   `json:"active,omitempty"`
}

var workspacesCmd = &cobra.Command{
	Use:   "workspaces",
	Short: "List configured workspaces",
	Long: `Lists all workspaces configured in ~/.config/kmd/config.toml.

Example config:
  default_workspace = "research"

  [workspaces]
  research = "/Users/you/research"
  reading = "/Users/you/reading"`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		state, err := config.LoadState(resolvedStatePath)
		if err != nil {
			return handleError(ErrConfigInvalid, err, "")
		}

		workspaces := cfg.ListWorkspaces()
		names := make([]string, 0, len(workspaces))
		for name := range workspaces {
			names = append(names, name)
		}
		sort.Strings(names)

		infos := make([]workspaceInfo, 0, len(names))
		for _, name := range names {
			infos = append(infos, workspaceInfo{
				Name:    name,
				Path:    workspaces[name],
				Default: name == cfg.DefaultWorkspace,
				Active:  name == state.ActiveWorkspace,
			})
		}

		if isJSONOutput() {
			outputSuccess(infos, &Meta{Count: len(infos)})
			return nil
		}

		if len(infos) == 0 {
			fmt.Println("No workspaces configured.")
			fmt.Println()
			fmt.Println(ui.Hint("Register one with: kmd init <path> --name <name>"))
			return nil
		}

		tbl := ui.NewTable()
		for _, info := range infos {
			marker := " "
			if info.Active {
				marker = "*"
			} else if info.Default {
				marker = "+"
			}
			tbl.Row(marker, info.Name, ui.FilePath(info.Path))
		}
		fmt.Print(tbl.String())
		fmt.Println()
		fmt.Println(ui.Hint("* = active, + = default"))
		return nil
	},
}

var useCmd = &cobra.Command{
	Use:   "use <name>",
	Short: "Set the active workspace",
	Long: `Makes a configured workspace the active one. The active workspace is used
when --workspace and --workspace-path are not given.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		name := args[0]
		if _, err := cfg.GetWorkspacePath(name); err != nil {
			return handleErrorMsg(ErrWorkspaceNotFound,
				fmt.Sprintf("workspace '%s' not found", name),
				"Run 'kmd workspaces' to see configured workspaces")
		}

		state, err := config.LoadState(resolvedStatePath)
		if err != nil {
			return handleError(ErrConfigInvalid, err, "")
		}
		state.Activate(name, time.Now())
		if err := config.SaveState(resolvedStatePath, state); err != nil {
			return handleError(ErrInternal, err, "")
		}

		if isJSONOutput() {
			outputSuccess(map[string]string{"active_workspace": name}, nil)
			return nil
		}
		fmt.Println(ui.Successf("Active workspace: %s", name))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(workspacesCmd)
	rootCmd.AddCommand(useCmd)
}
