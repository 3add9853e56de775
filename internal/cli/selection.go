package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/aidanlsb/kmd/internal/model"
	"github.com/aidanlsb/kmd/internal/ui"
	"github.com/aidanlsb/kmd/internal/workspace"
)

var selectCmd = &cobra.Command{
	Use:   "select <item>...",
	Short: "Replace the selection with the given items",
	Long: `Makes the given items the current selection.

Items can be store paths, files inside the workspace, saved URLs, or numbers
from the last listing.

Examples:
  kmd list notes
  kmd select 1,3
  kmd select resources/example_domain.resource.md`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ws, err := openWorkspace()
		if err != nil {
			return handleError(ErrWorkspaceNotFound, err, "")
		}
		defer ws.Close()

		resolved, err := ws.ResolveNumbers(args)
		if err != nil {
			return handleError(ErrInvalidInput, err, "Run 'kmd list' to number items")
		}
		items, err := ws.Pipeline.Resolve(resolved)
		if err != nil {
			return handleError(ErrItemNotFound, err, "")
		}
		paths := make([]string, 0, len(items))
		for _, it := range items {
			if it.StorePath == "" {
				return handleError(ErrItemNotFound, fmt.Errorf("%s: %w", it.URL, model.ErrNoStorePath),
					"Save it first with 'kmd add "+it.URL+"'")
			}
			paths = append(paths, it.StorePath)
		}
		if err := ws.Selection.Set(paths); err != nil {
			return handleError(ErrInternal, err, "")
		}
		return printSelection(ws)
	},
}

var selectionCmd = &cobra.Command{
	Use:   "selection",
	Short: "Show the current selection",
	Long: `Shows the items that actions run on by default.

Every step that produces items replaces the selection. 'back' and 'forward'
walk through earlier selections.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ws, err := openWorkspace()
		if err != nil {
			return handleError(ErrWorkspaceNotFound, err, "")
		}
		defer ws.Close()
		return printSelection(ws)
	},
}

var selectionBackCmd = &cobra.Command{
	Use:   "back",
	Short: "Restore the previous selection",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return stepSelection(func(ws *workspace.Workspace) ([]string, error) { return ws.Selection.Back() })
	},
}

var selectionForwardCmd = &cobra.Command{
	Use:   "forward",
	Short: "Undo 'selection back'",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return stepSelection(func(ws *workspace.Workspace) ([]string, error) { return ws.Selection.Forward() })
	},
}

var selectionClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Empty the selection",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ws, err := openWorkspace()
		if err != nil {
			return handleError(ErrWorkspaceNotFound, err, "")
		}
		defer ws.Close()
		if err := ws.Selection.Clear(); err != nil {
			return handleError(ErrInternal, err, "")
		}
		return printSelection(ws)
	},
}

func stepSelection(step func(*workspace.Workspace) ([]string, error)) error {
	ws, err := openWorkspace()
	if err != nil {
		return handleError(ErrWorkspaceNotFound, err, "")
	}
	defer ws.Close()
	if _, err := step(ws); err != nil {
		return handleError(ErrNoHistory, err, "")
	}
	return printSelection(ws)
}

func printSelection(ws *workspace.Workspace) error {
	entries, err := entriesFor(ws, ws.Selection.Current())
	if err != nil {
		return handleError(ErrInternal, err, "")
	}
	if isJSONOutput() {
		if err := ws.RememberListing("selection", ws.Selection.Current()); err != nil {
			return handleError(ErrInternal, err, "")
		}
		outputSuccess(toListed(entries), &Meta{Count: len(entries)})
		return nil
	}
	if len(entries) == 0 {
		fmt.Println(ui.Hint("Nothing selected."))
		return nil
	}
	fmt.Println(ui.Header(fmt.Sprintf("Selection %s", ui.Count(len(entries), "item", "items"))))
	return renderEntries(ws, "selection", entries)
}

func init() {
	selectionCmd.AddCommand(selectionBackCmd)
	selectionCmd.AddCommand(selectionForwardCmd)
	selectionCmd.AddCommand(selectionClearCmd)
	rootCmd.AddCommand(selectCmd)
	rootCmd.AddCommand(selectionCmd)
}
