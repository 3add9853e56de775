package cli

import (
	"github.com/spf13/cobra"
)

var archiveCmd = &cobra.Command{
	Use:   "archive [item...]",
	Short: "Move items to the archive",
	Long: `Moves items under .archive/, keeping their folder and file name. Archived
items leave the selection and no longer appear in listings.

With no items the current selection is archived.

Examples:
  kmd archive
  kmd archive 2,4`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ws, err := openWorkspace()
		if err != nil {
			return handleError(ErrWorkspaceNotFound, err, "")
		}
		defer ws.Close()

		items, err := ws.ResolveNumbers(args)
		if err != nil {
			return handleError(ErrInvalidInput, err, "")
		}
		out, err := ws.Pipeline.Archive(cmd.Context(), items)
		if err != nil {
			return handleError(ErrInternal, err, "")
		}
		return printOutcome(ws, out)
	},
}

var unarchiveCmd = &cobra.Command{
	Use:   "unarchive <item>...",
	Short: "Restore archived items and select them",
	Long: `Moves archived items back to their type folder. If the original name was
taken in the meantime, a numbered suffix is added.

Examples:
  kmd list --archived
  kmd unarchive 3
  kmd unarchive .archive/notes/draft.note.md`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ws, err := openWorkspace()
		if err != nil {
			return handleError(ErrWorkspaceNotFound, err, "")
		}
		defer ws.Close()

		items, err := ws.ResolveNumbers(args)
		if err != nil {
			return handleError(ErrInvalidInput, err, "")
		}
		out, err := ws.Pipeline.Unarchive(cmd.Context(), items)
		if err != nil {
			return handleError(ErrInternal, err, "")
		}
		return printOutcome(ws, out)
	},
}

func init() {
	rootCmd.AddCommand(archiveCmd)
	rootCmd.AddCommand(unarchiveCmd)
}
