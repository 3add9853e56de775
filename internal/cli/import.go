package cli

import (
	"github.com/spf13/cobra"
)

var importCmd = &cobra.Command{
	Use:   "import <file>...",
	Short: "Copy local files into the workspace and select them",
	Long: `Copies files into the workspace and makes them the current selection.

Text files with a metadata header keep it; the header's type decides the
folder. Other text files and binary files (PDF) become resources titled
after the file name. Files already inside the workspace are selected
without being copied.

If any file cannot be imported, nothing is imported.

Examples:
  kmd import notes.md
  kmd import paper.pdf slides.pdf`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ws, err := openWorkspace()
		if err != nil {
			return handleError(ErrWorkspaceNotFound, err, "")
		}
		defer ws.Close()

		out, err := ws.Pipeline.Import(cmd.Context(), args)
		if err != nil {
			return handleError(ErrInvalidInput, err, "")
		}
		return printOutcome(ws, out)
	},
}

func init() {
	rootCmd.AddCommand(importCmd)
}
