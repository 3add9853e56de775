package cli

import (
	"github.com/spf13/cobra"

	"github.com/aidanlsb/kmd/internal/pipeline"
)

var addCmd = &cobra.Command{
	Use:   "add <url>",
	Short: "Save a web page as a resource and select it",
	Long: `Fetches the page at <url>, saves it as a resource titled after the page,
and makes it the current selection.

A URL that is already saved is selected again instead of being fetched.

Examples:
  kmd add https://example.com/article
  kmd add https://example.com/article --json`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ws, err := openWorkspace()
		if err != nil {
			return handleError(ErrWorkspaceNotFound, err, "")
		}
		defer ws.Close()

		var out *pipeline.Outcome
		err = withProgress("Fetching "+args[0], func() (err error) {
			out, err = ws.Pipeline.FetchAndSave(cmd.Context(), args[0])
			return err
		})
		if err != nil {
			return handleError(ErrActionFailed, err, "")
		}
		return printOutcome(ws, out)
	},
}

func init() {
	rootCmd.AddCommand(addCmd)
}
