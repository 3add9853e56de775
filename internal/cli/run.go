package cli

import (
	"errors"

	"github.com/spf13/cobra"

	"github.com/aidanlsb/kmd/internal/action"
	"github.com/aidanlsb/kmd/internal/pipeline"
)

var runCmd = &cobra.Command{
	Use:   "run <action> [item...]",
	Short: "Run an action on the selection or on the given items",
	Long: `Runs an action and makes its outputs the new selection.

Items can be store paths, files inside the workspace, URLs, or numbers from
the last listing ("1,3-5"). With no items the current selection is used.

Inputs are checked before anything runs. If the action or the save fails,
the workspace is left as it was.

Examples:
  kmd run fetch_text
  kmd run summarize_as_bullets 2
  kmd run concat notes/a.note.md notes/b.note.md
  kmd run fetch_page https://example.com`,
	Args: cobra.MinimumNArgs(1),
	ValidArgsFunction: func(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
		if len(args) > 0 || resolvedRoot == "" {
			return nil, cobra.ShellCompDirectiveDefault
		}
		ws, err := openWorkspace()
		if err != nil {
			return nil, cobra.ShellCompDirectiveNoFileComp
		}
		defer ws.Close()
		var names []string
		for _, a := range ws.Registry.All() {
			names = append(names, a.Spec().Name)
		}
		return names, cobra.ShellCompDirectiveNoFileComp
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		ws, err := openWorkspace()
		if err != nil {
			return handleError(ErrWorkspaceNotFound, err, "")
		}
		defer ws.Close()

		name := args[0]
		items, err := ws.ResolveNumbers(args[1:])
		if err != nil {
			return handleError(ErrInvalidInput, err, "Run 'kmd list' to number items")
		}
		if len(items) == 0 && len(ws.Selection.Current()) == 0 {
			return handleErrorMsg(ErrNoSelection, "nothing selected",
				"Select items with 'kmd select', or pass them after the action name")
		}

		var out *pipeline.Outcome
		err = withProgress("Running "+name, func() (err error) {
			out, err = ws.Pipeline.Run(cmd.Context(), name, items)
			return err
		})
		if err != nil {
			suggestion := ""
			switch {
			case errors.Is(err, action.ErrUnknownAction):
				suggestion = "Run 'kmd actions' to see available actions"
			case errors.Is(err, action.ErrPreconditionFailed):
				suggestion = "Run 'kmd actions' to see what each action accepts"
			}
			return handleError(ErrActionFailed, err, suggestion)
		}
		return printOutcome(ws, out)
	},
}

func init() {
	rootCmd.AddCommand(runCmd)
}
