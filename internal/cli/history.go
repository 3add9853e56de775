package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/aidanlsb/kmd/internal/history"
	"github.com/aidanlsb/kmd/internal/ui"
)

var historyLimit int

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show recent operations",
	Long: `Shows the most recent steps recorded in .logs/history.jsonl: which action
ran, on what, what it produced, and whether it failed.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ws, err := openWorkspace()
		if err != nil {
			return handleError(ErrWorkspaceNotFound, err, "")
		}
		defer ws.Close()

		entries, err := ws.History.Tail(historyLimit)
		if err != nil {
			return handleError(ErrInternal, err, "")
		}
		if isJSONOutput() {
			outputSuccess(entries, &Meta{Count: len(entries)})
			return nil
		}
		if len(entries) == 0 {
			fmt.Println(ui.Hint("No history yet."))
			return nil
		}

		tbl := ui.NewTable()
		for _, e := range entries {
			tbl.Row(
				e.Timestamp.Local().Format("2006-01-02 15:04:05"),
				describeOp(e),
				statusLabel(e),
				describeFiles(e),
			)
		}
		fmt.Print(tbl.String())
		return nil
	},
}

func describeOp(e history.Entry) string {
	if e.Action != "" {
		return e.Operation + " " + e.Action
	}
	return e.Operation
}

func statusLabel(e history.Entry) string {
	if e.Status == history.StatusFailed {
		return ui.SymbolError + " failed"
	}
	return ui.SymbolSuccess + " ok"
}

func describeFiles(e history.Entry) string {
	if e.Status == history.StatusFailed {
		return e.Error
	}
	parts := []string{}
	if len(e.Inputs) > 0 {
		parts = append(parts, fmt.Sprintf("%d in", len(e.Inputs)))
	}
	if len(e.Outputs) > 0 {
		parts = append(parts, fmt.Sprintf("%d out", len(e.Outputs)))
	}
	if len(e.Archived) > 0 {
		parts = append(parts, fmt.Sprintf("%d archived", len(e.Archived)))
	}
	return strings.Join(parts, ", ")
}

func init() {
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 20, "Number of entries to show")
	rootCmd.AddCommand(historyCmd)
}
