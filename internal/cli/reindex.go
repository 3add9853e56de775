package cli

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/aidanlsb/kmd/internal/history"
	"github.com/aidanlsb/kmd/internal/index"
	"github.com/aidanlsb/kmd/internal/ui"
)

type reindexResult struct {
	Indexed int          `json:"indexed"`
	Skipped []string     `json:"skipped"`
	Stats   *index.Stats `json:"stats"`
}

var reindexCmd = &cobra.Command{
	Use:   "reindex",
	Short: "Rebuild the item index from the files on disk",
	Long: `Reads every item file, live and archived, and rebuilds the SQLite index in
.index/. The files are the source of truth; the index can always be
rebuilt. Files that cannot be read are skipped and reported.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ws, err := openWorkspace()
		if err != nil {
			return handleError(ErrWorkspaceNotFound, err, "")
		}
		defer ws.Close()

		if !isJSONOutput() {
			fmt.Printf("Reindexing workspace: %s\n", ui.FilePath(ws.Root))
		}
		start := time.Now()
		indexed, skipped, err := ws.Store.Reindex()
		if err != nil {
			return handleError(ErrInternal, err, "")
		}
		if _, err := ws.History.Append(history.Entry{
			Operation: "reindex",
			Status:    history.StatusOK,
			Duration:  time.Since(start).Round(time.Millisecond).String(),
		}); err != nil && !isJSONOutput() {
			fmt.Fprintf(os.Stderr, "Warning: failed to record history: %v\n", err)
		}

		stats, err := ws.Index.Stats()
		if err != nil {
			return handleError(ErrInternal, err, "")
		}

		if isJSONOutput() {
			var warnings []Warning
			for _, p := range skipped {
				warnings = append(warnings, Warning{Code: WarnIndexSkipped, Message: "unreadable item", Ref: p})
			}
			outputSuccess(reindexResult{Indexed: indexed, Skipped: skipped, Stats: stats},
				&Meta{Count: indexed, DurationMs: time.Since(start).Milliseconds()}, warnings...)
			return nil
		}

		fmt.Println(ui.Successf("Indexed %s", ui.Count(indexed, "item", "items")))
		for _, p := range skipped {
			fmt.Println(ui.Warningf("skipped %s", p))
		}
		if stats.ArchivedCount > 0 {
			fmt.Println(ui.Hint(fmt.Sprintf("%d live, %d archived", stats.ItemCount, stats.ArchivedCount)))
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(reindexCmd)
}
