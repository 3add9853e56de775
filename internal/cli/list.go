package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/aidanlsb/kmd/internal/index"
	"github.com/aidanlsb/kmd/internal/model"
	"github.com/aidanlsb/kmd/internal/ui"
)

var (
	listArchived bool
	listLimit    int
)

// parseTypeArg accepts a type name ("note") or its folder ("notes").
func parseTypeArg(arg string) (model.ItemType, error) {
	if t, err := model.ParseItemType(arg); err == nil {
		return t, nil
	}
	return model.TypeForFolder(arg)
}

var listCmd = &cobra.Command{
	Use:   "list [type]",
	Short: "List items, newest first",
	Long: `Lists items from the index, most recently modified first. The rows are
numbered so later commands can refer to them ("kmd select 1,3").

Types: note, question, concept, answer, resource, description, export.
Folder names (notes, resources, ...) work too.

Examples:
  kmd list
  kmd list resources --limit 10
  kmd list --archived`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		opts := index.ListOptions{IncludeArchived: listArchived, Limit: listLimit}
		if len(args) == 1 {
			t, err := parseTypeArg(args[0])
			if err != nil {
				return handleError(ErrUnknownItemType, err, "Types: note, question, concept, answer, resource, description, export")
			}
			opts.Type = string(t)
		}

		ws, err := openWorkspace()
		if err != nil {
			return handleError(ErrWorkspaceNotFound, err, "")
		}
		defer ws.Close()

		entries, err := ws.Index.List(opts)
		if err != nil {
			return handleError(ErrInternal, err, "Run 'kmd reindex' to rebuild the index")
		}

		if isJSONOutput() {
			paths := make([]string, len(entries))
			for i, e := range entries {
				paths[i] = e.StorePath
			}
			if err := ws.RememberListing("list", paths); err != nil {
				return handleError(ErrInternal, err, "")
			}
			outputSuccess(toListed(entries), &Meta{Count: len(entries)})
			return nil
		}
		if len(entries) == 0 {
			fmt.Println(ui.Hint("No items."))
			return nil
		}
		return renderEntries(ws, "list", entries)
	},
}

func init() {
	listCmd.Flags().BoolVar(&listArchived, "archived", false, "Include archived items")
	listCmd.Flags().IntVarP(&listLimit, "limit", "n", 0, "Show at most this many items")
	rootCmd.AddCommand(listCmd)
}
