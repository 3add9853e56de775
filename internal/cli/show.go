package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/aidanlsb/kmd/internal/model"
	"github.com/aidanlsb/kmd/internal/ui"
)

var showRaw bool

var showCmd = &cobra.Command{
	Use:   "show [item]",
	Short: "Show an item's metadata and content",
	Long: `Prints an item's metadata and renders its body. Markdown is rendered for the
terminal unless --raw is given.

With no argument, the first selected item is shown.

Examples:
  kmd show
  kmd show 2
  kmd show notes/ideas.note.md --raw`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ws, err := openWorkspace()
		if err != nil {
			return handleError(ErrWorkspaceNotFound, err, "")
		}
		defer ws.Close()

		resolved, err := ws.ResolveNumbers(args)
		if err != nil {
			return handleError(ErrInvalidInput, err, "")
		}
		items, err := ws.Pipeline.Resolve(resolved)
		if err != nil {
			return handleError(ErrItemNotFound, err, "")
		}
		if len(items) == 0 {
			return handleErrorMsg(ErrNoSelection, "nothing selected", "Pass an item or select one first")
		}
		item := items[0]

		if isJSONOutput() {
			outputSuccess(item, nil)
			return nil
		}

		printItemHeader(item)
		if !item.IsText() {
			if item.ExternalPath != "" {
				fmt.Println(ui.Hint("binary content: " + item.ExternalPath))
			}
			return nil
		}
		body := item.Body
		if !showRaw && item.Format.IsMarkdown() {
			rendered, err := ui.RenderMarkdown(body, ui.Width())
			if err == nil {
				body = rendered
			}
		}
		fmt.Println(strings.TrimRight(body, "\n"))
		return nil
	},
}

func printItemHeader(item *model.Item) {
	fmt.Println(ui.Header(item.AbbrevTitle(100)))
	tbl := ui.NewTable()
	row := func(k, v string) {
		if v != "" {
			tbl.Row(k, v)
		}
	}
	row("path", item.StorePath)
	row("type", string(item.Type))
	row("format", string(item.Format))
	row("url", item.URL)
	row("description", item.Description)
	if !item.CreatedAt.IsZero() {
		row("created", item.CreatedAt.Local().Format("2006-01-02 15:04"))
	}
	if !item.ModifiedAt.IsZero() {
		row("modified", item.ModifiedAt.Local().Format("2006-01-02 15:04"))
	}
	row("derived from", strings.Join(item.Relations.DerivedFrom, ", "))
	if item.Source != nil {
		row("source", item.Source.ActionName)
	}
	fmt.Print(ui.Hint(strings.TrimRight(tbl.String(), "\n")))
	fmt.Println()
	fmt.Println()
}

func init() {
	showCmd.Flags().BoolVar(&showRaw, "raw", false, "Print the body without rendering")
	rootCmd.AddCommand(showCmd)
}
