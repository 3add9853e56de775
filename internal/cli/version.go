package cli

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/aidanlsb/kmd/internal/buildinfo"
	"github.com/aidanlsb/kmd/internal/ui"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show kmd version and build information",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		info := buildinfo.Current()
		if isJSONOutput() {
			outputSuccess(info, nil)
			return nil
		}

		fmt.Println(ui.Header("kmd " + info.Short()))
		tbl := ui.NewTable().
			Row(ui.Hint("module"), info.ModulePath).
			Row(ui.Hint("go"), info.GoVersion).
			Row(ui.Hint("platform"), info.GOOS+"/"+info.GOARCH)
		if info.CommitTime != "" {
			tbl.Row(ui.Hint("committed"), info.CommitTime)
		}
		tbl.Row(ui.Hint("modified"), strconv.FormatBool(info.Modified))
		fmt.Print(tbl.String())
		return nil
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
