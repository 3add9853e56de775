package cli

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/aidanlsb/kmd/internal/action"
	"github.com/aidanlsb/kmd/internal/ui"
)

type actionInfo struct {
	Name           string   `json:"name"`
	Description    string   `json:"description,omitempty"`
	Implementation string   `json:"implementation"`
	Inputs         string   `json:"inputs"`
	OutputType     string   `json:"output_type,omitempty"`
	Model          string   `json:"model,omitempty"`
	Steps          []string `json:"steps,omitempty"`
	ReplacesInput  bool     `json:"replaces_input,omitempty"`
	Terminal       bool     `json:"terminal,omitempty"`
}

// arity describes how many inputs a spec accepts, e.g. "1+", "2", "1-3".
func arity(s action.Spec) string {
	switch {
	case s.MaxArgs == 0:
		return strconv.Itoa(s.MinArgs) + "+"
	case s.MinArgs == s.MaxArgs:
		return strconv.Itoa(s.MinArgs)
	default:
		return fmt.Sprintf("%d-%d", s.MinArgs, s.MaxArgs)
	}
}

var actionsCmd = &cobra.Command{
	Use:   "actions",
	Short: "List available actions",
	Long: `Lists built-in actions and the user actions defined in
.settings/settings.toml.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ws, err := openWorkspace()
		if err != nil {
			return handleError(ErrWorkspaceNotFound, err, "")
		}
		defer ws.Close()

		all := ws.Registry.All()
		infos := make([]actionInfo, 0, len(all))
		for _, a := range all {
			s := a.Spec()
			infos = append(infos, actionInfo{
				Name:           s.Name,
				Description:    s.Description,
				Implementation: string(s.Implementation),
				Inputs:         arity(s),
				OutputType:     string(s.OutputType),
				Model:          s.Model,
				Steps:          s.Steps,
				ReplacesInput:  s.ReplacesInput,
				Terminal:       s.Terminal,
			})
		}

		if isJSONOutput() {
			outputSuccess(infos, &Meta{Count: len(infos)})
			return nil
		}

		tbl := ui.NewTable()
		for _, info := range infos {
			desc := info.Description
			if info.Implementation == string(action.User) {
				desc += " (user)"
			}
			tbl.Row(info.Name, info.Inputs, desc)
		}
		fmt.Print(tbl.String())
		return nil
	},
}

func init() {
	rootCmd.AddCommand(actionsCmd)
}
