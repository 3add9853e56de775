package cli

import (
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
)

func walkCommands(cmd *cobra.Command, fn func(*cobra.Command)) {
	fn(cmd)
	for _, c := range cmd.Commands() {
		walkCommands(c, fn)
	}
}

func TestCommandsAreDocumented(t *testing.T) {
	walkCommands(rootCmd, func(cmd *cobra.Command) {
		if cmd.Hidden || cmd.Name() == "help" || cmd.Name() == "completion" {
			return
		}
		assert.NotEmpty(t, cmd.Short, "command %q has no short description", cmd.CommandPath())
		cmd.LocalFlags().VisitAll(func(flag *pflag.Flag) {
			if flag.Name == "help" {
				return
			}
			assert.NotEmpty(t, flag.Usage, "flag --%s on %q has no usage", flag.Name, cmd.CommandPath())
		})
	})
}

func TestCommandsRegistered(t *testing.T) {
	want := []string{
		"init", "add", "import", "run", "actions", "select", "selection", "show",
		"list", "archive", "unarchive", "reindex", "history", "version", "workspaces", "use",
	}
	for _, name := range want {
		cmd, _, err := rootCmd.Find([]string{name})
		if assert.NoError(t, err, name) {
			assert.Equal(t, name, cmd.Name())
		}
	}
}
