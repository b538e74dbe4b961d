package cli

import (
	"github.com/spf13/cobra"
)

// runCmd is the explicit form of the default action; `tempwatcher` with no
// subcommand does the same thing.
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the polling monitor loop",
	RunE: func(cmd *cobra.Command, args []string) error {
		return getApp().Run(cmd.Context())
	},
}
