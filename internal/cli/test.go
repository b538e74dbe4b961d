package cli

import (
	"github.com/spf13/cobra"
)

var testMessage string

var testCmd = &cobra.Command{
	Use:   "test",
	Short: "Send a test notification without touching the database",
	RunE: func(cmd *cobra.Command, args []string) error {
		return getApp().TestNotification(cmd.Context(), testMessage)
	},
}

func init() {
	testCmd.Flags().StringVarP(&testMessage, "message", "m", "", "Custom message text to send")
}
