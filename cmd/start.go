package cmd

import (
	"github.com/spf13/cobra"

	"github.com/tudl/bugit/pkg/bootstrap"
)

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "start bugit",
	Long: `Load the master key, build the field cipher and run the one-shot key exchange
with the partner service, then wait for SIGINT or SIGTERM.

A failed key exchange is logged and bugit keeps running without an API key.
Configuration errors, such as a master key of the wrong length, are fatal.`,
	RunE: bootstrap.Run,
}

func init() {
	rootCmd.AddCommand(startCmd)
	startCmd.Flags().BoolVar(
		&bootstrap.ExitAfterStartup,
		"exit-after-startup",
		false,
		"Exit as soon as the startup sequence has completed, instead of waiting for a signal.",
	)
}
