package cmd

import (
	"github.com/spf13/cobra"

	"github.com/clubfridge/kasse-deploy/internal/service/updater"
)

// updateCmd runs one update; the update timer invokes it with the service user.
var updateCmd = &cobra.Command{
	Use:   "update <service-user>",
	Short: "Deploy the newest revision of the tracked branch and restart the kiosk",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		options := &updater.Options{
			ConfigPath:  configPath,
			ServiceUser: args[0],
		}

		return updater.Run(cmd.Context(), options)
	},
}

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	rootCmd.AddCommand(updateCmd)
}
