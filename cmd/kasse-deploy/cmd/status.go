package cmd

import (
	"github.com/spf13/cobra"

	"github.com/clubfridge/kasse-deploy/internal/service/status"
)

// statusCmd prints the deployment state without changing it.
var statusCmd = &cobra.Command{
	Use:   "status [service-user]",
	Short: "Show the deployed revision, configuration and service state",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		options := &status.Options{ConfigPath: configPath}
		if len(args) == 1 {
			options.ServiceUser = args[0]
		}

		return status.Run(cmd.Context(), options)
	},
}

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	rootCmd.AddCommand(statusCmd)
}
