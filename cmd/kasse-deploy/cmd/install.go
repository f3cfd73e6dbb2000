package cmd

import (
	"github.com/spf13/cobra"

	"github.com/clubfridge/kasse-deploy/internal/service/provisioner"
	"github.com/clubfridge/kasse-deploy/internal/system/account"
)

var (
	installOptions provisioner.Options

	// installCmd provisions the host.
	installCmd = &cobra.Command{
		Use:   "install",
		Short: "Install the kiosk application, its services and the update timer",
		Long: "Install brings the host to a runnable state. It is safe to run again;\n" +
			"completed steps are skipped. Requires root.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			serviceUser, err := account.DefaultServiceUser(installOptions.ServiceUser)
			if err != nil {
				return err
			}

			options := installOptions
			options.ConfigPath = configPath
			options.ServiceUser = serviceUser

			return provisioner.Run(cmd.Context(), &options)
		},
	}
)

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	flags := installCmd.Flags()
	flags.BoolVar(&installOptions.Reset, "reset", false, "remove the application configuration to re-run its first-run setup")
	flags.StringVar(&installOptions.ServiceUser, "user", "", "service user (default: the sudo caller)")
	flags.StringVar(&installOptions.RepositoryURL, "repo", "", "repository URL overriding the settings")
	flags.StringVar(&installOptions.Branch, "branch", "", "branch overriding the settings")

	rootCmd.AddCommand(installCmd)
}
