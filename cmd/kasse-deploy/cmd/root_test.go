package cmd

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// TestCommandsRegistered checks the subcommands and their argument rules.
func TestCommandsRegistered(t *testing.T) {
	t.Parallel()

	for _, name := range []string{"install", "update", "status"} {
		found, _, err := rootCmd.Find([]string{name})
		require.NoError(t, err)
		require.Equal(t, name, found.Name())
	}

	require.Error(t, updateCmd.Args(updateCmd, nil))
	require.NoError(t, updateCmd.Args(updateCmd, []string{"pi"}))
	require.Error(t, statusCmd.Args(statusCmd, []string{"pi", "kiosk"}))
	require.Error(t, installCmd.Args(installCmd, []string{"extra"}))
}

// TestInstallFlags exposes the reset and override flags.
func TestInstallFlags(t *testing.T) {
	t.Parallel()

	for _, name := range []string{"reset", "user", "repo", "branch"} {
		require.NotNil(t, installCmd.Flags().Lookup(name), name)
	}

	require.NotNil(t, rootCmd.PersistentFlags().Lookup("config"))
	require.NotNil(t, rootCmd.PersistentFlags().Lookup("log-level"))
}
