package status

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/clubfridge/kasse-deploy/internal/config"
	"github.com/clubfridge/kasse-deploy/internal/domain/host"
	"github.com/clubfridge/kasse-deploy/internal/fakehost"
	"github.com/clubfridge/kasse-deploy/internal/lock"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()

	root := t.TempDir()

	cfg := config.Default()
	cfg.InstallDir = filepath.Join(root, "kasse")
	cfg.LockFile = filepath.Join(root, "kasse.lock")
	require.NoError(t, config.Validate(cfg))

	return cfg
}

// TestRunWith_Unprovisioned reports an empty host.
func TestRunWith_Unprovisioned(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t)
	h := fakehost.New()

	report, err := RunWith(context.Background(), cfg, &Options{}, h.Toolbox())
	require.NoError(t, err)
	require.False(t, report.State.Checkout)
	require.False(t, report.State.Configured)
	require.True(t, report.State.CurrentRevision.IsZero())
	require.Nil(t, report.Holder)
}

// TestRunWith_Provisioned reads the revision, configuration and services without mutating them.
func TestRunWith_Provisioned(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t)
	h := fakehost.New(&host.Account{Name: "pi"})

	require.NoError(t, h.Git.Checkout(cfg.InstallDir, "ffee0011aa"))
	require.NoError(t, h.Venv.Create(context.Background(), cfg.VenvPath()))
	require.NoError(t, h.Systemd.Enable(context.Background(), cfg.ServiceUnit("pi"), true))
	require.NoError(t, os.WriteFile(cfg.EnvFilePath(), []byte("API_KEY=abc\n"), 0o600))

	report, err := RunWith(context.Background(), cfg, &Options{ServiceUser: "pi"}, h.Toolbox())
	require.NoError(t, err)

	state := report.State
	require.Equal(t, host.Revision("ffee0011aa"), state.CurrentRevision)
	require.True(t, state.Configured)
	require.True(t, state.ServiceActive)
	require.False(t, state.TimerEnabled)
	require.True(t, state.Provisioned())

	require.Equal(t, 0, h.Git.Fetches)
	require.Equal(t, 0, h.Git.Resets)
	require.Equal(t, 0, h.Systemd.Restarts(cfg.ServiceUnit("pi")))
}

// TestRunWith_LockHolder reports the process holding the run lock.
func TestRunWith_LockHolder(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t)

	held, err := lock.Acquire(cfg.LockFile, "update-run")
	require.NoError(t, err)

	defer func() { require.NoError(t, held.Release()) }()

	report, err := RunWith(context.Background(), cfg, &Options{}, fakehost.New().Toolbox())
	require.NoError(t, err)
	require.NotNil(t, report.Holder)
	require.Equal(t, os.Getpid(), report.Holder.PID)
	require.Equal(t, "update-run", report.Holder.RunID)
}
