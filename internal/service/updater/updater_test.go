package updater

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/clubfridge/kasse-deploy/internal/config"
	"github.com/clubfridge/kasse-deploy/internal/domain/host"
	"github.com/clubfridge/kasse-deploy/internal/fakehost"
	"github.com/clubfridge/kasse-deploy/internal/lock"
	"github.com/clubfridge/kasse-deploy/internal/metrics"
	"github.com/clubfridge/kasse-deploy/internal/service/common"
)

const serviceUnit = "clubfridge-kasse@pi.service"

type fixture struct {
	cfg  *config.Config
	host *fakehost.Host
}

// newFixture returns a provisioned host checked out at local with the remote at remote.
func newFixture(t *testing.T, local, remote host.Revision) *fixture {
	t.Helper()

	root := t.TempDir()

	cfg := config.Default()
	cfg.InstallDir = filepath.Join(root, "kasse")
	cfg.LockFile = filepath.Join(root, "run", "kasse.lock")
	require.NoError(t, config.Validate(cfg))

	h := fakehost.New(&host.Account{Name: "pi", UID: os.Getuid(), GID: os.Getgid(), HomeDir: root})
	require.NoError(t, h.Git.Checkout(cfg.InstallDir, local))
	h.Git.Remote = remote

	return &fixture{cfg: cfg, host: h}
}

func (f *fixture) run(t *testing.T) (*Result, error) {
	t.Helper()

	return RunWith(context.Background(), f.cfg, &Options{ServiceUser: "pi"}, f.host.Toolbox())
}

// assertUntouched checks that no mutating action happened.
func (f *fixture) assertUntouched(t *testing.T) {
	t.Helper()

	require.Equal(t, 0, f.host.Git.Resets)
	require.Equal(t, 0, f.host.Venv.Requirements)
	require.Empty(t, f.host.Users.Chowned)
	require.Equal(t, 0, f.host.Systemd.Restarts(serviceUnit))
}

// TestRunWith_UpToDate performs no mutating action when revisions match.
func TestRunWith_UpToDate(t *testing.T) {
	t.Parallel()

	f := newFixture(t, "abc123de", "abc123de")

	result, err := f.run(t)
	require.NoError(t, err)
	require.Equal(t, metrics.OutcomeUpToDate, result.Outcome)
	require.Equal(t, 1, f.host.Git.Fetches)
	f.assertUntouched(t)
}

// TestRunWith_AppliesNewRevision deploys a newer remote and is a no-op afterwards.
func TestRunWith_AppliesNewRevision(t *testing.T) {
	t.Parallel()

	f := newFixture(t, "abc123de", "ffee0011")

	result, err := f.run(t)
	require.NoError(t, err)
	require.Equal(t, metrics.OutcomeUpdated, result.Outcome)
	require.Equal(t, host.Revision("abc123de"), result.From)
	require.Equal(t, host.Revision("ffee0011"), result.To)

	head, err := f.host.Git.Head(context.Background(), f.cfg.InstallDir)
	require.NoError(t, err)
	require.Equal(t, host.Revision("ffee0011"), head)

	require.Equal(t, 1, f.host.Git.Resets)
	require.Equal(t, 1, f.host.Venv.Requirements)
	require.Equal(t, []string{f.cfg.InstallDir}, f.host.Users.Chowned)
	require.Equal(t, 1, f.host.Systemd.Restarts(serviceUnit))

	result, err = f.run(t)
	require.NoError(t, err)
	require.Equal(t, metrics.OutcomeUpToDate, result.Outcome)
	require.Equal(t, 1, f.host.Git.Resets)
	require.Equal(t, 1, f.host.Systemd.Restarts(serviceUnit))
}

// TestRunWith_Offline succeeds without changes when the fetch fails.
func TestRunWith_Offline(t *testing.T) {
	t.Parallel()

	f := newFixture(t, "abc123de", "ffee0011")
	f.host.Git.FetchErr = errors.New("could not resolve host")

	result, err := f.run(t)
	require.NoError(t, err)
	require.Equal(t, metrics.OutcomeOffline, result.Outcome)
	require.Equal(t, host.Revision("abc123de"), result.To)
	f.assertUntouched(t)
}

// TestRunWith_Locked skips the run while another run holds the lock.
func TestRunWith_Locked(t *testing.T) {
	t.Parallel()

	f := newFixture(t, "abc123de", "ffee0011")

	held, err := lock.Acquire(f.cfg.LockFile, "install-run")
	require.NoError(t, err)

	defer func() { require.NoError(t, held.Release()) }()

	result, err := f.run(t)
	require.NoError(t, err)
	require.Equal(t, metrics.OutcomeLocked, result.Outcome)
	require.Equal(t, 0, f.host.Git.Fetches)
	f.assertUntouched(t)
}

// TestRunWith_DependencyFailure propagates the error and keeps the new code in place.
func TestRunWith_DependencyFailure(t *testing.T) {
	t.Parallel()

	f := newFixture(t, "abc123de", "ffee0011")
	f.host.Venv.RequirementsErr = errors.New("pip: no matching distribution")

	result, err := f.run(t)
	require.ErrorIs(t, err, f.host.Venv.RequirementsErr)
	require.Equal(t, metrics.OutcomeFailed, result.Outcome)
	require.Equal(t, 0, f.host.Systemd.Restarts(serviceUnit))

	head, err := f.host.Git.Head(context.Background(), f.cfg.InstallDir)
	require.NoError(t, err)
	require.Equal(t, host.Revision("ffee0011"), head)
}

// TestRunWith_RevisionMismatch refuses to restart when the reset did not land.
func TestRunWith_RevisionMismatch(t *testing.T) {
	t.Parallel()

	f := newFixture(t, "abc123de", "ffee0011")
	f.host.Git.ResetTo = "deadbeef"

	_, err := f.run(t)
	require.ErrorIs(t, err, errRevisionMismatch)
	require.Equal(t, 0, f.host.Venv.Requirements)
	require.Equal(t, 0, f.host.Systemd.Restarts(serviceUnit))
}

// TestRunWith_Preconditions rejects unprivileged runs and unprovisioned hosts.
func TestRunWith_Preconditions(t *testing.T) {
	t.Parallel()

	f := newFixture(t, "abc123de", "ffee0011")
	f.host.Users.Privileged = false

	_, err := f.run(t)
	require.ErrorIs(t, err, common.ErrNotPrivileged)

	f = newFixture(t, "abc123de", "ffee0011")
	f.cfg.InstallDir = filepath.Join(t.TempDir(), "elsewhere")

	_, err = f.run(t)
	require.ErrorIs(t, err, common.ErrNotProvisioned)

	_, err = RunWith(context.Background(), f.cfg, &Options{}, f.host.Toolbox())
	require.ErrorIs(t, err, errServiceUserRequired)
}

// TestRunWith_Metrics writes the outcome and deployed revision to the textfile.
func TestRunWith_Metrics(t *testing.T) {
	t.Parallel()

	f := newFixture(t, "abc123de", "ffee0011")
	f.cfg.MetricsTextfile = filepath.Join(t.TempDir(), "kasse_update.prom")

	_, err := f.run(t)
	require.NoError(t, err)

	contents, err := os.ReadFile(f.cfg.MetricsTextfile)
	require.NoError(t, err)
	require.Contains(t, string(contents), `kasse_update_outcome{outcome="updated"} 1`)
	require.Contains(t, string(contents), `kasse_deployed_revision_info{revision="ffee0011"} 1`)
}
