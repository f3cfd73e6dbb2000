package provisioner

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
	"github.com/clubfridge/kasse-deploy/internal/pipeline"
	"github.com/clubfridge/kasse-deploy/internal/service/common"
	"github.com/clubfridge/kasse-deploy/internal/service/updater"
	"github.com/clubfridge/kasse-deploy/internal/unit"
)

type fixture struct {
	cfg     *config.Config
	host    *fakehost.Host
	account *host.Account
	opts    *Options
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	root := t.TempDir()

	cfg := config.Default()
	cfg.InstallDir = filepath.Join(root, "kasse")
	cfg.LockFile = filepath.Join(root, "run", "kasse.lock")
	cfg.UnitDir = filepath.Join(root, "units")
	cfg.InputDeviceDir = filepath.Join(root, "by-id")
	cfg.RepositoryURL = "https://git.example.org/clubfridge/kasse.git"
	require.NoError(t, config.Validate(cfg))

	acct := &host.Account{Name: "pi", UID: os.Getuid(), GID: os.Getgid(), HomeDir: filepath.Join(root, "home", "pi")}
	require.NoError(t, os.MkdirAll(acct.HomeDir, 0o755))

	h := fakehost.New(acct)
	h.Git.Remote = "abc123de"

	return &fixture{
		cfg:     cfg,
		host:    h,
		account: acct,
		opts:    &Options{ServiceUser: "pi", ConfigPath: filepath.Join(root, "etc", "kasse-deploy.yaml")},
	}
}

func (f *fixture) run(t *testing.T) (*Summary, error) {
	t.Helper()

	return RunWith(context.Background(), f.cfg, f.opts, f.host.Toolbox())
}

func (f *fixture) autostartPath() string {
	return filepath.Join(f.account.HomeDir, autostartDir, unit.AutostartName)
}

// TestRunWith_FreshHost provisions every component of an empty host.
func TestRunWith_FreshHost(t *testing.T) {
	t.Parallel()

	f := newFixture(t)

	summary, err := f.run(t)
	require.NoError(t, err)

	state := summary.State
	require.True(t, state.Checkout)
	require.Equal(t, host.Revision("abc123de"), state.CurrentRevision)
	require.True(t, state.VenvExists)
	require.True(t, state.ServiceEnabled)
	require.False(t, state.ServiceActive, "the service is enabled but not started")
	require.True(t, state.TimerEnabled)
	require.False(t, state.Configured)

	require.Equal(t, 1, f.host.Packages.Installs)
	require.Equal(t, 1, f.host.Git.Clones)
	require.Equal(t, 1, f.host.Venv.Creates)
	require.Equal(t, 1, f.host.Venv.Requirements)
	require.Equal(t, 1, f.host.Self.Installs)
	require.Contains(t, f.host.Users.Chowned, f.cfg.InstallDir)

	for _, name := range []string{"clubfridge-kasse@.service", "clubfridge-kasse-update@.service", "clubfridge-kasse-update@.timer"} {
		_, ok := f.host.Systemd.Unit(name)
		require.True(t, ok, name)
	}

	require.FileExists(t, f.autostartPath())

	outcome, ok := summary.Report.Outcome("devices")
	require.True(t, ok)
	require.Equal(t, pipeline.OutcomeWarned, outcome, "a missing device directory is tolerated")

	_, ok = summary.Report.Outcome("reset-configuration")
	require.False(t, ok)

	outcome, _ = summary.Report.Outcome("settings")
	require.Equal(t, pipeline.OutcomeSkipped, outcome)
	require.NoFileExists(t, f.opts.ConfigPath, "settings without overrides are left alone")

	trigger, ok := f.host.Systemd.Unit("clubfridge-kasse-update@.service")
	require.True(t, ok)
	require.Contains(t, string(trigger), "--config "+f.opts.ConfigPath+" update %i")
}

// TestRunWith_Idempotent re-runs on a provisioned host without duplicating work.
func TestRunWith_Idempotent(t *testing.T) {
	t.Parallel()

	f := newFixture(t)

	_, err := f.run(t)
	require.NoError(t, err)

	reloads := f.host.Systemd.Reloads

	summary, err := f.run(t)
	require.NoError(t, err)

	require.Equal(t, 1, f.host.Git.Clones)
	require.Equal(t, 0, f.host.Git.Resets)
	require.Equal(t, 1, f.host.Venv.Creates)
	require.Equal(t, 1, f.host.Packages.Installs)
	require.Equal(t, 1, f.host.Self.Installs)
	require.Equal(t, reloads, f.host.Systemd.Reloads)
	require.Equal(t, 2, f.host.Venv.Requirements, "dependencies are always refreshed")

	for _, step := range []string{"system-packages", "virtualenv", "autostart"} {
		outcome, ok := summary.Report.Outcome(step)
		require.True(t, ok, step)
		require.Equal(t, pipeline.OutcomeSkipped, outcome, step)
	}

	entries, err := os.ReadDir(filepath.Dir(f.autostartPath()))
	require.NoError(t, err)
	require.Len(t, entries, 1)
}

// TestRunWith_ResetsExistingCheckout hard-resets a checkout that is behind the branch.
func TestRunWith_ResetsExistingCheckout(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	require.NoError(t, f.host.Git.Checkout(f.cfg.InstallDir, "0badc0de"))

	summary, err := f.run(t)
	require.NoError(t, err)
	require.Equal(t, 0, f.host.Git.Clones)
	require.Equal(t, 1, f.host.Git.Resets)
	require.Equal(t, host.Revision("abc123de"), summary.State.CurrentRevision)
}

// TestRunWith_ResetConfiguration removes the application settings and tolerates their absence.
func TestRunWith_ResetConfiguration(t *testing.T) {
	t.Parallel()

	f := newFixture(t)

	_, err := f.run(t)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(f.cfg.EnvFilePath(), []byte("API_KEY=secret\n"), 0o600))

	f.opts.Reset = true

	summary, err := f.run(t)
	require.NoError(t, err)
	require.NoFileExists(t, f.cfg.EnvFilePath())
	require.False(t, summary.State.Configured)

	_, err = f.run(t)
	require.NoError(t, err)
}

// TestRunWith_NotPrivileged fails before touching the host.
func TestRunWith_NotPrivileged(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.host.Users.Privileged = false
	f.opts.ServiceUser = ""

	_, err := f.run(t)
	require.ErrorIs(t, err, common.ErrNotPrivileged)
	require.Equal(t, 0, f.host.Packages.Installs)
	require.NoFileExists(t, f.cfg.LockFile)
}

// TestRunWith_InterpreterTooOld aborts on an outdated system interpreter.
func TestRunWith_InterpreterTooOld(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.host.Venv.Python = host.Version{Major: 3, Minor: 9, Patch: 2}

	_, err := f.run(t)
	require.ErrorIs(t, err, common.ErrInterpreterTooOld)
	require.ErrorContains(t, err, "3.9.2")
	require.Equal(t, 0, f.host.Packages.Installs)
}

// TestRunWith_UnknownUser rejects service users missing from the host.
func TestRunWith_UnknownUser(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.opts.ServiceUser = "kiosk"

	_, err := f.run(t)
	require.Error(t, err)
	require.Equal(t, 0, f.host.Packages.Installs)
}

// TestRunWith_PackageFailureAborts stops at the first failing step.
func TestRunWith_PackageFailureAborts(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.host.Packages.InstallErr = errors.New("apt-get: exit status 100")

	_, err := f.run(t)
	require.ErrorIs(t, err, f.host.Packages.InstallErr)
	require.ErrorContains(t, err, `step "system-packages"`)
	require.Equal(t, 0, f.host.Git.Clones)
	require.Equal(t, 0, f.host.Venv.Creates)
}

// TestRunWith_RefusesForeignDirectory does not clone over unrelated files.
func TestRunWith_RefusesForeignDirectory(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	require.NoError(t, os.MkdirAll(f.cfg.InstallDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(f.cfg.InstallDir, "notes.txt"), nil, 0o644))

	_, err := f.run(t)
	require.ErrorIs(t, err, errNotACheckout)
	require.Equal(t, 0, f.host.Git.Clones)
}

// TestRunWith_RepositoryOverride clones from the command-line repository.
func TestRunWith_RepositoryOverride(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.cfg.RepositoryURL = ""

	_, err := f.run(t)
	require.ErrorIs(t, err, errRepositoryURLRequired)

	f.opts.RepositoryURL = "https://git.example.org/fork/kasse.git"
	f.opts.Branch = "kiosk"

	_, err = f.run(t)
	require.NoError(t, err)
	require.Equal(t, 1, f.host.Git.Clones)
	require.Empty(t, f.cfg.RepositoryURL, "the caller's settings value is not mutated")

	saved, err := config.Load(f.opts.ConfigPath)
	require.NoError(t, err)
	require.Equal(t, "https://git.example.org/fork/kasse.git", saved.RepositoryURL)
	require.Equal(t, "kiosk", saved.Branch)
}

// TestRunWith_BranchReachesUpdater persists the branch override for the timer-driven updater.
func TestRunWith_BranchReachesUpdater(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.opts.Branch = "kiosk"

	summary, err := f.run(t)
	require.NoError(t, err)

	outcome, _ := summary.Report.Outcome("settings")
	require.Equal(t, pipeline.OutcomeApplied, outcome)

	saved, err := config.Load(f.opts.ConfigPath)
	require.NoError(t, err)
	require.Equal(t, "kiosk", saved.Branch)
	require.Equal(t, f.cfg.InstallDir, saved.InstallDir)
	require.Equal(t, f.cfg.LockFile, saved.LockFile)

	trigger, ok := f.host.Systemd.Unit("clubfridge-kasse-update@.service")
	require.True(t, ok)
	require.Contains(t, string(trigger), "--config "+f.opts.ConfigPath+" update %i")

	result, err := updater.RunWith(context.Background(), saved, &updater.Options{ServiceUser: "pi"}, f.host.Toolbox())
	require.NoError(t, err)
	require.Equal(t, metrics.OutcomeUpToDate, result.Outcome)

	summary, err = f.run(t)
	require.NoError(t, err)

	outcome, _ = summary.Report.Outcome("settings")
	require.Equal(t, pipeline.OutcomeSkipped, outcome)
}

// TestRunWith_Devices reports detected hardware as an applied step.
func TestRunWith_Devices(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	require.NoError(t, os.MkdirAll(f.cfg.InputDeviceDir, 0o755))

	for _, name := range []string{"usb-Sycreader_RFID_Technology-event-kbd", "usb-Honeywell_Scanner-event-kbd"} {
		require.NoError(t, os.Symlink("../event3", filepath.Join(f.cfg.InputDeviceDir, name)))
	}

	summary, err := f.run(t)
	require.NoError(t, err)

	outcome, _ := summary.Report.Outcome("devices")
	require.Equal(t, pipeline.OutcomeApplied, outcome)
}

// TestRunWith_AutostartDisabled leaves the desktop session untouched.
func TestRunWith_AutostartDisabled(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.cfg.DisableAutostart = true

	summary, err := f.run(t)
	require.NoError(t, err)
	require.NoFileExists(t, f.autostartPath())

	_, ok := summary.Report.Outcome("autostart")
	require.False(t, ok)
}

// TestRunWith_Locked refuses to run while another run holds the lock.
func TestRunWith_Locked(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	require.NoError(t, os.MkdirAll(filepath.Dir(f.cfg.LockFile), 0o755))

	held, err := lock.Acquire(f.cfg.LockFile, "other-run")
	require.NoError(t, err)

	defer func() { require.NoError(t, held.Release()) }()

	_, err = f.run(t)
	require.ErrorIs(t, err, lock.ErrLocked)
	require.Equal(t, 0, f.host.Packages.Installs)
}
