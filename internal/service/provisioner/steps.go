package provisioner

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/clubfridge/kasse-deploy/internal/config"
	"github.com/clubfridge/kasse-deploy/internal/device"
	"github.com/clubfridge/kasse-deploy/internal/fsutil"
	"github.com/clubfridge/kasse-deploy/internal/logger"
	"github.com/clubfridge/kasse-deploy/internal/pipeline"
	"github.com/clubfridge/kasse-deploy/internal/repository/envfile"
	"github.com/clubfridge/kasse-deploy/internal/service/common"
	"github.com/clubfridge/kasse-deploy/internal/unit"
)

// autostartDir is the desktop autostart directory relative to the home directory.
const autostartDir = ".config/autostart"

// steps returns the provisioning steps in execution order.
func (r *runner) steps(ctx context.Context) []pipeline.Step {
	steps := []pipeline.Step{
		{Name: "system-packages", Done: r.packagesPresent, Apply: r.installPackages},
		{Name: "source", Apply: r.syncSource},
		{Name: "virtualenv", Done: r.venvExists, Apply: r.createVenv},
		{Name: "dependencies", Apply: r.installDependencies},
		{Name: "ownership", Apply: r.fixOwnership},
		{Name: "orchestrator-binary", Apply: r.installSelf},
		{Name: "settings", Done: r.settingsCurrent, Apply: r.saveSettings},
		{Name: "service-unit", Apply: r.installService},
		{Name: "update-timer", Apply: r.installTimer},
		{Name: "devices", Apply: r.discoverDevices, BestEffort: true},
	}

	if r.cfg.DisableAutostart {
		logger.Info(ctx, "Desktop autostart entry is disabled")
	} else {
		steps = append(steps, pipeline.Step{Name: "autostart", Done: r.autostartExists, Apply: r.installAutostart})
	}

	if r.opts.Reset {
		steps = append(steps, pipeline.Step{Name: "reset-configuration", Apply: r.resetConfiguration})
	}

	return steps
}

func (r *runner) packagesPresent(ctx context.Context) (bool, error) {
	missing, err := r.tools.Packages.Missing(ctx, r.cfg.Packages)
	if err != nil {
		return false, err
	}

	return len(missing) == 0, nil
}

func (r *runner) installPackages(ctx context.Context) error {
	missing, err := r.tools.Packages.Missing(ctx, r.cfg.Packages)
	if err != nil {
		return err
	}

	logger.InfoKV(ctx, "Installing system packages", "packages", missing)

	return r.tools.Packages.Install(ctx, missing)
}

// syncSource clones into an absent or empty directory and hard-resets an
// existing checkout to the tracked branch.
func (r *runner) syncSource(ctx context.Context) error {
	dir := r.cfg.InstallDir
	src := r.tools.Source

	if src.IsCheckout(dir) {
		if err := src.Fetch(ctx, dir, r.cfg.Branch); err != nil {
			return err
		}

		remote, err := src.RemoteHead(ctx, dir, r.cfg.Branch)
		if err != nil {
			return err
		}

		local, err := src.Head(ctx, dir)
		if err != nil {
			return err
		}

		if local == remote {
			logger.InfoKV(ctx, "Checkout is current", "revision", local.Short())
			return nil
		}

		logger.InfoKV(ctx, "Resetting checkout", "from", local.Short(), "to", remote.Short())

		return src.ResetHard(ctx, dir, remote)
	}

	empty, err := isEmptyDir(dir)
	if err != nil {
		return err
	}

	if !empty {
		return fmt.Errorf("%s: %w", dir, errNotACheckout)
	}

	if r.cfg.RepositoryURL == "" {
		return errRepositoryURLRequired
	}

	logger.InfoKV(ctx, "Cloning application", "url", r.cfg.RepositoryURL, "branch", r.cfg.Branch)

	return src.Clone(ctx, r.cfg.RepositoryURL, r.cfg.Branch, dir)
}

func (r *runner) venvExists(ctx context.Context) (bool, error) {
	exists := r.tools.Env.Exists(r.cfg.VenvPath())
	if exists {
		logger.InfoKV(ctx, "Runtime environment already exists", "path", r.cfg.VenvPath())
	}

	return exists, nil
}

func (r *runner) createVenv(ctx context.Context) error {
	logger.InfoKV(ctx, "Creating runtime environment", "path", r.cfg.VenvPath())

	return r.tools.Env.Create(ctx, r.cfg.VenvPath())
}

func (r *runner) installDependencies(ctx context.Context) error {
	return r.tools.Env.InstallRequirements(ctx, r.cfg.VenvPath(), r.cfg.RequirementsPath())
}

func (r *runner) fixOwnership(ctx context.Context) error {
	logger.DebugKV(ctx, "Transferring ownership", "path", r.cfg.InstallDir, "user", r.account.Name)

	return r.tools.Accounts.Chown(r.cfg.InstallDir, r.account)
}

func (r *runner) installSelf(ctx context.Context) error {
	changed, err := r.tools.Self.Install(r.cfg.BinaryPath)
	if err != nil {
		return err
	}

	if changed {
		logger.InfoKV(ctx, "Installed orchestrator binary", "path", r.cfg.BinaryPath)
	}

	return nil
}

// settingsCurrent reports whether the updater will read the same branch and
// repository from the settings file as this run uses.
func (r *runner) settingsCurrent(_ context.Context) (bool, error) {
	if !r.persist {
		return true, nil
	}

	saved, err := config.Load(r.configPath)
	if err != nil {
		return false, nil //nolint:nilerr // An unreadable file is rewritten.
	}

	return saved.Branch == r.cfg.Branch && saved.RepositoryURL == r.cfg.RepositoryURL, nil
}

// saveSettings persists the command-line overrides for the timer-driven updater.
func (r *runner) saveSettings(ctx context.Context) error {
	if err := config.Save(r.configPath, r.cfg); err != nil {
		return err
	}

	logger.InfoKV(ctx, "Saved settings", "path", r.configPath, "branch", r.cfg.Branch)

	return nil
}

// installService installs the application unit and enables it without starting.
func (r *runner) installService(ctx context.Context) error {
	service, err := unit.Service(common.UnitParams(r.cfg, r.configPath))
	if err != nil {
		return err
	}

	if err = r.installUnits(ctx, service); err != nil {
		return err
	}

	return r.tools.Supervisor.Enable(ctx, r.cfg.ServiceUnit(r.account.Name), false)
}

// installTimer installs the update service and its timer, then starts the timer.
func (r *runner) installTimer(ctx context.Context) error {
	files, err := unit.UpdateTrigger(common.UnitParams(r.cfg, r.configPath))
	if err != nil {
		return err
	}

	if err = r.installUnits(ctx, files...); err != nil {
		return err
	}

	return r.tools.Supervisor.Enable(ctx, r.cfg.UpdateTimer(r.account.Name), true)
}

// installUnits writes files and reloads the supervisor when any of them changed.
func (r *runner) installUnits(ctx context.Context, files ...unit.File) error {
	reload := false

	for _, f := range files {
		changed, err := r.tools.Supervisor.InstallUnit(f.Name, f.Content)
		if err != nil {
			return err
		}

		if changed {
			logger.InfoKV(ctx, "Installed unit", "unit", f.Name)
		}

		reload = reload || changed
	}

	if !reload {
		return nil
	}

	return r.tools.Supervisor.DaemonReload(ctx)
}

// discoverDevices reports attached input hardware. Nothing is persisted.
func (r *runner) discoverDevices(ctx context.Context) error {
	result, err := device.Discover(r.cfg.InputDeviceDir, r.cfg.Devices)
	if err != nil {
		return err
	}

	logger.InfoKV(ctx, "Keyboard-class input devices", "candidates", result.Candidates)

	if result.Empty() {
		logger.Warn(ctx, "No RFID reader or barcode scanner found, the application defaults apply")
		return nil
	}

	for _, d := range []*device.Detected{result.RFID, result.Barcode} {
		if d == nil {
			continue
		}

		logger.InfoKV(ctx, "Detected device", "category", d.Category, "path", d.Path, "fallback", d.Fallback)
	}

	logger.InfoKV(ctx, "Suggested application settings", "env", result.EnvLines())

	return nil
}

func (r *runner) autostartPath() string {
	return filepath.Join(r.account.HomeDir, autostartDir, unit.AutostartName)
}

func (r *runner) autostartExists(ctx context.Context) (bool, error) {
	exists := fsutil.Exists(r.autostartPath())
	if exists {
		logger.InfoKV(ctx, "Autostart entry already exists", "path", r.autostartPath())
	}

	return exists, nil
}

func (r *runner) installAutostart(ctx context.Context) error {
	entry, err := unit.Autostart()
	if err != nil {
		return err
	}

	// Hand over the topmost directory created here so the session can write to it.
	owned := filepath.Join(r.account.HomeDir, ".config")
	if fsutil.Exists(owned) {
		owned = filepath.Dir(r.autostartPath())
	}

	if err = os.MkdirAll(filepath.Dir(r.autostartPath()), fsutil.DirMode); err != nil {
		return fmt.Errorf("create autostart directory: %w", err)
	}

	if _, err = fsutil.WriteFile(r.autostartPath(), entry.Content, 0o644); err != nil {
		return err
	}

	logger.InfoKV(ctx, "Created autostart entry", "path", r.autostartPath())

	return r.tools.Accounts.Chown(owned, r.account)
}

func (r *runner) resetConfiguration(ctx context.Context) error {
	removed, err := envfile.New(r.cfg.EnvFilePath()).Remove()
	if err != nil {
		return err
	}

	if removed {
		logger.InfoKV(ctx, "Removed application configuration", "path", r.cfg.EnvFilePath())
	} else {
		logger.Info(ctx, "No application configuration to remove")
	}

	return nil
}

func isEmptyDir(dir string) (bool, error) {
	entries, err := os.ReadDir(dir)
	if errors.Is(err, os.ErrNotExist) {
		return true, nil
	}

	if err != nil {
		return false, fmt.Errorf("read install directory: %w", err)
	}

	return len(entries) == 0, nil
}
