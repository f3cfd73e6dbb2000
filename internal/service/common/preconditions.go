//nolint:revive,nolintlint // Package name "common" is intentional for shared helpers.
package common

import (
	"context"
	"errors"
	"fmt"

	"github.com/clubfridge/kasse-deploy/internal/config"
	"github.com/clubfridge/kasse-deploy/internal/domain/host"
	"github.com/clubfridge/kasse-deploy/internal/lock"
	"github.com/clubfridge/kasse-deploy/internal/logger"
	"github.com/clubfridge/kasse-deploy/internal/repository/envfile"
	"github.com/clubfridge/kasse-deploy/internal/unit"
)

var (
	// ErrNotPrivileged is returned when a mutating run lacks root privileges.
	ErrNotPrivileged = errors.New("administrative privileges are required, run with sudo")
	// ErrInterpreterTooOld is returned when the system interpreter is below the minimum version.
	ErrInterpreterTooOld = errors.New("python interpreter is older than required")
	// ErrNotProvisioned is returned when the install directory holds no checkout.
	ErrNotProvisioned = errors.New("application is not provisioned, run install first")
)

// EnsurePrivileged fails unless the process may modify the host.
func EnsurePrivileged(tools *Toolbox) error {
	if !tools.Accounts.IsPrivileged() {
		return ErrNotPrivileged
	}

	return nil
}

// EnsureInterpreter checks the system interpreter against the configured minimum.
func EnsureInterpreter(ctx context.Context, cfg *config.Config, tools *Toolbox) (host.Version, error) {
	minimum, err := host.ParseVersion(cfg.Python.MinVersion)
	if err != nil {
		return host.Version{}, fmt.Errorf("parse minimum python version: %w", err)
	}

	found, err := tools.Env.InterpreterVersion(ctx)
	if err != nil {
		return host.Version{}, fmt.Errorf("detect python version: %w", err)
	}

	if !found.AtLeast(minimum) {
		return found, fmt.Errorf("%w: found %s, need %s", ErrInterpreterTooOld, found, minimum)
	}

	logger.DebugKV(ctx, "Interpreter accepted", "version", found.String(), "minimum", minimum.String())

	return found, nil
}

// AcquireLock takes the run lock shared by the provisioner and the updater.
func AcquireLock(ctx context.Context, cfg *config.Config, runID string) (*lock.Lock, error) {
	l, err := lock.Acquire(cfg.LockFile, runID)
	if err != nil {
		return nil, err
	}

	logger.DebugKV(ctx, "Lock acquired", "path", l.Path())

	return l, nil
}

// ReleaseLock releases l and logs a failure instead of returning it.
func ReleaseLock(ctx context.Context, l *lock.Lock) {
	if err := l.Release(); err != nil {
		logger.WarnKV(ctx, "Failed to release lock", "path", l.Path(), "error", err)
	}
}

// UnitParams derives the template values of all units from cfg stored at configPath.
func UnitParams(cfg *config.Config, configPath string) *unit.Params {
	return &unit.Params{
		ServiceName: cfg.ServiceName,
		InstallDir:  cfg.InstallDir,
		Python:      cfg.VenvPython(),
		EntryPoint:  cfg.EntryPointPath(),
		Display:     cfg.Display,
		Binary:      cfg.BinaryPath,
		Schedule:    cfg.UpdateSchedule,
		ConfigPath:  configPath,
	}
}

// Snapshot captures the current state of the host. Service fields stay false
// when serviceUser is empty.
func Snapshot(ctx context.Context, cfg *config.Config, tools *Toolbox, serviceUser string) (*host.State, error) {
	state := &host.State{
		InstallDir:  cfg.InstallDir,
		ServiceUser: serviceUser,
		VenvPath:    cfg.VenvPath(),
		Checkout:    tools.Source.IsCheckout(cfg.InstallDir),
		VenvExists:  tools.Env.Exists(cfg.VenvPath()),
	}

	if state.Checkout {
		rev, err := tools.Source.Head(ctx, cfg.InstallDir)
		if err != nil {
			return nil, fmt.Errorf("read current revision: %w", err)
		}

		state.CurrentRevision = rev
	}

	configured, err := envfile.New(cfg.EnvFilePath()).Configured()
	if err != nil {
		return nil, fmt.Errorf("read application configuration: %w", err)
	}

	state.Configured = configured

	if serviceUser == "" {
		return state, nil
	}

	if state.ServiceEnabled, err = tools.Supervisor.IsEnabled(ctx, cfg.ServiceUnit(serviceUser)); err != nil {
		return nil, err
	}

	if state.ServiceActive, err = tools.Supervisor.IsActive(ctx, cfg.ServiceUnit(serviceUser)); err != nil {
		return nil, err
	}

	if state.TimerEnabled, err = tools.Supervisor.IsEnabled(ctx, cfg.UpdateTimer(serviceUser)); err != nil {
		return nil, err
	}

	return state, nil
}
