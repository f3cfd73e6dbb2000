// Package status reports the deployment state of the host without changing it.
package status

import (
	"context"

	"github.com/clubfridge/kasse-deploy/internal/config"
	"github.com/clubfridge/kasse-deploy/internal/domain/host"
	"github.com/clubfridge/kasse-deploy/internal/fsutil"
	"github.com/clubfridge/kasse-deploy/internal/lock"
	"github.com/clubfridge/kasse-deploy/internal/logger"
	"github.com/clubfridge/kasse-deploy/internal/service/common"
)

// Options are inputs accepted by the status entry point.
type Options struct {
	// ConfigPath is the optional path to the settings YAML file.
	ConfigPath string
	// ServiceUser selects the service instance to inspect. Empty skips service checks.
	ServiceUser string
}

// Report is the read-only view of the host.
type Report struct {
	// State is the host snapshot.
	State *host.State
	// Holder describes the process holding the run lock, if any.
	Holder *lock.Holder
}

// Run loads the settings and logs the state of the host.
func Run(ctx context.Context, opts *Options) error {
	ctx = logger.WithName(ctx, "status")

	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return err
	}

	_, err = RunWith(ctx, cfg, opts, common.NewToolbox(cfg))

	return err
}

// RunWith snapshots the host through tools and logs the result.
func RunWith(ctx context.Context, cfg *config.Config, opts *Options, tools *common.Toolbox) (*Report, error) {
	state, err := common.Snapshot(ctx, cfg, tools, opts.ServiceUser)
	if err != nil {
		return nil, err
	}

	report := &Report{State: state}

	logger.InfoKV(ctx, "Installation",
		"install_dir", state.InstallDir,
		"checkout", state.Checkout,
		"revision", state.CurrentRevision.Short(),
		"venv", state.VenvExists,
		"configured", state.Configured,
	)

	if state.ServiceUser != "" {
		logger.InfoKV(ctx, "Services",
			"service_user", state.ServiceUser,
			"service_enabled", state.ServiceEnabled,
			"service_active", state.ServiceActive,
			"timer_enabled", state.TimerEnabled,
			"provisioned", state.Provisioned(),
		)
	}

	if fsutil.Exists(cfg.LockFile) {
		holder := lock.ReadHolder(cfg.LockFile)
		if holder.PID != 0 && holder.Executable != "" {
			report.Holder = &holder
			logger.InfoKV(ctx, "Run in progress", "holder", holder.String())
		}
	}

	return report, nil
}
