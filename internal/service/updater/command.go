package updater

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/clubfridge/kasse-deploy/internal/config"
	"github.com/clubfridge/kasse-deploy/internal/domain/host"
	"github.com/clubfridge/kasse-deploy/internal/lock"
	"github.com/clubfridge/kasse-deploy/internal/logger"
	"github.com/clubfridge/kasse-deploy/internal/metrics"
	"github.com/clubfridge/kasse-deploy/internal/service/common"
)

var (
	errServiceUserRequired = errors.New("service user must be provided")
	errRevisionMismatch    = errors.New("working tree does not match the remote revision after reset")
)

// Options are inputs accepted by the updater entry point.
type Options struct {
	// ConfigPath is the optional path to the settings YAML file.
	ConfigPath string
	// ServiceUser is the instance of the service to restart.
	ServiceUser string
}

// Result describes what a run did.
type Result struct {
	// Outcome classifies the run.
	Outcome metrics.Outcome
	// From is the revision found before the run.
	From host.Revision
	// To is the revision deployed after the run.
	To host.Revision
}

// runner holds the inputs of a single update run.
// It is intentionally unexported; call Run or RunWith.
type runner struct {
	cfg     *config.Config
	tools   *common.Toolbox
	user    string
	account *host.Account
	runID   string
}

// Run loads the settings, wires the real host adapters and runs one update.
func Run(ctx context.Context, opts *Options) error {
	ctx = logger.WithName(ctx, "updater")

	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return err
	}

	_, err = RunWith(ctx, cfg, opts, common.NewToolbox(cfg))

	return err
}

// RunWith runs one update through tools and records its outcome.
func RunWith(ctx context.Context, cfg *config.Config, opts *Options, tools *common.Toolbox) (*Result, error) {
	started := time.Now()

	ctx, runID := common.NewRunContext(ctx)
	ctx = logger.WithFields(ctx, "service_user", opts.ServiceUser, "branch", cfg.Branch)

	u := &runner{
		cfg:   cfg,
		tools: tools,
		user:  strings.TrimSpace(opts.ServiceUser),
		runID: runID,
	}

	result, err := u.run(ctx)
	if err != nil {
		result.Outcome = metrics.OutcomeFailed
	}

	u.recordMetrics(ctx, result, started)

	return result, err
}

// run always returns a non-nil result.
func (u *runner) run(ctx context.Context) (*Result, error) {
	result := &Result{}

	if err := u.checkPreconditions(); err != nil {
		return result, err
	}

	l, err := common.AcquireLock(ctx, u.cfg, u.runID)
	if errors.Is(err, lock.ErrLocked) {
		logger.WarnKV(ctx, "Another run is in progress, skipping", "reason", err)

		result.Outcome = metrics.OutcomeLocked

		return result, nil
	}

	if err != nil {
		return result, err
	}

	defer common.ReleaseLock(ctx, l)

	src := u.tools.Source
	dir := u.cfg.InstallDir

	local, err := src.Head(ctx, dir)
	if err != nil {
		return result, fmt.Errorf("read local revision: %w", err)
	}

	result.From, result.To = local, local

	if err = u.fetch(ctx); err != nil {
		logger.WarnKV(ctx, "Remote is unreachable, keeping the current revision",
			"revision", local.Short(),
			"error", err,
		)

		result.Outcome = metrics.OutcomeOffline

		return result, nil
	}

	remote, err := src.RemoteHead(ctx, dir, u.cfg.Branch)
	if err != nil {
		return result, fmt.Errorf("read remote revision: %w", err)
	}

	if remote == local {
		logger.InfoKV(ctx, "Already up to date", "revision", local.Short())

		result.Outcome = metrics.OutcomeUpToDate

		return result, nil
	}

	logger.InfoKV(ctx, "New revision available", "from", local.Short(), "to", remote.Short())

	if err = u.apply(ctx, remote); err != nil {
		return result, err
	}

	result.To = remote
	result.Outcome = metrics.OutcomeUpdated

	logger.InfoKV(ctx, "Update applied", "revision", remote.Short())

	return result, nil
}

func (u *runner) checkPreconditions() error {
	if err := common.EnsurePrivileged(u.tools); err != nil {
		return err
	}

	if u.user == "" {
		return errServiceUserRequired
	}

	if !u.tools.Source.IsCheckout(u.cfg.InstallDir) {
		return fmt.Errorf("%s: %w", u.cfg.InstallDir, common.ErrNotProvisioned)
	}

	account, err := u.tools.Accounts.Lookup(u.user)
	if err != nil {
		return fmt.Errorf("service user: %w", err)
	}

	u.account = account

	return nil
}

// fetch bounds the network round trip by the configured timeout.
func (u *runner) fetch(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, u.cfg.FetchTimeout)
	defer cancel()

	return u.tools.Source.Fetch(ctx, u.cfg.InstallDir, u.cfg.Branch)
}

// apply moves the working tree to remote and restarts the service exactly once.
func (u *runner) apply(ctx context.Context, remote host.Revision) error {
	src := u.tools.Source
	dir := u.cfg.InstallDir

	if err := src.ResetHard(ctx, dir, remote); err != nil {
		return fmt.Errorf("reset working tree: %w", err)
	}

	head, err := src.Head(ctx, dir)
	if err != nil {
		return fmt.Errorf("read revision after reset: %w", err)
	}

	if head != remote {
		return fmt.Errorf("%w: have %s, want %s", errRevisionMismatch, head.Short(), remote.Short())
	}

	if err = u.tools.Env.InstallRequirements(ctx, u.cfg.VenvPath(), u.cfg.RequirementsPath()); err != nil {
		return fmt.Errorf("refresh dependencies: %w", err)
	}

	if err = u.tools.Accounts.Chown(dir, u.account); err != nil {
		return fmt.Errorf("restore ownership: %w", err)
	}

	service := u.cfg.ServiceUnit(u.account.Name)

	logger.InfoKV(ctx, "Restarting service", "unit", service)

	if err = u.tools.Supervisor.Restart(ctx, service); err != nil {
		return fmt.Errorf("restart service: %w", err)
	}

	return nil
}
