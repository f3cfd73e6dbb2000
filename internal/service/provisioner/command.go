package provisioner

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/clubfridge/kasse-deploy/internal/config"
	"github.com/clubfridge/kasse-deploy/internal/domain/host"
	"github.com/clubfridge/kasse-deploy/internal/logger"
	"github.com/clubfridge/kasse-deploy/internal/pipeline"
	"github.com/clubfridge/kasse-deploy/internal/service/common"
)

var (
	errServiceUserRequired   = errors.New("service user must be provided")
	errRepositoryURLRequired = errors.New("repository_url must be set to clone the application")
	errNotACheckout          = errors.New("install directory is not empty and is not a checkout")
)

// Options are inputs accepted by the provisioner entry point.
type Options struct {
	// ConfigPath is the optional path to the settings YAML file.
	ConfigPath string
	// ServiceUser is the account the kiosk runs under.
	ServiceUser string
	// RepositoryURL overrides repository_url from the settings.
	RepositoryURL string
	// Branch overrides branch from the settings.
	Branch string
	// Reset removes the application configuration to re-trigger its first-run setup.
	Reset bool
}

// Summary describes the host after a successful run.
type Summary struct {
	// State is the host snapshot taken after the last step.
	State *host.State
	// Report lists the step outcomes.
	Report *pipeline.Report
}

// runner holds the inputs of a single provisioning run.
// It is intentionally unexported; call Run or RunWith.
type runner struct {
	cfg     *config.Config
	opts    *Options
	tools   *common.Toolbox
	account *host.Account

	// configPath is the settings file the update timer passes to the updater.
	configPath string
	// persist is set when command-line overrides must be written to configPath.
	persist bool
}

// Run loads the settings, wires the real host adapters and provisions the host.
func Run(ctx context.Context, opts *Options) error {
	ctx = logger.WithName(ctx, "provisioner")

	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return err
	}

	_, err = RunWith(ctx, cfg, opts, common.NewToolbox(cfg))

	return err
}

// RunWith provisions the host through tools.
func RunWith(ctx context.Context, cfg *config.Config, opts *Options, tools *common.Toolbox) (*Summary, error) {
	if err := common.EnsurePrivileged(tools); err != nil {
		return nil, err
	}

	configPath, err := settingsPath(opts.ConfigPath)
	if err != nil {
		return nil, err
	}

	effective := applyOverrides(cfg, opts)
	r := &runner{
		cfg:        effective,
		opts:       opts,
		tools:      tools,
		configPath: configPath,
		persist:    effective.Branch != cfg.Branch || effective.RepositoryURL != cfg.RepositoryURL,
	}

	if err = r.checkPreconditions(ctx); err != nil {
		return nil, err
	}

	ctx, runID := common.NewRunContext(ctx)

	l, err := common.AcquireLock(ctx, r.cfg, runID)
	if err != nil {
		return nil, fmt.Errorf("acquire run lock: %w", err)
	}

	defer common.ReleaseLock(ctx, l)

	report, err := pipeline.Run(ctx, r.steps(ctx))
	if err != nil {
		return nil, err
	}

	state, err := common.Snapshot(ctx, r.cfg, tools, r.account.Name)
	if err != nil {
		return nil, err
	}

	r.logSummary(ctx, state, report)

	return &Summary{State: state, Report: report}, nil
}

func (r *runner) checkPreconditions(ctx context.Context) error {
	name := strings.TrimSpace(r.opts.ServiceUser)
	if name == "" {
		return errServiceUserRequired
	}

	account, err := r.tools.Accounts.Lookup(name)
	if err != nil {
		return fmt.Errorf("service user: %w", err)
	}

	r.account = account

	if account.UID == 0 {
		logger.Warn(ctx, "The kiosk will run as root; its desktop session files are looked up under /home/root")
	}

	version, err := common.EnsureInterpreter(ctx, r.cfg, r.tools)
	if err != nil {
		return err
	}

	logger.InfoKV(ctx, "Preconditions met",
		"service_user", account.Name,
		"python", version.String(),
		"install_dir", r.cfg.InstallDir,
		"branch", r.cfg.Branch,
	)

	return nil
}

func (r *runner) logSummary(ctx context.Context, state *host.State, report *pipeline.Report) {
	logger.InfoKV(ctx, "Provisioning completed",
		"revision", state.CurrentRevision.Short(),
		"configured", state.Configured,
		"applied", report.Count(pipeline.OutcomeApplied),
		"skipped", report.Count(pipeline.OutcomeSkipped),
		"warned", report.Count(pipeline.OutcomeWarned),
	)

	if !state.ServiceActive {
		logger.Infof(ctx, "Start the kiosk now with: sudo systemctl start %s", r.cfg.ServiceUnit(state.ServiceUser))
	}

	if !state.Configured {
		logger.Info(ctx, "The application will run its first-run setup on next start")
	}
}

// settingsPath returns the absolute settings location, defaulting to the system path.
func settingsPath(path string) (string, error) {
	if strings.TrimSpace(path) == "" {
		path = config.DefaultConfigFilename
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("resolve settings path: %w", err)
	}

	return abs, nil
}

// applyOverrides returns a copy of cfg with the command-line overrides applied.
func applyOverrides(cfg *config.Config, opts *Options) *config.Config {
	out := *cfg

	if url := strings.TrimSpace(opts.RepositoryURL); url != "" {
		out.RepositoryURL = url
	}

	if branch := strings.TrimSpace(opts.Branch); branch != "" {
		out.Branch = branch
	}

	return &out
}
