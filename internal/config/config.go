package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/clubfridge/kasse-deploy/internal/device"
	"github.com/clubfridge/kasse-deploy/internal/domain/host"
	"github.com/clubfridge/kasse-deploy/internal/fsutil"
	"github.com/clubfridge/kasse-deploy/internal/unit"
)

// Config holds the deployment settings shared by the provisioner and the updater.
type Config struct {
	// InstallDir is the checkout of the kiosk application.
	InstallDir string `yaml:"install_dir"`
	// RepositoryURL is cloned when InstallDir is not a checkout yet.
	RepositoryURL string `yaml:"repository_url"`
	// Branch is the tracked branch of the distribution source.
	Branch string `yaml:"branch"`
	// ServiceName is the base name of the systemd units.
	ServiceName string `yaml:"service_name"`
	// VenvDir is the isolated runtime environment, relative to InstallDir unless absolute.
	VenvDir string `yaml:"venv_dir"`
	// EntryPoint is the application script run by the service.
	EntryPoint string `yaml:"entry_point"`
	// RequirementsFile lists the application dependencies, relative to InstallDir.
	RequirementsFile string `yaml:"requirements_file"`
	// EnvFile is the application configuration holding the API credential.
	EnvFile string `yaml:"env_file"`
	// Python describes the system interpreter used to build the environment.
	Python Python `yaml:"python"`
	// Packages are the Debian packages required on the host.
	Packages []string `yaml:"packages"`
	// UnitDir is where systemd unit files are installed.
	UnitDir string `yaml:"unit_dir"`
	// UpdateSchedule is the systemd OnCalendar expression of the update timer.
	UpdateSchedule string `yaml:"update_schedule"`
	// Display is the X display the kiosk renders on.
	Display string `yaml:"display"`
	// InputDeviceDir is scanned for RFID readers and barcode scanners.
	InputDeviceDir string `yaml:"input_device_dir"`
	// Devices is the ordered classification table for input devices.
	Devices device.Table `yaml:"devices"`
	// BinaryPath is where kasse-deploy installs itself for the update timer.
	BinaryPath string `yaml:"binary_path"`
	// LockFile guards against concurrent provisioner and updater runs.
	LockFile string `yaml:"lock_file"`
	// FetchTimeout bounds the remote fetch of the updater.
	FetchTimeout time.Duration `yaml:"fetch_timeout"`
	// DisableAutostart skips the desktop autostart entry.
	DisableAutostart bool `yaml:"disable_autostart"`
	// MetricsTextfile, when set, receives the outcome of every update run.
	MetricsTextfile string `yaml:"metrics_textfile"`
}

// Python holds interpreter requirements.
type Python struct {
	// Interpreter is the system interpreter binary.
	Interpreter string `yaml:"interpreter"`
	// MinVersion is the oldest accepted interpreter version, e.g. "3.11".
	MinVersion string `yaml:"min_version"`
}

const (
	// DefaultConfigFilename is the default location of the deployment settings.
	DefaultConfigFilename = "/etc/clubfridge/kasse-deploy.yaml"

	// DefaultInstallDir is the default checkout location.
	DefaultInstallDir = "/opt/clubfridge-kasse"

	// DefaultBranch is the tracked branch.
	DefaultBranch = "main"

	// DefaultServiceName is the base name of all units.
	DefaultServiceName = "clubfridge-kasse"

	// DefaultUpdateSchedule fires the updater once a day at night.
	DefaultUpdateSchedule = "*-*-* 03:00:00"

	// DefaultFetchTimeout bounds the remote fetch.
	DefaultFetchTimeout = 60 * time.Second

	// DefaultMinPython is the oldest interpreter the application runs on.
	DefaultMinPython = "3.11"

	// DefaultFilePermissions is the permission of written settings files.
	DefaultFilePermissions = 0o644
)

var (
	// errConfigIsNotSet is returned when a nil configuration is provided.
	errConfigIsNotSet = errors.New("configuration is not set")
	// errRelativePath is returned for paths that must be absolute.
	errRelativePath = errors.New("path must be absolute")
	// errEmptyValue is returned for required settings left empty.
	errEmptyValue = errors.New("value must not be empty")
)

// Default returns the settings used when no file overrides them.
func Default() *Config {
	return &Config{
		InstallDir:       DefaultInstallDir,
		Branch:           DefaultBranch,
		ServiceName:      DefaultServiceName,
		VenvDir:          ".venv",
		EntryPoint:       "main.py",
		RequirementsFile: "requirements.txt",
		EnvFile:          ".env",
		Python: Python{
			Interpreter: "python3",
			MinVersion:  DefaultMinPython,
		},
		Packages: []string{
			"git",
			"python3",
			"python3-venv",
			"python3-pip",
			"python3-dev",
			"build-essential",
			"libsdl2-dev",
			"libsdl2-image-dev",
			"libsdl2-mixer-dev",
			"libsdl2-ttf-dev",
			"libmtdev1",
			"xclip",
			"x11-xserver-utils",
		},
		UnitDir:        "/etc/systemd/system",
		UpdateSchedule: DefaultUpdateSchedule,
		Display:        ":0",
		InputDeviceDir: device.DefaultDirectory,
		Devices:        device.DefaultTable(),
		BinaryPath:     "/usr/local/bin/kasse-deploy",
		LockFile:       "/run/lock/clubfridge-kasse-deploy.lock",
		FetchTimeout:   DefaultFetchTimeout,
	}
}

// Load reads settings from path on top of Default. A missing file yields the defaults.
func Load(path string) (*Config, error) {
	if path == "" {
		path = DefaultConfigFilename
	}

	cfg := Default()

	contents, err := os.ReadFile(filepath.Clean(path))

	switch {
	case errors.Is(err, os.ErrNotExist):
		// Fresh hosts have no settings file yet.
	case err != nil:
		return nil, fmt.Errorf("read settings: %w", err)
	default:
		if err = yaml.Unmarshal(contents, cfg); err != nil {
			return nil, fmt.Errorf("unmarshal settings: %w", err)
		}
	}

	if err = Validate(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Save writes settings to the provided path.
func Save(path string, cfg *Config) error {
	if cfg == nil {
		return errConfigIsNotSet
	}

	if path == "" {
		path = DefaultConfigFilename
	}

	if err := Validate(cfg); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal settings: %w", err)
	}

	if _, err = fsutil.WriteFile(path, data, DefaultFilePermissions); err != nil {
		return fmt.Errorf("write settings: %w", err)
	}

	return nil
}

// Validate checks required fields and fills derived defaults.
//
//nolint:cyclop // A flat list of checks reads better than helpers.
func Validate(cfg *Config) error {
	if cfg == nil {
		return errConfigIsNotSet
	}

	for name, path := range map[string]string{
		"install_dir": cfg.InstallDir,
		"unit_dir":    cfg.UnitDir,
		"lock_file":   cfg.LockFile,
	} {
		if !filepath.IsAbs(path) {
			return fmt.Errorf("%s %q: %w", name, path, errRelativePath)
		}
	}

	for name, value := range map[string]string{
		"branch":             cfg.Branch,
		"service_name":       cfg.ServiceName,
		"entry_point":        cfg.EntryPoint,
		"requirements_file":  cfg.RequirementsFile,
		"env_file":           cfg.EnvFile,
		"python.interpreter": cfg.Python.Interpreter,
		"update_schedule":    cfg.UpdateSchedule,
	} {
		if strings.TrimSpace(value) == "" {
			return fmt.Errorf("%s: %w", name, errEmptyValue)
		}
	}

	if strings.ContainsAny(cfg.ServiceName, "@/ ") {
		return fmt.Errorf("service_name %q: must not contain '@', '/' or spaces", cfg.ServiceName)
	}

	if cfg.Python.MinVersion == "" {
		cfg.Python.MinVersion = DefaultMinPython
	}

	if _, err := host.ParseVersion(cfg.Python.MinVersion); err != nil {
		return fmt.Errorf("python.min_version: %w", err)
	}

	if cfg.VenvDir == "" {
		cfg.VenvDir = ".venv"
	}

	if cfg.InputDeviceDir == "" {
		cfg.InputDeviceDir = device.DefaultDirectory
	}

	if len(cfg.Devices) == 0 {
		cfg.Devices = device.DefaultTable()
	}

	if err := cfg.Devices.Validate(); err != nil {
		return err
	}

	if cfg.FetchTimeout <= 0 {
		cfg.FetchTimeout = DefaultFetchTimeout
	}

	return nil
}

// VenvPath returns the absolute path of the isolated runtime environment.
func (c *Config) VenvPath() string {
	return c.resolve(c.VenvDir)
}

// EnvFilePath returns the absolute path of the application configuration.
func (c *Config) EnvFilePath() string {
	return c.resolve(c.EnvFile)
}

// RequirementsPath returns the absolute path of the dependency list.
func (c *Config) RequirementsPath() string {
	return c.resolve(c.RequirementsFile)
}

// EntryPointPath returns the absolute path of the application script.
func (c *Config) EntryPointPath() string {
	return c.resolve(c.EntryPoint)
}

// VenvPython returns the interpreter inside the isolated environment.
func (c *Config) VenvPython() string {
	return filepath.Join(c.VenvPath(), "bin", "python")
}

// ServiceUnit returns the instance name of the application service for user.
func (c *Config) ServiceUnit(user string) string {
	return unit.Instance(c.ServiceName+"@.service", user)
}

// UpdateTimer returns the instance name of the update timer for user.
func (c *Config) UpdateTimer(user string) string {
	return unit.Instance(c.ServiceName+"-update@.timer", user)
}

func (c *Config) resolve(path string) string {
	if filepath.IsAbs(path) {
		return filepath.Clean(path)
	}

	return filepath.Join(c.InstallDir, path)
}
