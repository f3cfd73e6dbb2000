//nolint:revive,nolintlint // Package name "common" is intentional for shared helpers.
package common

import (
	"fmt"
	"os"

	"github.com/clubfridge/kasse-deploy/internal/config"
	"github.com/clubfridge/kasse-deploy/internal/fsutil"
	"github.com/clubfridge/kasse-deploy/internal/system/account"
	"github.com/clubfridge/kasse-deploy/internal/system/apt"
	"github.com/clubfridge/kasse-deploy/internal/system/command"
	"github.com/clubfridge/kasse-deploy/internal/system/git"
	"github.com/clubfridge/kasse-deploy/internal/system/systemd"
	"github.com/clubfridge/kasse-deploy/internal/system/venv"
)

// Toolbox bundles the host adapters a service run needs.
type Toolbox struct {
	Packages   PackageManager
	Source     SourceControl
	Env        Environment
	Supervisor Supervisor
	Accounts   Accounts
	Self       SelfInstaller
}

// NewToolbox wires the adapters that act on the real host.
func NewToolbox(cfg *config.Config) *Toolbox {
	runner := command.NewExec()

	return &Toolbox{
		Packages:   apt.New(runner),
		Source:     git.New(runner),
		Env:        venv.New(runner, cfg.Python.Interpreter),
		Supervisor: systemd.New(runner, cfg.UnitDir),
		Accounts:   account.New(),
		Self:       &executableInstaller{},
	}
}

// executableInstaller installs the binary of the current process.
type executableInstaller struct{}

func (e *executableInstaller) Install(dst string) (bool, error) {
	src, err := os.Executable()
	if err != nil {
		return false, fmt.Errorf("locate running executable: %w", err)
	}

	return fsutil.InstallExecutable(src, dst)
}
