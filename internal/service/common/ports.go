//nolint:revive,nolintlint // Package name "common" is intentional for shared helpers.
package common

import (
	"context"

	"github.com/clubfridge/kasse-deploy/internal/domain/host"
)

// PackageManager installs operating system packages.
type PackageManager interface {
	Missing(ctx context.Context, packages []string) ([]string, error)
	Install(ctx context.Context, packages []string) error
}

// SourceControl maintains the application checkout.
type SourceControl interface {
	IsCheckout(dir string) bool
	Clone(ctx context.Context, url, branch, dir string) error
	Fetch(ctx context.Context, dir, branch string) error
	Head(ctx context.Context, dir string) (host.Revision, error)
	RemoteHead(ctx context.Context, dir, branch string) (host.Revision, error)
	ResetHard(ctx context.Context, dir string, rev host.Revision) error
}

// Environment manages the isolated runtime environment of the application.
type Environment interface {
	InterpreterVersion(ctx context.Context) (host.Version, error)
	Exists(path string) bool
	Create(ctx context.Context, path string) error
	InstallRequirements(ctx context.Context, path, requirements string) error
}

// Supervisor installs and controls service units.
type Supervisor interface {
	InstallUnit(name string, content []byte) (bool, error)
	DaemonReload(ctx context.Context) error
	Enable(ctx context.Context, unit string, now bool) error
	Restart(ctx context.Context, unit string) error
	IsEnabled(ctx context.Context, unit string) (bool, error)
	IsActive(ctx context.Context, unit string) (bool, error)
}

// Accounts answers identity questions and transfers ownership.
type Accounts interface {
	IsPrivileged() bool
	Lookup(name string) (*host.Account, error)
	Chown(root string, account *host.Account) error
}

// SelfInstaller copies the running orchestrator to a stable location.
type SelfInstaller interface {
	Install(dst string) (bool, error)
}
