// Package account resolves the service identity and checks privileges.
package account

import (
	"errors"
	"fmt"
	"os"
	"os/user"
	"strconv"

	"golang.org/x/sys/unix"

	"github.com/clubfridge/kasse-deploy/internal/domain/host"
	"github.com/clubfridge/kasse-deploy/internal/fsutil"
)

const (
	// sudoUserVariable names the invoking user when running under sudo.
	sudoUserVariable = "SUDO_USER"

	rootName = "root"
)

var (
	// errNoServiceUser is returned when no service identity can be determined.
	errNoServiceUser = errors.New("unable to determine the service user")
	// errRootServiceUser is returned when only root is left as the service identity.
	errRootServiceUser = errors.New("no unprivileged service user found, run through sudo or pass --user")
)

// System answers identity questions from the running operating system.
type System struct{}

// New returns a System.
func New() *System {
	return &System{}
}

// IsPrivileged reports whether the process runs with an effective UID of 0.
func (s *System) IsPrivileged() bool {
	return unix.Geteuid() == 0
}

// Lookup resolves a user name to an Account.
func (s *System) Lookup(name string) (*host.Account, error) {
	u, err := user.Lookup(name)
	if err != nil {
		return nil, fmt.Errorf("look up user %q: %w", name, err)
	}

	uid, err := strconv.Atoi(u.Uid)
	if err != nil {
		return nil, fmt.Errorf("parse uid of %q: %w", name, err)
	}

	gid, err := strconv.Atoi(u.Gid)
	if err != nil {
		return nil, fmt.Errorf("parse gid of %q: %w", name, err)
	}

	return &host.Account{
		Name:    u.Username,
		UID:     uid,
		GID:     gid,
		HomeDir: u.HomeDir,
	}, nil
}

// Chown hands root and its contents over to account.
func (s *System) Chown(root string, account *host.Account) error {
	return fsutil.Chown(root, account.UID, account.GID)
}

// DefaultServiceUser returns explicit if set, then the sudo caller, then the current user.
// Falling back to root is refused since the kiosk session never runs as root.
func DefaultServiceUser(explicit string) (string, error) {
	return resolveServiceUser(explicit, os.Getenv(sudoUserVariable), currentUsername)
}

func resolveServiceUser(explicit, sudoUser string, current func() (string, error)) (string, error) {
	if explicit != "" {
		return explicit, nil
	}

	if sudoUser != "" && sudoUser != rootName {
		return sudoUser, nil
	}

	name, err := current()
	if err != nil {
		return "", fmt.Errorf("%w: %w", errNoServiceUser, err)
	}

	if name == rootName {
		return "", errRootServiceUser
	}

	return name, nil
}

func currentUsername() (string, error) {
	u, err := user.Current()
	if err != nil {
		return "", err
	}

	return u.Username, nil
}
