// Package fakehost provides in-memory stand-ins for every host port so
// services can be exercised without root, apt, git or systemd.
package fakehost

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/clubfridge/kasse-deploy/internal/domain/host"
	"github.com/clubfridge/kasse-deploy/internal/service/common"
)

// errUnknownUser is returned by Users.Lookup for unregistered names.
var errUnknownUser = errors.New("unknown user")

// Host groups the fakes and exposes them as a Toolbox.
type Host struct {
	Packages *Packages
	Git      *Git
	Venv     *Venv
	Systemd  *Systemd
	Users    *Users
	Self     *Self
}

// New returns a privileged host with Python 3.11 and the given accounts.
func New(accounts ...*host.Account) *Host {
	users := &Users{Privileged: true, accounts: make(map[string]*host.Account)}
	for _, a := range accounts {
		users.accounts[a.Name] = a
	}

	return &Host{
		Packages: &Packages{installed: make(map[string]bool)},
		Git:      &Git{heads: make(map[string]host.Revision)},
		Venv:     &Venv{Python: host.Version{Major: 3, Minor: 11, Patch: 2}, envs: make(map[string]bool)},
		Systemd:  &Systemd{units: make(map[string][]byte), enabled: make(map[string]bool), active: make(map[string]bool), restarts: make(map[string]int)},
		Users:    users,
		Self:     &Self{installed: make(map[string]bool)},
	}
}

// Toolbox returns the fakes wired as service ports.
func (h *Host) Toolbox() *common.Toolbox {
	return &common.Toolbox{
		Packages:   h.Packages,
		Source:     h.Git,
		Env:        h.Venv,
		Supervisor: h.Systemd,
		Accounts:   h.Users,
		Self:       h.Self,
	}
}

// Packages is a fake package manager.
type Packages struct {
	mu        sync.Mutex
	installed map[string]bool

	// InstallErr fails every Install call.
	InstallErr error
	// Installs counts Install calls.
	Installs int
}

// Preinstall marks packages as present.
func (p *Packages) Preinstall(names ...string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for _, n := range names {
		p.installed[n] = true
	}
}

// Missing implements common.PackageManager.
func (p *Packages) Missing(_ context.Context, packages []string) ([]string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	var missing []string

	for _, n := range packages {
		if !p.installed[n] {
			missing = append(missing, n)
		}
	}

	return missing, nil
}

// Install implements common.PackageManager.
func (p *Packages) Install(_ context.Context, packages []string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.Installs++

	if p.InstallErr != nil {
		return p.InstallErr
	}

	for _, n := range packages {
		p.installed[n] = true
	}

	return nil
}

// Git is a fake source control client. Clone creates the directory.
type Git struct {
	mu    sync.Mutex
	heads map[string]host.Revision

	// Remote is the revision of the tracked remote branch.
	Remote host.Revision
	// FetchErr fails every Fetch call.
	FetchErr error
	// ResetTo, when set, is what HEAD ends up at after ResetHard.
	ResetTo host.Revision

	Clones  int
	Fetches int
	Resets  int
}

// Checkout registers dir as a working tree at rev and creates it on disk.
func (g *Git) Checkout(dir string, rev host.Revision) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	g.heads[dir] = rev

	return nil
}

// IsCheckout implements common.SourceControl.
func (g *Git) IsCheckout(dir string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	_, ok := g.heads[dir]

	return ok
}

// Clone implements common.SourceControl.
func (g *Git) Clone(_ context.Context, url, _, dir string) error {
	if url == "" {
		return fmt.Errorf("clone into %s: empty url", dir)
	}

	g.mu.Lock()
	g.Clones++
	remote := g.Remote
	g.mu.Unlock()

	return g.Checkout(dir, remote)
}

// Fetch implements common.SourceControl.
func (g *Git) Fetch(_ context.Context, _, _ string) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.Fetches++

	return g.FetchErr
}

// Head implements common.SourceControl.
func (g *Git) Head(_ context.Context, dir string) (host.Revision, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	rev, ok := g.heads[dir]
	if !ok {
		return "", fmt.Errorf("%s is not a checkout", dir)
	}

	return rev, nil
}

// RemoteHead implements common.SourceControl.
func (g *Git) RemoteHead(_ context.Context, _, _ string) (host.Revision, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	return g.Remote, nil
}

// ResetHard implements common.SourceControl.
func (g *Git) ResetHard(_ context.Context, dir string, rev host.Revision) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.Resets++

	if !g.ResetTo.IsZero() {
		rev = g.ResetTo
	}

	g.heads[dir] = rev

	return nil
}

// Venv is a fake environment manager.
type Venv struct {
	mu   sync.Mutex
	envs map[string]bool

	// Python is the reported system interpreter version.
	Python host.Version
	// RequirementsErr fails every InstallRequirements call.
	RequirementsErr error

	Creates      int
	Requirements int
}

// InterpreterVersion implements common.Environment.
func (v *Venv) InterpreterVersion(_ context.Context) (host.Version, error) {
	return v.Python, nil
}

// Exists implements common.Environment.
func (v *Venv) Exists(path string) bool {
	v.mu.Lock()
	defer v.mu.Unlock()

	return v.envs[path]
}

// Create implements common.Environment.
func (v *Venv) Create(_ context.Context, path string) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	v.Creates++
	v.envs[path] = true

	return nil
}

// InstallRequirements implements common.Environment.
func (v *Venv) InstallRequirements(_ context.Context, _, _ string) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	v.Requirements++

	return v.RequirementsErr
}

// Systemd is a fake supervisor keeping units in memory.
type Systemd struct {
	mu       sync.Mutex
	units    map[string][]byte
	enabled  map[string]bool
	active   map[string]bool
	restarts map[string]int

	Reloads int
}

// InstallUnit implements common.Supervisor.
func (s *Systemd) InstallUnit(name string, content []byte) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if string(s.units[name]) == string(content) {
		return false, nil
	}

	s.units[name] = append([]byte(nil), content...)

	return true, nil
}

// DaemonReload implements common.Supervisor.
func (s *Systemd) DaemonReload(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.Reloads++

	return nil
}

// Enable implements common.Supervisor.
func (s *Systemd) Enable(_ context.Context, unit string, now bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.enabled[unit] = true

	if now {
		s.active[unit] = true
	}

	return nil
}

// Restart implements common.Supervisor.
func (s *Systemd) Restart(_ context.Context, unit string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.restarts[unit]++
	s.active[unit] = true

	return nil
}

// IsEnabled implements common.Supervisor.
func (s *Systemd) IsEnabled(_ context.Context, unit string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.enabled[unit], nil
}

// IsActive implements common.Supervisor.
func (s *Systemd) IsActive(_ context.Context, unit string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.active[unit], nil
}

// Unit returns the content of an installed unit.
func (s *Systemd) Unit(name string) ([]byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	content, ok := s.units[name]

	return content, ok
}

// Restarts returns how often unit was restarted.
func (s *Systemd) Restarts(unit string) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.restarts[unit]
}

// Users is a fake account database.
type Users struct {
	mu       sync.Mutex
	accounts map[string]*host.Account

	// Privileged is returned by IsPrivileged.
	Privileged bool
	// Chowned lists every root handed to Chown.
	Chowned []string
}

// IsPrivileged implements common.Accounts.
func (u *Users) IsPrivileged() bool {
	return u.Privileged
}

// Lookup implements common.Accounts.
func (u *Users) Lookup(name string) (*host.Account, error) {
	u.mu.Lock()
	defer u.mu.Unlock()

	a, ok := u.accounts[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", errUnknownUser, name)
	}

	return a, nil
}

// Chown implements common.Accounts.
func (u *Users) Chown(root string, _ *host.Account) error {
	u.mu.Lock()
	defer u.mu.Unlock()

	u.Chowned = append(u.Chowned, filepath.Clean(root))

	return nil
}

// Self is a fake self installer.
type Self struct {
	mu        sync.Mutex
	installed map[string]bool

	Installs int
}

// Install implements common.SelfInstaller and reports a change only the first time.
func (s *Self) Install(dst string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.installed[dst] {
		return false, nil
	}

	s.Installs++
	s.installed[dst] = true

	return true, nil
}
