// Package systemd installs unit files and drives systemctl.
package systemd

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/clubfridge/kasse-deploy/internal/fsutil"
	"github.com/clubfridge/kasse-deploy/internal/system/command"
)

// unitFileMode is the permission of installed unit files.
const unitFileMode = 0o644

// Manager writes units into a unit directory and controls them with systemctl.
type Manager struct {
	runner  command.Runner
	unitDir string
}

// New creates a Manager installing units into unitDir.
func New(runner command.Runner, unitDir string) *Manager {
	return &Manager{runner: runner, unitDir: unitDir}
}

// InstallUnit writes a unit file and reports whether its content changed.
func (m *Manager) InstallUnit(name string, content []byte) (bool, error) {
	changed, err := fsutil.WriteFile(filepath.Join(m.unitDir, name), content, unitFileMode)
	if err != nil {
		return false, fmt.Errorf("install unit %s: %w", name, err)
	}

	return changed, nil
}

// DaemonReload makes systemd pick up changed unit files.
func (m *Manager) DaemonReload(ctx context.Context) error {
	return m.systemctl(ctx, "daemon-reload")
}

// Enable enables unit, starting it as well when now is set.
func (m *Manager) Enable(ctx context.Context, unit string, now bool) error {
	args := []string{"enable"}
	if now {
		args = append(args, "--now")
	}

	return m.systemctl(ctx, append(args, unit)...)
}

// Restart restarts unit.
func (m *Manager) Restart(ctx context.Context, unit string) error {
	return m.systemctl(ctx, "restart", unit)
}

// IsEnabled reports whether unit is enabled.
func (m *Manager) IsEnabled(ctx context.Context, unit string) (bool, error) {
	return m.query(ctx, "is-enabled", unit, "enabled")
}

// IsActive reports whether unit is running.
func (m *Manager) IsActive(ctx context.Context, unit string) (bool, error) {
	return m.query(ctx, "is-active", unit, "active")
}

// query runs a systemctl predicate; a non-zero exit with output is a plain "no".
func (m *Manager) query(ctx context.Context, verb, unit, want string) (bool, error) {
	output, err := m.runner.Run(ctx, command.New("systemctl", verb, unit))
	state := strings.TrimSpace(string(output))

	if err != nil && state == "" {
		return false, fmt.Errorf("systemctl %s %s: %w", verb, unit, err)
	}

	return state == want, nil
}

func (m *Manager) systemctl(ctx context.Context, args ...string) error {
	if _, err := m.runner.Run(ctx, command.New("systemctl", args...)); err != nil {
		return fmt.Errorf("systemctl %s: %w", strings.Join(args, " "), err)
	}

	return nil
}
