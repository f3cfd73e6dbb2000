// Package apt installs Debian packages through apt-get.
package apt

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/clubfridge/kasse-deploy/internal/system/command"
)

// installedStatus is the dpkg status of a fully installed package.
const installedStatus = "install ok installed"

// noninteractive keeps apt and debconf from prompting.
var noninteractive = []string{"DEBIAN_FRONTEND=noninteractive"}

// Manager wraps apt-get and dpkg-query.
type Manager struct {
	runner command.Runner
}

// New creates a Manager on top of runner.
func New(runner command.Runner) *Manager {
	return &Manager{runner: runner}
}

// Missing returns the packages that are not fully installed, in input order.
func (m *Manager) Missing(ctx context.Context, packages []string) ([]string, error) {
	if len(packages) == 0 {
		return nil, nil
	}

	args := append([]string{"-W", "-f=${Package}\t${Status}\n"}, packages...)

	// dpkg-query exits non-zero when any package is unknown; the output is still usable.
	output, _ := m.runner.Run(ctx, command.New("dpkg-query", args...))

	installed := make(map[string]struct{}, len(packages))

	scanner := bufio.NewScanner(bytes.NewReader(output))
	for scanner.Scan() {
		name, status, found := strings.Cut(scanner.Text(), "\t")
		if !found || strings.TrimSpace(status) != installedStatus {
			continue
		}

		// Multi-arch packages are reported as name:arch.
		name, _, _ = strings.Cut(name, ":")
		installed[name] = struct{}{}
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("parse dpkg-query output: %w", err)
	}

	var missing []string

	for _, pkg := range packages {
		if _, ok := installed[pkg]; !ok {
			missing = append(missing, pkg)
		}
	}

	return missing, nil
}

// Install refreshes the package index and installs packages.
func (m *Manager) Install(ctx context.Context, packages []string) error {
	if len(packages) == 0 {
		return nil
	}

	if _, err := m.runner.Run(ctx, command.New("apt-get", "update").WithEnv(noninteractive...)); err != nil {
		return fmt.Errorf("refresh package index: %w", err)
	}

	args := append([]string{"install", "-y", "--no-install-recommends"}, packages...)
	if _, err := m.runner.Run(ctx, command.New("apt-get", args...).WithEnv(noninteractive...)); err != nil {
		return fmt.Errorf("install packages: %w", err)
	}

	return nil
}
