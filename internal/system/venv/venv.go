// Package venv manages the Python interpreter and the isolated runtime
// environment the kiosk application runs in.
package venv

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/clubfridge/kasse-deploy/internal/domain/host"
	"github.com/clubfridge/kasse-deploy/internal/system/command"
)

// pipEnv keeps pip quiet about its own upgrades and avoids a cache in root's home.
var pipEnv = []string{"PIP_DISABLE_PIP_VERSION_CHECK=1", "PIP_NO_CACHE_DIR=1"}

// Manager creates and populates virtual environments with a system interpreter.
type Manager struct {
	runner      command.Runner
	interpreter string
}

// New creates a Manager that uses interpreter (e.g. "python3").
func New(runner command.Runner, interpreter string) *Manager {
	return &Manager{runner: runner, interpreter: interpreter}
}

// InterpreterVersion returns the version of the system interpreter.
func (m *Manager) InterpreterVersion(ctx context.Context) (host.Version, error) {
	output, err := m.runner.Run(ctx, command.New(m.interpreter, "--version"))
	if err != nil {
		return host.Version{}, fmt.Errorf("query %s version: %w", m.interpreter, err)
	}

	version, err := host.ParseVersion(string(output))
	if err != nil {
		return host.Version{}, fmt.Errorf("query %s version: %w", m.interpreter, err)
	}

	return version, nil
}

// Exists reports whether path holds an environment with an interpreter.
func (m *Manager) Exists(path string) bool {
	info, err := os.Stat(python(path))
	return err == nil && !info.IsDir()
}

// Create builds a new environment at path.
func (m *Manager) Create(ctx context.Context, path string) error {
	if _, err := m.runner.Run(ctx, command.New(m.interpreter, "-m", "venv", path)); err != nil {
		return fmt.Errorf("create environment %s: %w", path, err)
	}

	return nil
}

// InstallRequirements upgrades pip and installs the requirements file into the environment.
func (m *Manager) InstallRequirements(ctx context.Context, path, requirements string) error {
	pip := []string{"-m", "pip", "install", "--quiet"}

	upgrade := command.New(python(path), append(pip, "--upgrade", "pip")...).WithEnv(pipEnv...)
	if _, err := m.runner.Run(ctx, upgrade); err != nil {
		return fmt.Errorf("upgrade pip: %w", err)
	}

	install := command.New(python(path), append(pip, "--requirement", requirements)...).
		InDir(filepath.Dir(requirements)).
		WithEnv(pipEnv...)
	if _, err := m.runner.Run(ctx, install); err != nil {
		return fmt.Errorf("install %s: %w", filepath.Base(requirements), err)
	}

	return nil
}

func python(path string) string {
	return filepath.Join(path, "bin", "python")
}
