// Package git drives the version-control client used to distribute the
// kiosk application.
//
// Every command runs with -C <dir> and marks the directory as safe, since
// the orchestrator runs as root inside a tree owned by the service user.
package git

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/clubfridge/kasse-deploy/internal/domain/host"
	"github.com/clubfridge/kasse-deploy/internal/system/command"
)

// remoteName is the remote created by clone.
const remoteName = "origin"

// errEmptyRevision is returned when git reports no revision.
var errEmptyRevision = errors.New("git returned an empty revision")

// Client wraps the git command line.
type Client struct {
	runner command.Runner
}

// New creates a Client on top of runner.
func New(runner command.Runner) *Client {
	return &Client{runner: runner}
}

// IsCheckout reports whether dir contains a git working tree.
func (c *Client) IsCheckout(dir string) bool {
	_, err := os.Stat(filepath.Join(dir, ".git"))
	return err == nil
}

// Clone clones branch of url into dir.
func (c *Client) Clone(ctx context.Context, url, branch, dir string) error {
	cmd := command.New("git", "clone", "--branch", branch, "--single-branch", url, dir)
	if _, err := c.runner.Run(ctx, cmd); err != nil {
		return fmt.Errorf("clone %s: %w", url, err)
	}

	return nil
}

// Fetch downloads the latest metadata of branch from the remote.
func (c *Client) Fetch(ctx context.Context, dir, branch string) error {
	if _, err := c.run(ctx, dir, "fetch", "--quiet", remoteName, branch); err != nil {
		return fmt.Errorf("fetch %s/%s: %w", remoteName, branch, err)
	}

	return nil
}

// Head returns the revision currently checked out in dir.
func (c *Client) Head(ctx context.Context, dir string) (host.Revision, error) {
	return c.revParse(ctx, dir, "HEAD")
}

// RemoteHead returns the last fetched revision of branch.
func (c *Client) RemoteHead(ctx context.Context, dir, branch string) (host.Revision, error) {
	return c.revParse(ctx, dir, "refs/remotes/"+remoteName+"/"+branch)
}

// ResetHard moves the working tree to rev, discarding local modifications.
func (c *Client) ResetHard(ctx context.Context, dir string, rev host.Revision) error {
	if rev.IsZero() {
		return errEmptyRevision
	}

	if _, err := c.run(ctx, dir, "reset", "--hard", "--quiet", rev.String()); err != nil {
		return fmt.Errorf("reset to %s: %w", rev.Short(), err)
	}

	return nil
}

func (c *Client) revParse(ctx context.Context, dir, ref string) (host.Revision, error) {
	output, err := c.run(ctx, dir, "rev-parse", "--verify", ref)
	if err != nil {
		return "", fmt.Errorf("resolve %s: %w", ref, err)
	}

	rev := host.NewRevision(string(output))
	if rev.IsZero() {
		return "", fmt.Errorf("resolve %s: %w", ref, errEmptyRevision)
	}

	return rev, nil
}

func (c *Client) run(ctx context.Context, dir string, args ...string) ([]byte, error) {
	full := append([]string{"-C", dir, "-c", "safe.directory=" + dir}, args...)
	return c.runner.Run(ctx, command.New("git", full...))
}
