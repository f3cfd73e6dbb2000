//nolint:revive,nolintlint // Package name "common" is intentional for shared helpers.
package common

import (
	"context"
	"fmt"
	"os"
	"os/user"

	"github.com/google/uuid"

	"github.com/clubfridge/kasse-deploy/internal/logger"
)

// Actor identifies who started a run.
type Actor struct {
	Hostname string
	Username string
}

// DetectActor gathers host and user information for the run log.
func DetectActor() (*Actor, error) {
	hostname, err := os.Hostname()
	if err != nil {
		return nil, fmt.Errorf("hostname: %w", err)
	}

	currentUser, err := user.Current()
	if err != nil {
		return nil, fmt.Errorf("current user: %w", err)
	}

	return &Actor{
		Hostname: hostname,
		Username: currentUser.Username,
	}, nil
}

// NewRunContext tags every log line of a run with a fresh run ID.
func NewRunContext(ctx context.Context) (context.Context, string) {
	runID := uuid.NewString()
	ctx = logger.WithKV(ctx, "run_id", runID)

	if actor, err := DetectActor(); err == nil {
		logger.DebugKV(ctx, "Run started", "host", actor.Hostname, "user", actor.Username)
	}

	return ctx, runID
}
