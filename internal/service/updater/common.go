package updater

import (
	"context"
	"time"

	"github.com/clubfridge/kasse-deploy/internal/logger"
	"github.com/clubfridge/kasse-deploy/internal/metrics"
)

// recordMetrics writes the outcome of the run when a textfile is configured.
// Failures are logged; they never change the outcome of the run.
func (u *runner) recordMetrics(ctx context.Context, result *Result, started time.Time) {
	if u.cfg.MetricsTextfile == "" {
		return
	}

	report := &metrics.UpdateReport{
		Outcome:  result.Outcome,
		Revision: result.To.Short(),
		Started:  started,
		Duration: time.Since(started),
	}

	if err := metrics.WriteTextfile(u.cfg.MetricsTextfile, report); err != nil {
		logger.WarnKV(ctx, "Failed to write update metrics", "path", u.cfg.MetricsTextfile, "error", err)
	}
}
