// Package metrics exports the outcome of update runs in the node exporter
// textfile format.
package metrics

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Outcome classifies an update run.
type Outcome string

const (
	// OutcomeUpdated means a new revision was deployed.
	OutcomeUpdated Outcome = "updated"
	// OutcomeUpToDate means the local revision already matched the remote.
	OutcomeUpToDate Outcome = "up_to_date"
	// OutcomeOffline means the remote could not be reached.
	OutcomeOffline Outcome = "offline"
	// OutcomeLocked means another run held the lock.
	OutcomeLocked Outcome = "locked"
	// OutcomeFailed means the run aborted with an error.
	OutcomeFailed Outcome = "failed"
)

// Outcomes lists every outcome in a stable order.
var Outcomes = []Outcome{OutcomeUpdated, OutcomeUpToDate, OutcomeOffline, OutcomeLocked, OutcomeFailed}

const namespace = "kasse_update"

// UpdateReport summarizes one update run.
type UpdateReport struct {
	Outcome  Outcome
	Revision string
	Started  time.Time
	Duration time.Duration
}

// WriteTextfile replaces path with the metrics of report.
func WriteTextfile(path string, report *UpdateReport) error {
	registry := prometheus.NewRegistry()

	lastRun := prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "last_run_timestamp_seconds",
		Help:      "Unix time the last update run started.",
	})
	duration := prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "duration_seconds",
		Help:      "Wall time of the last update run.",
	})
	outcome := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "outcome",
		Help:      "Outcome of the last update run, 1 for the observed outcome.",
	}, []string{"outcome"})
	revision := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "kasse_deployed_revision_info",
		Help: "Revision of the deployed application.",
	}, []string{"revision"})

	registry.MustRegister(lastRun, duration, outcome, revision)

	lastRun.Set(float64(report.Started.Unix()))
	duration.Set(report.Duration.Seconds())

	for _, o := range Outcomes {
		value := 0.0
		if o == report.Outcome {
			value = 1
		}

		outcome.WithLabelValues(string(o)).Set(value)
	}

	if report.Revision != "" {
		revision.WithLabelValues(report.Revision).Set(1)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create metrics directory: %w", err)
	}

	if err := prometheus.WriteToTextfile(path, registry); err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}

	return nil
}
