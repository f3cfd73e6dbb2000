// Package pipeline runs an ordered list of idempotent steps.
//
// Every step reports whether its postcondition already holds; satisfied steps
// are skipped. The first failing step aborts the run unless it is marked
// best-effort, in which case the failure is logged and the run continues.
package pipeline

import (
	"context"
	"errors"
	"fmt"

	"github.com/clubfridge/kasse-deploy/internal/logger"
)

// Outcome is the result of a single step.
type Outcome string

const (
	// OutcomeApplied means the step changed the host.
	OutcomeApplied Outcome = "applied"
	// OutcomeSkipped means the postcondition already held.
	OutcomeSkipped Outcome = "skipped"
	// OutcomeWarned means a best-effort step failed and was tolerated.
	OutcomeWarned Outcome = "warned"
)

// errIncompleteStep is returned for steps without an Apply function.
var errIncompleteStep = errors.New("step has no apply function")

// Step is one unit of provisioning work.
type Step struct {
	// Name identifies the step in logs and errors.
	Name string
	// Done reports whether the postcondition already holds. Nil means never.
	Done func(ctx context.Context) (bool, error)
	// Apply establishes the postcondition.
	Apply func(ctx context.Context) error
	// BestEffort steps log their failure instead of aborting the run.
	BestEffort bool
}

// Result records what happened to one step.
type Result struct {
	// Step is the step name.
	Step string
	// Outcome is the step result.
	Outcome Outcome
	// Err is the tolerated failure of a best-effort step.
	Err error
}

// Report lists the results of the steps that ran, in order.
type Report struct {
	// Results holds one entry per finished step.
	Results []Result
}

// Count returns how many steps ended with outcome.
func (r *Report) Count(outcome Outcome) int {
	n := 0

	for _, res := range r.Results {
		if res.Outcome == outcome {
			n++
		}
	}

	return n
}

// Outcome returns the outcome of the named step.
func (r *Report) Outcome(step string) (Outcome, bool) {
	for _, res := range r.Results {
		if res.Step == step {
			return res.Outcome, true
		}
	}

	return "", false
}

// Run executes steps sequentially and stops at the first hard failure.
func Run(ctx context.Context, steps []Step) (*Report, error) {
	report := &Report{Results: make([]Result, 0, len(steps))}

	for i, step := range steps {
		if err := ctx.Err(); err != nil {
			return report, fmt.Errorf("before step %q: %w", step.Name, err)
		}

		logger.Step(ctx, i+1, len(steps), step.Name)

		outcome, err := runStep(logger.WithKV(ctx, "step", step.Name), step)
		if err != nil {
			if !step.BestEffort {
				return report, fmt.Errorf("step %q: %w", step.Name, err)
			}

			logger.WarnKV(ctx, "Best-effort step failed", "step", step.Name, "error", err)
			report.Results = append(report.Results, Result{Step: step.Name, Outcome: OutcomeWarned, Err: err})

			continue
		}

		report.Results = append(report.Results, Result{Step: step.Name, Outcome: outcome})
	}

	return report, nil
}

func runStep(ctx context.Context, step Step) (Outcome, error) {
	if step.Apply == nil {
		return "", errIncompleteStep
	}

	if step.Done != nil {
		done, err := step.Done(ctx)
		if err != nil {
			return "", fmt.Errorf("check state: %w", err)
		}

		if done {
			logger.Debug(ctx, "Already satisfied, skipping")

			return OutcomeSkipped, nil
		}
	}

	if err := step.Apply(ctx); err != nil {
		return "", err
	}

	return OutcomeApplied, nil
}
