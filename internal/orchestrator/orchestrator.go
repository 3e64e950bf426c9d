// Package orchestrator runs the configured gates for one event and folds
// their verdicts into an overall run result.
package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/gatewright/gatewright/internal/events"
	"github.com/gatewright/gatewright/internal/gate"
	"github.com/gatewright/gatewright/internal/run"
)

// Orchestrator coordinates one event's gate execution. It owns no state
// beyond its collaborators; every Run call is independent.
type Orchestrator struct {
	log       *slog.Logger
	publisher events.Publisher

	// forceFailOnError elevates neutral to fail regardless of the
	// policy's own fail_on_error flag. Set from deployment config.
	forceFailOnError bool
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithPublisher streams run progress events.
func WithPublisher(p events.Publisher) Option {
	return func(o *Orchestrator) { o.publisher = p }
}

// WithForceFailOnError elevates neutral verdicts to fail for every repo,
// independent of per-policy settings.
func WithForceFailOnError(force bool) Option {
	return func(o *Orchestrator) { o.forceFailOnError = force }
}

// New builds an Orchestrator.
func New(log *slog.Logger, opts ...Option) *Orchestrator {
	o := &Orchestrator{log: log, publisher: events.NopPublisher{}}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Run launches the policy's gates and aggregates their verdicts. A
// configuration error (duplicate gate ids) aborts with zero gate results
// and a non-nil error; a crash inside the launcher degrades to a single
// synthetic orchestrator gate. Either way the caller gets a result.
func (o *Orchestrator) Run(ctx context.Context, gc *gate.Context) (*run.Result, error) {
	start := time.Now()
	repo := gc.Forge.FullName()

	o.publisher.Publish(events.Event{
		Type: events.EventRunStarted,
		Repo: repo,
		PR:   gc.PR.Number,
		SHA:  gc.PR.HeadSHA,
		Data: map[string]any{"gates": len(gc.Policy.Gates)},
		Time: start,
	})

	gates, launchErr := o.launch(ctx, gc)
	if launchErr != nil {
		o.log.Warn("gate run aborted", "repo", repo, "pr", gc.PR.Number, "error", launchErr)
		gates = []run.GateResult{}
	}

	result := &run.Result{Gates: gates}
	o.aggregate(result, len(gc.Policy.Gates))
	result.DurationMS = time.Since(start).Milliseconds()

	// Elevation applies only when gates actually ran but were neutral.
	// no_gates_executed is a configuration problem, not a gate verdict.
	failOnError := gc.Policy.FailOnError || o.forceFailOnError
	if failOnError &&
		result.OverallStatus == run.StatusNeutral &&
		result.ConclusionReason != run.ConclusionNoGatesExecuted {
		result.OverallStatus = run.StatusFail
		result.Summary.Elevated = true
	}

	o.publisher.Publish(events.Event{
		Type: events.EventRunFinished,
		Repo: repo,
		PR:   gc.PR.Number,
		SHA:  gc.PR.HeadSHA,
		Data: map[string]any{
			"overall_status":    string(result.OverallStatus),
			"conclusion_reason": string(result.ConclusionReason),
			"duration_ms":       result.DurationMS,
		},
		Time: time.Now(),
	})
	return result, launchErr
}

// launch wraps the gate launcher so a panic there cannot escape the
// orchestrator boundary.
func (o *Orchestrator) launch(ctx context.Context, gc *gate.Context) (gates []run.GateResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			o.log.Error("launcher panicked", "repo", gc.Forge.FullName(), "pr", gc.PR.Number, "panic", r)
			gates = []run.GateResult{{
				ID:            "orchestrator",
				Status:        run.StatusNeutral,
				NeutralReason: run.ReasonInternalError,
				Violations:    []run.Violation{},
				Observations:  []string{},
				Stats:         map[string]any{"error": fmt.Sprint(r)},
			}}
			err = nil
		}
	}()
	return gate.Launch(ctx, gc)
}

// aggregate derives the overall verdict. Precedence: no results →
// neutral{no_gates_executed}; any fail → fail{gates_failed}, even on a
// partial execution; any neutral → neutral, with gate_timeouts when a
// timeout is among the reasons; else pass.
func (o *Orchestrator) aggregate(result *run.Result, configured int) {
	passed, failed, neutralCount := run.Counts(result.Gates)

	result.Summary = run.ExecutionSummary{
		Configured: configured,
		Executed:   len(result.Gates),
		Passed:     passed,
		Failed:     failed,
		Neutral:    neutralCount,
		Partial:    len(result.Gates) < configured,
	}

	switch {
	case len(result.Gates) == 0:
		result.OverallStatus = run.StatusNeutral
		result.ConclusionReason = run.ConclusionNoGatesExecuted
	case failed > 0:
		result.OverallStatus = run.StatusFail
		result.ConclusionReason = run.ConclusionGatesFailed
	case neutralCount > 0:
		result.OverallStatus = run.StatusNeutral
		result.ConclusionReason = run.ConclusionGatesNeutral
		for _, g := range result.Gates {
			if g.NeutralReason == run.ReasonTimeout {
				result.ConclusionReason = run.ConclusionGateTimeouts
				break
			}
		}
	default:
		result.OverallStatus = run.StatusPass
		result.ConclusionReason = run.ConclusionAllPassed
	}
}
