package gate

import (
	"context"
	"errors"
	"fmt"

	"github.com/gatewright/gatewright/internal/artifact"
	"github.com/gatewright/gatewright/internal/policy"
	"github.com/gatewright/gatewright/internal/run"
)

func init() {
	Register(TypeArtifactJSON, func(ctx context.Context, gc *Context, spec policy.GateSpec) run.GateResult {
		parser, _ := spec.StringOption("parser")
		switch parser {
		case artifact.ParserESLint:
			return ingestArtifact(ctx, gc, spec, artifact.ParseESLint)
		case artifact.ParserRuff:
			return ingestArtifact(ctx, gc, spec, artifact.ParseRuff)
		default:
			return artifactNeutral(run.ReasonInvalidFormat,
				fmt.Sprintf("with.parser must be %q or %q, got %q", artifact.ParserESLint, artifact.ParserRuff, parser))
		}
	})
	Register(TypeArtifactSARIF, func(ctx context.Context, gc *Context, spec policy.GateSpec) run.GateResult {
		return ingestArtifact(ctx, gc, spec, artifact.ParseSARIF)
	})
}

// ingestArtifact is the shared pipeline behind both artifact gate types:
// locate the PR head's CI run, download the named artifact ZIP under the
// size guard, select a report entry, parse, normalize, cap, and score.
func ingestArtifact(ctx context.Context, gc *Context, spec policy.GateSpec, parse func([]byte) ([]run.Violation, error)) run.GateResult {
	if gc.DeferExternal {
		return run.GateResult{
			Status:        run.StatusNeutral,
			NeutralReason: run.ReasonMissingArtifact,
			Observations:  []string{"waiting for CI to complete before ingesting artifacts"},
		}
	}

	name, ok := spec.StringOption("artifact_name")
	if !ok || name == "" {
		return artifactNeutral(run.ReasonInvalidFormat, "artifact gate requires with.artifact_name")
	}

	sizeMB, ok := spec.IntOption("artifact_size_mb")
	if !ok || sizeMB <= 0 {
		sizeMB = artifact.DefaultSizeLimitMB
	}
	limitBytes := int64(sizeMB) << 20

	ciRun, err := artifact.LocateRun(ctx, gc.Forge, gc.PR.HeadSHA, gc.CIRunID)
	if err != nil {
		return fromArtifactError(err)
	}

	zipData, err := artifact.FetchNamed(ctx, gc.Forge, ciRun.ID, name, limitBytes)
	if err != nil {
		return fromArtifactError(err)
	}

	explicitPath, _ := spec.StringOption("artifact_path")
	entryName, data, err := artifact.SelectEntry(zipData, explicitPath)
	if err != nil {
		return fromArtifactError(err)
	}

	violations, err := parse(data)
	if err != nil {
		return fromArtifactError(err)
	}

	maxFindings, ok := spec.IntOption("max_findings")
	if !ok {
		maxFindings = artifact.DefaultMaxFindings
	}
	violations = artifact.Cap(artifact.NormalizeViolations(violations), maxFindings)

	failOn, _ := spec.StringOption("fail_on")

	return run.GateResult{
		Status:     artifact.StatusFromViolations(violations, failOn),
		Violations: violations,
		Stats: map[string]any{
			"ci_run_id":  ciRun.ID,
			"entry":      entryName,
			"findings":   len(violations),
			"size_bytes": len(zipData),
		},
	}
}

// fromArtifactError maps a subsystem error onto the gate's neutral arm.
func fromArtifactError(err error) run.GateResult {
	var aerr *artifact.Error
	if errors.As(err, &aerr) {
		return artifactNeutral(aerr.Reason, aerr.Message)
	}
	return run.GateResult{
		Status:        run.StatusNeutral,
		NeutralReason: run.ReasonInternalError,
		Stats:         map[string]any{"error": err.Error()},
	}
}

func artifactNeutral(reason run.NeutralReason, message string) run.GateResult {
	return run.GateResult{
		Status:        run.StatusNeutral,
		NeutralReason: reason,
		Observations:  []string{message},
	}
}
