package gate

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v3"

	"github.com/gatewright/gatewright/internal/hosting"
	"github.com/gatewright/gatewright/internal/policy"
	"github.com/gatewright/gatewright/internal/run"
)

func init() {
	Register(TypeGovernancePolicy, governancePolicy)
}

// governance outcomes per required context.
const (
	outcomeUnknownContext       = "unknown_context"
	outcomeWorkflowMissing      = "workflow_missing"
	outcomeWorkflowNameMismatch = "workflow_name_mismatch"
	outcomeWorkflowCheckError   = "workflow_check_error"
)

// governancePolicy cross-checks each required status context against the
// workflow definition it is supposed to come from: the mapped workflow
// file must exist at the PR head and its name declaration must match the
// context. The engine's own check is exempt, it would otherwise require
// itself.
func governancePolicy(ctx context.Context, gc *Context, spec policy.GateSpec) run.GateResult {
	contexts, ok := spec.StringsOption("required_contexts")
	if !ok {
		contexts = gc.RequiredContexts
	}

	var required []string
	for _, c := range contexts {
		if c == gc.CheckName {
			continue
		}
		required = append(required, c)
	}
	if len(required) == 0 {
		return run.GateResult{
			Status:        run.StatusNeutral,
			NeutralReason: run.ReasonNoContextsRequired,
			Observations:  []string{"no required status contexts remain after self-exemption"},
		}
	}

	verdicts := make([]contextVerdict, len(required))

	g, fetchCtx := errgroup.WithContext(ctx)
	for i, name := range required {
		g.Go(func() error {
			verdicts[i] = checkContext(fetchCtx, gc, name)
			return nil
		})
	}
	g.Wait()

	result := run.GateResult{Status: run.StatusPass, Stats: map[string]any{"required_contexts": len(required)}}
	for _, v := range verdicts {
		if v.outcome == "" {
			result.Observations = append(result.Observations, fmt.Sprintf("%s: workflow verified", v.context))
			continue
		}
		result.Violations = append(result.Violations, run.Violation{
			Code:    v.outcome,
			Level:   run.LevelError,
			Message: fmt.Sprintf("%s: %s", v.context, v.detail),
		})
	}
	if len(result.Violations) > 0 {
		result.Status = run.StatusFail
	}
	return result
}

type contextVerdict struct {
	context string
	outcome string
	detail  string
}

func checkContext(ctx context.Context, gc *Context, name string) contextVerdict {
	v := contextVerdict{context: name}

	path, ok := gc.WorkflowPaths[name]
	if !ok {
		v.outcome = outcomeUnknownContext
		v.detail = "no workflow path is mapped for this context"
		return v
	}

	data, err := gc.Forge.GetContent(ctx, path, gc.PR.HeadSHA)
	if err != nil {
		if errors.Is(err, hosting.ErrNotFound) {
			v.outcome = outcomeWorkflowMissing
			v.detail = fmt.Sprintf("workflow file %s does not exist at the PR head", path)
		} else {
			v.outcome = outcomeWorkflowCheckError
			v.detail = fmt.Sprintf("could not fetch %s: %v", path, err)
		}
		return v
	}

	declared, err := workflowName(data)
	if err != nil {
		v.outcome = outcomeWorkflowCheckError
		v.detail = fmt.Sprintf("could not parse %s: %v", path, err)
		return v
	}
	if declared != name {
		v.outcome = outcomeWorkflowNameMismatch
		v.detail = fmt.Sprintf("workflow %s declares name %q", path, declared)
	}
	return v
}

// workflowName extracts the top-level name declaration from a CI workflow
// definition.
func workflowName(data []byte) (string, error) {
	var wf struct {
		Name string `yaml:"name"`
	}
	if err := yaml.Unmarshal(data, &wf); err != nil {
		return "", err
	}
	return wf.Name, nil
}
