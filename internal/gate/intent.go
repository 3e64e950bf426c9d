package gate

import (
	"context"
	"fmt"

	"github.com/gatewright/gatewright/internal/policy"
	"github.com/gatewright/gatewright/internal/run"
)

func init() {
	Register(TypeGoalDeclaration, func(ctx context.Context, gc *Context, spec policy.GateSpec) run.GateResult {
		return presence("intent.goals", gc.Policy.Intent.Goals)
	})
	Register(TypeForbiddenScopes, func(ctx context.Context, gc *Context, spec policy.GateSpec) run.GateResult {
		return presence("intent.non_goals", gc.Policy.Intent.NonGoals)
	})
}

// presence fails when the policy leaves the given intent sequence empty.
// Deliberately minimal: the point is to force authors to declare intent.
func presence(key string, values []string) run.GateResult {
	if len(values) == 0 {
		return run.GateResult{
			Status: run.StatusFail,
			Violations: []run.Violation{{
				Code:    "missing_declaration",
				Level:   run.LevelError,
				Message: fmt.Sprintf("policy does not declare %s", key),
			}},
		}
	}
	return run.GateResult{
		Status: run.StatusPass,
		Stats:  map[string]any{"declared": len(values)},
	}
}
