package gate

import (
	"context"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/gatewright/gatewright/internal/errors"
	"github.com/gatewright/gatewright/internal/policy"
	"github.com/gatewright/gatewright/internal/run"
)

// DeriveID resolves a gate spec's identity: explicit id wins, ai-rule
// gates take the rule file's basename without extension, everything else
// falls back to the type string.
func DeriveID(spec policy.GateSpec) string {
	if spec.ID != "" {
		return spec.ID
	}
	if spec.Type == TypeAIRule {
		if file, ok := spec.StringOption("rule_file"); ok && file != "" {
			base := path.Base(file)
			return strings.TrimSuffix(base, path.Ext(base))
		}
	}
	return spec.Type
}

// Launch walks the policy's gate list in order, invoking each handler
// inside a safe shell, and returns the normalized results in spec order.
// Duplicate derived ids abort before any handler runs.
func Launch(ctx context.Context, gc *Context) ([]run.GateResult, error) {
	ids := make([]string, len(gc.Policy.Gates))
	seen := make(map[string]int, len(gc.Policy.Gates))
	for i, spec := range gc.Policy.Gates {
		id := DeriveID(spec)
		if prev, dup := seen[id]; dup {
			return nil, errors.New(errors.CodeDuplicateGateID, "duplicate gate id").
				WithWhy(fmt.Sprintf("gates[%d] and gates[%d] both derive id %q", prev, i, id)).
				WithFix("give one of them an explicit, distinct id")
		}
		seen[id] = i
		ids[i] = id
	}

	results := make([]run.GateResult, 0, len(gc.Policy.Gates))
	for i, spec := range gc.Policy.Gates {
		if ctx.Err() != nil {
			gc.Log.Warn("gate run cancelled", "completed", len(results), "configured", len(gc.Policy.Gates))
			break
		}

		handler := Lookup(spec.Type)
		start := time.Now()
		result := invoke(ctx, handler, gc, spec)

		if ctx.Err() != nil && result.Status == run.StatusNeutral && result.NeutralReason == run.ReasonInternalError {
			// The handler surfaced the cancellation, not a real fault.
			result.NeutralReason = run.ReasonTimeout
		}

		normalize(&result, ids[i], time.Since(start))
		results = append(results, result)
		gc.Log.Debug("gate finished", "gate", ids[i], "status", result.Status, "duration_ms", result.DurationMS)
	}
	return results, nil
}

// invoke runs a handler, converting a panic into neutral{internal_error}
// with the message recorded in stats.
func invoke(ctx context.Context, handler Handler, gc *Context, spec policy.GateSpec) (result run.GateResult) {
	defer func() {
		if r := recover(); r != nil {
			gc.Log.Error("gate handler panicked", "type", spec.Type, "panic", r)
			result = run.GateResult{
				Status:        run.StatusNeutral,
				NeutralReason: run.ReasonInternalError,
				Stats:         map[string]any{"error": fmt.Sprint(r)},
			}
		}
	}()
	return handler(ctx, gc, spec)
}

// normalize enforces the launcher-owned parts of the result shape. The
// derived id always replaces whatever the handler set.
func normalize(r *run.GateResult, id string, elapsed time.Duration) {
	r.ID = id
	if r.Status == "" {
		r.Status = run.StatusNeutral
	}
	if r.Violations == nil {
		r.Violations = []run.Violation{}
	}
	if r.Observations == nil {
		r.Observations = []string{}
	}
	if r.Stats == nil {
		r.Stats = map[string]any{}
	}
	r.DurationMS = elapsed.Milliseconds()
}
