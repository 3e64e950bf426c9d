package rule

import (
	"github.com/gatewright/gatewright/internal/run"
)

// Outcome is the three-valued verdict of the success-criteria matrix.
type Outcome int

const (
	OutcomePass Outcome = iota
	OutcomeFail
	OutcomeNeutralMissing
)

// Evaluate turns provider metrics into a verdict against the criteria
// matrix, returning one outcome record per comparison for the renderer.
//
// Verdict rules:
//   - Any referenced metric missing from metrics, with
//     NeutralOnMissingMetrics set → OutcomeNeutralMissing.
//   - Missing metrics otherwise count as unsatisfied comparisons.
//   - Any unsatisfied require comparison → OutcomeFail.
//   - An any_of block with no satisfied comparison → OutcomeFail.
//   - Otherwise → OutcomePass.
func Evaluate(c Criteria, metrics map[string]run.Metric) (Outcome, []run.CriterionOutcome) {
	outcomes := make([]run.CriterionOutcome, 0, len(c.Require)+len(c.AnyOf))
	anyMissing := false

	eval := func(cmp Comparison) run.CriterionOutcome {
		out := run.CriterionOutcome{
			Metric:    cmp.Metric,
			Op:        cmp.Op,
			Threshold: cmp.Threshold,
		}
		m, ok := metrics[cmp.Metric]
		if !ok {
			out.Missing = true
			anyMissing = true
			return out
		}
		out.Value = m.Value
		out.Satisfied = cmp.Satisfied(m.Value)
		return out
	}

	requireOK := true
	for _, cmp := range c.Require {
		out := eval(cmp)
		outcomes = append(outcomes, out)
		if !out.Satisfied {
			requireOK = false
		}
	}

	anyOfOK := len(c.AnyOf) == 0
	for _, cmp := range c.AnyOf {
		out := eval(cmp)
		outcomes = append(outcomes, out)
		if out.Satisfied {
			anyOfOK = true
		}
	}

	if anyMissing && c.NeutralOnMissingMetrics {
		return OutcomeNeutralMissing, outcomes
	}
	if !requireOK || !anyOfOK {
		return OutcomeFail, outcomes
	}
	return OutcomePass, outcomes
}
