package gate

import (
	"context"
	"fmt"
	"sort"

	"github.com/gatewright/gatewright/internal/diff"
	"github.com/gatewright/gatewright/internal/policy"
	"github.com/gatewright/gatewright/internal/run"
	"github.com/gatewright/gatewright/internal/rule"
	"github.com/gatewright/gatewright/internal/workflow"
)

func init() {
	Register(TypeAIRule, aiRule)
}

// aiRule loads a rule document, dispatches its workflow with bounded PR
// evidence, validates the provider result, and feeds the metrics to the
// success-criteria matrix. Every failure along the way is a neutral with
// the reason naming the broken stage.
func aiRule(ctx context.Context, gc *Context, spec policy.GateSpec) run.GateResult {
	ruleFile, ok := spec.StringOption("rule_file")
	if !ok || ruleFile == "" {
		return neutral(run.ReasonRuleSchemaInvalid, "ai-rule gate requires with.rule_file")
	}

	doc, err := gc.LoadRule(ctx, ruleFile)
	if err != nil {
		return neutral(run.ReasonRuleSchemaInvalid, err.Error())
	}

	wf, err := gc.Workflows.Lookup(doc.WorkflowID)
	if err != nil {
		return neutral(run.ReasonRuleSchemaInvalid,
			fmt.Sprintf("rule %s: %v", doc.ID, err))
	}

	input, evidenceErr := buildEvidence(ctx, gc, doc)
	if evidenceErr != nil {
		return run.GateResult{
			Status:        run.StatusNeutral,
			NeutralReason: run.ReasonInternalError,
			RuleID:        doc.ID,
			Stats:         map[string]any{"error": evidenceErr.Error()},
		}
	}

	providerResult, err := wf.Evaluate(ctx, input)
	if err != nil {
		if ctx.Err() != nil {
			return run.GateResult{
				Status:        run.StatusNeutral,
				NeutralReason: run.ReasonTimeout,
				RuleID:        doc.ID,
				Stats:         map[string]any{"error": err.Error()},
			}
		}
		return run.GateResult{
			Status:        run.StatusNeutral,
			NeutralReason: run.ReasonInternalError,
			RuleID:        doc.ID,
			Stats:         map[string]any{"error": err.Error()},
		}
	}

	if err := rule.ValidateProviderResult(providerResult); err != nil {
		r := neutral(run.ReasonProviderResultInvalid, err.Error())
		r.RuleID = doc.ID
		return r
	}

	outcome, criteria := rule.Evaluate(doc.SuccessCriteria, providerResult.Metrics)
	for i := range criteria {
		criteria[i].Statement = doc.Evaluations[criteria[i].Metric]
	}

	result := run.GateResult{
		RuleID:         doc.ID,
		Criteria:       criteria,
		ProviderResult: providerResult,
		Provenance:     &providerResult.Provenance,
		Observations:   referencedObservations(criteria, providerResult.Metrics),
	}
	switch outcome {
	case rule.OutcomePass:
		result.Status = run.StatusPass
	case rule.OutcomeFail:
		result.Status = run.StatusFail
	default:
		result.Status = run.StatusNeutral
		result.NeutralReason = run.ReasonMissingMetrics
	}

	if result.Status == run.StatusFail {
		for _, c := range criteria {
			if c.Satisfied || c.Missing {
				continue
			}
			result.Violations = append(result.Violations, run.Violation{
				Code:  "criterion_unsatisfied",
				Level: run.LevelError,
				Message: fmt.Sprintf("%s: %v %s %v", c.Metric, c.Value,
					rule.OpSymbol(c.Op), c.Threshold),
			})
		}
	}
	return result
}

// buildEvidence assembles the workflow input under the rule's budgets,
// fetching the PR file list only when a capability asks for it.
func buildEvidence(ctx context.Context, gc *Context, doc *rule.Document) (workflow.Input, error) {
	in := workflow.Input{
		PRTitle:     gc.PR.Title,
		PRBody:      gc.PR.Body,
		Evaluations: doc.Evaluations,
	}

	needsFiles := doc.HasCapability(rule.CapabilityDiffSummary) || doc.HasCapability(rule.CapabilityFilePatches)
	if !needsFiles {
		return in, nil
	}

	files, err := gc.Forge.ListPRFiles(ctx, gc.PR.Number)
	if err != nil {
		return in, fmt.Errorf("list PR files: %w", err)
	}

	budgets := doc.EffectiveBudgets()
	if doc.HasCapability(rule.CapabilityDiffSummary) {
		in.DiffSummary = diff.Summary(files, budgets.MaxFiles)
	}
	if doc.HasCapability(rule.CapabilityFilePatches) {
		in.Patches = diff.Patches(files, budgets.MaxPatches, budgets.MaxPatchBytesPerFile)
	}
	return in, nil
}

// referencedObservations surfaces the observations of every metric the
// criteria reference, in metric order, so the report stays deterministic.
func referencedObservations(criteria []run.CriterionOutcome, metrics map[string]run.Metric) []string {
	seen := map[string]bool{}
	var names []string
	for _, c := range criteria {
		if !seen[c.Metric] {
			seen[c.Metric] = true
			names = append(names, c.Metric)
		}
	}
	sort.Strings(names)

	var out []string
	for _, name := range names {
		m, ok := metrics[name]
		if !ok {
			continue
		}
		for _, obs := range m.Observations {
			out = append(out, name+": "+obs)
		}
	}
	return out
}

func neutral(reason run.NeutralReason, message string) run.GateResult {
	return run.GateResult{
		Status:        run.StatusNeutral,
		NeutralReason: reason,
		Violations: []run.Violation{{
			Code:    string(reason),
			Level:   run.LevelWarning,
			Message: message,
		}},
	}
}
