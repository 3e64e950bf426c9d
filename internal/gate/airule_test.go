package gate

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gatewright/gatewright/internal/hosting"
	"github.com/gatewright/gatewright/internal/hosting/hostingtest"
	"github.com/gatewright/gatewright/internal/policy"
	"github.com/gatewright/gatewright/internal/run"
	"github.com/gatewright/gatewright/internal/rule"
	"github.com/gatewright/gatewright/internal/workflow"
)

type scriptedWorkflow struct {
	id     string
	result *run.ProviderResult
	err    error
	gotIn  workflow.Input
}

func (s *scriptedWorkflow) ID() string { return s.id }

func (s *scriptedWorkflow) Evaluate(ctx context.Context, in workflow.Input) (*run.ProviderResult, error) {
	s.gotIn = in
	return s.result, s.err
}

func scoreRule(t *testing.T) *rule.Document {
	t.Helper()
	doc, err := rule.Parse([]byte(`
id: dont-rebuild-oss
schema_version: "1"
workflow_id: review-evaluator
evaluations:
  score: "The change does not rebuild existing open source functionality."
success_criteria:
  require:
    - metric: score
      gte: 0.8
`))
	require.NoError(t, err)
	return doc
}

func aiRuleContext(t *testing.T, doc *rule.Document, wf workflow.Workflow) *Context {
	t.Helper()
	gc, _ := testContext(t, &policy.Document{})
	gc.Workflows = workflow.NewRegistry()
	if wf != nil {
		gc.Workflows.Register(wf)
	}
	gc.LoadRule = func(ctx context.Context, name string) (*rule.Document, error) {
		if doc == nil {
			return nil, fmt.Errorf("rule schema: missing required fields")
		}
		return doc, nil
	}
	return gc
}

func aiRuleSpec() policy.GateSpec {
	return policy.GateSpec{Type: TypeAIRule, With: map[string]any{"rule_file": "dont-rebuild-oss.yaml"}}
}

func providerScore(v float64) *run.ProviderResult {
	return &run.ProviderResult{
		Metrics: map[string]run.Metric{
			"score": {Value: v, Observations: []string{"checked the diff"}},
		},
		Summary: "assessment",
	}
}

func TestAIRuleBelowThresholdFails(t *testing.T) {
	wf := &scriptedWorkflow{id: "review-evaluator", result: providerScore(0.75)}
	gc := aiRuleContext(t, scoreRule(t), wf)

	result := aiRule(context.Background(), gc, aiRuleSpec())
	assert.Equal(t, run.StatusFail, result.Status)
	assert.Equal(t, "dont-rebuild-oss", result.RuleID)
	require.Len(t, result.Criteria, 1)
	assert.False(t, result.Criteria[0].Satisfied)
	require.Len(t, result.Violations, 1)
	assert.Contains(t, result.Violations[0].Message, "score")
}

func TestAIRuleAboveThresholdPasses(t *testing.T) {
	wf := &scriptedWorkflow{id: "review-evaluator", result: providerScore(0.85)}
	gc := aiRuleContext(t, scoreRule(t), wf)

	result := aiRule(context.Background(), gc, aiRuleSpec())
	assert.Equal(t, run.StatusPass, result.Status)
	assert.Equal(t, []string{"score: checked the diff"}, result.Observations)
	require.NotNil(t, result.Provenance)
}

func TestAIRuleMissingMetricNeutral(t *testing.T) {
	doc, err := rule.Parse([]byte(`
id: dont-rebuild-oss
schema_version: "1"
workflow_id: review-evaluator
evaluations:
  score: "statement"
success_criteria:
  neutral_on_missing_metrics: true
  require:
    - metric: score
      gte: 0.8
`))
	require.NoError(t, err)

	wf := &scriptedWorkflow{id: "review-evaluator", result: &run.ProviderResult{
		Metrics: map[string]run.Metric{"other": {Value: 1}},
	}}
	gc := aiRuleContext(t, doc, wf)

	result := aiRule(context.Background(), gc, aiRuleSpec())
	assert.Equal(t, run.StatusNeutral, result.Status)
	assert.Equal(t, run.ReasonMissingMetrics, result.NeutralReason)
}

func TestAIRuleSchemaFailureNeutral(t *testing.T) {
	gc := aiRuleContext(t, nil, &scriptedWorkflow{id: "review-evaluator"})

	result := aiRule(context.Background(), gc, aiRuleSpec())
	assert.Equal(t, run.StatusNeutral, result.Status)
	assert.Equal(t, run.ReasonRuleSchemaInvalid, result.NeutralReason)
}

func TestAIRuleInvalidProviderResultNeutral(t *testing.T) {
	wf := &scriptedWorkflow{id: "review-evaluator", result: &run.ProviderResult{}}
	gc := aiRuleContext(t, scoreRule(t), wf)

	result := aiRule(context.Background(), gc, aiRuleSpec())
	assert.Equal(t, run.StatusNeutral, result.Status)
	assert.Equal(t, run.ReasonProviderResultInvalid, result.NeutralReason)
}

func TestAIRuleUnknownWorkflowNeutral(t *testing.T) {
	gc := aiRuleContext(t, scoreRule(t), nil)

	result := aiRule(context.Background(), gc, aiRuleSpec())
	assert.Equal(t, run.StatusNeutral, result.Status)
	assert.Equal(t, run.ReasonRuleSchemaInvalid, result.NeutralReason)
}

func TestAIRuleWorkflowErrorNeutral(t *testing.T) {
	wf := &scriptedWorkflow{id: "review-evaluator", err: fmt.Errorf("model unavailable")}
	gc := aiRuleContext(t, scoreRule(t), wf)

	result := aiRule(context.Background(), gc, aiRuleSpec())
	assert.Equal(t, run.StatusNeutral, result.Status)
	assert.Equal(t, run.ReasonInternalError, result.NeutralReason)
	assert.Contains(t, result.Stats["error"], "model unavailable")
}

func TestAIRuleDiffSummaryCapability(t *testing.T) {
	doc, err := rule.Parse([]byte(`
id: with-evidence
schema_version: "1"
workflow_id: review-evaluator
evaluations:
  score: "statement"
success_criteria:
  require:
    - metric: score
      gte: 0.5
x_capabilities: [diff_summary, file_patches]
x_budgets:
  max_files: 10
  max_patches: 2
  max_patch_bytes_per_file: 64
`))
	require.NoError(t, err)

	wf := &scriptedWorkflow{id: "review-evaluator", result: providerScore(0.9)}
	gc := aiRuleContext(t, doc, wf)
	gc.Forge.(*hostingtest.Fake).PRFiles[7] = []hosting.PRFile{
		{Path: "main.go", Status: "modified", Additions: 12, Deletions: 3, Patch: "@@ -1 +1 @@"},
	}

	result := aiRule(context.Background(), gc, aiRuleSpec())
	assert.Equal(t, run.StatusPass, result.Status)
	assert.Contains(t, wf.gotIn.DiffSummary, "1 files changed")
	require.Len(t, wf.gotIn.Patches, 1)
	assert.Equal(t, "main.go", wf.gotIn.Patches[0].Path)
}
