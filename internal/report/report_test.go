package report

import (
	"fmt"
	"net/url"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gatewright/gatewright/internal/policy"
	"github.com/gatewright/gatewright/internal/run"
)

func passResult() *run.Result {
	return &run.Result{
		OverallStatus:    run.StatusPass,
		ConclusionReason: run.ConclusionAllPassed,
		Gates: []run.GateResult{
			{ID: "review-limits", Status: run.StatusPass, Stats: map[string]any{"changed_files": 5}},
			{ID: "goal-declaration", Status: run.StatusPass},
			{ID: "forbidden-scopes", Status: run.StatusPass},
		},
		Summary:    run.ExecutionSummary{Configured: 3, Executed: 3, Passed: 3},
		DurationMS: 120,
	}
}

func fullDAO() *policy.DAO {
	return &policy.DAO{
		BaseURL: "https://vote.example.org",
		DAO:     "0xdao",
		Plugin:  "0xplugin",
		Signal:  "0xsignal",
		ChainID: "8453",
		RepoURL: "https://github.com/acme/widgets",
	}
}

func TestRenderAllPassed(t *testing.T) {
	summary, text := Render(Input{Result: passResult(), Policy: &policy.Document{}, PRNumber: 7})

	assert.Equal(t, "All gates passed", summary)
	assert.Contains(t, text, "✅ 3 passed | ❌ 0 failed | ⚠️ 0 neutral")
	assert.Contains(t, text, "### ✅ review-limits")
	assert.NotContains(t, text, "/merge-change")
}

func TestRenderDeterministic(t *testing.T) {
	in := Input{Result: passResult(), Policy: &policy.Document{}, PRNumber: 7}
	s1, t1 := Render(in)
	s2, t2 := Render(in)
	assert.Equal(t, s1, s2)
	assert.Equal(t, t1, t2)
}

func TestRenderGroupsFailuresFirst(t *testing.T) {
	res := &run.Result{
		OverallStatus:    run.StatusFail,
		ConclusionReason: run.ConclusionGatesFailed,
		Gates: []run.GateResult{
			{ID: "z-pass", Status: run.StatusPass},
			{ID: "b-fail", Status: run.StatusFail},
			{ID: "m-neutral", Status: run.StatusNeutral, NeutralReason: run.ReasonMissingArtifact},
			{ID: "a-fail", Status: run.StatusFail},
		},
		Summary: run.ExecutionSummary{Configured: 4, Executed: 4, Passed: 1, Failed: 2, Neutral: 1},
	}

	summary, text := Render(Input{Result: res, Policy: &policy.Document{}, PRNumber: 7})
	assert.Equal(t, "2 gate(s) failed", summary)

	aFail := strings.Index(text, "### ❌ a-fail")
	bFail := strings.Index(text, "### ❌ b-fail")
	neutral := strings.Index(text, "### ⚠️ m-neutral")
	pass := strings.Index(text, "### ✅ z-pass")
	require.True(t, aFail > 0 && bFail > 0 && neutral > 0 && pass > 0)
	assert.Less(t, aFail, bFail)
	assert.Less(t, bFail, neutral)
	assert.Less(t, neutral, pass)

	assert.Contains(t, text, "_Neutral reason: missing_artifact._")
}

func TestRenderFailureVoteLink(t *testing.T) {
	res := &run.Result{
		OverallStatus:    run.StatusFail,
		ConclusionReason: run.ConclusionGatesFailed,
		Gates:            []run.GateResult{{ID: "review-limits", Status: run.StatusFail}},
		Summary:          run.ExecutionSummary{Configured: 1, Executed: 1, Failed: 1},
	}
	pol := &policy.Document{DAO: fullDAO()}

	_, text := Render(Input{Result: res, Policy: pol, PRNumber: 42})

	require.True(t, strings.HasPrefix(text, "[Propose a vote to merge]("), "vote link must lead the body")

	start := strings.Index(text, "(") + 1
	end := strings.Index(text, ")")
	u, err := url.Parse(text[start:end])
	require.NoError(t, err)

	assert.Equal(t, "/merge-change", u.Path)
	q := u.Query()
	assert.Equal(t, "0xdao", q.Get("dao"))
	assert.Equal(t, "0xplugin", q.Get("plugin"))
	assert.Equal(t, "0xsignal", q.Get("signal"))
	assert.Equal(t, "8453", q.Get("chainId"))
	assert.Equal(t, "https://github.com/acme/widgets", q.Get("repoUrl"))
	assert.Equal(t, "42", q.Get("pr"))
	assert.Equal(t, "merge", q.Get("action"))
	assert.Equal(t, "change", q.Get("target"))
}

func TestRenderPartialDAOOmitsLink(t *testing.T) {
	res := &run.Result{
		OverallStatus: run.StatusFail,
		Gates:         []run.GateResult{{ID: "g", Status: run.StatusFail}},
		Summary:       run.ExecutionSummary{Failed: 1},
	}
	dao := fullDAO()
	dao.Signal = ""
	_, text := Render(Input{Result: res, Policy: &policy.Document{DAO: dao}, PRNumber: 7})
	assert.NotContains(t, text, "/merge-change")

	_, text = Render(Input{Result: res, Policy: &policy.Document{}, PRNumber: 7})
	assert.NotContains(t, text, "/merge-change")
}

func TestRenderCriteriaLines(t *testing.T) {
	res := &run.Result{
		OverallStatus: run.StatusPass,
		Gates: []run.GateResult{{
			ID:     "dont-rebuild-oss",
			Status: run.StatusPass,
			Criteria: []run.CriterionOutcome{
				{Metric: "score", Op: "gte", Threshold: 0.8, Value: 0.85, Satisfied: true, Statement: "Does not rebuild OSS."},
			},
			ProviderResult: &run.ProviderResult{
				Metrics: map[string]run.Metric{
					"score": {Value: 0.85, Observations: []string{"compared against upstream", "no duplication found"}},
				},
			},
			Provenance: &run.Provenance{Provider: "anthropic", Model: "claude-sonnet-4"},
		}},
		Summary: run.ExecutionSummary{Passed: 1},
	}

	_, text := Render(Input{Result: res, Policy: &policy.Document{}, PRNumber: 7})

	assert.Contains(t, text, "- **score:** 0.85 >= 0.8")
	assert.Contains(t, text, "  - _Does not rebuild OSS._")
	assert.Contains(t, text, "  - compared against upstream")
	assert.Contains(t, text, "_Model: anthropic / claude-sonnet-4._")
}

func TestRenderObservationCapPerMetric(t *testing.T) {
	obs := make([]string, 15)
	for i := range obs {
		obs[i] = fmt.Sprintf("observation %02d", i)
	}
	res := &run.Result{
		OverallStatus: run.StatusPass,
		Gates: []run.GateResult{{
			ID:     "rule",
			Status: run.StatusPass,
			Criteria: []run.CriterionOutcome{
				{Metric: "score", Op: "gte", Threshold: 0.5, Value: 1, Satisfied: true},
			},
			ProviderResult: &run.ProviderResult{
				Metrics: map[string]run.Metric{"score": {Value: 1, Observations: obs}},
			},
		}},
		Summary: run.ExecutionSummary{Passed: 1},
	}

	_, text := Render(Input{Result: res, Policy: &policy.Document{}, PRNumber: 7})
	assert.Contains(t, text, "observation 09")
	assert.NotContains(t, text, "observation 10")
}

func TestRenderLongObservationKeepsValidUTF8(t *testing.T) {
	long := strings.Repeat("é", maxObservationChars)
	res := &run.Result{
		OverallStatus: run.StatusPass,
		Gates: []run.GateResult{{
			ID:     "rule",
			Status: run.StatusPass,
			Criteria: []run.CriterionOutcome{
				{Metric: "score", Op: "gte", Threshold: 0.5, Value: 1, Satisfied: true},
			},
			ProviderResult: &run.ProviderResult{
				Metrics: map[string]run.Metric{"score": {Value: 1, Observations: []string{long}}},
			},
		}},
		Summary: run.ExecutionSummary{Passed: 1},
	}

	_, text := Render(Input{Result: res, Policy: &policy.Document{}, PRNumber: 7})
	assert.True(t, utf8.ValidString(text))
	assert.Contains(t, text, "…")
	assert.NotContains(t, text, long)
}

func TestClipRuneBoundary(t *testing.T) {
	assert.Equal(t, "abc", clip("abc", 10))
	assert.Equal(t, "ab…", clip("abcdef", 2))
	// "éé" is 4 bytes; a 3-byte cap must not split the second rune.
	assert.Equal(t, "é…", clip("éé", 3))
	assert.True(t, utf8.ValidString(clip(strings.Repeat("日", 500), 1000)))
}

func TestRenderViolationTruncation(t *testing.T) {
	violations := make([]run.Violation, 25)
	for i := range violations {
		violations[i] = run.Violation{Code: "v", Message: fmt.Sprintf("violation %02d", i)}
	}
	res := &run.Result{
		OverallStatus: run.StatusFail,
		Gates:         []run.GateResult{{ID: "lint", Status: run.StatusFail, Violations: violations}},
		Summary:       run.ExecutionSummary{Failed: 1},
	}

	_, text := Render(Input{Result: res, Policy: &policy.Document{}, PRNumber: 7})
	assert.Contains(t, text, "violation 19")
	assert.NotContains(t, text, "violation 20")
	assert.Contains(t, text, "_5 more violation(s) not shown._")
}

func TestRenderNoGates(t *testing.T) {
	res := &run.Result{
		OverallStatus:    run.StatusNeutral,
		ConclusionReason: run.ConclusionNoGatesExecuted,
		Gates:            []run.GateResult{},
	}
	summary, _ := Render(Input{Result: res, Policy: &policy.Document{}, PRNumber: 7})
	assert.Equal(t, "No gates executed", summary)
}
