package orchestrator

import (
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gatewright/gatewright/internal/errors"
	"github.com/gatewright/gatewright/internal/gate"
	"github.com/gatewright/gatewright/internal/hosting"
	"github.com/gatewright/gatewright/internal/hosting/hostingtest"
	"github.com/gatewright/gatewright/internal/policy"
	"github.com/gatewright/gatewright/internal/run"
)

func runContext(t *testing.T, doc *policy.Document) *gate.Context {
	t.Helper()
	return &gate.Context{
		PR: &hosting.PR{
			Number:       7,
			HeadSHA:      "headsha",
			ChangedFiles: 5,
			Additions:    30,
			Deletions:    30,
		},
		Policy:    doc,
		Forge:     hostingtest.New("acme", "widgets"),
		Log:       slog.Default(),
		CheckName: "Gatewright Review",
	}
}

func TestRunAllPass(t *testing.T) {
	doc := &policy.Document{
		Intent: policy.Intent{Goals: []string{"g"}, NonGoals: []string{"ng"}},
		Gates: []policy.GateSpec{
			{Type: "review-limits", With: map[string]any{"max_changed_files": 30, "max_total_diff_kb": 100}},
			{Type: "goal-declaration"},
			{Type: "forbidden-scopes"},
		},
	}

	result, err := New(slog.Default()).Run(context.Background(), runContext(t, doc))
	require.NoError(t, err)

	assert.Equal(t, run.StatusPass, result.OverallStatus)
	assert.Equal(t, run.ConclusionAllPassed, result.ConclusionReason)
	require.Len(t, result.Gates, 3)
	assert.Equal(t, 3, result.Summary.Passed)
	assert.False(t, result.Summary.Partial)
}

func TestRunFailureDominates(t *testing.T) {
	doc := &policy.Document{
		// goals missing → goal-declaration fails; unknown gate is neutral
		Gates: []policy.GateSpec{
			{Type: "goal-declaration"},
			{Type: "future-gate"},
		},
	}

	result, err := New(slog.Default()).Run(context.Background(), runContext(t, doc))
	require.NoError(t, err)

	assert.Equal(t, run.StatusFail, result.OverallStatus)
	assert.Equal(t, run.ConclusionGatesFailed, result.ConclusionReason)
}

func TestRunNeutralWhenNoFailures(t *testing.T) {
	doc := &policy.Document{
		Intent: policy.Intent{Goals: []string{"g"}},
		Gates: []policy.GateSpec{
			{Type: "goal-declaration"},
			{Type: "future-gate"},
		},
	}

	result, err := New(slog.Default()).Run(context.Background(), runContext(t, doc))
	require.NoError(t, err)

	assert.Equal(t, run.StatusNeutral, result.OverallStatus)
	assert.Equal(t, run.ConclusionGatesNeutral, result.ConclusionReason)
}

func TestRunNoGates(t *testing.T) {
	result, err := New(slog.Default()).Run(context.Background(), runContext(t, &policy.Document{}))
	require.NoError(t, err)

	assert.Equal(t, run.StatusNeutral, result.OverallStatus)
	assert.Equal(t, run.ConclusionNoGatesExecuted, result.ConclusionReason)
}

func TestRunDuplicateIDsAbort(t *testing.T) {
	doc := &policy.Document{Gates: []policy.GateSpec{
		{Type: "ai-rule", With: map[string]any{"rule_file": "dont-rebuild-oss.yaml"}},
		{Type: "ai-rule", With: map[string]any{"rule_file": "dont-rebuild-oss.yaml"}},
	}}

	result, err := New(slog.Default()).Run(context.Background(), runContext(t, doc))
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.CodeDuplicateGateID))
	assert.Empty(t, result.Gates)
	assert.Equal(t, run.StatusNeutral, result.OverallStatus)
	assert.Equal(t, run.ConclusionNoGatesExecuted, result.ConclusionReason)
}

func TestRunFailOnErrorElevation(t *testing.T) {
	doc := &policy.Document{
		FailOnError: true,
		Intent:      policy.Intent{Goals: []string{"g"}},
		Gates: []policy.GateSpec{
			{Type: "goal-declaration"},
			{Type: "future-gate"},
		},
	}

	result, err := New(slog.Default()).Run(context.Background(), runContext(t, doc))
	require.NoError(t, err)

	assert.Equal(t, run.StatusFail, result.OverallStatus)
	// the reason survives elevation
	assert.Equal(t, run.ConclusionGatesNeutral, result.ConclusionReason)
	assert.True(t, result.Summary.Elevated)
}

func TestRunFailOnErrorDoesNotElevateEmptyRun(t *testing.T) {
	doc := &policy.Document{FailOnError: true}

	result, err := New(slog.Default()).Run(context.Background(), runContext(t, doc))
	require.NoError(t, err)

	assert.Equal(t, run.StatusNeutral, result.OverallStatus)
	assert.Equal(t, run.ConclusionNoGatesExecuted, result.ConclusionReason)
	assert.False(t, result.Summary.Elevated)
}

func TestRunForceFailOnError(t *testing.T) {
	doc := &policy.Document{
		Intent: policy.Intent{Goals: []string{"g"}},
		Gates: []policy.GateSpec{
			{Type: "goal-declaration"},
			{Type: "future-gate"},
		},
	}

	o := New(slog.Default(), WithForceFailOnError(true))
	result, err := o.Run(context.Background(), runContext(t, doc))
	require.NoError(t, err)
	assert.Equal(t, run.StatusFail, result.OverallStatus)
}

func TestRunPartialWithFailure(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	gate.Register("test-orch-fail-cancel", func(_ context.Context, gc *gate.Context, spec policy.GateSpec) run.GateResult {
		cancel()
		return run.GateResult{Status: run.StatusFail}
	})

	doc := &policy.Document{Gates: []policy.GateSpec{
		{Type: "test-orch-fail-cancel"},
		{Type: "goal-declaration"},
	}}

	result, err := New(slog.Default()).Run(ctx, runContext(t, doc))
	require.NoError(t, err)

	require.Len(t, result.Gates, 1)
	assert.True(t, result.Summary.Partial)
	// a failure dominates even when later gates never ran
	assert.Equal(t, run.StatusFail, result.OverallStatus)
}
