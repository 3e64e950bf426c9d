package gate

import (
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gatewright/gatewright/internal/errors"
	"github.com/gatewright/gatewright/internal/hosting"
	"github.com/gatewright/gatewright/internal/hosting/hostingtest"
	"github.com/gatewright/gatewright/internal/policy"
	"github.com/gatewright/gatewright/internal/run"
)

func testContext(t *testing.T, doc *policy.Document) (*Context, *hostingtest.Fake) {
	t.Helper()
	fake := hostingtest.New("acme", "widgets")
	return &Context{
		PR: &hosting.PR{
			Number:       7,
			Title:        "test change",
			HeadSHA:      "headsha",
			ChangedFiles: 5,
			Additions:    30,
			Deletions:    30,
		},
		Policy:    doc,
		Forge:     fake,
		Log:       slog.Default(),
		CheckName: "Gatewright Review",
	}, fake
}

func TestDeriveID(t *testing.T) {
	tests := []struct {
		name string
		spec policy.GateSpec
		want string
	}{
		{"explicit id wins", policy.GateSpec{Type: "review-limits", ID: "limits-strict"}, "limits-strict"},
		{"type fallback", policy.GateSpec{Type: "review-limits"}, "review-limits"},
		{"ai-rule basename", policy.GateSpec{Type: "ai-rule", With: map[string]any{"rule_file": "dont-rebuild-oss.yaml"}}, "dont-rebuild-oss"},
		{"ai-rule nested path", policy.GateSpec{Type: "ai-rule", With: map[string]any{"rule_file": "sub/scope-check.yaml"}}, "scope-check"},
		{"ai-rule without file", policy.GateSpec{Type: "ai-rule"}, "ai-rule"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DeriveID(tt.spec))
		})
	}
}

func TestLaunchDuplicateIDsAbortBeforeAnyGate(t *testing.T) {
	invoked := false
	Register("test-dup-probe", func(ctx context.Context, gc *Context, spec policy.GateSpec) run.GateResult {
		invoked = true
		return run.GateResult{Status: run.StatusPass}
	})

	doc := &policy.Document{Gates: []policy.GateSpec{
		{Type: "ai-rule", With: map[string]any{"rule_file": "dont-rebuild-oss.yaml"}},
		{Type: "test-dup-probe"},
		{Type: "ai-rule", With: map[string]any{"rule_file": "dont-rebuild-oss.yaml"}},
	}}
	gc, _ := testContext(t, doc)

	results, err := Launch(context.Background(), gc)
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.CodeDuplicateGateID))
	assert.Empty(t, results)
	assert.False(t, invoked, "no handler may run when ids collide")
}

func TestLaunchOverwritesHandlerID(t *testing.T) {
	Register("test-id-liar", func(ctx context.Context, gc *Context, spec policy.GateSpec) run.GateResult {
		return run.GateResult{ID: "impostor", Status: run.StatusPass}
	})

	doc := &policy.Document{Gates: []policy.GateSpec{{Type: "test-id-liar"}}}
	gc, _ := testContext(t, doc)

	results, err := Launch(context.Background(), gc)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "test-id-liar", results[0].ID)
}

func TestLaunchRecoversPanic(t *testing.T) {
	Register("test-panics", func(ctx context.Context, gc *Context, spec policy.GateSpec) run.GateResult {
		panic("boom")
	})
	Register("test-after", func(ctx context.Context, gc *Context, spec policy.GateSpec) run.GateResult {
		return run.GateResult{Status: run.StatusPass}
	})

	doc := &policy.Document{Gates: []policy.GateSpec{{Type: "test-panics"}, {Type: "test-after"}}}
	gc, _ := testContext(t, doc)

	results, err := Launch(context.Background(), gc)
	require.NoError(t, err)
	require.Len(t, results, 2)

	assert.Equal(t, run.StatusNeutral, results[0].Status)
	assert.Equal(t, run.ReasonInternalError, results[0].NeutralReason)
	assert.Equal(t, "boom", results[0].Stats["error"])
	// the loop keeps going after a crash
	assert.Equal(t, run.StatusPass, results[1].Status)
}

func TestLaunchStopsOnCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	var ran int
	Register("test-cancel-mid", func(ctx context.Context, gc *Context, spec policy.GateSpec) run.GateResult {
		ran++
		cancel()
		return run.GateResult{Status: run.StatusPass}
	})
	Register("test-cancel-never", func(ctx context.Context, gc *Context, spec policy.GateSpec) run.GateResult {
		ran++
		return run.GateResult{Status: run.StatusPass}
	})

	doc := &policy.Document{Gates: []policy.GateSpec{
		{Type: "test-cancel-mid"},
		{Type: "test-cancel-never"},
	}}
	gc, _ := testContext(t, doc)

	results, err := Launch(ctx, gc)
	require.NoError(t, err)
	assert.Len(t, results, 1)
	assert.Equal(t, 1, ran)
}

func TestLaunchUnknownTypeIsUnimplemented(t *testing.T) {
	doc := &policy.Document{Gates: []policy.GateSpec{{Type: "quantum-review"}}}
	gc, _ := testContext(t, doc)

	results, err := Launch(context.Background(), gc)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, run.StatusNeutral, results[0].Status)
	assert.Equal(t, run.ReasonUnimplementedGate, results[0].NeutralReason)
	assert.Equal(t, "quantum-review", results[0].ID)
}

func TestLaunchNormalizesEmptyResult(t *testing.T) {
	Register("test-empty", func(ctx context.Context, gc *Context, spec policy.GateSpec) run.GateResult {
		return run.GateResult{}
	})

	doc := &policy.Document{Gates: []policy.GateSpec{{Type: "test-empty"}}}
	gc, _ := testContext(t, doc)

	results, err := Launch(context.Background(), gc)
	require.NoError(t, err)
	require.Len(t, results, 1)

	r := results[0]
	assert.Equal(t, run.StatusNeutral, r.Status)
	assert.NotNil(t, r.Violations)
	assert.NotNil(t, r.Observations)
	assert.NotNil(t, r.Stats)
}

func TestLaunchPreservesSpecOrder(t *testing.T) {
	doc := &policy.Document{Gates: []policy.GateSpec{
		{Type: "goal-declaration"},
		{Type: "forbidden-scopes"},
		{Type: "review-limits"},
	}}
	gc, _ := testContext(t, doc)
	gc.Policy.Intent = policy.Intent{Goals: []string{"g"}, NonGoals: []string{"ng"}}

	results, err := Launch(context.Background(), gc)
	require.NoError(t, err)
	require.Len(t, results, 3)
	assert.Equal(t, "goal-declaration", results[0].ID)
	assert.Equal(t, "forbidden-scopes", results[1].ID)
	assert.Equal(t, "review-limits", results[2].ID)
}
