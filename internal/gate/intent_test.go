package gate

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gatewright/gatewright/internal/policy"
	"github.com/gatewright/gatewright/internal/run"
)

func TestGoalDeclaration(t *testing.T) {
	gc, _ := testContext(t, &policy.Document{
		Intent: policy.Intent{Goals: []string{"ship the feature"}},
	})

	result := Lookup(TypeGoalDeclaration)(context.Background(), gc, policy.GateSpec{Type: TypeGoalDeclaration})
	assert.Equal(t, run.StatusPass, result.Status)
	assert.Equal(t, 1, result.Stats["declared"])
}

func TestGoalDeclarationMissing(t *testing.T) {
	gc, _ := testContext(t, &policy.Document{})

	result := Lookup(TypeGoalDeclaration)(context.Background(), gc, policy.GateSpec{Type: TypeGoalDeclaration})
	assert.Equal(t, run.StatusFail, result.Status)
	require.Len(t, result.Violations, 1)
	assert.Contains(t, result.Violations[0].Message, "intent.goals")
}

func TestForbiddenScopes(t *testing.T) {
	gc, _ := testContext(t, &policy.Document{
		Intent: policy.Intent{NonGoals: []string{"no UI changes"}},
	})
	result := Lookup(TypeForbiddenScopes)(context.Background(), gc, policy.GateSpec{Type: TypeForbiddenScopes})
	assert.Equal(t, run.StatusPass, result.Status)

	gc.Policy.Intent.NonGoals = nil
	result = Lookup(TypeForbiddenScopes)(context.Background(), gc, policy.GateSpec{Type: TypeForbiddenScopes})
	assert.Equal(t, run.StatusFail, result.Status)
	assert.Contains(t, result.Violations[0].Message, "intent.non_goals")
}
