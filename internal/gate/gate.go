// Package gate defines the gate handler contract, the static registry of
// built-in gates, and the launcher that walks a policy's gate list.
package gate

import (
	"context"
	"log/slog"
	"sync"

	"github.com/gatewright/gatewright/internal/hosting"
	"github.com/gatewright/gatewright/internal/policy"
	"github.com/gatewright/gatewright/internal/run"
	"github.com/gatewright/gatewright/internal/rule"
	"github.com/gatewright/gatewright/internal/workflow"
)

// Built-in gate type strings.
const (
	TypeReviewLimits     = "review-limits"
	TypeGoalDeclaration  = "goal-declaration"
	TypeForbiddenScopes  = "forbidden-scopes"
	TypeGovernancePolicy = "governance-policy"
	TypeAIRule           = "ai-rule"
	TypeArtifactJSON     = "artifact.json"
	TypeArtifactSARIF    = "artifact.sarif"
)

// Context carries everything a handler may consume. Handlers are
// side-effect-free except through the forge client.
type Context struct {
	PR     *hosting.PR
	Policy *policy.Document
	Forge  hosting.Provider
	Log    *slog.Logger

	// Workflows dispatches ai-rule evaluations.
	Workflows *workflow.Registry

	// LoadRule fetches a rule document at the PR head.
	LoadRule func(ctx context.Context, name string) (*rule.Document, error)

	// RequiredContexts and WorkflowPaths configure the governance gate:
	// the status contexts the repo requires, and the mapping from
	// context name to workflow definition path.
	RequiredContexts []string
	WorkflowPaths    map[string]string

	// CheckName is this engine's own check, exempted from governance.
	CheckName string

	// DeferExternal skips artifact ingestion until CI has completed.
	// CIRunID, when nonzero, is the completed run artifact gates prefer.
	DeferExternal bool
	CIRunID       int64
}

// Handler executes one gate against one PR.
type Handler func(ctx context.Context, gc *Context, spec policy.GateSpec) run.GateResult

var (
	registryMu sync.RWMutex
	registry   = map[string]Handler{}
)

// Register adds a built-in handler. Called from init in each gate file;
// registering after startup is not supported.
func Register(gateType string, h Handler) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[gateType] = h
}

// Lookup resolves a gate type to its handler. Unknown types resolve to a
// synthetic handler yielding neutral with reason unimplemented_gate, so a
// policy naming a future gate degrades instead of erroring.
func Lookup(gateType string) Handler {
	registryMu.RLock()
	h, ok := registry[gateType]
	registryMu.RUnlock()
	if ok {
		return h
	}
	return unimplemented(gateType)
}

// Types returns the registered gate type strings.
func Types() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	types := make([]string, 0, len(registry))
	for t := range registry {
		types = append(types, t)
	}
	return types
}

func unimplemented(gateType string) Handler {
	return func(ctx context.Context, gc *Context, spec policy.GateSpec) run.GateResult {
		return run.GateResult{
			Status:        run.StatusNeutral,
			NeutralReason: run.ReasonUnimplementedGate,
			Observations:  []string{"gate type " + gateType + " is not implemented in this build"},
		}
	}
}
