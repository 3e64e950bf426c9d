// Package workflow dispatches rule evaluations to named AI workflows.
// A workflow takes PR evidence plus a rule's evaluation statements and
// returns a metrics map conforming to the provider-result schema.
package workflow

import (
	"context"
	"fmt"
	"sync"

	"github.com/gatewright/gatewright/internal/diff"
	"github.com/gatewright/gatewright/internal/run"
)

// Input is the evidence bundle handed to a workflow.
type Input struct {
	PRTitle     string
	PRBody      string
	DiffSummary string
	Patches     []diff.Patch

	// Evaluations maps metric id to the statement the workflow scores.
	Evaluations map[string]string
}

// Workflow evaluates a rule's statements against PR evidence.
type Workflow interface {
	ID() string
	Evaluate(ctx context.Context, in Input) (*run.ProviderResult, error)
}

// Registry holds the workflows registered in this process. Lookups after
// startup are read-only; registration after serving begins is not supported.
type Registry struct {
	mu        sync.RWMutex
	workflows map[string]Workflow
}

// NewRegistry returns an empty workflow registry.
func NewRegistry() *Registry {
	return &Registry{workflows: map[string]Workflow{}}
}

// Register adds a workflow under its ID, replacing any previous entry.
func (r *Registry) Register(w Workflow) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.workflows[w.ID()] = w
}

// Lookup resolves a workflow id.
func (r *Registry) Lookup(id string) (Workflow, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	w, ok := r.workflows[id]
	if !ok {
		return nil, fmt.Errorf("no workflow registered with id %q", id)
	}
	return w, nil
}

// IDs returns the registered workflow ids, for diagnostics.
func (r *Registry) IDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(r.workflows))
	for id := range r.workflows {
		ids = append(ids, id)
	}
	return ids
}
