// Package policy loads and validates the per-repository policy document
// (.gatewright/repo-spec.yaml) and its referenced rule documents.
package policy

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// Default locations inside a repository.
const (
	// Root is the policy directory at the repository root.
	Root = ".gatewright"
	// SpecFile is the policy document filename.
	SpecFile = "repo-spec.yaml"
	// SpecPath is the repo-relative path of the policy document.
	SpecPath = Root + "/" + SpecFile
	// RulesDir is the repo-relative directory holding rule documents.
	RulesDir = Root + "/rules"
)

// Document is the parsed policy document.
type Document struct {
	Intent      Intent     `yaml:"intent"`
	Gates       []GateSpec `yaml:"gates"`
	FailOnError bool       `yaml:"fail_on_error"`
	DAO         *DAO       `yaml:"cogni_dao"`

	// Hash is the content hash of the raw document, set by the loader.
	// It keys idempotent check updates.
	Hash string `yaml:"-"`
}

// Intent declares what the repository is and is not trying to do.
type Intent struct {
	Goals    []string `yaml:"goals"`
	NonGoals []string `yaml:"non_goals"`
}

// GateSpec is one entry in the policy's ordered gate list.
type GateSpec struct {
	Type string         `yaml:"type"`
	ID   string         `yaml:"id"`
	With map[string]any `yaml:"with"`
}

// DAO holds the governance addresses used by the renderer to emit a
// merge-vote deep link on failure.
type DAO struct {
	BaseURL string `yaml:"base_url"`
	DAO     string `yaml:"dao"`
	Plugin  string `yaml:"plugin"`
	Signal  string `yaml:"signal"`
	ChainID string `yaml:"chain_id"`
	RepoURL string `yaml:"repo_url"`
}

// Complete reports whether every address needed for the vote link is set.
func (d *DAO) Complete() bool {
	return d != nil &&
		d.BaseURL != "" &&
		d.DAO != "" &&
		d.Plugin != "" &&
		d.Signal != "" &&
		d.ChainID != "" &&
		d.RepoURL != ""
}

// Parse unmarshals and structurally validates a policy document.
func Parse(data []byte) (*Document, error) {
	var doc Document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse policy: %w", err)
	}
	if err := doc.Validate(); err != nil {
		return nil, err
	}
	return &doc, nil
}

// Validate checks the structural invariants the loader can see without
// running any gate: every gate spec needs a type. Duplicate derived ids are
// the launcher's concern because derivation depends on gate semantics.
func (d *Document) Validate() error {
	for i, g := range d.Gates {
		if g.Type == "" {
			return fmt.Errorf("gates[%d]: missing required field: type", i)
		}
	}
	return nil
}

// StringOption reads a string value from a gate's with-mapping.
func (g GateSpec) StringOption(key string) (string, bool) {
	v, ok := g.With[key]
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

// IntOption reads an integer value from a gate's with-mapping. YAML decodes
// numbers as int or float64 depending on shape; both are accepted.
func (g GateSpec) IntOption(key string) (int, bool) {
	v, ok := g.With[key]
	if !ok {
		return 0, false
	}
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case float64:
		return int(n), true
	default:
		return 0, false
	}
}

// StringsOption reads a string-sequence value from a gate's with-mapping.
func (g GateSpec) StringsOption(key string) ([]string, bool) {
	v, ok := g.With[key]
	if !ok {
		return nil, false
	}
	raw, ok := v.([]any)
	if !ok {
		return nil, false
	}
	out := make([]string, 0, len(raw))
	for _, item := range raw {
		s, ok := item.(string)
		if !ok {
			return nil, false
		}
		out = append(out, s)
	}
	return out, true
}
