// Package rule models AI-rule documents and evaluates their
// success-criteria matrix against provider metrics.
package rule

import (
	"fmt"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/gatewright/gatewright/internal/run"
)

// Capabilities a rule may request.
const (
	CapabilityDiffSummary = "diff_summary"
	CapabilityFilePatches = "file_patches"
)

// Budget defaults, applied when x_budgets omits a field.
const (
	DefaultMaxFiles             = 50
	DefaultMaxPatches           = 5
	DefaultMaxPatchBytesPerFile = 16 * 1024
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// Document is a parsed rule document (.gatewright/rules/<name>.yaml).
type Document struct {
	ID              string            `yaml:"id" validate:"required"`
	SchemaVersion   string            `yaml:"schema_version" validate:"required"`
	WorkflowID      string            `yaml:"workflow_id" validate:"required"`
	Evaluations     map[string]string `yaml:"evaluations" validate:"required,min=1"`
	SuccessCriteria Criteria          `yaml:"success_criteria"`
	Budgets         *Budgets          `yaml:"x_budgets"`
	Capabilities    []string          `yaml:"x_capabilities" validate:"dive,oneof=diff_summary file_patches"`
}

// Budgets bounds the evidence attached to an AI workflow call.
type Budgets struct {
	MaxFiles             int `yaml:"max_files"`
	MaxPatches           int `yaml:"max_patches"`
	MaxPatchBytesPerFile int `yaml:"max_patch_bytes_per_file"`
}

// HasCapability reports whether the rule requested the given capability.
func (d *Document) HasCapability(name string) bool {
	for _, c := range d.Capabilities {
		if c == name {
			return true
		}
	}
	return false
}

// EffectiveBudgets returns the rule's budgets with defaults filled in.
func (d *Document) EffectiveBudgets() Budgets {
	b := Budgets{
		MaxFiles:             DefaultMaxFiles,
		MaxPatches:           DefaultMaxPatches,
		MaxPatchBytesPerFile: DefaultMaxPatchBytesPerFile,
	}
	if d.Budgets == nil {
		return b
	}
	if d.Budgets.MaxFiles > 0 {
		b.MaxFiles = d.Budgets.MaxFiles
	}
	if d.Budgets.MaxPatches > 0 {
		b.MaxPatches = d.Budgets.MaxPatches
	}
	if d.Budgets.MaxPatchBytesPerFile > 0 {
		b.MaxPatchBytesPerFile = d.Budgets.MaxPatchBytesPerFile
	}
	return b
}

// Parse unmarshals and validates a rule document.
func Parse(data []byte) (*Document, error) {
	var doc Document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse rule: %w", err)
	}
	if err := validate.Struct(&doc); err != nil {
		return nil, fmt.Errorf("rule schema: %w", err)
	}
	if err := doc.SuccessCriteria.validate(); err != nil {
		return nil, fmt.Errorf("success_criteria: %w", err)
	}
	return &doc, nil
}

// ValidateProviderResult checks that an AI workflow's output conforms to the
// provider-result schema before it reaches the matrix. A metric without an
// observations array is valid; it defaults to empty so threshold comparisons
// and the missing-metrics verdict still apply to it.
func ValidateProviderResult(res *run.ProviderResult) error {
	if res == nil {
		return fmt.Errorf("provider result is empty")
	}
	if res.Metrics == nil {
		return fmt.Errorf("provider result has no metrics object")
	}
	for id, m := range res.Metrics {
		if id == "" {
			return fmt.Errorf("provider result has a metric with an empty id")
		}
		if m.Observations == nil {
			m.Observations = []string{}
			res.Metrics[id] = m
		}
	}
	return nil
}
