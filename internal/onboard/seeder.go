// Package onboard seeds a starter policy into freshly installed
// repositories so the first pull request gets a meaningful check instead
// of a missing-policy failure.
package onboard

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/gatewright/gatewright/internal/hosting"
	"github.com/gatewright/gatewright/internal/policy"
)

// starterPolicy is the policy committed into a new installation. It keeps
// review sizes sane and asks for declared goals, which every repo can
// satisfy by editing the intent block.
const starterPolicy = `# Gatewright policy. Gates run on every pull request in order.
intent:
  goals:
    - Describe what this repository is for.
  non_goals: []

gates:
  - type: review-limits
    with:
      max_changed_files: 50
      max_total_diff_kb: 200
  - type: goal-declaration
`

// starterRule is an example AI review rule, referenced by nothing until a
// maintainer adds an ai-rule gate pointing at it.
const starterRule = `# Example AI review rule. Enable it by adding to repo-spec.yaml:
#
#   - type: ai-rule
#     with:
#       rule_file: clarity.yaml
#
id: clarity
schema_version: "1"
workflow_id: review-evaluator
evaluations:
  clarity: Is the change described clearly enough to review without asking questions?
success_criteria:
  neutral_on_missing_metrics: true
  require:
    - metric: clarity
      gte: 0.7
`

const (
	starterRulePath = policy.RulesDir + "/clarity.yaml"
	commitMessage   = "Add starter gatewright policy"
)

// Seeder writes the starter policy on installation events.
type Seeder struct {
	log *slog.Logger
}

// NewSeeder creates a policy seeder.
func NewSeeder(log *slog.Logger) *Seeder {
	if log == nil {
		log = slog.Default()
	}
	return &Seeder{log: log}
}

// Seed commits the starter policy and example rule to branch unless the
// repository already carries a policy file. Existing policies are never
// touched.
func (s *Seeder) Seed(ctx context.Context, forge hosting.Provider, branch string) error {
	if branch == "" {
		branch = "main"
	}

	_, err := forge.GetContent(ctx, policy.SpecPath, branch)
	if err == nil {
		s.log.Debug("policy already present, skipping seed", "repo", forge.FullName())
		return nil
	}
	if !errors.Is(err, hosting.ErrNotFound) {
		return fmt.Errorf("check for existing policy: %w", err)
	}

	if err := forge.CreateFile(ctx, policy.SpecPath, branch, commitMessage, []byte(starterPolicy)); err != nil {
		return fmt.Errorf("seed %s: %w", policy.SpecPath, err)
	}
	if err := forge.CreateFile(ctx, starterRulePath, branch, commitMessage, []byte(starterRule)); err != nil {
		return fmt.Errorf("seed %s: %w", starterRulePath, err)
	}

	s.log.Info("seeded starter policy", "repo", forge.FullName(), "branch", branch)
	return nil
}
