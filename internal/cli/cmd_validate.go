package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/gatewright/gatewright/internal/gate"
	"github.com/gatewright/gatewright/internal/policy"
	"github.com/gatewright/gatewright/internal/rule"
)

func newValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate [dir]",
		Short: "Validate the policy and rule files in a repository checkout",
		Long: `Validate parses .gatewright/repo-spec.yaml and every rule under
.gatewright/rules/ the way the server would, and reports schema errors,
duplicate gate ids, and dangling rule references without touching any forge.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := "."
			if len(args) == 1 {
				dir = args[0]
			}
			return runValidate(cmd, dir)
		},
	}
}

func runValidate(cmd *cobra.Command, dir string) error {
	out := cmd.OutOrStdout()
	failed := false

	specPath := filepath.Join(dir, policy.SpecPath)
	data, err := os.ReadFile(specPath)
	if err != nil {
		fmt.Fprintln(out, failMark(policy.SpecPath+": "+err.Error()))
		return fmt.Errorf("validation failed")
	}

	doc, err := policy.Parse(data)
	if err != nil {
		fmt.Fprintln(out, failMark(policy.SpecPath+": "+err.Error()))
		return fmt.Errorf("validation failed")
	}
	fmt.Fprintln(out, passMark(fmt.Sprintf("%s (%d gates)", policy.SpecPath, len(doc.Gates))))

	// Duplicate derived ids abort a run before any gate executes, so they
	// are hard errors here too.
	seen := map[string]int{}
	for i, g := range doc.Gates {
		id := gate.DeriveID(g)
		if j, dup := seen[id]; dup {
			fmt.Fprintln(out, failMark(fmt.Sprintf("gates[%d] and gates[%d] both derive id %q", j, i, id)))
			failed = true
			continue
		}
		seen[id] = i
	}

	// Rule files referenced by ai-rule gates must exist and parse.
	referenced := map[string]bool{}
	for i, g := range doc.Gates {
		if g.Type != gate.TypeAIRule {
			continue
		}
		name, ok := g.StringOption("rule_file")
		if !ok || name == "" {
			fmt.Fprintln(out, failMark(fmt.Sprintf("gates[%d]: ai-rule gate needs with.rule_file", i)))
			failed = true
			continue
		}
		referenced[name] = true
		rulePath := filepath.Join(dir, policy.RulesDir, name)
		ruleData, err := os.ReadFile(rulePath)
		if err != nil {
			fmt.Fprintln(out, failMark(fmt.Sprintf("%s/%s: %v", policy.RulesDir, name, err)))
			failed = true
			continue
		}
		if _, err := rule.Parse(ruleData); err != nil {
			fmt.Fprintln(out, failMark(fmt.Sprintf("%s/%s: %v", policy.RulesDir, name, err)))
			failed = true
			continue
		}
		fmt.Fprintln(out, passMark(policy.RulesDir+"/"+name))
	}

	// Rules nothing references still get parsed, as a courtesy.
	entries, err := os.ReadDir(filepath.Join(dir, policy.RulesDir))
	if err == nil {
		for _, e := range entries {
			name := e.Name()
			if e.IsDir() || !strings.HasSuffix(name, ".yaml") || referenced[name] {
				continue
			}
			ruleData, err := os.ReadFile(filepath.Join(dir, policy.RulesDir, name))
			if err != nil {
				continue
			}
			if _, err := rule.Parse(ruleData); err != nil {
				fmt.Fprintln(out, failMark(fmt.Sprintf("%s/%s: %v", policy.RulesDir, name, err)))
				failed = true
				continue
			}
			fmt.Fprintln(out, warnMark(policy.RulesDir+"/"+name+" parses but no gate references it"))
		}
	}

	if failed {
		return fmt.Errorf("validation failed")
	}
	fmt.Fprintln(out, muted("policy is valid"))
	return nil
}
