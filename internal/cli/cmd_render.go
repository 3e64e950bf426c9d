package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/gatewright/gatewright/internal/config"
	"github.com/gatewright/gatewright/internal/gate"
	"github.com/gatewright/gatewright/internal/hosting"
	"github.com/gatewright/gatewright/internal/orchestrator"
	"github.com/gatewright/gatewright/internal/policy"
	"github.com/gatewright/gatewright/internal/report"
	"github.com/gatewright/gatewright/internal/rule"
	"github.com/gatewright/gatewright/internal/run"
)

func newRenderCmd() *cobra.Command {
	var (
		repo     string
		prNumber int
		fromJSON string
	)

	cmd := &cobra.Command{
		Use:   "render",
		Short: "Dry-run the gates for a pull request and print the report",
		Long: `Render fetches the policy at the PR head, runs every gate exactly
as the server would, and prints the markdown report to stdout. No check is
published and no comment is posted.

With --from-json, render skips the forge entirely and formats a previously
captured run result, which is handy when debugging report layout.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if fromJSON != "" {
				return renderFromJSON(cmd, fromJSON, prNumber)
			}
			if repo == "" || prNumber == 0 {
				return fmt.Errorf("--repo and --pr are required")
			}
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			return runRender(cmd, cfg, repo, prNumber)
		},
	}

	cmd.Flags().StringVar(&repo, "repo", "", "repository full name (owner/name)")
	cmd.Flags().IntVar(&prNumber, "pr", 0, "pull request number")
	cmd.Flags().StringVar(&fromJSON, "from-json", "", "render a captured run result file instead of running gates")
	return cmd
}

func renderFromJSON(cmd *cobra.Command, path string, prNumber int) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	var result run.Result
	if err := json.Unmarshal(data, &result); err != nil {
		return fmt.Errorf("parse run result %s: %w", path, err)
	}

	summary, text := report.Render(report.Input{Result: &result, PRNumber: prNumber})
	out := cmd.OutOrStdout()
	fmt.Fprintln(out, summary)
	fmt.Fprintln(out)
	fmt.Fprintln(out, text)
	return nil
}

func runRender(cmd *cobra.Command, cfg *config.Config, repo string, prNumber int) error {
	log := newLogger()
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithTimeout(ctx, cfg.Checks.Deadline)
	defer cancel()

	forge, err := hosting.NewProvider(repo, cfg.Hosting)
	if err != nil {
		return err
	}

	pr, err := forge.GetPR(ctx, prNumber)
	if err != nil {
		return fmt.Errorf("fetch PR %d: %w", prNumber, err)
	}

	loader := policy.NewLoader(forge, log)
	doc, err := loader.Load(ctx, pr.HeadSHA)
	if err != nil {
		return err
	}

	gc := &gate.Context{
		PR:        pr,
		Policy:    doc,
		Forge:     forge,
		Log:       log,
		Workflows: newWorkflowRegistry(cfg, log),
		LoadRule: func(ctx context.Context, name string) (*rule.Document, error) {
			return loader.LoadRule(ctx, pr.HeadSHA, name)
		},
		RequiredContexts: cfg.Checks.RequiredContexts,
		WorkflowPaths:    cfg.Checks.WorkflowPaths,
		CheckName:        cfg.Checks.CheckName,
	}

	result, err := orchestrator.New(log, orchestrator.WithForceFailOnError(cfg.Checks.ForceFailOnError)).Run(ctx, gc)
	if err != nil {
		return err
	}

	summary, text := report.Render(report.Input{Result: result, Policy: doc, PRNumber: prNumber})
	out := cmd.OutOrStdout()
	fmt.Fprintln(out, summary)
	fmt.Fprintln(out)
	fmt.Fprintln(out, text)
	return nil
}
