package checks

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/gatewright/gatewright/internal/errors"
	"github.com/gatewright/gatewright/internal/events"
	"github.com/gatewright/gatewright/internal/gate"
	"github.com/gatewright/gatewright/internal/hosting"
	"github.com/gatewright/gatewright/internal/orchestrator"
	"github.com/gatewright/gatewright/internal/policy"
	"github.com/gatewright/gatewright/internal/report"
	"github.com/gatewright/gatewright/internal/rule"
	"github.com/gatewright/gatewright/internal/run"
	"github.com/gatewright/gatewright/internal/workflow"
)

// DefaultCheckName is the check this engine publishes unless configured
// otherwise.
const DefaultCheckName = "Gatewright Review"

// maxAnnotations caps inline annotations per check update.
const maxAnnotations = 50

// Config carries the deployment-level settings the lifecycle needs.
type Config struct {
	CheckName        string
	Deadline         time.Duration
	RequiredContexts []string
	WorkflowPaths    map[string]string
}

// Lifecycle coordinates the two phases of check publication.
type Lifecycle struct {
	log         *slog.Logger
	orch        *orchestrator.Orchestrator
	outstanding *Store
	workflows   *workflow.Registry
	publisher   events.Publisher
	cfg         Config
}

// New builds a Lifecycle.
func New(log *slog.Logger, orch *orchestrator.Orchestrator, outstanding *Store, workflows *workflow.Registry, publisher events.Publisher, cfg Config) *Lifecycle {
	if cfg.CheckName == "" {
		cfg.CheckName = DefaultCheckName
	}
	if cfg.Deadline <= 0 {
		cfg.Deadline = 5 * time.Minute
	}
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	return &Lifecycle{
		log:         log,
		orch:        orch,
		outstanding: outstanding,
		workflows:   workflows,
		publisher:   publisher,
		cfg:         cfg,
	}
}

// HandlePREvent is phase one: on opened/synchronized/reopened, load the
// policy at the head, run the gates with artifact ingestion deferred, and
// publish an in-progress check whose id is stashed for phase two.
func (l *Lifecycle) HandlePREvent(ctx context.Context, forge hosting.Provider, prNumber int) error {
	ctx, cancel := context.WithTimeout(ctx, l.cfg.Deadline)
	defer cancel()

	pr, err := forge.GetPR(ctx, prNumber)
	if err != nil {
		return fmt.Errorf("get PR %d: %w", prNumber, err)
	}

	loader := policy.NewLoader(forge, l.log)
	doc, err := loader.Load(ctx, pr.HeadSHA)
	if err != nil {
		return l.publishPolicyError(ctx, forge, pr, err)
	}

	result, runErr := l.orch.Run(ctx, l.gateContext(forge, pr, doc, loader, true, 0))
	if runErr != nil {
		return l.publishConfigError(ctx, forge, pr, runErr)
	}

	summary, text := report.Render(report.Input{Result: result, Policy: doc, PRNumber: pr.Number})
	checkID, err := forge.CreateCheck(ctx, hosting.CheckCreate{
		Name:      l.cfg.CheckName,
		HeadSHA:   pr.HeadSHA,
		Status:    hosting.CheckStatusInProgress,
		StartedAt: time.Now(),
		Output: hosting.CheckOutput{
			Title:   l.cfg.CheckName,
			Summary: summary,
			Text:    text,
		},
	})
	if err != nil {
		return fmt.Errorf("create check: %w", err)
	}

	l.outstanding.Put(l.key(forge, pr, doc), checkID)
	l.publishEvent(forge, pr, events.EventCheckPublished, map[string]any{"check_id": checkID, "phase": 1})
	return nil
}

// HandleCICompleted is phase two: reconcile the head's check once CI has
// finished, running artifact gates against the completed run. Stale heads
// are dropped without side effects.
func (l *Lifecycle) HandleCICompleted(ctx context.Context, forge hosting.Provider, headSHA string, ciRunID int64) error {
	ctx, cancel := context.WithTimeout(ctx, l.cfg.Deadline)
	defer cancel()

	pr, err := l.openPRForHead(ctx, forge, headSHA)
	if err != nil {
		if errors.HasCode(err, errors.CodeStaleEvent) {
			l.log.Info("dropping stale CI event", "repo", forge.FullName(), "head_sha", headSHA)
			return nil
		}
		return err
	}

	return l.reconcile(ctx, forge, pr, ciRunID)
}

// RerunTarget is what a rerun request tells us about its origin. Any
// field may be empty depending on the forge payload.
type RerunTarget struct {
	PRNumber int
	HeadSHA  string
	Branch   string
}

// HandleRerun resolves the PR behind a rerequested check and reconciles
// it. Resolution is a ladder: attached PR number, exact head match among
// PRs for the commit, branch name, then a branch-listing lookup. Anything
// short of an unambiguous match publishes a neutral check and touches no
// PR.
func (l *Lifecycle) HandleRerun(ctx context.Context, forge hosting.Provider, target RerunTarget) error {
	ctx, cancel := context.WithTimeout(ctx, l.cfg.Deadline)
	defer cancel()

	pr, err := l.resolveRerunPR(ctx, forge, target)
	if err != nil {
		if errors.HasCode(err, errors.CodeAmbiguousRerunPR) && target.HeadSHA != "" {
			return l.publishAmbiguity(ctx, forge, target.HeadSHA, err)
		}
		return err
	}

	return l.reconcile(ctx, forge, pr, 0)
}

// reconcile runs the full gate set for a PR head and writes the completed
// check, patching the phase-1 check when its id is still outstanding.
func (l *Lifecycle) reconcile(ctx context.Context, forge hosting.Provider, pr *hosting.PR, ciRunID int64) error {
	loader := policy.NewLoader(forge, l.log)
	doc, err := loader.Load(ctx, pr.HeadSHA)
	if err != nil {
		return l.publishPolicyError(ctx, forge, pr, err)
	}

	result, runErr := l.orch.Run(ctx, l.gateContext(forge, pr, doc, loader, false, ciRunID))
	if runErr != nil {
		return l.publishConfigError(ctx, forge, pr, runErr)
	}

	summary, text := report.Render(report.Input{Result: result, Policy: doc, PRNumber: pr.Number})
	annotations, truncated := annotationsFor(result)
	if truncated > 0 {
		text += fmt.Sprintf("\n_%d violation(s) beyond the annotation limit of %d._\n", truncated, maxAnnotations)
	}

	output := hosting.CheckOutput{
		Title:       l.cfg.CheckName,
		Summary:     summary,
		Text:        text,
		Annotations: annotations,
	}
	conclusion := conclusionFor(result.OverallStatus)
	key := l.key(forge, pr, doc)

	if checkID, ok := l.outstanding.Get(key); ok {
		err = forge.UpdateCheck(ctx, checkID, hosting.CheckUpdate{
			Name:        l.cfg.CheckName,
			HeadSHA:     pr.HeadSHA,
			Status:      hosting.CheckStatusCompleted,
			Conclusion:  conclusion,
			CompletedAt: time.Now(),
			Output:      output,
		})
		if err != nil {
			return fmt.Errorf("update check %d: %w", checkID, err)
		}
		l.outstanding.Delete(key)
		l.publishEvent(forge, pr, events.EventCheckPublished, map[string]any{"check_id": checkID, "phase": 2})
		return nil
	}

	// Out-of-order delivery: phase 2 arrived without a phase-1 check, so
	// create a fresh completed check instead of patching nothing.
	checkID, err := forge.CreateCheck(ctx, hosting.CheckCreate{
		Name:        l.cfg.CheckName,
		HeadSHA:     pr.HeadSHA,
		Status:      hosting.CheckStatusCompleted,
		Conclusion:  conclusion,
		StartedAt:   time.Now(),
		CompletedAt: time.Now(),
		Output:      output,
	})
	if err != nil {
		return fmt.Errorf("create check: %w", err)
	}
	l.publishEvent(forge, pr, events.EventCheckPublished, map[string]any{"check_id": checkID, "phase": 2})
	return nil
}

func (l *Lifecycle) gateContext(forge hosting.Provider, pr *hosting.PR, doc *policy.Document, loader *policy.Loader, deferExternal bool, ciRunID int64) *gate.Context {
	return &gate.Context{
		PR:        pr,
		Policy:    doc,
		Forge:     forge,
		Log:       l.log.With("repo", forge.FullName(), "pr", pr.Number),
		Workflows: l.workflows,
		LoadRule: func(ctx context.Context, name string) (*rule.Document, error) {
			return loader.LoadRule(ctx, pr.HeadSHA, name)
		},
		RequiredContexts: l.cfg.RequiredContexts,
		WorkflowPaths:    l.cfg.WorkflowPaths,
		CheckName:        l.cfg.CheckName,
		DeferExternal:    deferExternal,
		CIRunID:          ciRunID,
	}
}

func (l *Lifecycle) key(forge hosting.Provider, pr *hosting.PR, doc *policy.Document) Key {
	return Key{Repo: forge.FullName(), PR: pr.Number, HeadSHA: pr.HeadSHA, PolicyHash: doc.Hash}
}

// openPRForHead finds the open PR whose current head is exactly the
// event's head. A CI event for a replaced commit is stale and must not
// touch anything.
func (l *Lifecycle) openPRForHead(ctx context.Context, forge hosting.Provider, headSHA string) (*hosting.PR, error) {
	prs, err := forge.ListOpenPRs(ctx)
	if err != nil {
		return nil, fmt.Errorf("list open PRs: %w", err)
	}
	for _, pr := range prs {
		if pr.HeadSHA == headSHA {
			return pr, nil
		}
	}
	return nil, errors.New(errors.CodeStaleEvent, "no open PR matches this head").
		WithWhy("head " + headSHA + " is not the current head of any open PR")
}

// resolveRerunPR walks the resolution ladder for a rerun request.
func (l *Lifecycle) resolveRerunPR(ctx context.Context, forge hosting.Provider, target RerunTarget) (*hosting.PR, error) {
	if target.PRNumber > 0 {
		pr, err := forge.GetPR(ctx, target.PRNumber)
		if err == nil {
			return pr, nil
		}
		l.log.Warn("rerun payload PR not fetchable", "pr", target.PRNumber, "error", err)
	}

	var candidates []*hosting.PR
	if target.HeadSHA != "" {
		prs, err := forge.ListPRsForCommit(ctx, target.HeadSHA)
		if err != nil {
			return nil, fmt.Errorf("list PRs for commit: %w", err)
		}
		for _, pr := range prs {
			if pr.HeadSHA == target.HeadSHA {
				candidates = append(candidates, pr)
			}
		}
		if len(candidates) == 1 {
			return candidates[0], nil
		}
	}

	branch := target.Branch
	if branch == "" && target.HeadSHA != "" {
		// Last rung: find the branch whose tip is this head.
		branches, err := forge.ListBranches(ctx)
		if err == nil {
			for _, br := range branches {
				if br.SHA == target.HeadSHA {
					branch = br.Name
					break
				}
			}
		}
	}
	if branch != "" {
		prs, err := forge.ListOpenPRs(ctx)
		if err != nil {
			return nil, fmt.Errorf("list open PRs: %w", err)
		}
		var matches []*hosting.PR
		for _, pr := range prs {
			if pr.HeadBranch == branch {
				matches = append(matches, pr)
			}
		}
		if len(matches) == 1 {
			return matches[0], nil
		}
	}

	return nil, errors.New(errors.CodeAmbiguousRerunPR, "cannot resolve the PR behind this rerun").
		WithWhy(fmt.Sprintf("%d candidate(s) matched head %s", len(candidates), target.HeadSHA)).
		WithFix("rerun the check from the PR page so the request carries the PR")
}

// publishAmbiguity writes a neutral check for an unresolvable rerun. No
// comment, no review: never touch a PR whose identity is uncertain.
func (l *Lifecycle) publishAmbiguity(ctx context.Context, forge hosting.Provider, headSHA string, cause error) error {
	_, err := forge.CreateCheck(ctx, hosting.CheckCreate{
		Name:        l.cfg.CheckName,
		HeadSHA:     headSHA,
		Status:      hosting.CheckStatusCompleted,
		Conclusion:  hosting.CheckConclusionNeutral,
		StartedAt:   time.Now(),
		CompletedAt: time.Now(),
		Output: hosting.CheckOutput{
			Title:   l.cfg.CheckName,
			Summary: "Could not determine which PR this rerun belongs to",
			Text:    errors.UserMessage(cause),
		},
	})
	return err
}

// publishPolicyError short-circuits a failed policy load into a completed
// check. Missing or invalid policies are failures the author must fix;
// transient fetch errors stay neutral so the merge gate remains pending.
func (l *Lifecycle) publishPolicyError(ctx context.Context, forge hosting.Provider, pr *hosting.PR, cause error) error {
	conclusion := hosting.CheckConclusionFailure
	summary := "Policy error"
	switch {
	case errors.HasCode(cause, errors.CodePolicyMissing):
		summary = "No policy file found (" + policy.SpecPath + ")"
	case errors.HasCode(cause, errors.CodePolicyInvalid):
		summary = "Policy file is invalid"
	case errors.HasCode(cause, errors.CodePolicyTransient):
		conclusion = hosting.CheckConclusionNeutral
		summary = "Could not fetch the policy file; will retry on the next event"
	}

	l.publishEvent(forge, pr, events.EventPolicyError, map[string]any{"error": cause.Error()})

	_, err := forge.CreateCheck(ctx, hosting.CheckCreate{
		Name:        l.cfg.CheckName,
		HeadSHA:     pr.HeadSHA,
		Status:      hosting.CheckStatusCompleted,
		Conclusion:  conclusion,
		StartedAt:   time.Now(),
		CompletedAt: time.Now(),
		Output: hosting.CheckOutput{
			Title:   l.cfg.CheckName,
			Summary: summary,
			Text:    errors.UserMessage(cause),
		},
	})
	if err != nil {
		return fmt.Errorf("create policy-error check: %w", err)
	}
	return nil
}

// publishConfigError surfaces a launcher configuration abort (duplicate
// gate ids) as a completed failure check with zero gate sections.
func (l *Lifecycle) publishConfigError(ctx context.Context, forge hosting.Provider, pr *hosting.PR, cause error) error {
	_, err := forge.CreateCheck(ctx, hosting.CheckCreate{
		Name:        l.cfg.CheckName,
		HeadSHA:     pr.HeadSHA,
		Status:      hosting.CheckStatusCompleted,
		Conclusion:  hosting.CheckConclusionFailure,
		StartedAt:   time.Now(),
		CompletedAt: time.Now(),
		Output: hosting.CheckOutput{
			Title:   l.cfg.CheckName,
			Summary: "Policy configuration error",
			Text:    errors.UserMessage(cause),
		},
	})
	if err != nil {
		return fmt.Errorf("create config-error check: %w", err)
	}
	return nil
}

func (l *Lifecycle) publishEvent(forge hosting.Provider, pr *hosting.PR, t events.EventType, data map[string]any) {
	l.publisher.Publish(events.Event{
		Type: t,
		Repo: forge.FullName(),
		PR:   pr.Number,
		SHA:  pr.HeadSHA,
		Data: data,
		Time: time.Now(),
	})
}

func conclusionFor(status run.Status) string {
	switch status {
	case run.StatusPass:
		return hosting.CheckConclusionSuccess
	case run.StatusFail:
		return hosting.CheckConclusionFailure
	default:
		return hosting.CheckConclusionNeutral
	}
}

// annotationsFor maps violations with a normalized path and line onto
// inline annotations, error level to failure and everything else to
// warning, capped at maxAnnotations.
func annotationsFor(result *run.Result) ([]hosting.CheckAnnotation, int) {
	var annotations []hosting.CheckAnnotation
	var eligible int
	for _, g := range result.Gates {
		for _, v := range g.Violations {
			if v.Path == "" || v.Line <= 0 {
				continue
			}
			eligible++
			if len(annotations) >= maxAnnotations {
				continue
			}
			level := "warning"
			if v.Level == run.LevelError {
				level = "failure"
			}
			annotations = append(annotations, hosting.CheckAnnotation{
				Path:        v.Path,
				StartLine:   v.Line,
				EndLine:     v.Line,
				StartColumn: v.Column,
				EndColumn:   v.Column,
				Level:       level,
				Message:     fmt.Sprintf("%s: %s", v.Code, v.Message),
			})
		}
	}
	return annotations, eligible - len(annotations)
}
