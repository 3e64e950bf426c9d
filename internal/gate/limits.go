package gate

import (
	"context"
	"fmt"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/gatewright/gatewright/internal/hosting"
	"github.com/gatewright/gatewright/internal/policy"
	"github.com/gatewright/gatewright/internal/run"
)

func init() {
	Register(TypeReviewLimits, reviewLimits)
}

// reviewLimits enforces max_changed_files and max_total_diff_kb. The diff
// size is the constant-factor heuristic ceil((additions+deletions)/3),
// not a byte measurement. Equality passes; only strictly-over fails.
func reviewLimits(ctx context.Context, gc *Context, spec policy.GateSpec) run.GateResult {
	result := run.GateResult{Status: run.StatusPass, Stats: map[string]any{}}

	changedFiles := gc.PR.ChangedFiles
	additions := gc.PR.Additions
	deletions := gc.PR.Deletions

	excludes, _ := spec.StringsOption("exclude_paths")
	needFiles := changedFiles == 0 || len(excludes) > 0

	if needFiles {
		files, err := gc.Forge.ListPRFiles(ctx, gc.PR.Number)
		if err != nil {
			return run.GateResult{
				Status:        run.StatusNeutral,
				NeutralReason: run.ReasonInternalError,
				Stats:         map[string]any{"error": fmt.Sprintf("list PR files: %v", err)},
			}
		}
		changedFiles, additions, deletions = tally(files, excludes)
		if len(excludes) > 0 {
			result.Stats["excluded_patterns"] = len(excludes)
		}
	}

	totalKB := (additions + deletions + 2) / 3

	result.Stats["changed_files"] = changedFiles
	result.Stats["total_diff_kb"] = totalKB

	if max, ok := spec.IntOption("max_changed_files"); ok && changedFiles > max {
		result.Violations = append(result.Violations, run.Violation{
			Code:    "max_changed_files",
			Level:   run.LevelError,
			Message: fmt.Sprintf("max_changed_files: %d > %d", changedFiles, max),
		})
	}
	if max, ok := spec.IntOption("max_total_diff_kb"); ok && totalKB > max {
		result.Violations = append(result.Violations, run.Violation{
			Code:    "max_total_diff_kb",
			Level:   run.LevelError,
			Message: fmt.Sprintf("max_total_diff_kb: %d > %d", totalKB, max),
		})
	}

	if len(result.Violations) > 0 {
		result.Status = run.StatusFail
	}
	return result
}

// tally counts files and churn, skipping files matched by any exclude
// glob. Patterns use doublestar syntax so "vendor/**" works as expected.
func tally(files []hosting.PRFile, excludes []string) (count, additions, deletions int) {
	for _, f := range files {
		if excluded(f.Path, excludes) {
			continue
		}
		count++
		additions += f.Additions
		deletions += f.Deletions
	}
	return count, additions, deletions
}

func excluded(path string, patterns []string) bool {
	for _, p := range patterns {
		if ok, err := doublestar.Match(p, path); err == nil && ok {
			return true
		}
	}
	return false
}
