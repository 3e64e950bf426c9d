// Package artifact locates, downloads, and parses CI artifacts attached to
// a PR head's workflow runs. Parsers normalize tool-specific shapes
// (ESLint JSON, Ruff JSON, SARIF 2.1.0) into violation records.
package artifact

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"regexp"
	"sort"

	"github.com/gatewright/gatewright/internal/hosting"
	"github.com/gatewright/gatewright/internal/run"
)

// Defaults for artifact handling.
const (
	DefaultSizeLimitMB = 25
	DefaultMaxFindings = 1000
)

// FailOn policies for computing a gate status from violations.
const (
	FailOnErrors           = "errors"
	FailOnWarningsOrErrors = "warnings_or_errors"
	FailOnAny              = "any"
	FailOnNone             = "none"
)

// Error is an artifact-subsystem failure carrying the neutral reason the
// gate should report.
type Error struct {
	Reason  run.NeutralReason
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

func newError(reason run.NeutralReason, format string, args ...any) *Error {
	return &Error{Reason: reason, Message: fmt.Sprintf(format, args...)}
}

// LocateRun finds the CI run whose artifacts should be ingested for the
// given head commit. When preferredID is nonzero (phase two passes the
// completed run's id) that run is used if present. Otherwise: completed
// runs triggered by a pull request, newest first, preferring a successful
// conclusion.
func LocateRun(ctx context.Context, forge hosting.Provider, headSHA string, preferredID int64) (*hosting.WorkflowRun, error) {
	runs, err := forge.ListWorkflowRuns(ctx, headSHA)
	if err != nil {
		return nil, newError(run.ReasonInternalError, "list workflow runs for %s: %v", headSHA, err)
	}

	if preferredID != 0 {
		for i := range runs {
			if runs[i].ID == preferredID {
				return &runs[i], nil
			}
		}
	}

	var candidates []hosting.WorkflowRun
	for _, r := range runs {
		if r.Status != "completed" {
			continue
		}
		if r.Event != "pull_request" {
			continue
		}
		candidates = append(candidates, r)
	}
	if len(candidates) == 0 {
		return nil, newError(run.ReasonMissingArtifact,
			"no completed pull-request CI run found for head %s", headSHA)
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].UpdatedAt.After(candidates[j].UpdatedAt)
	})

	for i := range candidates {
		if candidates[i].Conclusion == "success" {
			return &candidates[i], nil
		}
	}
	return &candidates[0], nil
}

// FetchNamed downloads the artifact with the given exact name from a run,
// enforcing the size limit both before and after the download.
func FetchNamed(ctx context.Context, forge hosting.Provider, runID int64, name string, limitBytes int64) ([]byte, error) {
	artifacts, err := forge.ListRunArtifacts(ctx, runID)
	if err != nil {
		return nil, newError(run.ReasonInternalError, "list artifacts for run %d: %v", runID, err)
	}

	var found *hosting.Artifact
	for i := range artifacts {
		if artifacts[i].Name == name {
			found = &artifacts[i]
			break
		}
	}
	if found == nil {
		names := make([]string, 0, len(artifacts))
		for _, a := range artifacts {
			names = append(names, a.Name)
		}
		return nil, newError(run.ReasonMissingArtifact,
			"artifact %q not found on run %d (have: %v)", name, runID, names)
	}
	if found.Expired {
		return nil, newError(run.ReasonMissingArtifact, "artifact %q on run %d has expired", name, runID)
	}
	if found.SizeBytes > limitBytes {
		return nil, newError(run.ReasonArtifactTooLarge,
			"artifact %q declares %d bytes, limit is %d", name, found.SizeBytes, limitBytes)
	}

	data, err := forge.DownloadArtifact(ctx, found.ID, limitBytes)
	if err != nil {
		if err == context.Canceled || ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if errors.Is(err, hosting.ErrTooLarge) {
			return nil, newError(run.ReasonArtifactTooLarge, "download artifact %q: %v", name, err)
		}
		// Transient forge failures are not a size problem; the artifact is
		// simply unavailable right now.
		return nil, newError(run.ReasonMissingArtifact, "download artifact %q: %v", name, err)
	}
	if int64(len(data)) > limitBytes {
		return nil, newError(run.ReasonArtifactTooLarge,
			"artifact %q is %d bytes after download, limit is %d", name, len(data), limitBytes)
	}
	return data, nil
}

var reportEntry = regexp.MustCompile(`(?i)\.(json|sarif)$`)

// SelectEntry picks the report file inside an artifact ZIP. An explicit
// path must match exactly; otherwise the first .json/.sarif entry wins.
func SelectEntry(zipData []byte, explicitPath string) (string, []byte, error) {
	zr, err := zip.NewReader(bytes.NewReader(zipData), int64(len(zipData)))
	if err != nil {
		return "", nil, newError(run.ReasonParseError, "open artifact zip: %v", err)
	}

	var entry *zip.File
	if explicitPath != "" {
		for _, f := range zr.File {
			if f.Name == explicitPath {
				entry = f
				break
			}
		}
		if entry == nil {
			return "", nil, newError(run.ReasonMissingArtifact,
				"entry %q not found in artifact", explicitPath)
		}
	} else {
		for _, f := range zr.File {
			if reportEntry.MatchString(f.Name) {
				entry = f
				break
			}
		}
		if entry == nil {
			return "", nil, newError(run.ReasonMissingArtifact,
				"artifact contains no .json or .sarif entry")
		}
	}

	rc, err := entry.Open()
	if err != nil {
		return "", nil, newError(run.ReasonParseError, "open entry %q: %v", entry.Name, err)
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return "", nil, newError(run.ReasonParseError, "read entry %q: %v", entry.Name, err)
	}
	return entry.Name, data, nil
}

// NormalizeViolations normalizes every violation's path. Violations whose
// paths cannot be made repo-relative keep empty paths (excluded from inline
// annotations) and are summarized in one terminal info record.
func NormalizeViolations(violations []run.Violation) []run.Violation {
	var unnormalizable []string
	out := make([]run.Violation, 0, len(violations))

	for _, v := range violations {
		if v.Path == "" {
			out = append(out, v)
			continue
		}
		normalized, ok := NormalizePath(v.Path)
		if !ok {
			unnormalizable = append(unnormalizable, v.Path)
			v.Path = ""
		} else {
			v.Path = normalized
		}
		out = append(out, v)
	}

	if len(unnormalizable) > 0 {
		out = append(out, run.Violation{
			Code:    "unnormalized_paths",
			Level:   run.LevelInfo,
			Message: fmt.Sprintf("%d finding path(s) could not be made repo-relative: %v", len(unnormalizable), unnormalizable),
		})
	}
	return out
}

// Cap truncates the violation list at maxFindings, appending a synthetic
// truncation record when the cutoff applies.
func Cap(violations []run.Violation, maxFindings int) []run.Violation {
	if maxFindings <= 0 {
		maxFindings = DefaultMaxFindings
	}
	if len(violations) <= maxFindings {
		return violations
	}
	dropped := len(violations) - maxFindings
	capped := append([]run.Violation(nil), violations[:maxFindings]...)
	return append(capped, run.Violation{
		Code:    "findings_truncated",
		Level:   run.LevelInfo,
		Message: fmt.Sprintf("%d finding(s) omitted beyond the cap of %d", dropped, maxFindings),
	})
}

// StatusFromViolations computes the gate status from the final violation
// list under the configured fail_on policy.
func StatusFromViolations(violations []run.Violation, failOn string) run.Status {
	if failOn == "" {
		failOn = FailOnErrors
	}

	var errs, warnings, total int
	for _, v := range violations {
		switch v.Code {
		case "findings_truncated", "unnormalized_paths":
			continue
		}
		total++
		switch v.Level {
		case run.LevelError:
			errs++
		case run.LevelWarning:
			warnings++
		}
	}

	switch failOn {
	case FailOnNone:
		return run.StatusPass
	case FailOnAny:
		if total > 0 {
			return run.StatusFail
		}
	case FailOnWarningsOrErrors:
		if errs+warnings > 0 {
			return run.StatusFail
		}
	default: // errors
		if errs > 0 {
			return run.StatusFail
		}
	}
	return run.StatusPass
}
