// Package diff renders compact evidence about a PR's changed files for
// AI workflows: an enumerated summary and optional per-file patches,
// both bounded by rule budgets.
package diff

import (
	"fmt"
	"sort"
	"strings"

	"github.com/gatewright/gatewright/internal/hosting"
)

// Patch is one file's unified diff, possibly truncated.
type Patch struct {
	Path      string
	Body      string
	Truncated bool
}

// sortFiles orders by churn descending, then path ascending, so the
// output is stable for identical inputs.
func sortFiles(files []hosting.PRFile) []hosting.PRFile {
	sorted := append([]hosting.PRFile(nil), files...)
	sort.SliceStable(sorted, func(i, j int) bool {
		ci := sorted[i].Additions + sorted[i].Deletions
		cj := sorted[j].Additions + sorted[j].Deletions
		if ci != cj {
			return ci > cj
		}
		return sorted[i].Path < sorted[j].Path
	})
	return sorted
}

// Summary builds the enumerated file summary fed to AI workflows. Files
// are listed by churn descending then path ascending and truncated to
// maxFiles; totals in the header always cover the full set.
func Summary(files []hosting.PRFile, maxFiles int) string {
	var adds, dels int
	for _, f := range files {
		adds += f.Additions
		dels += f.Deletions
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%d files changed, +%d/-%d total\n", len(files), adds, dels)

	sorted := sortFiles(files)
	shown := sorted
	if maxFiles > 0 && len(shown) > maxFiles {
		shown = shown[:maxFiles]
	}
	for _, f := range shown {
		fmt.Fprintf(&b, "• %s (%s) +%d/-%d\n", f.Path, f.Status, f.Additions, f.Deletions)
	}
	if omitted := len(sorted) - len(shown); omitted > 0 {
		fmt.Fprintf(&b, "… and %d more file(s)\n", omitted)
	}
	return b.String()
}

// Patches returns up to maxPatches per-file patches, ordered the same
// way as Summary, each truncated to maxBytes with a marker appended.
func Patches(files []hosting.PRFile, maxPatches, maxBytes int) []Patch {
	sorted := sortFiles(files)

	var out []Patch
	for _, f := range sorted {
		if maxPatches > 0 && len(out) >= maxPatches {
			break
		}
		if f.Patch == "" {
			continue
		}
		p := Patch{Path: f.Path, Body: f.Patch}
		if maxBytes > 0 && len(p.Body) > maxBytes {
			p.Body = p.Body[:maxBytes] + "\n[patch truncated]"
			p.Truncated = true
		}
		out = append(out, p)
	}
	return out
}
