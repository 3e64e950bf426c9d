// Package report renders check output from a run result. The renderer is
// a pure function of its inputs: identical results produce byte-identical
// summaries and bodies, which keeps check re-updates idempotent.
package report

import (
	"fmt"
	"net/url"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/gatewright/gatewright/internal/policy"
	"github.com/gatewright/gatewright/internal/rule"
	"github.com/gatewright/gatewright/internal/run"
)

// Rendering caps. Everything beyond a cap is summarized in a footer line.
const (
	maxObservationsPerMetric = 10
	maxViolationLines        = 20
	maxObservationLines      = 20
	maxObservationChars      = 1000
)

// Input bundles what the renderer needs besides the result itself.
type Input struct {
	Result   *run.Result
	Policy   *policy.Document
	PRNumber int
}

// Render produces the single-line summary and the markdown body.
func Render(in Input) (summary, text string) {
	res := in.Result

	summary = summaryLine(res)

	var b strings.Builder

	if res.OverallStatus == run.StatusFail {
		if link := voteLink(in.Policy, in.PRNumber); link != "" {
			fmt.Fprintf(&b, "[Propose a vote to merge](%s)\n\n", link)
		}
	}

	fmt.Fprintf(&b, "## %s Gatewright Review\n\n", statusEmoji(res.OverallStatus))
	fmt.Fprintf(&b, "✅ %d passed | ❌ %d failed | ⚠️ %d neutral\n", res.Summary.Passed, res.Summary.Failed, res.Summary.Neutral)
	if res.DurationMS > 0 {
		fmt.Fprintf(&b, "\n_Completed in %dms._\n", res.DurationMS)
	}
	if res.Summary.Partial {
		fmt.Fprintf(&b, "\n_%d of %d configured gates executed._\n", res.Summary.Executed, res.Summary.Configured)
	}
	if res.Summary.Elevated {
		b.WriteString("\n_Neutral verdict elevated to failure by fail_on_error._\n")
	}

	for _, g := range grouped(res.Gates) {
		renderGate(&b, g)
	}

	return summary, b.String()
}

func summaryLine(res *run.Result) string {
	switch res.OverallStatus {
	case run.StatusPass:
		return "All gates passed"
	case run.StatusFail:
		if res.Summary.Failed == 0 {
			return "Review failed"
		}
		return fmt.Sprintf("%d gate(s) failed", res.Summary.Failed)
	default:
		if res.ConclusionReason == run.ConclusionNoGatesExecuted {
			return "No gates executed"
		}
		return fmt.Sprintf("%d gate(s) were neutral", res.Summary.Neutral)
	}
}

// grouped orders gates failed, neutral, passed, alphabetically by id
// within each group, so failures lead the body.
func grouped(gates []run.GateResult) []run.GateResult {
	rank := map[run.Status]int{run.StatusFail: 0, run.StatusNeutral: 1, run.StatusPass: 2}
	out := append([]run.GateResult(nil), gates...)
	sort.SliceStable(out, func(i, j int) bool {
		if rank[out[i].Status] != rank[out[j].Status] {
			return rank[out[i].Status] < rank[out[j].Status]
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func renderGate(b *strings.Builder, g run.GateResult) {
	fmt.Fprintf(b, "\n### %s %s\n\n", statusEmoji(g.Status), g.ID)

	renderCriteria(b, g)
	renderViolations(b, g)

	if g.ProviderResult == nil {
		renderObservations(b, g.Observations)
	}
	renderStats(b, g.Stats)

	fmt.Fprintf(b, "\n_Duration: %dms._", g.DurationMS)
	if g.Provenance != nil && g.Provenance.Provider != "" {
		fmt.Fprintf(b, " _Model: %s / %s._", g.Provenance.Provider, g.Provenance.Model)
	}
	if g.Status == run.StatusNeutral && g.NeutralReason != "" {
		fmt.Fprintf(b, " _Neutral reason: %s._", g.NeutralReason)
	}
	b.WriteString("\n")
}

// renderCriteria emits one line per success-criteria comparison plus the
// referenced metric's observations, capped per metric.
func renderCriteria(b *strings.Builder, g run.GateResult) {
	if len(g.Criteria) == 0 {
		return
	}
	for _, c := range g.Criteria {
		if c.Missing {
			fmt.Fprintf(b, "- **%s:** metric missing %s %v\n", c.Metric, rule.OpSymbol(c.Op), c.Threshold)
		} else {
			fmt.Fprintf(b, "- **%s:** %v %s %v\n", c.Metric, c.Value, rule.OpSymbol(c.Op), c.Threshold)
		}
		if c.Statement != "" {
			fmt.Fprintf(b, "  - _%s_\n", c.Statement)
		}
		if g.ProviderResult == nil {
			continue
		}
		if m, ok := g.ProviderResult.Metrics[c.Metric]; ok {
			obs := m.Observations
			if len(obs) > maxObservationsPerMetric {
				obs = obs[:maxObservationsPerMetric]
			}
			for _, o := range obs {
				fmt.Fprintf(b, "  - %s\n", clip(o, maxObservationChars))
			}
		}
	}
}

func renderViolations(b *strings.Builder, g run.GateResult) {
	if len(g.Violations) == 0 {
		return
	}
	shown := g.Violations
	if len(shown) > maxViolationLines {
		shown = shown[:maxViolationLines]
	}
	for _, v := range shown {
		fmt.Fprintf(b, "- %s — %s\n", v.Code, v.Message)
		if v.Path != "" {
			if v.Line > 0 {
				fmt.Fprintf(b, "  - `%s:%d`\n", v.Path, v.Line)
			} else {
				fmt.Fprintf(b, "  - `%s`\n", v.Path)
			}
		}
		for _, k := range sortedKeys(v.Meta) {
			fmt.Fprintf(b, "  - %s: %v\n", k, v.Meta[k])
		}
	}
	if omitted := len(g.Violations) - len(shown); omitted > 0 {
		fmt.Fprintf(b, "\n_%d more violation(s) not shown._\n", omitted)
	}
}

func renderObservations(b *strings.Builder, observations []string) {
	if len(observations) == 0 {
		return
	}
	shown := observations
	if len(shown) > maxObservationLines {
		shown = shown[:maxObservationLines]
	}
	for _, o := range shown {
		fmt.Fprintf(b, "- %s\n", clip(o, maxObservationChars))
	}
	if omitted := len(observations) - len(shown); omitted > 0 {
		fmt.Fprintf(b, "\n_%d more observation(s) not shown._\n", omitted)
	}
}

// internalStatsKeys are telemetry the body does not repeat; errors are
// already surfaced through the neutral reason.
var internalStatsKeys = map[string]bool{"error": true}

func renderStats(b *strings.Builder, stats map[string]any) {
	keys := make([]string, 0, len(stats))
	for k := range stats {
		if internalStatsKeys[k] {
			continue
		}
		if !scalar(stats[k]) {
			continue
		}
		keys = append(keys, k)
	}
	if len(keys) == 0 {
		return
	}
	sort.Strings(keys)

	b.WriteString("\n")
	for _, k := range keys {
		fmt.Fprintf(b, "`%s: %v` ", k, stats[k])
	}
	b.WriteString("\n")
}

func scalar(v any) bool {
	switch v.(type) {
	case string, bool, int, int32, int64, float32, float64:
		return true
	default:
		return false
	}
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// clip truncates s to at most max bytes without splitting a
// multi-byte rune, appending an ellipsis when anything was cut.
func clip(s string, max int) string {
	if len(s) <= max {
		return s
	}
	cut := max
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "…"
}

func statusEmoji(s run.Status) string {
	switch s {
	case run.StatusPass:
		return "✅"
	case run.StatusFail:
		return "❌"
	default:
		return "⚠️"
	}
}

// voteLink builds the governance merge-vote deep link. A missing or
// partial DAO block yields no link.
func voteLink(pol *policy.Document, prNumber int) string {
	if pol == nil || !pol.DAO.Complete() {
		return ""
	}
	d := pol.DAO

	base, err := url.Parse(d.BaseURL)
	if err != nil {
		return ""
	}
	base.Path = "/merge-change"

	q := url.Values{}
	q.Set("dao", d.DAO)
	q.Set("plugin", d.Plugin)
	q.Set("signal", d.Signal)
	q.Set("chainId", d.ChainID)
	q.Set("repoUrl", d.RepoURL)
	q.Set("pr", fmt.Sprint(prNumber))
	q.Set("action", "merge")
	q.Set("target", "change")
	base.RawQuery = q.Encode()

	return base.String()
}
