// Package run defines the result types produced by gate execution.
// Gate handlers, the orchestrator, the artifact parsers, and the report
// renderer all speak these types; keeping them in one leaf package avoids
// import cycles between those layers.
package run

// Status is the three-valued verdict of a gate or of a whole run.
type Status string

const (
	StatusPass    Status = "pass"
	StatusFail    Status = "fail"
	StatusNeutral Status = "neutral"
)

// NeutralReason explains why a gate (or run) came back neutral.
// The set is closed; renderers and tests switch over it.
type NeutralReason string

const (
	ReasonUnimplementedGate     NeutralReason = "unimplemented_gate"
	ReasonTimeout               NeutralReason = "timeout"
	ReasonInternalError         NeutralReason = "internal_error"
	ReasonMissingArtifact       NeutralReason = "missing_artifact"
	ReasonArtifactTooLarge      NeutralReason = "artifact_too_large"
	ReasonParseError            NeutralReason = "parse_error"
	ReasonInvalidFormat         NeutralReason = "invalid_format"
	ReasonOversizeDiff          NeutralReason = "oversize_diff"
	ReasonMissingThreshold      NeutralReason = "missing_threshold"
	ReasonNoContextsRequired    NeutralReason = "no_contexts_required"
	ReasonMissingMetrics        NeutralReason = "missing_metrics"
	ReasonRuleSchemaInvalid     NeutralReason = "rule_schema_invalid"
	ReasonProviderResultInvalid NeutralReason = "provider_result_invalid"
)

// ConclusionReason classifies the overall run verdict.
type ConclusionReason string

const (
	ConclusionNoGatesExecuted ConclusionReason = "no_gates_executed"
	ConclusionGatesFailed     ConclusionReason = "gates_failed"
	ConclusionGatesNeutral    ConclusionReason = "gates_neutral"
	ConclusionGateTimeouts    ConclusionReason = "gate_timeouts"
	ConclusionAllPassed       ConclusionReason = "all_gates_passed"
)

// Severity levels for violations, normalized across tools.
const (
	LevelError   = "error"
	LevelWarning = "warning"
	LevelInfo    = "info"
)

// Violation is a single finding reported by a gate.
type Violation struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Path    string         `json:"path,omitempty"`
	Line    int            `json:"line,omitempty"`
	Column  int            `json:"column,omitempty"`
	Level   string         `json:"level,omitempty"`
	Meta    map[string]any `json:"meta,omitempty"`
}

// Provenance records where an AI-rule verdict came from.
type Provenance struct {
	Provider   string `json:"provider"`
	Model      string `json:"model"`
	RunID      string `json:"run_id"`
	WorkflowID string `json:"workflow_id"`
	WallTimeMS int64  `json:"wall_time_ms"`
}

// Metric is one AI-produced measurement with supporting observations.
type Metric struct {
	Value        float64  `json:"value"`
	Observations []string `json:"observations"`
}

// ProviderResult is the schema-validated output of an AI workflow.
type ProviderResult struct {
	Metrics    map[string]Metric `json:"metrics"`
	Summary    string            `json:"summary"`
	Provenance Provenance        `json:"provenance"`
}

// GateResult is the normalized output of one gate execution.
// The launcher owns ID and DurationMS; handlers fill the rest.
type GateResult struct {
	ID            string         `json:"id"`
	Status        Status         `json:"status"`
	NeutralReason NeutralReason  `json:"neutral_reason,omitempty"`
	Violations    []Violation    `json:"violations"`
	Observations  []string       `json:"observations"`
	Stats         map[string]any `json:"stats"`
	DurationMS    int64          `json:"duration_ms"`

	// AI-rule extras. Nil for other gate types.
	Provenance     *Provenance     `json:"provenance,omitempty"`
	ProviderResult *ProviderResult `json:"provider_result,omitempty"`
	RuleID         string          `json:"rule_id,omitempty"`

	// Criteria lines for the renderer, one per comparison evaluated.
	Criteria []CriterionOutcome `json:"criteria,omitempty"`
}

// CriterionOutcome records how one success-criteria comparison resolved.
type CriterionOutcome struct {
	Metric    string  `json:"metric"`
	Op        string  `json:"op"`
	Threshold float64 `json:"threshold"`
	Value     float64 `json:"value"`
	Satisfied bool    `json:"satisfied"`
	Missing   bool    `json:"missing"`
	Statement string  `json:"statement,omitempty"`
}

// ExecutionSummary carries counts and flags for the whole run.
type ExecutionSummary struct {
	Configured int  `json:"configured"`
	Executed   int  `json:"executed"`
	Passed     int  `json:"passed"`
	Failed     int  `json:"failed"`
	Neutral    int  `json:"neutral"`
	Partial    bool `json:"partial"`
	Elevated   bool `json:"elevated"` // neutral elevated to fail by policy
}

// Result is the aggregated outcome of one event's gate execution.
type Result struct {
	OverallStatus    Status           `json:"overall_status"`
	ConclusionReason ConclusionReason `json:"conclusion_reason"`
	Gates            []GateResult     `json:"gates"`
	Summary          ExecutionSummary `json:"execution_summary"`
	DurationMS       int64            `json:"duration_ms"`
}

// Counts tallies gate results by status.
func Counts(gates []GateResult) (passed, failed, neutral int) {
	for _, g := range gates {
		switch g.Status {
		case StatusPass:
			passed++
		case StatusFail:
			failed++
		case StatusNeutral:
			neutral++
		}
	}
	return passed, failed, neutral
}
