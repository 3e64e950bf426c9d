package artifact

import (
	"encoding/json"

	"github.com/gatewright/gatewright/internal/run"
)

// Minimal SARIF 2.1.0 shape, just the fields the ingester reads.
type sarifLog struct {
	Version string     `json:"version"`
	Runs    []sarifRun `json:"runs"`
}

type sarifRun struct {
	Tool    sarifTool     `json:"tool"`
	Results []sarifResult `json:"results"`
}

type sarifTool struct {
	Driver struct {
		Name string `json:"name"`
	} `json:"driver"`
}

type sarifResult struct {
	RuleID    string          `json:"ruleId"`
	Level     string          `json:"level"`
	Message   sarifMessage    `json:"message"`
	Locations []sarifLocation `json:"locations"`
}

type sarifMessage struct {
	Text string `json:"text"`
}

type sarifLocation struct {
	PhysicalLocation struct {
		ArtifactLocation struct {
			URI string `json:"uri"`
		} `json:"artifactLocation"`
		Region struct {
			StartLine   int `json:"startLine"`
			StartColumn int `json:"startColumn"`
		} `json:"region"`
	} `json:"physicalLocation"`
}

// ParseSARIF validates and walks a SARIF 2.1.0 log. A result with no
// locations still emits one violation, with no path or position. SARIF
// leaves level defaulted to warning when absent.
func ParseSARIF(data []byte) ([]run.Violation, error) {
	var log sarifLog
	if err := json.Unmarshal(data, &log); err != nil {
		return nil, newError(run.ReasonParseError, "sarif report is not valid JSON: %v", err)
	}
	if log.Version == "" {
		return nil, newError(run.ReasonInvalidFormat, "sarif report missing version field")
	}
	if log.Runs == nil {
		return nil, newError(run.ReasonInvalidFormat, "sarif report missing runs array")
	}

	var violations []run.Violation
	for _, r := range log.Runs {
		tool := r.Tool.Driver.Name
		for _, res := range r.Results {
			level := res.Level
			if level == "" {
				level = "warning"
			}
			base := run.Violation{
				Code:    res.RuleID,
				Message: res.Message.Text,
				Level:   NormalizeSeverity(level),
			}
			if base.Code == "" {
				base.Code = "sarif"
			}
			if tool != "" {
				base.Meta = map[string]any{"tool": tool}
			}

			if len(res.Locations) == 0 {
				violations = append(violations, base)
				continue
			}
			for _, loc := range res.Locations {
				v := base
				if tool != "" {
					v.Meta = map[string]any{"tool": tool}
				}
				v.Path = loc.PhysicalLocation.ArtifactLocation.URI
				v.Line = loc.PhysicalLocation.Region.StartLine
				v.Column = loc.PhysicalLocation.Region.StartColumn
				violations = append(violations, v)
			}
		}
	}
	return violations, nil
}
