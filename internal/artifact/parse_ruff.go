package artifact

import (
	"github.com/tidwall/gjson"

	"github.com/gatewright/gatewright/internal/run"
)

// ParseRuff walks the `ruff check --output-format json` shape, a top-level
// array of findings. Ruff does not attach a severity to findings; anything
// it reports fails the check run, so every finding is an error.
func ParseRuff(data []byte) ([]run.Violation, error) {
	if !gjson.ValidBytes(data) {
		return nil, newError(run.ReasonParseError, "ruff report is not valid JSON")
	}
	root := gjson.ParseBytes(data)
	if !root.IsArray() {
		return nil, newError(run.ReasonInvalidFormat, "ruff report must be a top-level array")
	}

	var violations []run.Violation
	root.ForEach(func(_, finding gjson.Result) bool {
		v := run.Violation{
			Code:    finding.Get("code").String(),
			Message: finding.Get("message").String(),
			Path:    finding.Get("filename").String(),
			Line:    int(finding.Get("location.row").Int()),
			Column:  int(finding.Get("location.column").Int()),
			Level:   run.LevelError,
		}
		if v.Code == "" {
			v.Code = "ruff"
		}
		meta := map[string]any{}
		if url := finding.Get("url").String(); url != "" {
			meta["url"] = url
		}
		if fix := finding.Get("fix"); fix.Exists() && fix.Type != gjson.Null {
			meta["fixable"] = true
			if applicability := fix.Get("applicability").String(); applicability != "" {
				meta["fix_applicability"] = applicability
			}
		}
		if end := finding.Get("end_location"); end.Exists() {
			meta["end_row"] = end.Get("row").Int()
			meta["end_column"] = end.Get("column").Int()
		}
		if len(meta) > 0 {
			v.Meta = meta
		}
		violations = append(violations, v)
		return true
	})
	return violations, nil
}
