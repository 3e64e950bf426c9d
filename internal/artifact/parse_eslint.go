package artifact

import (
	"github.com/tidwall/gjson"

	"github.com/gatewright/gatewright/internal/run"
)

// ParserESLint and ParserRuff name the supported artifact.json parsers.
const (
	ParserESLint = "eslint_json"
	ParserRuff   = "ruff_json"
)

// ParseESLint walks the ESLint JSON formatter output, a top-level array of
// per-file results each carrying a messages array.
func ParseESLint(data []byte) ([]run.Violation, error) {
	if !gjson.ValidBytes(data) {
		return nil, newError(run.ReasonParseError, "eslint report is not valid JSON")
	}
	root := gjson.ParseBytes(data)
	if !root.IsArray() {
		return nil, newError(run.ReasonInvalidFormat, "eslint report must be a top-level array")
	}

	var violations []run.Violation
	root.ForEach(func(_, file gjson.Result) bool {
		path := file.Get("filePath").String()
		file.Get("messages").ForEach(func(_, msg gjson.Result) bool {
			v := run.Violation{
				Code:    msg.Get("ruleId").String(),
				Message: msg.Get("message").String(),
				Path:    path,
				Line:    int(msg.Get("line").Int()),
				Column:  int(msg.Get("column").Int()),
				Level:   NormalizeSeverityNum(int(msg.Get("severity").Int())),
			}
			if v.Code == "" {
				v.Code = "eslint"
			}
			meta := map[string]any{}
			if msg.Get("fatal").Bool() {
				meta["fatal"] = true
				v.Level = run.LevelError
			}
			if fix := msg.Get("fix"); fix.Exists() {
				meta["fixable"] = true
			}
			if len(meta) > 0 {
				v.Meta = meta
			}
			violations = append(violations, v)
			return true
		})
		return true
	})
	return violations, nil
}
