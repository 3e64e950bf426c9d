package artifact

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gatewright/gatewright/internal/run"
)

func TestParseESLint(t *testing.T) {
	report := `[
		{
			"filePath": "/home/runner/work/r/r/src/app.js",
			"messages": [
				{"ruleId": "no-unused-vars", "severity": 2, "message": "'x' is defined but never used.", "line": 3, "column": 7},
				{"ruleId": "semi", "severity": 1, "message": "Missing semicolon.", "line": 9, "column": 20, "fix": {"range": [120, 120], "text": ";"}}
			]
		},
		{"filePath": "src/ok.js", "messages": []}
	]`

	violations, err := ParseESLint([]byte(report))
	require.NoError(t, err)
	require.Len(t, violations, 2)

	assert.Equal(t, "no-unused-vars", violations[0].Code)
	assert.Equal(t, run.LevelError, violations[0].Level)
	assert.Equal(t, 3, violations[0].Line)
	assert.Equal(t, 7, violations[0].Column)

	assert.Equal(t, "semi", violations[1].Code)
	assert.Equal(t, run.LevelWarning, violations[1].Level)
	assert.Equal(t, true, violations[1].Meta["fixable"])
}

func TestParseESLintFatal(t *testing.T) {
	report := `[{"filePath": "src/broken.js", "messages": [
		{"ruleId": null, "fatal": true, "severity": 2, "message": "Parsing error: Unexpected token", "line": 1, "column": 1}
	]}]`

	violations, err := ParseESLint([]byte(report))
	require.NoError(t, err)
	require.Len(t, violations, 1)
	assert.Equal(t, "eslint", violations[0].Code)
	assert.Equal(t, run.LevelError, violations[0].Level)
	assert.Equal(t, true, violations[0].Meta["fatal"])
}

func TestParseESLintBadInput(t *testing.T) {
	_, err := ParseESLint([]byte(`{not json`))
	var aerr *Error
	require.ErrorAs(t, err, &aerr)
	assert.Equal(t, run.ReasonParseError, aerr.Reason)

	_, err = ParseESLint([]byte(`{"results": []}`))
	require.ErrorAs(t, err, &aerr)
	assert.Equal(t, run.ReasonInvalidFormat, aerr.Reason)
}

func TestParseRuff(t *testing.T) {
	report := `[
		{
			"code": "F401",
			"message": "os imported but unused",
			"filename": "/builds/g/p/app/main.py",
			"location": {"row": 1, "column": 8},
			"end_location": {"row": 1, "column": 10},
			"url": "https://docs.astral.sh/ruff/rules/unused-import",
			"fix": {"applicability": "safe", "message": "Remove unused import"}
		},
		{
			"code": "E501",
			"message": "Line too long (120 > 88)",
			"filename": "app/long.py",
			"location": {"row": 44, "column": 89},
			"fix": null
		}
	]`

	violations, err := ParseRuff([]byte(report))
	require.NoError(t, err)
	require.Len(t, violations, 2)

	assert.Equal(t, "F401", violations[0].Code)
	assert.Equal(t, run.LevelError, violations[0].Level)
	assert.Equal(t, 1, violations[0].Line)
	assert.Equal(t, 8, violations[0].Column)
	assert.Equal(t, true, violations[0].Meta["fixable"])
	assert.Equal(t, "safe", violations[0].Meta["fix_applicability"])

	assert.Equal(t, "E501", violations[1].Code)
	_, fixable := violations[1].Meta["fixable"]
	assert.False(t, fixable)
}

func TestParseRuffBadInput(t *testing.T) {
	var aerr *Error
	_, err := ParseRuff([]byte(`[}`))
	require.ErrorAs(t, err, &aerr)
	assert.Equal(t, run.ReasonParseError, aerr.Reason)

	_, err = ParseRuff([]byte(`{"findings": []}`))
	require.ErrorAs(t, err, &aerr)
	assert.Equal(t, run.ReasonInvalidFormat, aerr.Reason)
}

func TestParseSARIF(t *testing.T) {
	report := `{
		"version": "2.1.0",
		"runs": [{
			"tool": {"driver": {"name": "CodeScan"}},
			"results": [{
				"ruleId": "sql-injection",
				"level": "error",
				"message": {"text": "Unsanitized input flows into query"},
				"locations": [{
					"physicalLocation": {
						"artifactLocation": {"uri": "/home/runner/work/r/r/src/db.js"},
						"region": {"startLine": 28, "startColumn": 5}
					}
				}]
			}]
		}]
	}`

	violations, err := ParseSARIF([]byte(report))
	require.NoError(t, err)
	require.Len(t, violations, 1)

	v := violations[0]
	assert.Equal(t, "sql-injection", v.Code)
	assert.Equal(t, run.LevelError, v.Level)
	assert.Equal(t, 28, v.Line)
	assert.Equal(t, 5, v.Column)
	assert.Equal(t, "CodeScan", v.Meta["tool"])

	normalized := NormalizeViolations(violations)
	require.Len(t, normalized, 1)
	assert.Equal(t, "src/db.js", normalized[0].Path)
}

func TestParseSARIFNoLocations(t *testing.T) {
	report := `{
		"version": "2.1.0",
		"runs": [{
			"tool": {"driver": {"name": "Scanner"}},
			"results": [
				{"ruleId": "global-check", "message": {"text": "repo-wide issue"}},
				{"ruleId": "quiet", "level": "note", "message": {"text": "fyi"}}
			]
		}]
	}`

	violations, err := ParseSARIF([]byte(report))
	require.NoError(t, err)
	require.Len(t, violations, 2)

	assert.Empty(t, violations[0].Path)
	assert.Zero(t, violations[0].Line)
	// absent level defaults to warning
	assert.Equal(t, run.LevelWarning, violations[0].Level)
	// note maps to info
	assert.Equal(t, run.LevelInfo, violations[1].Level)
}

func TestParseSARIFInvalid(t *testing.T) {
	var aerr *Error

	_, err := ParseSARIF([]byte(`not json`))
	require.ErrorAs(t, err, &aerr)
	assert.Equal(t, run.ReasonParseError, aerr.Reason)

	_, err = ParseSARIF([]byte(`{"runs": []}`))
	require.ErrorAs(t, err, &aerr)
	assert.Equal(t, run.ReasonInvalidFormat, aerr.Reason)

	_, err = ParseSARIF([]byte(`{"version": "2.1.0"}`))
	require.ErrorAs(t, err, &aerr)
	assert.Equal(t, run.ReasonInvalidFormat, aerr.Reason)
}
