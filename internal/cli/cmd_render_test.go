package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRender_FromJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "result.json")
	require.NoError(t, os.WriteFile(path, []byte(`{
		"overall_status": "pass",
		"conclusion_reason": "all_gates_passed",
		"gates": [
			{
				"id": "review-limits",
				"status": "pass",
				"violations": [],
				"observations": [],
				"stats": {"files": 3},
				"duration_ms": 4
			}
		],
		"execution_summary": {"passed": 1, "failed": 0, "neutral": 0},
		"duration_ms": 5
	}`), 0o644))

	cmd := newRenderCmd()
	var buf bytes.Buffer
	cmd.SetOut(&buf)
	cmd.SetArgs([]string{"--from-json", path, "--pr", "42"})
	require.NoError(t, cmd.Execute())

	assert.Contains(t, buf.String(), "All gates passed")
	assert.Contains(t, buf.String(), "review-limits")
}

func TestRender_FromJSONBadFile(t *testing.T) {
	cmd := newRenderCmd()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"--from-json", filepath.Join(t.TempDir(), "nope.json")})
	assert.Error(t, cmd.Execute())
}

func TestRender_RequiresRepoAndPR(t *testing.T) {
	cmd := newRenderCmd()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{})
	assert.Error(t, cmd.Execute())
}
