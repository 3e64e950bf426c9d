package onboard

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gatewright/gatewright/internal/hosting/hostingtest"
	"github.com/gatewright/gatewright/internal/policy"
	"github.com/gatewright/gatewright/internal/rule"
)

func TestSeed_CommitsStarterPolicyAndRule(t *testing.T) {
	forge := hostingtest.New("acme", "widgets")
	s := NewSeeder(nil)

	require.NoError(t, s.Seed(context.Background(), forge, "main"))

	assert.Contains(t, forge.CreatedFiles, policy.SpecPath)
	assert.Contains(t, forge.CreatedFiles, starterRulePath)
}

func TestSeed_SkipsWhenPolicyExists(t *testing.T) {
	forge := hostingtest.New("acme", "widgets")
	forge.SetFile(policy.SpecPath, "main", []byte("gates: []\n"))
	s := NewSeeder(nil)

	require.NoError(t, s.Seed(context.Background(), forge, "main"))

	assert.Empty(t, forge.CreatedFiles)
}

func TestSeed_DefaultsBranch(t *testing.T) {
	forge := hostingtest.New("acme", "widgets")
	s := NewSeeder(nil)

	require.NoError(t, s.Seed(context.Background(), forge, ""))
	assert.Contains(t, forge.CreatedFiles, policy.SpecPath)
}

// The seeded documents must themselves survive the loaders, otherwise a
// fresh installation fails its very first check.
func TestStarterDocumentsParse(t *testing.T) {
	_, err := policy.Parse([]byte(starterPolicy))
	require.NoError(t, err)

	_, err = rule.Parse([]byte(starterRule))
	require.NoError(t, err)
}
