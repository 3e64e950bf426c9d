package github

import (
	"fmt"
	"os"

	"github.com/gatewright/gatewright/internal/hosting"
)

// resolveToken gets the GitHub API token from config or environment.
// Uses cfg.Token when set, then cfg.TokenEnvVar, then GITHUB_TOKEN.
func resolveToken(cfg hosting.Config) (string, error) {
	if cfg.Token != "" {
		return cfg.Token, nil
	}

	envVar := "GITHUB_TOKEN"
	if cfg.TokenEnvVar != "" {
		envVar = cfg.TokenEnvVar
	}

	token := os.Getenv(envVar)
	if token == "" {
		return "", fmt.Errorf("%s environment variable is not set (required for GitHub API access)", envVar)
	}

	return token, nil
}
