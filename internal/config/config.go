// Package config provides configuration management for gatewright.
package config

import (
	"time"

	"github.com/gatewright/gatewright/internal/checks"
	"github.com/gatewright/gatewright/internal/hosting"
)

const (
	// ConfigFileName is the default config file name.
	ConfigFileName = "config.yaml"
	// Dir is the gatewright configuration directory.
	Dir = ".gatewright"
)

// ServerConfig holds webhook server settings.
type ServerConfig struct {
	// Addr is the listen address.
	Addr string `yaml:"addr"`

	// Webhook credentials come from the environment, never from files.
	GitHubWebhookSecret string `yaml:"-"`
	GitLabWebhookToken  string `yaml:"-"`
}

// ChecksConfig holds check lifecycle settings shared by all repositories.
type ChecksConfig struct {
	// CheckName is the published check's name.
	CheckName string `yaml:"check_name"`

	// Deadline bounds a single gate run.
	Deadline time.Duration `yaml:"deadline"`

	// ForceFailOnError elevates neutral verdicts to failures everywhere,
	// regardless of per-repository policy.
	ForceFailOnError bool `yaml:"force_fail_on_error"`

	// RequiredContexts is the deployment-wide default for the
	// governance-policy gate when a policy names none.
	RequiredContexts []string `yaml:"required_contexts"`

	// WorkflowPaths maps workflow ids to the CI paths that implement the
	// corresponding required contexts.
	WorkflowPaths map[string]string `yaml:"workflow_paths"`
}

// AIConfig holds model settings for AI rule workflows.
type AIConfig struct {
	Model string `yaml:"model"`

	// APIKeyEnvVar names the environment variable carrying the API key.
	APIKeyEnvVar string `yaml:"api_key_env_var"`
}

// Config is the gatewright deployment configuration.
type Config struct {
	Server  ServerConfig   `yaml:"server"`
	Hosting hosting.Config `yaml:"hosting"`
	Checks  ChecksConfig   `yaml:"checks"`
	AI      AIConfig       `yaml:"ai"`
}

// Default returns the built-in defaults.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Addr: ":8787",
		},
		Hosting: hosting.Config{
			Provider: "github",
		},
		Checks: ChecksConfig{
			CheckName: checks.DefaultCheckName,
			Deadline:  5 * time.Minute,
		},
		AI: AIConfig{
			Model:        "claude-sonnet-4-5",
			APIKeyEnvVar: "ANTHROPIC_API_KEY",
		},
	}
}
