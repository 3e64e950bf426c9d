package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Load reads configuration with the standard layering.
// Load order (later sources override earlier):
//  1. Built-in defaults
//  2. System config (/etc/gatewright/config.yaml) - optional
//  3. User config (~/.gatewright/config.yaml) - optional
//  4. Working-directory config (.gatewright/config.yaml) - optional
//  5. Environment variables (GATEWRIGHT_*)
func Load() (*Config, error) {
	cfg := Default()

	systemPath := filepath.Join("/etc/gatewright", ConfigFileName)
	if _, err := os.Stat(systemPath); err == nil {
		if err := mergeFromFile(cfg, systemPath); err != nil {
			slog.Warn("failed to load system config", "path", systemPath, "error", err)
		}
	}

	if home, err := os.UserHomeDir(); err == nil {
		userPath := filepath.Join(home, Dir, ConfigFileName)
		if _, err := os.Stat(userPath); err == nil {
			if err := mergeFromFile(cfg, userPath); err != nil {
				slog.Warn("failed to load user config", "path", userPath, "error", err)
			}
		}
	}

	localPath := filepath.Join(Dir, ConfigFileName)
	if _, err := os.Stat(localPath); err == nil {
		if err := mergeFromFile(cfg, localPath); err != nil {
			return nil, err // working-directory config errors are fatal
		}
	}

	applyEnv(cfg)
	return cfg, nil
}

// LoadFrom reads configuration from one file over the defaults, then
// applies environment overrides. Used when --config names a file.
func LoadFrom(path string) (*Config, error) {
	cfg := Default()
	if err := mergeFromFile(cfg, path); err != nil {
		return nil, err
	}
	applyEnv(cfg)
	return cfg, nil
}

func mergeFromFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}
	// Unmarshal over the existing values so absent keys keep their layer's
	// value rather than resetting to the zero value.
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	return nil
}

// applyEnv applies GATEWRIGHT_* environment variable overrides.
func applyEnv(cfg *Config) {
	setString := func(key string, dst *string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}

	setString("GATEWRIGHT_ADDR", &cfg.Server.Addr)
	setString("GATEWRIGHT_GITHUB_WEBHOOK_SECRET", &cfg.Server.GitHubWebhookSecret)
	setString("GATEWRIGHT_GITLAB_WEBHOOK_TOKEN", &cfg.Server.GitLabWebhookToken)

	setString("GATEWRIGHT_PROVIDER", &cfg.Hosting.Provider)
	setString("GATEWRIGHT_BASE_URL", &cfg.Hosting.BaseURL)
	setString("GATEWRIGHT_TOKEN", &cfg.Hosting.Token)
	if v := os.Getenv("GATEWRIGHT_REQUESTS_PER_SECOND"); v != "" {
		if rps, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Hosting.RequestsPerSecond = rps
		}
	}

	setString("GATEWRIGHT_CHECK_NAME", &cfg.Checks.CheckName)
	if v := os.Getenv("GATEWRIGHT_DEADLINE"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Checks.Deadline = d
		}
	}
	if v := os.Getenv("GATEWRIGHT_FAIL_ON_ERROR"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Checks.ForceFailOnError = b
		}
	}

	setString("GATEWRIGHT_MODEL", &cfg.AI.Model)
}
