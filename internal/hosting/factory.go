package hosting

import (
	"fmt"
	"strings"
)

// Config holds hosting provider configuration.
type Config struct {
	// Provider type: "github" or "gitlab".
	Provider string `yaml:"provider" json:"provider"`

	// BaseURL for self-hosted instances (e.g., "https://gitlab.company.com").
	// Leave empty for github.com / gitlab.com.
	BaseURL string `yaml:"base_url" json:"base_url,omitempty"`

	// Token is the API token. When empty the adapter falls back to the
	// provider's conventional environment variable.
	Token string `yaml:"-" json:"-"`

	// TokenEnvVar overrides the default token environment variable name.
	// Default: GITHUB_TOKEN for GitHub, GITLAB_TOKEN for GitLab.
	TokenEnvVar string `yaml:"token_env_var" json:"token_env_var,omitempty"`

	// RequestsPerSecond caps outbound API calls. Zero means no limit.
	RequestsPerSecond float64 `yaml:"requests_per_second" json:"requests_per_second,omitempty"`
}

// NewProviderFunc is a constructor function for creating a hosting provider.
// The actual GitHub/GitLab constructors are registered at init time by the
// provider packages to avoid import cycles.
type NewProviderFunc func(fullName string, cfg Config) (Provider, error)

// Provider constructors registered by provider packages.
var providerConstructors = map[ProviderType]NewProviderFunc{}

// RegisterProvider registers a provider constructor.
// Called from init() in provider packages (github/, gitlab/).
func RegisterProvider(providerType ProviderType, constructor NewProviderFunc) {
	providerConstructors[providerType] = constructor
}

// NewProvider creates a hosting provider for the given "owner/repo" full name.
func NewProvider(fullName string, cfg Config) (Provider, error) {
	pt := ProviderType(cfg.Provider)
	if pt != ProviderGitHub && pt != ProviderGitLab {
		return nil, fmt.Errorf("unknown provider %q (supported: github, gitlab)", cfg.Provider)
	}

	constructor, ok := providerConstructors[pt]
	if !ok {
		return nil, fmt.Errorf("no provider registered for %q (registered: %v)", pt, registeredProviders())
	}

	return constructor(fullName, cfg)
}

func registeredProviders() []string {
	names := make([]string, 0, len(providerConstructors))
	for pt := range providerConstructors {
		names = append(names, string(pt))
	}
	return names
}

// SplitFullName splits "owner/repo" (or "group/subgroup/repo") into the
// namespace prefix and the final repository name.
func SplitFullName(fullName string) (owner, repo string, err error) {
	idx := strings.LastIndex(fullName, "/")
	if idx <= 0 || idx == len(fullName)-1 {
		return "", "", fmt.Errorf("invalid repository full name %q (want owner/repo)", fullName)
	}
	return fullName[:idx], fullName[idx+1:], nil
}
