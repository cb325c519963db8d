package config

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/spf13/viper"
)

// Config represents the application configuration
type Config struct {
	Workspace WorkspaceConfig `mapstructure:"workspace"`
	GitHub    GitHubConfig    `mapstructure:"github"`
	AI        AIConfig        `mapstructure:"ai"`
	Pipeline  PipelineConfig  `mapstructure:"pipeline"`
	History   HistoryConfig   `mapstructure:"history"`
}

// WorkspaceConfig holds the local state location
type WorkspaceConfig struct {
	Root string `mapstructure:"root"` // Directory holding .ai-army state (default: cwd)
}

// GitHubConfig holds GitHub integration configuration
type GitHubConfig struct {
	Repo       string `mapstructure:"repo"`        // Target repository, "owner/repo"
	AuthMethod string `mapstructure:"auth_method"` // "token" or "oauth"
	ClientID   string `mapstructure:"client_id"`   // OAuth app client ID (for device flow)
	Token      string `mapstructure:"token"`       // For token auth (AIARMY_GITHUB_TOKEN env var takes precedence)
}

// AIConfig holds AI provider configuration
type AIConfig struct {
	Provider string `mapstructure:"provider"` // "anthropic" or "ollama"
	Model    string `mapstructure:"model"`    // e.g., "claude-sonnet-4-20250514"
	APIKey   string `mapstructure:"api_key"`  // Provider API key (env var takes precedence)
	Endpoint string `mapstructure:"endpoint"` // Custom endpoint URL (e.g., for Ollama: http://localhost:11434)
}

// PipelineConfig holds pipeline tuning knobs
type PipelineConfig struct {
	OpenItemCap   int `mapstructure:"open_item_cap"`  // Ceiling on open items before creation stops
	RateThreshold int `mapstructure:"rate_threshold"` // Remaining-request floor below which runs skip
}

// HistoryConfig holds run history configuration
type HistoryConfig struct {
	DatabasePath string `mapstructure:"database_path"`
}

// SecurityWarning represents a configuration security issue
type SecurityWarning struct {
	Field   string
	Message string
}

// Load loads the configuration from file and environment variables
func Load() (*Config, error) {
	config := &Config{}

	// Set defaults
	setDefaults()

	// Unmarshal the config
	if err := viper.Unmarshal(config); err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal config")
	}

	// Expand paths
	if err := expandPaths(config); err != nil {
		return nil, errors.Wrap(err, "failed to expand paths")
	}

	// Validate configuration
	if err := config.Validate(); err != nil {
		return nil, errors.Wrap(err, "config validation failed")
	}

	return config, nil
}

// CheckSecurityWarnings returns warnings for insecure configuration practices.
// Call this when loading config to warn users about tokens stored in config files.
func CheckSecurityWarnings(config *Config) []SecurityWarning {
	var warnings []SecurityWarning

	if config.GitHub.Token != "" && os.Getenv("AIARMY_GITHUB_TOKEN") == "" {
		warnings = append(warnings, SecurityWarning{
			Field:   "github.token",
			Message: "GitHub token is set in config file. For security, use the AIARMY_GITHUB_TOKEN environment variable or OAuth device flow instead.",
		})
	}

	if config.AI.APIKey != "" && os.Getenv("ANTHROPIC_API_KEY") == "" {
		warnings = append(warnings, SecurityWarning{
			Field:   "ai.api_key",
			Message: "AI API key is set in config file. For security, use the ANTHROPIC_API_KEY environment variable instead.",
		})
	}

	return warnings
}

// ValidAuthMethods is the list of supported GitHub auth methods.
var ValidAuthMethods = []string{"token", "oauth"}

// ValidateAuthMethod validates that an auth method is supported.
func ValidateAuthMethod(method string) error {
	if method == "" {
		return nil // Empty is allowed, will use default
	}
	for _, valid := range ValidAuthMethods {
		if method == valid {
			return nil
		}
	}
	return errors.Newf("invalid auth method %q: must be one of: token, oauth", method)
}

// Validate validates the configuration and returns any validation errors.
func (c *Config) Validate() error {
	if err := ValidateAuthMethod(c.GitHub.AuthMethod); err != nil {
		return errors.Wrap(err, "github.auth_method")
	}
	if c.GitHub.Repo != "" && strings.Count(c.GitHub.Repo, "/") != 1 {
		return errors.Newf("github.repo %q must be in owner/repo form", c.GitHub.Repo)
	}
	if c.Pipeline.OpenItemCap < 1 {
		return errors.Newf("pipeline.open_item_cap must be at least 1, got %d", c.Pipeline.OpenItemCap)
	}
	if c.Pipeline.RateThreshold < 0 {
		return errors.Newf("pipeline.rate_threshold must not be negative, got %d", c.Pipeline.RateThreshold)
	}
	return nil
}

// setDefaults sets default configuration values
func setDefaults() {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		// Fall back to current directory if home dir can't be determined
		homeDir = "."
	}

	// Workspace defaults (empty means current directory)
	viper.SetDefault("workspace.root", "")

	// GitHub defaults
	viper.SetDefault("github.repo", "")
	viper.SetDefault("github.auth_method", "token")
	viper.SetDefault("github.client_id", "") // OAuth app client ID for device flow
	viper.SetDefault("github.token", "")

	// AI defaults
	viper.SetDefault("ai.provider", "anthropic")
	viper.SetDefault("ai.model", "") // Empty means use the provider default
	viper.SetDefault("ai.api_key", "")
	viper.SetDefault("ai.endpoint", "") // Empty means use the provider default

	// Pipeline defaults
	viper.SetDefault("pipeline.open_item_cap", 8)
	viper.SetDefault("pipeline.rate_threshold", 20)

	// History defaults
	viper.SetDefault("history.database_path", filepath.Join(homeDir, ".local", "share", "ai-army", "history.db"))
}

// expandPaths expands ~ and environment variables in paths
func expandPaths(config *Config) error {
	var err error

	config.Workspace.Root, err = expandPath(config.Workspace.Root)
	if err != nil {
		return err
	}

	config.History.DatabasePath, err = expandPath(config.History.DatabasePath)
	if err != nil {
		return err
	}

	return nil
}

// expandPath expands ~ to home directory
func expandPath(path string) (string, error) {
	if len(path) == 0 || path[0] != '~' {
		return path, nil
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}

	return filepath.Join(homeDir, path[1:]), nil
}

// ResolveGitHubToken returns the token to use: the AIARMY_GITHUB_TOKEN
// environment variable when set, otherwise the config value.
func (c *Config) ResolveGitHubToken() string {
	if envToken := os.Getenv("AIARMY_GITHUB_TOKEN"); envToken != "" {
		return envToken
	}
	return c.GitHub.Token
}
