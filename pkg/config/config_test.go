package config

import (
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "anthropic", cfg.AI.Provider)
	assert.Equal(t, 8, cfg.Pipeline.OpenItemCap)
	assert.Equal(t, 20, cfg.Pipeline.RateThreshold)
	assert.Equal(t, "token", cfg.GitHub.AuthMethod)
	assert.NotEmpty(t, cfg.History.DatabasePath)
}

func TestLoad_Overrides(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	viper.Set("github.repo", "khenlevy/demo")
	viper.Set("pipeline.open_item_cap", 3)
	viper.Set("ai.provider", "ollama")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "khenlevy/demo", cfg.GitHub.Repo)
	assert.Equal(t, 3, cfg.Pipeline.OpenItemCap)
	assert.Equal(t, "ollama", cfg.AI.Provider)
}

func TestLoad_RejectsBadValues(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value any
	}{
		{"bad repo slug", "github.repo", "not-a-slug"},
		{"bad auth method", "github.auth_method", "password"},
		{"zero cap", "pipeline.open_item_cap", 0},
		{"negative threshold", "pipeline.rate_threshold", -1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			viper.Reset()
			t.Cleanup(viper.Reset)
			viper.Set(tt.key, tt.value)

			_, err := Load()
			assert.Error(t, err)
		})
	}
}

func TestResolveGitHubToken(t *testing.T) {
	cfg := &Config{}
	cfg.GitHub.Token = "from-config"

	t.Setenv("AIARMY_GITHUB_TOKEN", "")
	assert.Equal(t, "from-config", cfg.ResolveGitHubToken())

	t.Setenv("AIARMY_GITHUB_TOKEN", "from-env")
	assert.Equal(t, "from-env", cfg.ResolveGitHubToken())
}

func TestCheckSecurityWarnings(t *testing.T) {
	t.Setenv("AIARMY_GITHUB_TOKEN", "")
	t.Setenv("ANTHROPIC_API_KEY", "")

	cfg := &Config{}
	assert.Empty(t, CheckSecurityWarnings(cfg))

	cfg.GitHub.Token = "ghp_plaintext"
	cfg.AI.APIKey = "sk-plaintext"
	warnings := CheckSecurityWarnings(cfg)
	require.Len(t, warnings, 2)
	assert.Equal(t, "github.token", warnings[0].Field)
	assert.Equal(t, "ai.api_key", warnings[1].Field)
}
