// Package ai provides the model backends the stage crews run on.
//
// Crews are single-turn: each run sends one prompt built from the work
// items and the cross-stage context, and expects one structured reply.
// Anthropic (Claude) is the hosted backend; Ollama covers local models
// for development without an API key.
package ai

import (
	"context"
	"log/slog"
	"os"

	armyerrors "github.com/khenlevy/ai-army/pkg/errors"
)

// Message represents a conversation message.
type Message struct {
	Role    string // "user", "assistant", "system"
	Content string
}

// Response from an AI provider.
type Response struct {
	Content      string
	StopReason   string // "end_turn", "max_tokens", etc.
	InputTokens  int
	OutputTokens int
}

// Provider interface for AI operations.
type Provider interface {
	// IsAvailable checks if the provider is available and configured.
	IsAvailable() bool

	// Chat performs a single-turn chat completion.
	Chat(ctx context.Context, messages []Message) (*Response, error)

	// Name returns the provider name.
	Name() string
}

// Provider name constants.
const (
	ProviderAnthropic = "anthropic"
	ProviderOllama    = "ollama"
)

// Settings selects and configures a provider. Environment variables take
// precedence over config file values for API keys.
type Settings struct {
	Provider string
	Model    string
	APIKey   string
	Endpoint string
}

// NewProvider creates an AI provider from settings.
func NewProvider(s Settings, verbose bool) (Provider, error) {
	var logger *slog.Logger
	if verbose {
		logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))
	}

	switch s.Provider {
	case ProviderAnthropic:
		apiKey := resolveAnthropicAPIKey(s.APIKey)
		if apiKey == "" {
			return nil, armyerrors.NewConfigError("ai.api_key",
				"Anthropic API key not set (set ANTHROPIC_API_KEY or ai.api_key in config)")
		}
		return NewAnthropicProvider(apiKey, s.Model, logger), nil

	case ProviderOllama:
		return NewOllamaProvider(s.Endpoint, s.Model, logger), nil

	default:
		return nil, armyerrors.NewConfigError("ai.provider",
			"unsupported AI provider: "+s.Provider+" (supported: anthropic, ollama)")
	}
}

// resolveAnthropicAPIKey returns the API key from the ANTHROPIC_API_KEY
// environment variable if set, otherwise falls back to the config value.
func resolveAnthropicAPIKey(configKey string) string {
	if envKey := os.Getenv("ANTHROPIC_API_KEY"); envKey != "" {
		return envKey
	}
	return configKey
}
