package llm

import (
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/lookout-hq/lookout/pkg/config"
)

// ErrNotConfigured is returned when a required API key is missing.
var ErrNotConfigured = errors.New("llm provider not configured")

// NewProviders builds the search providers from configuration in dispatch
// order. Providers without an API key are omitted and logged.
func NewProviders(cfg *config.ProvidersConfig, logger *zap.Logger) ([]Provider, error) {
	var providers []Provider

	if cfg.OpenAI.APIKey == "" {
		logger.Warn("OpenAI provider disabled: no API key configured")
	} else {
		client, err := NewClient(&Config{
			APIKey:    cfg.OpenAI.APIKey,
			Model:     cfg.OpenAI.Model,
			MaxTokens: cfg.OpenAI.MaxTokens,
			BaseURL:   cfg.OpenAI.BaseURL,
		}, logger)
		if err != nil {
			return nil, fmt.Errorf("create openai provider: %w", err)
		}
		providers = append(providers, NewOpenAIProvider(client))
	}

	if cfg.Google.APIKey == "" {
		logger.Warn("Google provider disabled: no API key configured")
	} else {
		gemini, err := NewGeminiClient(&GeminiConfig{
			APIKey:          cfg.Google.APIKey,
			Model:           cfg.Google.Model,
			MaxTokens:       cfg.Google.MaxTokens,
			BaseURL:         cfg.Google.BaseURL,
			SearchGrounding: cfg.Google.SearchGrounding,
		}, logger)
		if err != nil {
			return nil, fmt.Errorf("create google provider: %w", err)
		}
		providers = append(providers, gemini)
	}

	if cfg.Anthropic.APIKey == "" {
		logger.Warn("Claude provider disabled: no API key configured")
	} else {
		claude, err := NewAnthropicProvider(&AnthropicConfig{
			APIKey:    cfg.Anthropic.APIKey,
			Model:     cfg.Anthropic.Model,
			MaxTokens: cfg.Anthropic.MaxTokens,
			BaseURL:   cfg.Anthropic.BaseURL,
		}, logger)
		if err != nil {
			return nil, fmt.Errorf("create claude provider: %w", err)
		}
		providers = append(providers, claude)
	}

	return providers, nil
}

// NewMentionExtractor returns the OpenAI client used for structured mention extraction.
func NewMentionExtractor(cfg *config.Config, logger *zap.Logger) (*Client, error) {
	if cfg.Providers.OpenAI.APIKey == "" {
		return nil, fmt.Errorf("mention extraction needs OPENAI_API_KEY: %w", ErrNotConfigured)
	}
	return NewClient(&Config{
		APIKey:  cfg.Providers.OpenAI.APIKey,
		Model:   cfg.Mentions.Model,
		BaseURL: cfg.Providers.OpenAI.BaseURL,
	}, logger)
}

// NewSuggestionGenerator returns the Gemini client used for prompt and topic suggestions.
func NewSuggestionGenerator(cfg *config.Config, logger *zap.Logger) (*GeminiClient, error) {
	if cfg.Providers.Google.APIKey == "" {
		return nil, fmt.Errorf("suggestions need GOOGLE_GENERATIVE_AI_API_KEY: %w", ErrNotConfigured)
	}
	return NewGeminiClient(&GeminiConfig{
		APIKey:    cfg.Providers.Google.APIKey,
		Model:     cfg.Suggestions.Model,
		MaxTokens: cfg.Suggestions.MaxTokens,
		BaseURL:   cfg.Providers.Google.BaseURL,
	}, logger)
}
