package image

import (
	"fmt"

	"server/internal/domain"
	"server/internal/infra"
)

// Choose picks the provider for a campaign run. A real logo asset
// forces the multimodal provider so it can be used as a reference
// image; otherwise the configured default wins.
func Choose(defaultProvider string, hasLogo bool) string {
	if hasLogo {
		return ProviderGemini
	}
	switch defaultProvider {
	case ProviderGemini, ProviderOpenAI:
		return defaultProvider
	default:
		return ProviderGemini
	}
}

// NewGenerator builds the named provider from configuration.
func NewGenerator(name string, cfg *infra.Config) (Generator, error) {
	switch name {
	case ProviderGemini:
		return NewGemini(GeminiOptions{
			APIKey:  cfg.GeminiAPIKey,
			BaseURL: cfg.GeminiBaseURL,
			Model:   cfg.GeminiModel,
		})
	case ProviderOpenAI:
		return NewOpenAI(OpenAIOptions{
			APIKey:  cfg.OpenAIAPIKey,
			BaseURL: cfg.OpenAIBaseURL,
			Model:   cfg.OpenAIModel,
		})
	default:
		return nil, fmt.Errorf("%w: unknown provider %q", domain.ErrConfiguration, name)
	}
}
