package image

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"server/internal/domain"
	"server/internal/infra"
)

func TestChoose(t *testing.T) {
	tests := []struct {
		name            string
		defaultProvider string
		hasLogo         bool
		want            string
	}{
		{"logo forces gemini", ProviderOpenAI, true, ProviderGemini},
		{"configured default without logo", ProviderOpenAI, false, ProviderOpenAI},
		{"gemini default", ProviderGemini, false, ProviderGemini},
		{"unknown falls back to gemini", "stable-diffusion", false, ProviderGemini},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Choose(tt.defaultProvider, tt.hasLogo))
		})
	}
}

func TestNewGenerator(t *testing.T) {
	cfg := &infra.Config{
		GeminiAPIKey: "gk",
		OpenAIAPIKey: "ok",
	}

	gen, err := NewGenerator(ProviderGemini, cfg)
	require.NoError(t, err)
	assert.IsType(t, &Gemini{}, gen)

	gen, err = NewGenerator(ProviderOpenAI, cfg)
	require.NoError(t, err)
	assert.IsType(t, &OpenAI{}, gen)

	_, err = NewGenerator("unknown", cfg)
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrConfiguration))

	_, err = NewGenerator(ProviderGemini, &infra.Config{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrConfiguration))
}
