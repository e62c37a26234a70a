package llm

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDefaultConfig(t *testing.T) {
	config := DefaultConfig()

	assert.Equal(t, ProviderGemini, config.Provider)
	assert.Equal(t, "gemini-2.5-flash-lite", config.GetModel(TierLite))
	assert.Equal(t, "gemini-2.5-flash", config.GetModel(TierStandard))
}

func TestGetModel_FallsBackToStandard(t *testing.T) {
	config := &Config{
		Provider: ProviderGemini,
		Models:   map[ModelTier]string{TierStandard: "std"},
	}

	assert.Equal(t, "std", config.GetModel(TierLite))
	assert.Equal(t, "std", config.GetModel("unknown"))
}

func TestGetModel_EmptyConfig(t *testing.T) {
	config := &Config{Provider: ProviderGemini, Models: map[ModelTier]string{}}
	assert.Equal(t, "", config.GetModel(TierLite))
}

func TestWithModel(t *testing.T) {
	config := DefaultConfig()
	pinned := config.WithModel("gemini-custom")

	assert.Equal(t, "gemini-2.5-flash-lite", config.GetModel(TierLite))
	assert.Equal(t, "gemini-custom", pinned.GetModel(TierLite))
	assert.Equal(t, "gemini-custom", pinned.GetModel(TierStandard))

	unchanged := config.WithModel("")
	assert.Equal(t, config.Models, unchanged.Models)
}
