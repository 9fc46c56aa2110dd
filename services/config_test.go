package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("OUTFIT_COUNT", "0")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, 5, cfg.OutfitCount)
	assert.Equal(t, "gemini:gemini-2.0-flash", cfg.PhotoModels[0])
	assert.Equal(t, OpenMeteoBaseURL, cfg.WeatherBaseURL)
}

func TestLoadConfigModelLists(t *testing.T) {
	t.Setenv("OUTFIT_MODELS", "qwen/qwen3-32b,gemini:gemini-2.5-flash")
	t.Setenv("OUTFIT_COUNT", "3")
	t.Setenv("PUSH_ENABLED", "true")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, []string{"qwen/qwen3-32b", "gemini:gemini-2.5-flash"}, cfg.OutfitModels)
	assert.Equal(t, 3, cfg.OutfitCount)
	assert.True(t, cfg.PushEnabled)
}
