package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplitModelID(t *testing.T) {
	cases := []struct {
		id       string
		provider string
		name     string
	}{
		{"deepseek/deepseek-chat-v3.1", ProviderOpenRouter, "deepseek/deepseek-chat-v3.1"},
		{"gemini:gemini-2.0-flash", ProviderGemini, "gemini-2.0-flash"},
		{"openrouter:qwen/qwen3-32b", ProviderOpenRouter, "qwen/qwen3-32b"},
		{"meta-llama/llama-3.3-70b-instruct:free", ProviderOpenRouter, "meta-llama/llama-3.3-70b-instruct:free"},
	}
	for _, c := range cases {
		provider, name := SplitModelID(c.id)
		assert.Equal(t, c.provider, provider, c.id)
		assert.Equal(t, c.name, name, c.id)
	}
}

func TestModelRouterDispatches(t *testing.T) {
	openrouter := newStubGateway().reply("deepseek/deepseek-chat-v3.1", "from openrouter")
	gemini := newStubGateway().fail("gemini-2.0-flash", statusError("gemini-2.0-flash", 503, "overloaded"))
	router := NewModelRouter().Register(ProviderOpenRouter, openrouter).Register(ProviderGemini, gemini)

	text, err := router.Complete(context.Background(), "deepseek/deepseek-chat-v3.1", GatewayRequest{})
	require.NoError(t, err)
	assert.Equal(t, "from openrouter", text)

	_, err = router.Complete(context.Background(), "gemini:gemini-2.0-flash", GatewayRequest{})
	var gatewayErr *GatewayError
	require.ErrorAs(t, err, &gatewayErr)
	assert.Equal(t, "gemini:gemini-2.0-flash", gatewayErr.Model)
	assert.Equal(t, []string{"gemini-2.0-flash"}, gemini.calls)
}

func TestModelRouterMissingProviderFallsThrough(t *testing.T) {
	openrouter := newStubGateway().reply("qwen/qwen3-32b", `{"ok": true}`)
	router := NewModelRouter().Register(ProviderOpenRouter, openrouter)

	o := mustOrchestrator(t, router, "gemini:gemini-2.0-flash", "qwen/qwen3-32b")
	got, model, err := CallWithFallback[answer](context.Background(), o, GatewayRequest{})
	require.NoError(t, err)
	assert.True(t, got.OK)
	assert.Equal(t, "qwen/qwen3-32b", model)
}
