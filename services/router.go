package services

import (
	"context"
	"fmt"
	"strings"
)

const (
	ProviderOpenRouter = "openrouter"
	ProviderGemini     = "gemini"
)

// SplitModelID splits "provider:model". Ids without a known provider prefix belong to OpenRouter,
// whose own ids look like "vendor/model".
func SplitModelID(modelID string) (string, string) {
	provider, name, found := strings.Cut(modelID, ":")
	if !found {
		return ProviderOpenRouter, modelID
	}
	switch provider {
	case ProviderOpenRouter, ProviderGemini:
		return provider, name
	}
	return ProviderOpenRouter, modelID
}

// ModelRouter is a ModelGateway that dispatches on the provider prefix of the model id.
type ModelRouter struct {
	providers map[string]ModelGateway
}

func NewModelRouter() *ModelRouter {
	return &ModelRouter{providers: map[string]ModelGateway{}}
}

func (r *ModelRouter) Register(provider string, gateway ModelGateway) *ModelRouter {
	r.providers[provider] = gateway
	return r
}

func (r *ModelRouter) Complete(ctx context.Context, modelID string, req GatewayRequest) (string, error) {
	provider, name := SplitModelID(modelID)
	gateway, ok := r.providers[provider]
	if !ok {
		// same as the provider not knowing the model
		return "", statusError(modelID, 404, fmt.Sprintf("provider %q is not configured", provider))
	}
	text, err := gateway.Complete(ctx, name, req)
	if gatewayErr, ok := err.(*GatewayError); ok {
		gatewayErr.Model = modelID
	}
	return text, err
}

// NewModelRouterFromConfig wires the providers that have credentials.
func NewModelRouterFromConfig(ctx context.Context, cfg Config) (*ModelRouter, error) {
	router := NewModelRouter()
	router.Register(ProviderOpenRouter, NewOpenRouterGateway(cfg.OpenRouterAPIKey, cfg.OpenRouterBaseURL))
	if cfg.GoogleAPIKey != "" {
		gemini, err := NewGeminiGateway(ctx, cfg.GoogleAPIKey, "")
		if err != nil {
			return nil, err
		}
		router.Register(ProviderGemini, gemini)
	}
	return router, nil
}
