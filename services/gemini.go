package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"
	"google.golang.org/genai"
)

// GeminiGateway talks the generate-content envelope of the Gemini API. Images go inline.
type GeminiGateway struct {
	client *genai.Client
}

func NewGeminiGateway(ctx context.Context, apiKey string, baseURL string) (*GeminiGateway, error) {
	config := &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	}
	if baseURL != "" {
		config.HTTPOptions = genai.HTTPOptions{BaseURL: baseURL}
	}
	client, err := genai.NewClient(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("init genai client: %w", err)
	}
	return &GeminiGateway{client: client}, nil
}

func (g *GeminiGateway) Complete(ctx context.Context, modelID string, req GatewayRequest) (string, error) {
	parts := []*genai.Part{{Text: req.Prompt}}
	if req.Image != nil {
		parts = append(parts, &genai.Part{
			InlineData: &genai.Blob{
				MIMEType: req.Image.MIMEType,
				Data:     req.Image.Data,
			},
		})
	}
	config := &genai.GenerateContentConfig{
		CandidateCount:   1,
		ResponseMIMEType: "application/json",
	}
	if req.MaxOutputTokens > 0 {
		config.MaxOutputTokens = int32(req.MaxOutputTokens)
	}

	result, err := g.client.Models.GenerateContent(ctx, modelID, []*genai.Content{{Role: "user", Parts: parts}}, config)
	if err != nil {
		return "", geminiError(modelID, err)
	}
	return geminiText(modelID, result)
}

func geminiError(modelID string, err error) error {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return statusError(modelID, apiErr.Code, apiErr.Message)
	}
	var apiErrPtr *genai.APIError
	if errors.As(err, &apiErrPtr) {
		return statusError(modelID, apiErrPtr.Code, apiErrPtr.Message)
	}
	return &GatewayError{Kind: ErrorKindTransport, Model: modelID, Err: err}
}

func geminiText(modelID string, result *genai.GenerateContentResponse) (string, error) {
	if result == nil {
		return "", &GatewayError{Kind: ErrorKindEmpty, Model: modelID}
	}
	if result.UsageMetadata != nil {
		log.Debug().
			Str("model", modelID).
			Int32("input_tokens", result.UsageMetadata.PromptTokenCount).
			Int32("output_tokens", result.UsageMetadata.CandidatesTokenCount).
			Msg("gemini usage")
	}
	if result.PromptFeedback != nil && result.PromptFeedback.BlockReason != "" {
		return "", &GatewayError{
			Kind:            ErrorKindEmpty,
			Model:           modelID,
			ProviderMessage: fmt.Sprintf("prompt blocked: %s %s", result.PromptFeedback.BlockReason, result.PromptFeedback.BlockReasonMessage),
		}
	}
	for _, candidate := range result.Candidates {
		for _, rating := range candidate.SafetyRatings {
			if rating.Blocked {
				return "", &GatewayError{
					Kind:            ErrorKindEmpty,
					Model:           modelID,
					ProviderMessage: fmt.Sprintf("content blocked by safety setting: %s", rating.Category),
				}
			}
		}
	}
	text := result.Text()
	if strings.TrimSpace(text) == "" {
		return "", &GatewayError{Kind: ErrorKindEmpty, Model: modelID}
	}
	return text, nil
}
