package services

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
)

const OpenRouterBaseURL = "https://openrouter.ai/api/v1"

// OpenRouterGateway talks the chat completion envelope. OpenRouter proxies several upstream providers
// behind one OpenAI compatible endpoint.
type OpenRouterGateway struct {
	client openai.Client
}

func NewOpenRouterGateway(apiKey string, baseURL string, opts ...option.RequestOption) *OpenRouterGateway {
	if baseURL == "" {
		baseURL = OpenRouterBaseURL
	}
	requestOptions := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithBaseURL(baseURL),
		// fallback across models is the orchestrator's job
		option.WithMaxRetries(0),
	}
	requestOptions = append(requestOptions, opts...)
	return &OpenRouterGateway{client: openai.NewClient(requestOptions...)}
}

func openRouterUserMessage(req GatewayRequest) openai.ChatCompletionMessageParamUnion {
	if req.Image == nil {
		return openai.UserMessage(req.Prompt)
	}
	dataURL := fmt.Sprintf("data:%s;base64,%s", req.Image.MIMEType, base64.StdEncoding.EncodeToString(req.Image.Data))
	return openai.ChatCompletionMessageParamUnion{
		OfUser: &openai.ChatCompletionUserMessageParam{
			Content: openai.ChatCompletionUserMessageParamContentUnion{
				OfArrayOfContentParts: []openai.ChatCompletionContentPartUnionParam{
					{OfText: &openai.ChatCompletionContentPartTextParam{
						Text: req.Prompt,
					}},
					{OfImageURL: &openai.ChatCompletionContentPartImageParam{
						ImageURL: openai.ChatCompletionContentPartImageImageURLParam{
							URL:    dataURL,
							Detail: "auto",
						},
					}},
				},
			},
		},
	}
}

func (g *OpenRouterGateway) Complete(ctx context.Context, modelID string, req GatewayRequest) (string, error) {
	params := openai.ChatCompletionNewParams{
		Model:    openai.ChatModel(modelID),
		Messages: []openai.ChatCompletionMessageParamUnion{openRouterUserMessage(req)},
	}
	if req.MaxOutputTokens > 0 {
		params.MaxTokens = openai.Int(int64(req.MaxOutputTokens))
	}

	response, err := g.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", openRouterError(modelID, err)
	}
	if len(response.Choices) == 0 {
		return "", &GatewayError{Kind: ErrorKindEmpty, Model: modelID}
	}
	text := response.Choices[0].Message.Content
	if strings.TrimSpace(text) == "" {
		return "", &GatewayError{Kind: ErrorKindEmpty, Model: modelID}
	}
	return text, nil
}

func openRouterError(modelID string, err error) error {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		message := apiErr.Message
		if message == "" {
			message = http.StatusText(apiErr.StatusCode)
		}
		return statusError(modelID, apiErr.StatusCode, message)
	}
	return &GatewayError{Kind: ErrorKindTransport, Model: modelID, Err: err}
}
