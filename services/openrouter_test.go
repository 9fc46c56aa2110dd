package services

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func chatCompletionBody(content string) string {
	body, _ := json.Marshal(map[string]any{
		"id":      "gen-1",
		"object":  "chat.completion",
		"created": 1720000000,
		"model":   "deepseek/deepseek-chat-v3.1",
		"choices": []map[string]any{{
			"index":         0,
			"finish_reason": "stop",
			"message":       map[string]any{"role": "assistant", "content": content},
		}},
	})
	return string(body)
}

type capturedRequest struct {
	Path   string
	Auth   string
	Body   map[string]any
	Status int
}

func openRouterServer(t *testing.T, status int, body string) (*httptest.Server, *capturedRequest) {
	t.Helper()
	captured := &capturedRequest{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		captured.Path = r.URL.Path
		captured.Auth = r.Header.Get("Authorization")
		raw, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(raw, &captured.Body)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = io.WriteString(w, body)
	}))
	t.Cleanup(srv.Close)
	return srv, captured
}

func TestOpenRouterComplete(t *testing.T) {
	srv, captured := openRouterServer(t, http.StatusOK, chatCompletionBody(`{"outfits": []}`))
	gateway := NewOpenRouterGateway("sk-or-test", srv.URL+"/api/v1")

	text, err := gateway.Complete(context.Background(), "deepseek/deepseek-chat-v3.1", GatewayRequest{Prompt: "dress me", MaxOutputTokens: 2000})
	require.NoError(t, err)
	assert.Equal(t, `{"outfits": []}`, text)

	assert.True(t, strings.HasSuffix(captured.Path, "/chat/completions"), captured.Path)
	assert.Equal(t, "Bearer sk-or-test", captured.Auth)
	assert.Equal(t, "deepseek/deepseek-chat-v3.1", captured.Body["model"])
	assert.EqualValues(t, 2000, captured.Body["max_tokens"])
}

func TestOpenRouterSendsInlineImage(t *testing.T) {
	srv, captured := openRouterServer(t, http.StatusOK, chatCompletionBody(`{"item": "Shirt"}`))
	gateway := NewOpenRouterGateway("key", srv.URL)

	_, err := gateway.Complete(context.Background(), "google/gemini-2.0-flash-001", GatewayRequest{
		Prompt: "describe",
		Image:  &InlineImage{MIMEType: "image/jpeg", Data: []byte{0xff, 0xd8, 0xff}},
	})
	require.NoError(t, err)

	raw, _ := json.Marshal(captured.Body["messages"])
	assert.Contains(t, string(raw), "data:image/jpeg;base64,/9j/")
	assert.Contains(t, string(raw), "describe")
}

func TestOpenRouterStatusErrors(t *testing.T) {
	for _, status := range []int{429, 503, 500, 401} {
		srv, _ := openRouterServer(t, status, `{"error": {"message": "upstream said no", "code": 0}}`)
		gateway := NewOpenRouterGateway("key", srv.URL)

		_, err := gateway.Complete(context.Background(), "m", GatewayRequest{Prompt: "p"})
		var gatewayErr *GatewayError
		require.ErrorAs(t, err, &gatewayErr, "status %d", status)
		assert.Equal(t, ErrorKindStatus, gatewayErr.Kind)
		assert.Equal(t, status, gatewayErr.StatusCode)
		assert.NotEmpty(t, gatewayErr.ProviderMessage)
	}
}

func TestOpenRouterEmptyAnswer(t *testing.T) {
	srv, _ := openRouterServer(t, http.StatusOK, chatCompletionBody("   "))
	_, err := NewOpenRouterGateway("key", srv.URL).Complete(context.Background(), "m", GatewayRequest{Prompt: "p"})
	var gatewayErr *GatewayError
	require.ErrorAs(t, err, &gatewayErr)
	assert.Equal(t, ErrorKindEmpty, gatewayErr.Kind)
	assert.False(t, gatewayErr.Retryable())
}

func TestOpenRouterTransportError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err := NewOpenRouterGateway("key", url).Complete(context.Background(), "m", GatewayRequest{Prompt: "p"})
	var gatewayErr *GatewayError
	require.ErrorAs(t, err, &gatewayErr)
	assert.Equal(t, ErrorKindTransport, gatewayErr.Kind)
	assert.Equal(t, "transport", gatewayErr.Code())
}
