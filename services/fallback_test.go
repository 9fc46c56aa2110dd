package services

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubReply struct {
	text string
	err  error
}

// stubGateway answers per model; models without a reply get a 404.
type stubGateway struct {
	replies map[string]stubReply
	calls   []string
	prompts []string
}

func newStubGateway() *stubGateway {
	return &stubGateway{replies: map[string]stubReply{}}
}

func (g *stubGateway) reply(model, text string) *stubGateway {
	g.replies[model] = stubReply{text: text}
	return g
}

func (g *stubGateway) fail(model string, err error) *stubGateway {
	g.replies[model] = stubReply{err: err}
	return g
}

func (g *stubGateway) Complete(ctx context.Context, modelID string, req GatewayRequest) (string, error) {
	g.calls = append(g.calls, modelID)
	g.prompts = append(g.prompts, req.Prompt)
	r, ok := g.replies[modelID]
	if !ok {
		return "", statusError(modelID, 404, "No endpoints found")
	}
	return r.text, r.err
}

type answer struct {
	OK bool `json:"ok"`
}

func mustOrchestrator(t *testing.T, g ModelGateway, models ...string) *FallbackOrchestrator {
	t.Helper()
	o, err := NewFallbackOrchestrator(g, models)
	require.NoError(t, err)
	return o
}

func TestFallbackFirstModelWins(t *testing.T) {
	g := newStubGateway().reply("a", `{"ok": true}`).reply("b", `{"ok": false}`)
	got, model, err := CallWithFallback[answer](context.Background(), mustOrchestrator(t, g, "a", "b"), GatewayRequest{Prompt: "p"})
	require.NoError(t, err)
	assert.True(t, got.OK)
	assert.Equal(t, "a", model)
	assert.Equal(t, []string{"a"}, g.calls)
}

func TestFallbackSkipsRetryableFailures(t *testing.T) {
	g := newStubGateway().
		fail("a", statusError("a", 429, "rate limited")).
		reply("b", "not json at all").
		fail("c", statusError("c", 503, "overloaded")).
		reply("d", "```json\n{\"ok\": true}\n```")

	got, model, err := CallWithFallback[answer](context.Background(), mustOrchestrator(t, g, "a", "b", "c", "d"), GatewayRequest{Prompt: "same"})
	require.NoError(t, err)
	assert.True(t, got.OK)
	assert.Equal(t, "d", model)
	assert.Equal(t, []string{"a", "b", "c", "d"}, g.calls)
	assert.Equal(t, []string{"same", "same", "same", "same"}, g.prompts)
}

func TestFallbackStopsOnTerminalError(t *testing.T) {
	cases := map[string]error{
		"status 500": statusError("a", 500, "boom"),
		"status 400": statusError("a", 400, "bad request"),
		"status 401": statusError("a", 401, "invalid api key"),
		"transport":  &GatewayError{Kind: ErrorKindTransport, Model: "a", Err: errors.New("connection reset")},
		"empty":      &GatewayError{Kind: ErrorKindEmpty, Model: "a"},
	}
	for name, failure := range cases {
		t.Run(name, func(t *testing.T) {
			g := newStubGateway().fail("a", failure).reply("b", `{"ok": true}`)
			_, model, err := CallWithFallback[answer](context.Background(), mustOrchestrator(t, g, "a", "b"), GatewayRequest{})
			require.Error(t, err)
			assert.Equal(t, "a", model)
			assert.Equal(t, []string{"a"}, g.calls)
			assert.True(t, IsTerminalModelError(err))
			assert.False(t, errors.Is(err, ErrModelsExhausted))
		})
	}
}

func TestFallbackBlankTextIsTerminal(t *testing.T) {
	g := newStubGateway().reply("a", "```json\n```").reply("b", `{"ok": true}`)
	_, _, err := CallWithFallback[answer](context.Background(), mustOrchestrator(t, g, "a", "b"), GatewayRequest{})
	var gatewayErr *GatewayError
	require.ErrorAs(t, err, &gatewayErr)
	assert.Equal(t, ErrorKindEmpty, gatewayErr.Kind)
	assert.Equal(t, []string{"a"}, g.calls)
}

func TestFallbackExhausted(t *testing.T) {
	g := newStubGateway().fail("b", statusError("b", 502, "bad gateway"))
	_, _, err := CallWithFallback[answer](context.Background(), mustOrchestrator(t, g, "a", "b"), GatewayRequest{})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrModelsExhausted)
	var exhausted *ExhaustedError
	require.ErrorAs(t, err, &exhausted)
	assert.Equal(t, 2, exhausted.Attempts)
	assert.Equal(t, "All models unavailable. Try again in a minute.", UserMessage(err))
	assert.False(t, IsTerminalModelError(err))
}

func TestFallbackTriesEveryModelOnceBeforeGivingUp(t *testing.T) {
	g := newStubGateway().
		fail("a", statusError("a", 503, "busy")).
		fail("b", statusError("b", 503, "busy")).
		fail("c", statusError("c", 503, "busy"))
	_, model, err := CallWithFallback[answer](context.Background(), mustOrchestrator(t, g, "a", "b", "c"), GatewayRequest{Prompt: "p"})
	assert.ErrorIs(t, err, ErrModelsExhausted)
	assert.Equal(t, "c", model)
	assert.Equal(t, []string{"a", "b", "c"}, g.calls)
	var exhausted *ExhaustedError
	require.ErrorAs(t, err, &exhausted)
	assert.Equal(t, 3, exhausted.Attempts)
}

func TestFallbackHonoursCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	g := newStubGateway().reply("a", `{"ok": true}`)
	_, _, err := CallWithFallback[answer](ctx, mustOrchestrator(t, g, "a"), GatewayRequest{})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, g.calls)
}

func TestNewFallbackOrchestratorValidates(t *testing.T) {
	_, err := NewFallbackOrchestrator(nil, []string{"a"})
	assert.Error(t, err)
	_, err = NewFallbackOrchestrator(newStubGateway(), []string{" ", ""})
	assert.Error(t, err)

	o, err := NewFallbackOrchestrator(newStubGateway(), []string{" a ", "", "b"})
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, o.Models())
}

func TestGatewayErrorRetryable(t *testing.T) {
	for status, want := range map[int]bool{429: true, 404: true, 502: true, 503: true, 400: false, 401: false, 500: false} {
		assert.Equal(t, want, statusError("m", status, "").Retryable(), "status %d", status)
	}
	assert.True(t, (&GatewayError{Kind: ErrorKindDecode}).Retryable())
	assert.False(t, IsRetryable(errors.New("plain")))
}

func TestUserMessage(t *testing.T) {
	assert.Equal(t, "AI request failed (401). Please try again.", UserMessage(statusError("m", 401, "no key")))
	assert.Equal(t, "AI request failed (transport). Please try again.", UserMessage(&GatewayError{Kind: ErrorKindTransport}))
	assert.Equal(t, "The AI model declined the request: SAFETY", UserMessage(&GatewayError{Kind: ErrorKindEmpty, ProviderMessage: "SAFETY"}))
	assert.Equal(t, "Something went wrong, please try again.", UserMessage(errors.New("db down")))
}

func TestCleanModelText(t *testing.T) {
	assert.Equal(t, `{"a":1}`, CleanModelText("  ```json\n{\"a\":1}\n```  "))
	assert.Equal(t, `[1]`, CleanModelText("```\n[1]\n```"))
	assert.Equal(t, "", CleanModelText("```JSON```"))
}
