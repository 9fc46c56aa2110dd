package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"
)

var ErrModelsExhausted = errors.New("All models unavailable. Try again in a minute.")

type ExhaustedError struct {
	Attempts int
}

func (e *ExhaustedError) Error() string {
	return ErrModelsExhausted.Error()
}

func (e *ExhaustedError) Is(target error) bool {
	return target == ErrModelsExhausted
}

// IsRetryable classifies an error from a single gateway call.
func IsRetryable(err error) bool {
	var gatewayErr *GatewayError
	if errors.As(err, &gatewayErr) {
		return gatewayErr.Retryable()
	}
	return false
}

// FallbackOrchestrator drives one gateway across an ordered model list.
type FallbackOrchestrator struct {
	gateway ModelGateway
	models  []string
}

func NewFallbackOrchestrator(gateway ModelGateway, models []string) (*FallbackOrchestrator, error) {
	cleaned := make([]string, 0, len(models))
	for _, model := range models {
		if m := strings.TrimSpace(model); m != "" {
			cleaned = append(cleaned, m)
		}
	}
	if gateway == nil {
		return nil, errors.New("fallback orchestrator needs a gateway")
	}
	if len(cleaned) == 0 {
		return nil, errors.New("fallback orchestrator needs at least one model")
	}
	return &FallbackOrchestrator{gateway: gateway, models: cleaned}, nil
}

func (o *FallbackOrchestrator) Models() []string {
	return append([]string(nil), o.models...)
}

// CallWithFallback tries each model in order and returns the first decoded success together with the
// model that produced it. Terminal errors are returned unchanged. A retryable failure of the last model
// becomes ErrModelsExhausted.
func CallWithFallback[T any](ctx context.Context, o *FallbackOrchestrator, req GatewayRequest) (T, string, error) {
	var zero T
	for i, model := range o.models {
		if err := ctx.Err(); err != nil {
			return zero, "", err
		}
		result, err := CallModel[T](ctx, o.gateway, model, req)
		if err == nil {
			return result, model, nil
		}
		if !IsRetryable(err) {
			log.Ctx(ctx).Warn().Err(err).Str("model", model).Msg("terminal model error")
			return zero, model, err
		}
		if i == len(o.models)-1 {
			log.Ctx(ctx).Warn().Err(err).Str("model", model).Int("attempts", i+1).Msg("all models exhausted")
			return zero, model, &ExhaustedError{Attempts: i + 1}
		}
		log.Ctx(ctx).Info().Err(err).Str("model", model).Str("next", o.models[i+1]).Msg("model unavailable, falling back")
	}
	return zero, "", fmt.Errorf("no models configured")
}

// IsTerminalModelError is true for gateway failures that no retry of the same request will fix.
func IsTerminalModelError(err error) bool {
	var gatewayErr *GatewayError
	return errors.As(err, &gatewayErr) && !gatewayErr.Retryable()
}

// UserMessage is the text shown to the user for a failed model call.
func UserMessage(err error) string {
	var gatewayErr *GatewayError
	switch {
	case errors.Is(err, ErrModelsExhausted):
		return ErrModelsExhausted.Error()
	case errors.As(err, &gatewayErr):
		if gatewayErr.Kind == ErrorKindEmpty && gatewayErr.ProviderMessage != "" {
			return "The AI model declined the request: " + gatewayErr.ProviderMessage
		}
		return fmt.Sprintf("AI request failed (%s). Please try again.", gatewayErr.Code())
	default:
		return "Something went wrong, please try again."
	}
}
