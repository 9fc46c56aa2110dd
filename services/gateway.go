package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// GatewayRequest is one structured generation request. Prompt already contains the expected JSON shape.
type GatewayRequest struct {
	Prompt          string
	MaxOutputTokens int
	Image           *InlineImage
}

type InlineImage struct {
	MIMEType string
	Data     []byte
}

// ModelGateway sends exactly one request to one named model and returns its raw text payload.
// Implementations never retry and never cache.
type ModelGateway interface {
	Complete(ctx context.Context, modelID string, req GatewayRequest) (string, error)
}

type GatewayErrorKind int

const (
	// provider answered with a non-success status
	ErrorKindStatus GatewayErrorKind = iota
	// request never got a status (dns, tls, connection reset, cancelled)
	ErrorKindTransport
	// envelope had no text
	ErrorKindEmpty
	// text was not valid JSON after fence stripping
	ErrorKindDecode
)

func (k GatewayErrorKind) String() string {
	switch k {
	case ErrorKindStatus:
		return "status"
	case ErrorKindTransport:
		return "transport"
	case ErrorKindEmpty:
		return "empty"
	case ErrorKindDecode:
		return "decode"
	default:
		return "unknown"
	}
}

type GatewayError struct {
	Kind            GatewayErrorKind
	Model           string
	StatusCode      int
	ProviderMessage string
	Err             error
}

// Code is the numeric status for provider errors, otherwise the kind name ("empty", "decode", ...).
func (e *GatewayError) Code() string {
	if e.Kind == ErrorKindStatus {
		return strconv.Itoa(e.StatusCode)
	}
	return e.Kind.String()
}

func (e *GatewayError) Error() string {
	msg := fmt.Sprintf("model %s: %s", e.Model, e.Code())
	if e.ProviderMessage != "" {
		msg += ": " + e.ProviderMessage
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *GatewayError) Unwrap() error {
	return e.Err
}

// Retryable reports whether the next model in a fallback list may succeed where this one failed.
// Decode failures are retried: another model often returns well formed JSON for the same prompt.
func (e *GatewayError) Retryable() bool {
	switch e.Kind {
	case ErrorKindStatus:
		switch e.StatusCode {
		case 429, 404, 502, 503:
			return true
		}
		return false
	case ErrorKindDecode:
		return true
	case ErrorKindEmpty, ErrorKindTransport:
		return false
	default:
		panic(fmt.Sprintf("unhandled gateway error kind %d", e.Kind))
	}
}

func statusError(model string, status int, message string) *GatewayError {
	return &GatewayError{Kind: ErrorKindStatus, Model: model, StatusCode: status, ProviderMessage: message}
}

// CleanModelText removes markdown code fences and surrounding whitespace.
func CleanModelText(raw string) string {
	text := strings.TrimSpace(raw)
	text = strings.ReplaceAll(text, "```json", "")
	text = strings.ReplaceAll(text, "```JSON", "")
	text = strings.ReplaceAll(text, "```", "")
	return strings.TrimSpace(text)
}

func DecodeModelJSON[T any](model string, raw string) (T, error) {
	var out T
	cleaned := CleanModelText(raw)
	if cleaned == "" {
		return out, &GatewayError{Kind: ErrorKindEmpty, Model: model}
	}
	if err := json.Unmarshal([]byte(cleaned), &out); err != nil {
		return out, &GatewayError{Kind: ErrorKindDecode, Model: model, Err: err}
	}
	return out, nil
}

// CallModel is a single gateway call followed by fence stripping and JSON decoding.
func CallModel[T any](ctx context.Context, gateway ModelGateway, modelID string, req GatewayRequest) (T, error) {
	var zero T
	text, err := gateway.Complete(ctx, modelID, req)
	if err != nil {
		return zero, err
	}
	return DecodeModelJSON[T](modelID, text)
}
