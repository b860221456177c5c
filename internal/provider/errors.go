package provider

import (
	"errors"
	"net/http"
	"strings"
)

// Sentinel errors for provider operations. The turn orchestrator treats all
// of them as a failed completion and answers with the apology reply; they
// differ only in what gets logged and counted.
var (
	// ErrRateLimit: the endpoint asked us to slow down (HTTP 429).
	ErrRateLimit = errors.New("provider rate limited")

	// ErrContextLength: system prompt plus history no longer fits the
	// model's window. Lowering pipeline.max_pairs is the fix.
	ErrContextLength = errors.New("context length exceeded")

	// ErrProviderDown: unreachable, 5xx, or overloaded.
	ErrProviderDown = errors.New("provider unavailable")

	// ErrAuthentication: the API key was rejected (HTTP 401 or 403).
	ErrAuthentication = errors.New("provider authentication failed")

	// ErrEmptyResponse: the model answered with no text at all.
	ErrEmptyResponse = errors.New("provider returned no content")
)

// IsRetryable reports whether the error is transient and the request
// can be retried after a delay.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrRateLimit) || errors.Is(err, ErrProviderDown)
}

// contextOverflowMarkers are the phrases chat servers use when a prompt is
// too long. OpenAI, vLLM and Ollama use the first few; Anthropic the last.
var contextOverflowMarkers = []string{
	"context_length_exceeded",
	"context length",
	"maximum context",
	"token limit",
	"too many tokens",
	"prompt is too long",
}

// MentionsContextOverflow reports whether an error message or body says the
// prompt exceeded the model's context window.
func MentionsContextOverflow(text string) bool {
	lower := strings.ToLower(text)
	for _, m := range contextOverflowMarkers {
		if strings.Contains(lower, m) {
			return true
		}
	}
	return false
}

// ClassifyStatus maps an HTTP status from a completion endpoint to its
// sentinel. detail is the error message or body, consulted only for 400s.
// It returns nil when no sentinel applies.
func ClassifyStatus(status int, detail string) error {
	switch {
	case status == http.StatusTooManyRequests:
		return ErrRateLimit
	case status >= http.StatusInternalServerError:
		// Includes Anthropic's 529 "overloaded".
		return ErrProviderDown
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return ErrAuthentication
	case status == http.StatusBadRequest && MentionsContextOverflow(detail):
		return ErrContextLength
	default:
		return nil
	}
}
