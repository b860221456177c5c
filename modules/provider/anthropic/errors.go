package anthropic

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	sdkanthropic "github.com/anthropics/anthropic-sdk-go"

	"github.com/echomate/echomate/internal/provider"
)

// mapError translates an SDK error into the provider sentinels the turn
// orchestrator understands. Cancellation and deadlines pass through so the
// orchestrator can tell a hung-up client from a failed engine.
func mapError(err error) error {
	if err == nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}

	var apiErr *sdkanthropic.Error
	if !errors.As(err, &apiErr) {
		// Refused connection or DNS failure: the request never reached the API.
		return fmt.Errorf("%w: %w", provider.ErrProviderDown, err)
	}

	detail := ""
	if apiErr.StatusCode == http.StatusBadRequest {
		detail = overflowDetail(apiErr.RawJSON())
	}
	if sentinel := provider.ClassifyStatus(apiErr.StatusCode, detail); sentinel != nil {
		return fmt.Errorf("%w: anthropic HTTP %d", sentinel, apiErr.StatusCode)
	}
	return fmt.Errorf("anthropic HTTP %d: %w", apiErr.StatusCode, err)
}

// errorEnvelope is the body Anthropic sends with every non-2xx response.
type errorEnvelope struct {
	Error struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

// overflowDetail returns the part of a 400 body worth checking for a
// context overflow. Only invalid_request_error messages qualify; a body
// that is not the usual envelope is checked whole.
func overflowDetail(raw string) string {
	var env errorEnvelope
	if err := json.Unmarshal([]byte(raw), &env); err != nil || env.Error.Type == "" {
		return raw
	}
	if env.Error.Type != "invalid_request_error" {
		return ""
	}
	return env.Error.Message
}
