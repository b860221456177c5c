// Package provider defines the completion engine contract and the message
// types exchanged with it.
package provider

import "context"

// Provider produces a reply for a conversation. Concrete implementations
// live under modules/provider and also implement core.Module.
type Provider interface {
	// Complete sends the full message list and returns the reply.
	Complete(ctx context.Context, req CompletionRequest) (CompletionResponse, error)

	// ModelName returns the identifier of the underlying model.
	ModelName() string
}

// HealthChecker is an optional interface for engines that can be probed
// cheaply. The gateway health endpoint calls it when asked to.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}
