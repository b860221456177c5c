// Package session keeps short-term conversation memory per client device.
//
// Each session holds an ordered list of (user, assistant) message pairs,
// capped at a fixed number of pairs with oldest-first eviction. Sessions are
// created lazily, cleared on request, and evicted after an idle period.
package session

import (
	"context"
	"time"

	"github.com/echomate/echomate/internal/provider"
)

// Session is a point-in-time view of one conversation.
type Session struct {
	ID           string
	CreatedAt    time.Time
	LastActiveAt time.Time

	// Pairs is the number of complete exchanges currently remembered.
	Pairs int

	// Restored reports whether the history was reloaded from a Persister
	// when the session was created.
	Restored bool
}

// History is what a Persister returns for a session.
type History struct {
	Messages  []provider.LLMMessage
	UpdatedAt time.Time
}

// Persister mirrors session history to durable storage so conversations
// survive a restart. Failures are logged by the Store and never fail a turn.
// Implementations must be safe for concurrent use.
type Persister interface {
	// Load returns up to limit of the most recent messages for id, oldest
	// first. A missing session yields an empty History and no error.
	Load(ctx context.Context, id string, limit int) (History, error)

	// Append stores msgs at the end of id's history.
	Append(ctx context.Context, id string, msgs ...provider.LLMMessage) error

	// Purge deletes all stored history for id.
	Purge(ctx context.Context, id string) error
}
