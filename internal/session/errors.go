package session

import "errors"

var (
	// ErrSessionNotFound is returned by operations other than GetOrCreate
	// when the session id is unknown.
	ErrSessionNotFound = errors.New("session not found")

	// ErrInvalidPair is returned by AppendPair when the messages are not a
	// user message followed by an assistant message.
	ErrInvalidPair = errors.New("history pair must be (user, assistant)")
)
