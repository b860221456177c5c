// Package stt defines the speech-to-text engine contract.
package stt

import (
	"context"
	"errors"
)

// ErrNoSpeech is returned by engines that distinguish "heard nothing" from
// a failed call. Callers treat it like an empty transcript.
var ErrNoSpeech = errors.New("no speech detected")

// Options tunes one transcription.
type Options struct {
	// Language is an ISO 639-1 hint ("zh"). Empty lets the engine detect it.
	Language string

	// Prompt primes the recognizer toward a script or vocabulary.
	Prompt string
}

// Transcriber turns a canonical PCM WAV clip into text. Implementations
// must be safe for concurrent use.
type Transcriber interface {
	Transcribe(ctx context.Context, wav []byte, opts Options) (string, error)
}

// TranscriberFunc adapts a function to Transcriber.
type TranscriberFunc func(ctx context.Context, wav []byte, opts Options) (string, error)

// Transcribe calls f.
func (f TranscriberFunc) Transcribe(ctx context.Context, wav []byte, opts Options) (string, error) {
	return f(ctx, wav, opts)
}
