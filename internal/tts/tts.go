// Package tts defines the text-to-speech engine contract.
package tts

import (
	"context"
	"errors"
)

// ErrEmptyText is returned when asked to speak nothing.
var ErrEmptyText = errors.New("nothing to synthesize")

// Options tunes one synthesis.
type Options struct {
	// Voice is an engine-specific voice name ("zh-CN-XiaoxiaoNeural").
	Voice string

	// Rate, Pitch and Volume are engine-specific adjustments such as "+10%".
	// Empty keeps the engine default.
	Rate   string
	Pitch  string
	Volume string
}

// Audio is encoded speech as produced by an engine. It is normalized to
// the canonical format before being handed to a client.
type Audio struct {
	Data []byte

	// Container is a hint such as "mp3" or "wav"; normalizers sniff the
	// bytes regardless.
	Container string
}

// Synthesizer speaks text. Implementations must be safe for concurrent use.
type Synthesizer interface {
	Synthesize(ctx context.Context, text string, opts Options) (Audio, error)
}

// SynthesizerFunc adapts a function to Synthesizer.
type SynthesizerFunc func(ctx context.Context, text string, opts Options) (Audio, error)

// Synthesize calls f.
func (f SynthesizerFunc) Synthesize(ctx context.Context, text string, opts Options) (Audio, error) {
	return f(ctx, text, opts)
}
