// Package audio holds the canonical PCM format, a small WAV codec and the
// normalizer contract every audio engine implements.
package audio

import (
	"context"
	"errors"
	"fmt"
	"time"
)

var (
	// ErrUnsupportedFormat is returned for input a normalizer cannot decode.
	ErrUnsupportedFormat = errors.New("unsupported audio format")

	// ErrEmptyInput is returned when there is no audio to process.
	ErrEmptyInput = errors.New("empty audio input")
)

// Format describes 16-bit little-endian PCM.
type Format struct {
	SampleRate int
	Channels   int
}

// Canonical is the format the recognizer consumes and the client plays:
// 16 kHz mono.
var Canonical = Format{SampleRate: 16000, Channels: 1}

func (f Format) String() string {
	return fmt.Sprintf("pcm_s16le %dHz %dch", f.SampleRate, f.Channels)
}

// Validate reports whether f can be produced.
func (f Format) Validate() error {
	if f.SampleRate <= 0 {
		return fmt.Errorf("audio: sample rate must be positive, got %d", f.SampleRate)
	}
	if f.Channels < 1 || f.Channels > 2 {
		return fmt.Errorf("audio: channels must be 1 or 2, got %d", f.Channels)
	}
	return nil
}

// BytesPerSecond is the PCM data rate of f.
func (f Format) BytesPerSecond() int {
	return f.SampleRate * f.Channels * 2
}

// Normalizer converts arbitrary client or engine audio (WAV in any common
// encoding, MP3, ...) into a WAV file holding PCM in the target format.
// Implementations must be safe for concurrent use.
type Normalizer interface {
	Normalize(ctx context.Context, data []byte, target Format) ([]byte, error)
}

// NormalizerFunc adapts a function to Normalizer.
type NormalizerFunc func(ctx context.Context, data []byte, target Format) ([]byte, error)

// Normalize calls f.
func (f NormalizerFunc) Normalize(ctx context.Context, data []byte, target Format) ([]byte, error) {
	return f(ctx, data, target)
}

// Container identifies an encoded audio payload.
type Container string

// Recognized containers.
const (
	ContainerUnknown Container = ""
	ContainerWAV     Container = "wav"
	ContainerMP3     Container = "mp3"
	ContainerOgg     Container = "ogg"
)

// Detect sniffs the container from the leading bytes.
func Detect(b []byte) Container {
	switch {
	case len(b) >= 12 && string(b[0:4]) == "RIFF" && string(b[8:12]) == "WAVE":
		return ContainerWAV
	case len(b) >= 3 && string(b[:3]) == "ID3",
		len(b) >= 2 && b[0] == 0xFF && b[1]&0xE0 == 0xE0:
		return ContainerMP3
	case len(b) >= 4 && string(b[:4]) == "OggS":
		return ContainerOgg
	default:
		return ContainerUnknown
	}
}

// Duration returns the playing time of n bytes of PCM in format f.
func Duration(n int, f Format) time.Duration {
	bps := f.BytesPerSecond()
	if bps == 0 {
		return 0
	}
	return time.Duration(int64(n) * int64(time.Second) / int64(bps))
}
