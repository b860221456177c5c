// Package native normalizes audio in-process: WAV in any common PCM or
// float encoding, MP3 through github.com/hajimehoshi/go-mp3, and
// optionally headerless PCM. No external tools are needed.
package native

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/echomate/echomate/internal/audio"
	"github.com/echomate/echomate/internal/core"
	"github.com/hajimehoshi/go-mp3"
	"gopkg.in/yaml.v3"
)

const moduleID = "audio.native"

func init() {
	core.RegisterModule(&Normalizer{})
}

// Config holds the native normalizer configuration.
type Config struct {
	// MaxDuration rejects longer clips. Defaults to 2m.
	MaxDuration time.Duration `yaml:"max_duration"`

	// RawInput, when set, makes headerless payloads decode as 16-bit
	// little-endian PCM in this format instead of being rejected.
	RawInput *RawFormat `yaml:"raw_input"`
}

// RawFormat describes headerless PCM input.
type RawFormat struct {
	SampleRate int `yaml:"sample_rate"`
	Channels   int `yaml:"channels"`
}

func (c *Config) defaults() {
	if c.MaxDuration == 0 {
		c.MaxDuration = 2 * time.Minute
	}
}

func (c *Config) validate() error {
	if c.MaxDuration < 0 {
		return fmt.Errorf("%s: max_duration must not be negative", moduleID)
	}
	if c.RawInput != nil {
		f := audio.Format{SampleRate: c.RawInput.SampleRate, Channels: c.RawInput.Channels}
		if err := f.Validate(); err != nil {
			return fmt.Errorf("%s: raw_input: %w", moduleID, err)
		}
	}
	return nil
}

// Normalizer is the audio.native module.
type Normalizer struct {
	config Config
	logger *slog.Logger
}

// ModuleInfo implements core.Module.
func (n *Normalizer) ModuleInfo() core.ModuleInfo {
	return core.ModuleInfo{
		ID:  moduleID,
		New: func() core.Module { return &Normalizer{} },
	}
}

// Configure implements core.Configurable.
func (n *Normalizer) Configure(node *yaml.Node) error {
	if err := node.Decode(&n.config); err != nil {
		return err
	}
	n.config.defaults()
	return nil
}

// Provision implements core.Provisioner.
func (n *Normalizer) Provision(ctx *core.AppContext) error {
	n.config.defaults()
	n.logger = ctx.Logger
	return nil
}

// Validate implements core.Validator.
func (n *Normalizer) Validate() error {
	return n.config.validate()
}

// Normalize implements audio.Normalizer.
func (n *Normalizer) Normalize(ctx context.Context, data []byte, target audio.Format) ([]byte, error) {
	if len(data) == 0 {
		return nil, audio.ErrEmptyInput
	}
	if err := target.Validate(); err != nil {
		return nil, err
	}
	if audio.IsCanonicalWAV(data, target) {
		return data, n.checkDuration(len(data), target)
	}

	var (
		pcm audio.PCM
		err error
	)
	switch c := audio.Detect(data); c {
	case audio.ContainerWAV:
		pcm, err = audio.DecodeWAV(data)
	case audio.ContainerMP3:
		pcm, err = decodeMP3(ctx, data)
	default:
		if n.config.RawInput == nil {
			return nil, fmt.Errorf("%w: %q container", audio.ErrUnsupportedFormat, c)
		}
		pcm = decodeRaw(data, audio.Format{SampleRate: n.config.RawInput.SampleRate, Channels: n.config.RawInput.Channels})
	}
	if err != nil {
		return nil, err
	}
	if len(pcm.Samples) == 0 {
		return nil, audio.ErrEmptyInput
	}
	if limit := n.config.MaxDuration; limit > 0 && pcm.Seconds() > limit.Seconds() {
		return nil, fmt.Errorf("%w: clip lasts %.1fs, limit %s", audio.ErrUnsupportedFormat, pcm.Seconds(), limit)
	}

	return audio.EncodeWAV(audio.Convert(pcm, target)), nil
}

func (n *Normalizer) checkDuration(size int, f audio.Format) error {
	if limit := n.config.MaxDuration; limit > 0 && audio.Duration(size, f) > limit {
		return fmt.Errorf("%w: clip longer than %s", audio.ErrUnsupportedFormat, limit)
	}
	return nil
}

// decodeMP3 decodes to 16-bit stereo, which is what go-mp3 always emits.
func decodeMP3(ctx context.Context, data []byte) (audio.PCM, error) {
	dec, err := mp3.NewDecoder(bytes.NewReader(data))
	if err != nil {
		return audio.PCM{}, fmt.Errorf("%w: mp3: %w", audio.ErrUnsupportedFormat, err)
	}

	raw, err := io.ReadAll(&ctxReader{ctx: ctx, r: dec})
	if err != nil {
		if ctx.Err() != nil {
			return audio.PCM{}, ctx.Err()
		}
		return audio.PCM{}, fmt.Errorf("%w: mp3: %w", audio.ErrUnsupportedFormat, err)
	}
	return decodeRaw(raw, audio.Format{SampleRate: dec.SampleRate(), Channels: 2}), nil
}

// decodeRaw reads 16-bit little-endian PCM, dropping a trailing partial
// frame.
func decodeRaw(raw []byte, f audio.Format) audio.PCM {
	frame := 2 * f.Channels
	raw = raw[:len(raw)-len(raw)%frame]
	samples := make([]int16, len(raw)/2)
	for i := range samples {
		samples[i] = int16(binary.LittleEndian.Uint16(raw[2*i:]))
	}
	return audio.PCM{Format: f, Samples: samples}
}

// ctxReader stops a long decode once the turn is canceled.
type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (c *ctxReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}

// Compile-time interface assertions.
var (
	_ core.Module       = (*Normalizer)(nil)
	_ core.Configurable = (*Normalizer)(nil)
	_ core.Provisioner  = (*Normalizer)(nil)
	_ core.Validator    = (*Normalizer)(nil)
	_ audio.Normalizer  = (*Normalizer)(nil)
)
