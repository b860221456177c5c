package native

import (
	"context"
	"encoding/binary"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/echomate/echomate/internal/audio"
)

func newTestNormalizer(cfg Config) *Normalizer {
	cfg.defaults()
	return &Normalizer{config: cfg, logger: slog.New(slog.NewTextHandler(io.Discard, nil))}
}

func ramp(n int) []int16 {
	out := make([]int16, n)
	for i := range out {
		out[i] = int16(i % 1000)
	}
	return out
}

func TestConfigure(t *testing.T) {
	var node yaml.Node
	require.NoError(t, yaml.Unmarshal([]byte("raw_input:\n  sample_rate: 8000\n  channels: 1\n"), &node))

	n := &Normalizer{}
	require.NoError(t, n.Configure(node.Content[0]))
	assert.Equal(t, 2*time.Minute, n.config.MaxDuration)
	require.NotNil(t, n.config.RawInput)
	assert.Equal(t, 8000, n.config.RawInput.SampleRate)
	assert.NoError(t, n.Validate())
}

func TestValidate_BadRawInput(t *testing.T) {
	c := Config{RawInput: &RawFormat{SampleRate: 16000, Channels: 3}}
	assert.Error(t, c.validate())
}

func TestNormalize_CanonicalPassThrough(t *testing.T) {
	in := audio.EncodeWAV(audio.PCM{Format: audio.Canonical, Samples: ramp(1600)})

	out, err := newTestNormalizer(Config{}).Normalize(context.Background(), in, audio.Canonical)
	require.NoError(t, err)
	assert.Equal(t, in, out)
}

func TestNormalize_StereoWAV(t *testing.T) {
	stereo := audio.PCM{Format: audio.Format{SampleRate: 44100, Channels: 2}, Samples: ramp(2 * 4410)}
	in := audio.EncodeWAV(stereo)

	out, err := newTestNormalizer(Config{}).Normalize(context.Background(), in, audio.Canonical)
	require.NoError(t, err)
	assert.True(t, audio.IsCanonicalWAV(out, audio.Canonical))

	pcm, err := audio.DecodeWAV(out)
	require.NoError(t, err)
	assert.InDelta(t, 0.1, pcm.Seconds(), 0.01)
}

func TestNormalize_Empty(t *testing.T) {
	_, err := newTestNormalizer(Config{}).Normalize(context.Background(), nil, audio.Canonical)
	assert.ErrorIs(t, err, audio.ErrEmptyInput)
}

func TestNormalize_EmptyWAV(t *testing.T) {
	in := audio.EncodeWAV(audio.PCM{Format: audio.Format{SampleRate: 8000, Channels: 1}})
	_, err := newTestNormalizer(Config{}).Normalize(context.Background(), in, audio.Canonical)
	assert.ErrorIs(t, err, audio.ErrEmptyInput)
}

func TestNormalize_UnknownContainer(t *testing.T) {
	_, err := newTestNormalizer(Config{}).Normalize(context.Background(), []byte("OggSxxxxxxxx"), audio.Canonical)
	assert.ErrorIs(t, err, audio.ErrUnsupportedFormat)
}

func TestNormalize_BrokenMP3(t *testing.T) {
	_, err := newTestNormalizer(Config{}).Normalize(context.Background(), []byte("ID3\x03\x00\x00garbage"), audio.Canonical)
	assert.Error(t, err)
}

func TestNormalize_RawInput(t *testing.T) {
	raw := make([]byte, 0, 2*800+1)
	for _, s := range ramp(800) {
		raw = binary.LittleEndian.AppendUint16(raw, uint16(s))
	}
	raw = append(raw, 0x01)

	n := newTestNormalizer(Config{RawInput: &RawFormat{SampleRate: 8000, Channels: 1}})
	out, err := n.Normalize(context.Background(), raw, audio.Canonical)
	require.NoError(t, err)

	pcm, err := audio.DecodeWAV(out)
	require.NoError(t, err)
	assert.Equal(t, audio.Canonical, pcm.Format)
	assert.InDelta(t, 0.1, pcm.Seconds(), 0.01)
}

func TestNormalize_MaxDuration(t *testing.T) {
	n := newTestNormalizer(Config{MaxDuration: 50 * time.Millisecond})

	long := audio.EncodeWAV(audio.PCM{Format: audio.Format{SampleRate: 8000, Channels: 1}, Samples: ramp(8000)})
	_, err := n.Normalize(context.Background(), long, audio.Canonical)
	assert.ErrorIs(t, err, audio.ErrUnsupportedFormat)

	canonical := audio.EncodeWAV(audio.PCM{Format: audio.Canonical, Samples: ramp(16000)})
	_, err = n.Normalize(context.Background(), canonical, audio.Canonical)
	assert.ErrorIs(t, err, audio.ErrUnsupportedFormat)
}

func TestNormalize_InvalidTarget(t *testing.T) {
	in := audio.EncodeWAV(audio.PCM{Format: audio.Canonical, Samples: ramp(10)})
	_, err := newTestNormalizer(Config{}).Normalize(context.Background(), in, audio.Format{})
	assert.Error(t, err)
}

func TestDecodeRaw_DropsPartialFrame(t *testing.T) {
	pcm := decodeRaw([]byte{1, 0, 2, 0, 3}, audio.Format{SampleRate: 8000, Channels: 2})
	assert.Equal(t, []int16{1, 2}, pcm.Samples)
}

func TestCtxReader_Canceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := (&ctxReader{ctx: ctx, r: nil}).Read(make([]byte, 4))
	assert.ErrorIs(t, err, context.Canceled)
}
