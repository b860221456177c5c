package audio

import (
	"encoding/binary"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sine(n, rate int) []int16 {
	out := make([]int16, n)
	for i := range out {
		out[i] = int16(8000 * math.Sin(2*math.Pi*440*float64(i)/float64(rate)))
	}
	return out
}

func TestWAVRoundTrip(t *testing.T) {
	t.Parallel()

	in := PCM{Format: Canonical, Samples: sine(1600, 16000)}
	b := EncodeWAV(in)

	assert.Equal(t, ContainerWAV, Detect(b))
	assert.True(t, IsCanonicalWAV(b, Canonical))
	assert.Len(t, b, 44+2*1600)

	out, err := DecodeWAV(b)
	require.NoError(t, err)
	assert.Equal(t, in.Format, out.Format)
	assert.Equal(t, in.Samples, out.Samples)
	assert.InDelta(t, 0.1, out.Seconds(), 1e-9)
}

func TestDecodeWAV_8bit(t *testing.T) {
	t.Parallel()

	raw := []byte{128, 255, 0}
	b := make([]byte, 44)
	putWAVHeader(b, len(raw), Format{SampleRate: 8000, Channels: 1})
	binary.LittleEndian.PutUint16(b[34:36], 8)
	b = append(b, raw...)

	p, err := DecodeWAV(b)
	require.NoError(t, err)
	assert.Equal(t, []int16{0, 127 << 8, -128 << 8}, p.Samples)
}

func TestDecodeWAV_Float32(t *testing.T) {
	t.Parallel()

	var raw []byte
	for _, f := range []float32{0, 1, -1, 2} {
		raw = binary.LittleEndian.AppendUint32(raw, math.Float32bits(f))
	}
	b := make([]byte, 44)
	putWAVHeader(b, len(raw), Format{SampleRate: 22050, Channels: 1})
	binary.LittleEndian.PutUint16(b[20:22], wavFormatFloat)
	binary.LittleEndian.PutUint16(b[34:36], 32)
	b = append(b, raw...)

	p, err := DecodeWAV(b)
	require.NoError(t, err)
	assert.Equal(t, []int16{0, math.MaxInt16, -math.MaxInt16, math.MaxInt16}, p.Samples)
	assert.False(t, IsCanonicalWAV(b, Format{SampleRate: 22050, Channels: 1}))
}

func TestDecodeWAV_Rejects(t *testing.T) {
	t.Parallel()

	_, err := DecodeWAV([]byte("definitely not audio"))
	assert.True(t, errors.Is(err, ErrUnsupportedFormat))

	header := make([]byte, 12)
	copy(header, "RIFF")
	copy(header[8:], "WAVE")
	_, err = DecodeWAV(header)
	assert.True(t, errors.Is(err, ErrUnsupportedFormat), "missing chunks")
}

func TestDecodeWAV_UnsetDataSize(t *testing.T) {
	t.Parallel()

	b := EncodeWAV(PCM{Format: Canonical, Samples: []int16{1, 2, 3}})
	binary.LittleEndian.PutUint32(b[40:44], 0xFFFFFFFF)

	p, err := DecodeWAV(b)
	require.NoError(t, err)
	assert.Equal(t, []int16{1, 2, 3}, p.Samples)
}

func TestConvert_StereoToMonoAndResample(t *testing.T) {
	t.Parallel()

	stereo := PCM{
		Format:  Format{SampleRate: 48000, Channels: 2},
		Samples: make([]int16, 2*4800),
	}
	for i := 0; i < 4800; i++ {
		stereo.Samples[2*i] = 1000
		stereo.Samples[2*i+1] = 3000
	}

	out := Convert(stereo, Canonical)
	assert.Equal(t, Canonical, out.Format)
	assert.Len(t, out.Samples, 1600)
	assert.Equal(t, int16(2000), out.Samples[0])
	assert.Equal(t, int16(2000), out.Samples[len(out.Samples)-1])
}

func TestConvert_MonoToStereo(t *testing.T) {
	t.Parallel()

	out := Convert(PCM{Format: Canonical, Samples: []int16{5, 6}}, Format{SampleRate: 16000, Channels: 2})
	assert.Equal(t, []int16{5, 5, 6, 6}, out.Samples)
}

func TestConvert_NoOp(t *testing.T) {
	t.Parallel()

	in := PCM{Format: Canonical, Samples: []int16{1, 2}}
	assert.Equal(t, in, Convert(in, Canonical))
}

func TestResample_Length(t *testing.T) {
	t.Parallel()

	assert.Len(t, Resample(sine(2205, 22050), 22050, 16000), 1600)
	assert.Len(t, Resample(sine(800, 8000), 8000, 16000), 1600)
	assert.Empty(t, Resample(nil, 8000, 16000))
}

func TestDetect(t *testing.T) {
	t.Parallel()

	assert.Equal(t, ContainerMP3, Detect([]byte("ID3\x04\x00")))
	assert.Equal(t, ContainerMP3, Detect([]byte{0xFF, 0xFB, 0x90}))
	assert.Equal(t, ContainerOgg, Detect([]byte("OggS\x00")))
	assert.Equal(t, ContainerUnknown, Detect([]byte{0x00}))
}

func TestDurationAndValidate(t *testing.T) {
	t.Parallel()

	assert.Equal(t, time.Second, Duration(32000, Canonical))
	assert.NoError(t, Canonical.Validate())
	assert.Error(t, Format{SampleRate: 0, Channels: 1}.Validate())
	assert.Error(t, Format{SampleRate: 16000, Channels: 3}.Validate())
	assert.Equal(t, "pcm_s16le 16000Hz 1ch", Canonical.String())
}
