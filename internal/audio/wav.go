package audio

import (
	"encoding/binary"
	"fmt"
	"math"
)

const (
	wavFormatPCM        = 1
	wavFormatFloat      = 3
	wavFormatExtensible = 0xFFFE

	wavHeaderSize = 44
)

// PCM is decoded 16-bit audio with interleaved channels.
type PCM struct {
	Format  Format
	Samples []int16
}

// Seconds returns the playing time of p.
func (p PCM) Seconds() float64 {
	if p.Format.SampleRate == 0 || p.Format.Channels == 0 {
		return 0
	}
	return float64(len(p.Samples)) / float64(p.Format.SampleRate*p.Format.Channels)
}

type wavInfo struct {
	format        uint16
	channels      uint16
	sampleRate    uint32
	bitsPerSample uint16
	subFormat     uint32
	data          []byte
}

// DecodeWAV parses a RIFF/WAVE file holding integer PCM (8, 16, 24 or
// 32 bit) or 32-bit float samples, and converts it to 16-bit PCM.
func DecodeWAV(b []byte) (PCM, error) {
	wi, err := readWAV(b)
	if err != nil {
		return PCM{}, err
	}
	samples, err := wi.toPCM16()
	if err != nil {
		return PCM{}, err
	}
	return PCM{
		Format:  Format{SampleRate: int(wi.sampleRate), Channels: int(wi.channels)},
		Samples: samples,
	}, nil
}

func readWAV(b []byte) (wavInfo, error) {
	var wi wavInfo
	if Detect(b) != ContainerWAV {
		return wi, fmt.Errorf("%w: not a WAV file", ErrUnsupportedFormat)
	}

	pos := 12
	var gotFmt, gotData bool
	for pos+8 <= len(b) {
		id := string(b[pos : pos+4])
		size := int(binary.LittleEndian.Uint32(b[pos+4 : pos+8]))
		pos += 8
		if size < 0 || pos+size > len(b) {
			// Streaming writers leave the data size unset; take what is there.
			if id == "data" {
				size = len(b) - pos
			} else {
				return wi, fmt.Errorf("%w: truncated %q chunk", ErrUnsupportedFormat, id)
			}
		}

		switch id {
		case "fmt ":
			if size < 16 {
				return wi, fmt.Errorf("%w: fmt chunk too small", ErrUnsupportedFormat)
			}
			c := b[pos : pos+size]
			wi.format = binary.LittleEndian.Uint16(c[0:2])
			wi.channels = binary.LittleEndian.Uint16(c[2:4])
			wi.sampleRate = binary.LittleEndian.Uint32(c[4:8])
			wi.bitsPerSample = binary.LittleEndian.Uint16(c[14:16])
			if wi.format == wavFormatExtensible && size >= 40 {
				wi.subFormat = binary.LittleEndian.Uint32(c[24:28])
			}
			gotFmt = true
		case "data":
			if !gotData {
				wi.data = b[pos : pos+size]
				gotData = true
			}
		}

		pos += size
		if pos%2 == 1 {
			pos++
		}
	}

	switch {
	case !gotFmt:
		return wi, fmt.Errorf("%w: no fmt chunk", ErrUnsupportedFormat)
	case !gotData:
		return wi, fmt.Errorf("%w: no data chunk", ErrUnsupportedFormat)
	case wi.channels == 0 || wi.sampleRate == 0 || wi.bitsPerSample == 0:
		return wi, fmt.Errorf("%w: bad header", ErrUnsupportedFormat)
	}
	return wi, nil
}

func (wi wavInfo) toPCM16() ([]int16, error) {
	code := wi.format
	if code == wavFormatExtensible {
		code = uint16(wi.subFormat)
	}
	d := wi.data

	switch {
	case code == wavFormatPCM && wi.bitsPerSample == 8:
		out := make([]int16, len(d))
		for i, v := range d {
			out[i] = int16(int(v)-128) << 8
		}
		return out, nil

	case code == wavFormatPCM && wi.bitsPerSample == 16:
		out := make([]int16, len(d)/2)
		for i := range out {
			out[i] = int16(binary.LittleEndian.Uint16(d[i*2:]))
		}
		return out, nil

	case code == wavFormatPCM && wi.bitsPerSample == 24:
		out := make([]int16, len(d)/3)
		for i := range out {
			v := int32(d[i*3]) | int32(d[i*3+1])<<8 | int32(d[i*3+2])<<16
			if v&0x800000 != 0 {
				v |= ^0xFFFFFF
			}
			out[i] = int16(v >> 8)
		}
		return out, nil

	case code == wavFormatPCM && wi.bitsPerSample == 32:
		out := make([]int16, len(d)/4)
		for i := range out {
			out[i] = int16(int32(binary.LittleEndian.Uint32(d[i*4:])) >> 16)
		}
		return out, nil

	case code == wavFormatFloat && wi.bitsPerSample == 32:
		out := make([]int16, len(d)/4)
		for i := range out {
			f := math.Float32frombits(binary.LittleEndian.Uint32(d[i*4:]))
			out[i] = int16(max(-1, min(1, f)) * math.MaxInt16)
		}
		return out, nil
	}

	return nil, fmt.Errorf("%w: WAV encoding %d with %d bits", ErrUnsupportedFormat, wi.format, wi.bitsPerSample)
}

// EncodeWAV serializes p as a canonical 44-byte-header PCM WAV file.
func EncodeWAV(p PCM) []byte {
	dataLen := len(p.Samples) * 2
	out := make([]byte, wavHeaderSize, wavHeaderSize+dataLen)
	putWAVHeader(out, dataLen, p.Format)
	for _, s := range p.Samples {
		out = binary.LittleEndian.AppendUint16(out, uint16(s))
	}
	return out
}

// WrapPCM prepends a WAV header to raw 16-bit little-endian PCM bytes.
func WrapPCM(raw []byte, f Format) []byte {
	out := make([]byte, wavHeaderSize, wavHeaderSize+len(raw))
	putWAVHeader(out, len(raw), f)
	return append(out, raw...)
}

func putWAVHeader(h []byte, dataLen int, f Format) {
	blockAlign := f.Channels * 2
	copy(h[0:4], "RIFF")
	binary.LittleEndian.PutUint32(h[4:8], uint32(36+dataLen))
	copy(h[8:12], "WAVE")
	copy(h[12:16], "fmt ")
	binary.LittleEndian.PutUint32(h[16:20], 16)
	binary.LittleEndian.PutUint16(h[20:22], wavFormatPCM)
	binary.LittleEndian.PutUint16(h[22:24], uint16(f.Channels))
	binary.LittleEndian.PutUint32(h[24:28], uint32(f.SampleRate))
	binary.LittleEndian.PutUint32(h[28:32], uint32(f.SampleRate*blockAlign))
	binary.LittleEndian.PutUint16(h[32:34], uint16(blockAlign))
	binary.LittleEndian.PutUint16(h[34:36], 16)
	copy(h[36:40], "data")
	binary.LittleEndian.PutUint32(h[40:44], uint32(dataLen))
}

// IsCanonicalWAV reports whether b is already a 16-bit PCM WAV in format f,
// in which case normalizers may return it untouched.
func IsCanonicalWAV(b []byte, f Format) bool {
	wi, err := readWAV(b)
	if err != nil {
		return false
	}
	return wi.format == wavFormatPCM && wi.bitsPerSample == 16 &&
		int(wi.sampleRate) == f.SampleRate && int(wi.channels) == f.Channels
}
