package audio

import "math"

// Convert changes p's channel count and sample rate to target. Stereo
// input is folded to mono before resampling, so stereo output carries the
// same signal on both channels.
func Convert(p PCM, target Format) PCM {
	if p.Format == target {
		return p
	}
	samples := Downmix(p.Samples, p.Format.Channels)
	samples = Resample(samples, p.Format.SampleRate, target.SampleRate)
	if target.Channels == 2 {
		samples = upmix(samples)
	}
	return PCM{Format: target, Samples: samples}
}

// Downmix averages interleaved channels into mono.
func Downmix(samples []int16, channels int) []int16 {
	if channels <= 1 {
		return samples
	}
	out := make([]int16, len(samples)/channels)
	for i := range out {
		sum := 0
		for c := 0; c < channels; c++ {
			sum += int(samples[i*channels+c])
		}
		out[i] = int16(sum / channels)
	}
	return out
}

func upmix(mono []int16) []int16 {
	out := make([]int16, 2*len(mono))
	for i, s := range mono {
		out[2*i] = s
		out[2*i+1] = s
	}
	return out
}

// Resample converts mono samples from inRate to outRate by linear
// interpolation. Good enough for speech; not for music.
func Resample(in []int16, inRate, outRate int) []int16 {
	if inRate == outRate || len(in) == 0 || inRate <= 0 || outRate <= 0 {
		return append([]int16(nil), in...)
	}
	ratio := float64(outRate) / float64(inRate)
	outLen := int(math.Round(float64(len(in)) * ratio))
	out := make([]int16, outLen)
	last := len(in) - 1
	for i := range out {
		pos := float64(i) / ratio
		i0 := int(pos)
		if i0 > last {
			i0 = last
		}
		i1 := min(i0+1, last)
		frac := pos - float64(i0)
		v := float64(in[i0])*(1-frac) + float64(in[i1])*frac
		out[i] = int16(max(math.MinInt16, min(math.MaxInt16, math.Round(v))))
	}
	return out
}
