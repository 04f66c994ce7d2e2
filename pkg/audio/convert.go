package audio

import "encoding/binary"

// PCM16ToFloat32 converts 16-bit signed little-endian PCM audio to float32
// samples normalised to the range [-1.0, 1.0]. Any trailing odd byte is
// silently ignored.
func PCM16ToFloat32(pcm []byte) []float32 {
	n := len(pcm) / 2
	samples := make([]float32, n)
	for i := range n {
		sample := int16(binary.LittleEndian.Uint16(pcm[i*2 : i*2+2]))
		samples[i] = float32(sample) / 32768.0
	}
	return samples
}

// Float32ToPCM16 converts float32 samples to 16-bit signed little-endian PCM.
// Samples outside [-1.0, 1.0] are clamped.
func Float32ToPCM16(samples []float32) []byte {
	out := make([]byte, len(samples)*2)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(out[i*2:], uint16(floatToInt16(s)))
	}
	return out
}

// floatToInt16 scales a normalised sample to the int16 range with clamping.
func floatToInt16(s float32) int16 {
	v := s * 32768.0
	switch {
	case v > 32767:
		return 32767
	case v < -32768:
		return -32768
	}
	return int16(v)
}

// DownmixToMono averages interleaved multi-channel samples into a single
// channel. If channels is 1 or less the input is returned unchanged.
func DownmixToMono(samples []float32, channels int) []float32 {
	if channels <= 1 {
		return samples
	}
	frames := len(samples) / channels
	mono := make([]float32, frames)
	for i := range frames {
		var sum float32
		for ch := range channels {
			sum += samples[i*channels+ch]
		}
		mono[i] = sum / float32(channels)
	}
	return mono
}

// Resample converts w to dstRate using linear interpolation. If the rates
// already match, or either rate is invalid, w is returned unchanged. The
// result is always labelled with dstRate otherwise, even for very short input.
func Resample(w Waveform, dstRate int) Waveform {
	if w.SampleRate <= 0 || dstRate <= 0 || w.SampleRate == dstRate {
		return w
	}
	srcSamples := len(w.Samples)
	dstSamples := int(int64(srcSamples) * int64(dstRate) / int64(w.SampleRate))
	if dstSamples == 0 {
		return Waveform{SampleRate: dstRate}
	}

	out := make([]float32, dstSamples)
	ratio := float64(w.SampleRate) / float64(dstRate)
	for i := range dstSamples {
		srcPos := float64(i) * ratio
		srcIdx := int(srcPos)
		frac := float32(srcPos - float64(srcIdx))

		s0 := w.Samples[srcIdx]
		s1 := s0
		if srcIdx+1 < srcSamples {
			s1 = w.Samples[srcIdx+1]
		}
		out[i] = s0*(1-frac) + s1*frac
	}
	return Waveform{Samples: out, SampleRate: dstRate}
}
