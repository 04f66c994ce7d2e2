// Package audio holds the in-memory audio representation exchanged between the
// pronunciation pipeline and its collaborators, plus the PCM and WAV helpers
// needed to hand that audio to speech services.
//
// All audio inside elocute is mono. A [Waveform] is an ordered sequence of
// float32 amplitude samples in [-1.0, 1.0] with an associated sample rate.
package audio

import (
	"errors"
	"time"
)

// ErrEmptyWaveform is returned when a waveform carries no samples.
var ErrEmptyWaveform = errors.New("audio: waveform has no samples")

// ErrInvalidSampleRate is returned when a waveform's sample rate is not positive.
var ErrInvalidSampleRate = errors.New("audio: sample rate must be positive")

// Waveform is a mono sample buffer together with its sample rate.
// The zero value is an empty, invalid waveform.
type Waveform struct {
	// Samples are amplitudes in [-1.0, 1.0], one per frame.
	Samples []float32

	// SampleRate in Hz (e.g., 44100 for capture, 24000 for OpenAI speech).
	SampleRate int
}

// Validate reports whether w can be processed by downstream stages.
func (w Waveform) Validate() error {
	if w.SampleRate <= 0 {
		return ErrInvalidSampleRate
	}
	if len(w.Samples) == 0 {
		return ErrEmptyWaveform
	}
	return nil
}

// IsZero reports whether w carries no audio at all.
func (w Waveform) IsZero() bool {
	return len(w.Samples) == 0 && w.SampleRate == 0
}

// Duration returns the playback length of w. Returns 0 for invalid waveforms.
func (w Waveform) Duration() time.Duration {
	if w.SampleRate <= 0 {
		return 0
	}
	return time.Duration(len(w.Samples)) * time.Second / time.Duration(w.SampleRate)
}

// Clone returns a deep copy of w so the caller may retain it independently of
// the original sample slice.
func (w Waveform) Clone() Waveform {
	if w.Samples == nil {
		return Waveform{SampleRate: w.SampleRate}
	}
	s := make([]float32, len(w.Samples))
	copy(s, w.Samples)
	return Waveform{Samples: s, SampleRate: w.SampleRate}
}
