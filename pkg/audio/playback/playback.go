// Package playback plays [audio.Waveform] values through the system's default
// output device using oto.
//
// oto permits a single context per process, so a [Speaker] is created once
// and shared. Waveforms at other sample rates are resampled to the speaker's
// rate before playback.
package playback

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ebitengine/oto/v3"

	"github.com/MrWong99/elocute/pkg/audio"
)

// DefaultSampleRate is the output rate used when none is configured.
const DefaultSampleRate = 44100

// pollInterval is how often Play checks whether the device drained.
const pollInterval = 20 * time.Millisecond

// Player plays a waveform to completion or until ctx is cancelled.
type Player interface {
	Play(ctx context.Context, w audio.Waveform) error
}

// Speaker is a [Player] backed by the default audio output device.
type Speaker struct {
	otoCtx     *oto.Context
	sampleRate int
}

// NewSpeaker opens the default output device at sampleRate (mono, 16-bit).
// A sampleRate of 0 selects [DefaultSampleRate].
func NewSpeaker(sampleRate int) (*Speaker, error) {
	if sampleRate == 0 {
		sampleRate = DefaultSampleRate
	}
	if sampleRate < 0 {
		return nil, audio.ErrInvalidSampleRate
	}

	op := &oto.NewContextOptions{
		SampleRate:   sampleRate,
		ChannelCount: 1,
		Format:       oto.FormatSignedInt16LE,
	}
	otoCtx, ready, err := oto.NewContext(op)
	if err != nil {
		return nil, fmt.Errorf("playback: open output device: %w", err)
	}
	<-ready

	return &Speaker{otoCtx: otoCtx, sampleRate: sampleRate}, nil
}

// Play blocks until w has been played or ctx is cancelled. On cancellation
// playback stops immediately and ctx.Err() is returned.
func (s *Speaker) Play(ctx context.Context, w audio.Waveform) error {
	pcm, err := Prepare(w, s.sampleRate)
	if err != nil {
		return err
	}

	p := s.otoCtx.NewPlayer(bytes.NewReader(pcm))
	if p == nil {
		return errors.New("playback: failed to create player")
	}
	defer p.Close()

	p.Play()

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()
	for p.IsPlaying() {
		select {
		case <-ctx.Done():
			p.Pause()
			return ctx.Err()
		case <-ticker.C:
		}
	}
	return nil
}

// Prepare validates w, resamples it to rate and returns 16-bit little-endian
// PCM ready for the output device.
func Prepare(w audio.Waveform, rate int) ([]byte, error) {
	if err := w.Validate(); err != nil {
		return nil, fmt.Errorf("playback: %w", err)
	}
	return audio.Float32ToPCM16(audio.Resample(w, rate).Samples), nil
}

// Compile-time interface assertion.
var _ Player = (*Speaker)(nil)
