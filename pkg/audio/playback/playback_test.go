package playback

import (
	"errors"
	"testing"

	"github.com/MrWong99/elocute/pkg/audio"
)

func TestPrepare_ResamplesToDeviceRate(t *testing.T) {
	w := audio.Waveform{Samples: make([]float32, 2400), SampleRate: 24000}
	pcm, err := Prepare(w, 48000)
	if err != nil {
		t.Fatalf("Prepare: %v", err)
	}
	if want := 4800 * 2; len(pcm) != want {
		t.Errorf("len(pcm) = %d, want %d", len(pcm), want)
	}
}

func TestPrepare_RejectsEmpty(t *testing.T) {
	_, err := Prepare(audio.Waveform{SampleRate: 24000}, 44100)
	if !errors.Is(err, audio.ErrEmptyWaveform) {
		t.Fatalf("err = %v, want ErrEmptyWaveform", err)
	}
}
