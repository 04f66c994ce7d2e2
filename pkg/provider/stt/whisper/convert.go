package whisper

import (
	"fmt"

	"github.com/MrWong99/elocute/pkg/audio"
)

// whisperSampleRate is the only input rate whisper.cpp accepts.
const whisperSampleRate = 16000

// toWhisperAudio decodes a WAV recording and resamples it to 16 kHz mono,
// the format whisper.cpp requires for both the server and the bindings.
func toWhisperAudio(wav []byte) (audio.Waveform, error) {
	w, err := audio.DecodeWAV(wav)
	if err != nil {
		return audio.Waveform{}, fmt.Errorf("whisper: decode recording: %w", err)
	}
	if err := w.Validate(); err != nil {
		return audio.Waveform{}, fmt.Errorf("whisper: %w", err)
	}
	return audio.Resample(w, whisperSampleRate), nil
}
