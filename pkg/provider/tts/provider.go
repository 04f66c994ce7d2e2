// Package tts defines the Synthesizer interface for Text-to-Speech backends.
//
// A Synthesizer wraps a speech synthesis service (e.g., the OpenAI speech API
// or a local Coqui TTS server) and turns one piece of text into one complete
// mono waveform. Practice sentences are short, so synthesis is batch rather
// than streamed.
//
// Implementations must be safe for concurrent use.
package tts

import (
	"context"

	"github.com/MrWong99/elocute/pkg/audio"
)

// Synthesizer is the abstraction over any TTS backend.
type Synthesizer interface {
	// Synthesize renders text as speech in the given language (ISO-639-1,
	// e.g., "en") and returns the decoded mono audio.
	//
	// Returns an error if the provider cannot be reached, rejects the request,
	// returns undecodable audio, or ctx is cancelled.
	Synthesize(ctx context.Context, text, language string) (audio.Waveform, error)
}
