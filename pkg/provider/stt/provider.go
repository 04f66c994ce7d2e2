// Package stt defines the Transcriber interface for Speech-to-Text backends.
//
// A Transcriber wraps a batch transcription service (e.g., the OpenAI Whisper
// API, a local whisper.cpp server, or an in-process whisper.cpp model) and
// exposes a uniform interface: one complete recording in, one transcript out.
// Streaming recognition is intentionally out of scope; every practice attempt
// is a short, bounded recording.
//
// Implementations must be safe for concurrent use.
package stt

import "context"

// Config carries recognition hints for a single transcription request.
type Config struct {
	// Language is the ISO-639-1 language code of the spoken audio (e.g., "en").
	// An empty string lets the provider auto-detect the language, if supported.
	Language string

	// Prompt is optional context text that biases recognition toward expected
	// vocabulary. Providers that do not support prompting ignore it.
	Prompt string
}

// Transcriber is the abstraction over any batch STT backend.
type Transcriber interface {
	// Transcribe converts a complete RIFF/WAV recording into text.
	//
	// Returns an error if the provider cannot be reached, rejects the audio,
	// or ctx is cancelled. An empty Transcript.Text with a nil error means the
	// provider heard nothing intelligible; callers decide whether that is a
	// failure.
	Transcribe(ctx context.Context, wav []byte, cfg Config) (Transcript, error)
}
