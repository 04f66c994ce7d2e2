package stt

import "time"

// Transcript is the result of a batch transcription.
type Transcript struct {
	// Text is the transcribed speech content as returned by the provider.
	Text string

	// Language is the language the provider detected or was told to use.
	// May be empty if the provider does not report it.
	Language string

	// Duration is the length of the transcribed audio, when reported.
	Duration time.Duration
}
