// Package mock provides a test double for the tts.Synthesizer interface.
//
// Example:
//
//	s := &mock.Synthesizer{Result: audio.Waveform{Samples: []float32{0.1}, SampleRate: 24000}}
//	w, _ := s.Synthesize(ctx, "hello", "en")
package mock

import (
	"context"
	"sync"

	"github.com/MrWong99/elocute/pkg/audio"
	"github.com/MrWong99/elocute/pkg/provider/tts"
)

// SynthesizeCall records a single invocation of Synthesizer.Synthesize.
type SynthesizeCall struct {
	// Text is the text passed to Synthesize.
	Text string
	// Language is the language passed to Synthesize.
	Language string
}

// Synthesizer is a mock implementation of tts.Synthesizer.
type Synthesizer struct {
	mu sync.Mutex

	// Result is returned by Synthesize when Err is nil. A deep copy is handed
	// out on every call.
	Result audio.Waveform

	// Err, if non-nil, is returned by Synthesize.
	Err error

	// SynthesizeCalls records every call to Synthesize in order.
	SynthesizeCalls []SynthesizeCall
}

// Synthesize records the call and returns Result, Err.
func (s *Synthesizer) Synthesize(ctx context.Context, text, language string) (audio.Waveform, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.SynthesizeCalls = append(s.SynthesizeCalls, SynthesizeCall{Text: text, Language: language})
	if err := ctx.Err(); err != nil {
		return audio.Waveform{}, err
	}
	if s.Err != nil {
		return audio.Waveform{}, s.Err
	}
	return s.Result.Clone(), nil
}

// CallCount returns the number of Synthesize calls. Thread-safe.
func (s *Synthesizer) CallCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.SynthesizeCalls)
}

// Reset clears all recorded calls. Thread-safe.
func (s *Synthesizer) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.SynthesizeCalls = nil
}

// Ensure Synthesizer implements tts.Synthesizer at compile time.
var _ tts.Synthesizer = (*Synthesizer)(nil)
