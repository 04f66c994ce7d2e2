package resilience

import (
	"context"

	"github.com/MrWong99/elocute/pkg/audio"
	"github.com/MrWong99/elocute/pkg/provider/llm"
	"github.com/MrWong99/elocute/pkg/provider/stt"
	"github.com/MrWong99/elocute/pkg/provider/tts"
)

// Synthesizers renders the reference sentence with the first healthy
// text-to-speech backend.
type Synthesizers struct {
	chain *Chain[tts.Synthesizer]
}

var _ tts.Synthesizer = (*Synthesizers)(nil)

// NewSynthesizers chains backends in preference order.
func NewSynthesizers(backends []Backend[tts.Synthesizer], opts ...ChainOption) *Synthesizers {
	return &Synthesizers{chain: NewChain("tts", backends, opts...)}
}

// Synthesize implements [tts.Synthesizer]. A backend that answers with an
// empty waveform counts as failed.
func (s *Synthesizers) Synthesize(ctx context.Context, text, language string) (audio.Waveform, error) {
	return Call(ctx, s.chain, func(ctx context.Context, b tts.Synthesizer) (audio.Waveform, error) {
		w, err := b.Synthesize(ctx, text, language)
		if err == nil {
			err = w.Validate()
		}
		return w, err
	})
}

// Transcribers sends an attempt recording to the first healthy
// speech-to-text backend.
type Transcribers struct {
	chain *Chain[stt.Transcriber]
}

var _ stt.Transcriber = (*Transcribers)(nil)

// NewTranscribers chains backends in preference order.
func NewTranscribers(backends []Backend[stt.Transcriber], opts ...ChainOption) *Transcribers {
	return &Transcribers{chain: NewChain("stt", backends, opts...)}
}

// Transcribe implements [stt.Transcriber]. Every backend receives the same
// WAV bytes.
func (t *Transcribers) Transcribe(ctx context.Context, wav []byte, cfg stt.Config) (stt.Transcript, error) {
	return Call(ctx, t.chain, func(ctx context.Context, b stt.Transcriber) (stt.Transcript, error) {
		return b.Transcribe(ctx, wav, cfg)
	})
}

// FeedbackModels asks the first healthy language model for pronunciation
// feedback.
type FeedbackModels struct {
	chain *Chain[llm.Provider]
}

var _ llm.Provider = (*FeedbackModels)(nil)

// NewFeedbackModels chains backends in preference order.
func NewFeedbackModels(backends []Backend[llm.Provider], opts ...ChainOption) *FeedbackModels {
	return &FeedbackModels{chain: NewChain("llm", backends, opts...)}
}

// Complete implements [llm.Provider].
func (f *FeedbackModels) Complete(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	return Call(ctx, f.chain, func(ctx context.Context, b llm.Provider) (*llm.CompletionResponse, error) {
		return b.Complete(ctx, req)
	})
}
