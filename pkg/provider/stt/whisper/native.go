// This file contains the NativeProvider implementation backed by the
// whisper.cpp CGO bindings. The whisper.cpp static library (libwhisper.a)
// and headers (whisper.h) must be available at link time via LIBRARY_PATH
// and C_INCLUDE_PATH environment variables.

package whisper

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"

	whisperlib "github.com/ggerganov/whisper.cpp/bindings/go/pkg/whisper"

	"github.com/MrWong99/elocute/pkg/provider/stt"
)

// Compile-time assertion that NativeProvider satisfies stt.Transcriber.
var _ stt.Transcriber = (*NativeProvider)(nil)

// NativeProvider implements stt.Transcriber using whisper.cpp Go bindings
// (CGO). The model is loaded once at startup; each Transcribe call creates a
// fresh whisper context from it.
type NativeProvider struct {
	model    whisperlib.Model
	language string

	// mu serialises inference on the shared model.
	mu sync.Mutex
}

// NativeOption is a functional option for configuring a NativeProvider.
type NativeOption func(*NativeProvider)

// WithNativeLanguage sets the language code used when the request Config
// leaves Language empty. Defaults to "en".
func WithNativeLanguage(lang string) NativeOption {
	return func(p *NativeProvider) { p.language = lang }
}

// NewNative creates a NativeProvider that loads the whisper.cpp model from
// the given file path. The caller must call Close when the provider is no
// longer needed.
func NewNative(modelPath string, opts ...NativeOption) (*NativeProvider, error) {
	if modelPath == "" {
		return nil, errors.New("whisper: modelPath must not be empty")
	}
	model, err := whisperlib.New(modelPath)
	if err != nil {
		return nil, fmt.Errorf("whisper: load model %q: %w", modelPath, err)
	}

	p := &NativeProvider{
		model:    model,
		language: defaultLanguage,
	}
	for _, o := range opts {
		o(p)
	}
	return p, nil
}

// Close releases the whisper model.
func (p *NativeProvider) Close() error {
	if p.model != nil {
		return p.model.Close()
	}
	return nil
}

// Transcribe resamples wav to 16 kHz, runs whisper.cpp inference on a fresh
// context and returns the concatenated segment text. whisper.cpp does not
// observe ctx mid-inference; cancellation is checked before and after.
func (p *NativeProvider) Transcribe(ctx context.Context, wav []byte, cfg stt.Config) (stt.Transcript, error) {
	if err := ctx.Err(); err != nil {
		return stt.Transcript{}, err
	}
	w, err := toWhisperAudio(wav)
	if err != nil {
		return stt.Transcript{}, err
	}

	lang := cfg.Language
	if lang == "" {
		lang = p.language
	}

	p.mu.Lock()
	text, err := p.infer(w.Samples, lang, cfg.Prompt)
	p.mu.Unlock()
	if err != nil {
		return stt.Transcript{}, err
	}
	if err := ctx.Err(); err != nil {
		return stt.Transcript{}, err
	}

	return stt.Transcript{Text: text, Language: lang, Duration: w.Duration()}, nil
}

// infer runs whisper.cpp on 16 kHz mono samples.
func (p *NativeProvider) infer(samples []float32, lang, prompt string) (string, error) {
	wctx, err := p.model.NewContext()
	if err != nil {
		return "", fmt.Errorf("whisper: create context: %w", err)
	}

	if err := wctx.SetLanguage(lang); err != nil {
		slog.Warn("whisper: failed to set language, using default", "language", lang, "error", err)
	}
	if prompt != "" {
		wctx.SetInitialPrompt(prompt)
	}

	if err := wctx.Process(samples, nil, nil, nil); err != nil {
		return "", fmt.Errorf("whisper: process audio: %w", err)
	}

	var parts []string
	for {
		segment, err := wctx.NextSegment()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return "", fmt.Errorf("whisper: read segment: %w", err)
		}
		if text := strings.TrimSpace(segment.Text); text != "" {
			parts = append(parts, text)
		}
	}
	return strings.Join(parts, " "), nil
}
