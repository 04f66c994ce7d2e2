// Package openai provides an STT transcriber backed by the OpenAI audio
// transcription API (whisper-1 and the gpt-4o transcribe models).
package openai

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	oai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/packages/param"

	"github.com/MrWong99/elocute/pkg/provider/stt"
)

// DefaultModel is the transcription model used when none is configured.
const DefaultModel = "whisper-1"

// Compile-time interface assertion.
var _ stt.Transcriber = (*Provider)(nil)

// Provider implements stt.Transcriber using the OpenAI API.
type Provider struct {
	client oai.Client
	model  string
}

// config holds optional configuration for the provider.
type config struct {
	baseURL string
	timeout time.Duration
}

// Option is a functional option for Provider.
type Option func(*config)

// WithBaseURL overrides the default OpenAI API base URL. Any
// OpenAI-compatible transcription endpoint works.
func WithBaseURL(url string) Option {
	return func(c *config) {
		c.baseURL = url
	}
}

// WithTimeout sets a per-request HTTP timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *config) {
		c.timeout = d
	}
}

// New constructs a new OpenAI STT Provider. An empty model selects
// [DefaultModel].
func New(apiKey string, model string, opts ...Option) (*Provider, error) {
	if apiKey == "" {
		return nil, errors.New("openai: apiKey must not be empty")
	}
	if model == "" {
		model = DefaultModel
	}

	cfg := &config{}
	for _, o := range opts {
		o(cfg)
	}

	reqOpts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithMaxRetries(0),
	}
	if cfg.baseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(cfg.baseURL))
	}
	if cfg.timeout > 0 {
		reqOpts = append(reqOpts, option.WithHTTPClient(&http.Client{
			Timeout: cfg.timeout,
		}))
	}

	return &Provider{client: oai.NewClient(reqOpts...), model: model}, nil
}

// Transcribe uploads wav to the transcription endpoint and returns the text.
func (p *Provider) Transcribe(ctx context.Context, wav []byte, cfg stt.Config) (stt.Transcript, error) {
	if len(wav) == 0 {
		return stt.Transcript{}, errors.New("openai: empty recording")
	}

	params := oai.AudioTranscriptionNewParams{
		File:  oai.File(bytes.NewReader(wav), "attempt.wav", "audio/wav"),
		Model: oai.AudioModel(p.model),
	}
	if cfg.Language != "" {
		params.Language = param.NewOpt(cfg.Language)
	}
	if cfg.Prompt != "" {
		params.Prompt = param.NewOpt(cfg.Prompt)
	}

	resp, err := p.client.Audio.Transcriptions.New(ctx, params)
	if err != nil {
		return stt.Transcript{}, fmt.Errorf("openai: transcription: %w", err)
	}

	return stt.Transcript{
		Text:     strings.TrimSpace(resp.Text),
		Language: cfg.Language,
	}, nil
}
