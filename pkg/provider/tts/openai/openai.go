// Package openai provides a TTS synthesizer backed by the OpenAI speech API.
//
// Audio is requested in raw PCM format, which the API returns as 24 kHz
// 16-bit signed little-endian mono, so no container parsing is needed.
package openai

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	oai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/MrWong99/elocute/pkg/audio"
	"github.com/MrWong99/elocute/pkg/provider/tts"
)

const (
	// DefaultModel is the speech model used when none is configured.
	DefaultModel = "tts-1"

	// DefaultVoice is the voice used when none is configured.
	DefaultVoice = "alloy"

	// pcmSampleRate is the fixed rate of the API's "pcm" response format.
	pcmSampleRate = 24000
)

// Compile-time interface assertion.
var _ tts.Synthesizer = (*Provider)(nil)

// Provider implements tts.Synthesizer using the OpenAI API.
type Provider struct {
	client oai.Client
	model  string
	voice  string
	speed  float64
}

// config holds optional configuration for the provider.
type config struct {
	baseURL string
	voice   string
	speed   float64
	timeout time.Duration
}

// Option is a functional option for Provider.
type Option func(*config)

// WithBaseURL overrides the default OpenAI API base URL.
func WithBaseURL(url string) Option {
	return func(c *config) {
		c.baseURL = url
	}
}

// WithVoice selects the speaker voice (e.g., "alloy", "nova", "onyx").
func WithVoice(voice string) Option {
	return func(c *config) {
		c.voice = voice
	}
}

// WithSpeed sets the speaking rate in [0.25, 4.0]. Zero keeps the API
// default of 1.0.
func WithSpeed(speed float64) Option {
	return func(c *config) {
		c.speed = speed
	}
}

// WithTimeout sets a per-request HTTP timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *config) {
		c.timeout = d
	}
}

// New constructs a new OpenAI TTS Provider. An empty model selects
// [DefaultModel].
func New(apiKey string, model string, opts ...Option) (*Provider, error) {
	if apiKey == "" {
		return nil, errors.New("openai: apiKey must not be empty")
	}
	if model == "" {
		model = DefaultModel
	}

	cfg := &config{voice: DefaultVoice}
	for _, o := range opts {
		o(cfg)
	}
	if cfg.speed != 0 && (cfg.speed < 0.25 || cfg.speed > 4.0) {
		return nil, fmt.Errorf("openai: speed %.2f out of range [0.25, 4.0]", cfg.speed)
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

	return &Provider{
		client: oai.NewClient(reqOpts...),
		model:  model,
		voice:  cfg.voice,
		speed:  cfg.speed,
	}, nil
}

// Synthesize requests PCM speech for text. The speech API infers the language
// from the text itself, so language is informational only.
func (p *Provider) Synthesize(ctx context.Context, text, _ string) (audio.Waveform, error) {
	if strings.TrimSpace(text) == "" {
		return audio.Waveform{}, errors.New("openai: text must not be empty")
	}

	params := oai.AudioSpeechNewParams{
		Input:          text,
		Model:          oai.SpeechModel(p.model),
		Voice:          oai.AudioSpeechNewParamsVoice(p.voice),
		ResponseFormat: oai.AudioSpeechNewParamsResponseFormatPCM,
	}
	if p.speed != 0 {
		params.Speed = oai.Float(p.speed)
	}

	resp, err := p.client.Audio.Speech.New(ctx, params)
	if err != nil {
		return audio.Waveform{}, fmt.Errorf("openai: speech: %w", err)
	}
	defer resp.Body.Close()

	pcm, err := io.ReadAll(resp.Body)
	if err != nil {
		return audio.Waveform{}, fmt.Errorf("openai: read speech body: %w", err)
	}
	w := audio.Waveform{Samples: audio.PCM16ToFloat32(pcm), SampleRate: pcmSampleRate}
	if err := w.Validate(); err != nil {
		return audio.Waveform{}, fmt.Errorf("openai: %w", err)
	}
	return w, nil
}
