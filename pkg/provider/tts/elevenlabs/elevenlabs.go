// Package elevenlabs provides an ElevenLabs-backed TTS synthesizer using the
// ElevenLabs text-to-speech REST API with raw PCM output.
package elevenlabs

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/MrWong99/elocute/pkg/audio"
	"github.com/MrWong99/elocute/pkg/provider/tts"
)

const (
	defaultBaseURL   = "https://api.elevenlabs.io"
	defaultModel     = "eleven_flash_v2_5"
	defaultOutputFmt = "pcm_16000"
)

// Compile-time interface assertion.
var _ tts.Synthesizer = (*Provider)(nil)

// Option is a functional option for configuring the ElevenLabs Provider.
type Option func(*Provider)

// WithModel sets the ElevenLabs model ID (e.g., "eleven_flash_v2_5").
func WithModel(model string) Option {
	return func(p *Provider) {
		p.model = model
	}
}

// WithOutputFormat sets the PCM output format (e.g., "pcm_16000", "pcm_24000").
// Only pcm_* formats are accepted.
func WithOutputFormat(format string) Option {
	return func(p *Provider) {
		p.outputFormat = format
	}
}

// WithBaseURL overrides the API base URL.
func WithBaseURL(u string) Option {
	return func(p *Provider) {
		p.baseURL = strings.TrimRight(u, "/")
	}
}

// WithVoiceSettings sets stability and similarity boost, both in [0, 1].
func WithVoiceSettings(stability, similarityBoost float64) Option {
	return func(p *Provider) {
		p.settings = voiceSettings{Stability: stability, SimilarityBoost: similarityBoost}
	}
}

// WithTimeout sets the HTTP client timeout. Defaults to 30 s.
func WithTimeout(d time.Duration) Option {
	return func(p *Provider) {
		p.httpClient.Timeout = d
	}
}

// Provider implements tts.Synthesizer backed by the ElevenLabs API.
type Provider struct {
	apiKey       string
	voiceID      string
	model        string
	outputFormat string
	sampleRate   int
	baseURL      string
	settings     voiceSettings
	httpClient   *http.Client
}

// New creates a new ElevenLabs Provider speaking with voiceID. apiKey and
// voiceID must be non-empty.
func New(apiKey, voiceID string, opts ...Option) (*Provider, error) {
	if apiKey == "" {
		return nil, errors.New("elevenlabs: apiKey must not be empty")
	}
	if voiceID == "" {
		return nil, errors.New("elevenlabs: voiceID must not be empty")
	}
	p := &Provider{
		apiKey:       apiKey,
		voiceID:      voiceID,
		model:        defaultModel,
		outputFormat: defaultOutputFmt,
		baseURL:      defaultBaseURL,
		settings:     voiceSettings{Stability: 0.5, SimilarityBoost: 0.75},
		httpClient:   &http.Client{Timeout: 30 * time.Second},
	}
	for _, o := range opts {
		o(p)
	}
	rate, err := pcmRate(p.outputFormat)
	if err != nil {
		return nil, err
	}
	p.sampleRate = rate
	return p, nil
}

// voiceSettings mirrors the ElevenLabs voice_settings object.
type voiceSettings struct {
	Stability       float64 `json:"stability"`
	SimilarityBoost float64 `json:"similarity_boost"`
}

// speechRequest is the JSON body of POST /v1/text-to-speech/{voice_id}.
type speechRequest struct {
	Text          string        `json:"text"`
	ModelID       string        `json:"model_id"`
	LanguageCode  string        `json:"language_code,omitempty"`
	VoiceSettings voiceSettings `json:"voice_settings"`
}

// Synthesize renders text as mono PCM at the rate implied by the output format.
func (p *Provider) Synthesize(ctx context.Context, text, language string) (audio.Waveform, error) {
	if strings.TrimSpace(text) == "" {
		return audio.Waveform{}, errors.New("elevenlabs: text must not be empty")
	}

	body, err := json.Marshal(speechRequest{
		Text:          text,
		ModelID:       p.model,
		LanguageCode:  language,
		VoiceSettings: p.settings,
	})
	if err != nil {
		return audio.Waveform{}, fmt.Errorf("elevenlabs: encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.speechURL(), bytes.NewReader(body))
	if err != nil {
		return audio.Waveform{}, fmt.Errorf("elevenlabs: create request: %w", err)
	}
	req.Header.Set("xi-api-key", p.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return audio.Waveform{}, fmt.Errorf("elevenlabs: http request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return audio.Waveform{}, fmt.Errorf("elevenlabs: server returned HTTP %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	pcm, err := io.ReadAll(resp.Body)
	if err != nil {
		return audio.Waveform{}, fmt.Errorf("elevenlabs: read audio: %w", err)
	}
	w := audio.Waveform{Samples: audio.PCM16ToFloat32(pcm), SampleRate: p.sampleRate}
	if err := w.Validate(); err != nil {
		return audio.Waveform{}, fmt.Errorf("elevenlabs: %w", err)
	}
	return w, nil
}

// speechURL builds the synthesis endpoint for the configured voice.
func (p *Provider) speechURL() string {
	q := url.Values{"output_format": {p.outputFormat}}
	return p.baseURL + "/v1/text-to-speech/" + url.PathEscape(p.voiceID) + "?" + q.Encode()
}

// pcmRate extracts the sample rate from a "pcm_<rate>" output format.
func pcmRate(format string) (int, error) {
	rest, ok := strings.CutPrefix(format, "pcm_")
	if !ok {
		return 0, fmt.Errorf("elevenlabs: output format %q is not raw PCM", format)
	}
	rate, err := strconv.Atoi(rest)
	if err != nil || rate <= 0 {
		return 0, fmt.Errorf("elevenlabs: invalid sample rate in output format %q", format)
	}
	return rate, nil
}
