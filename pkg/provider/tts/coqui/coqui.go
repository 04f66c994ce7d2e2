// Package coqui provides a local Coqui TTS-backed synthesizer that connects to
// either a standard Coqui TTS server or a Coqui XTTS v2 server via its REST
// API. It implements the tts.Synthesizer interface.
//
// Two API modes are supported:
//
//   - APIModeStandard (default): targets the standard Coqui TTS server
//     (ghcr.io/coqui-ai/tts-cpu). Synthesis is performed via GET /api/tts with
//     URL query parameters.
//
//   - APIModeXTTS: targets the Coqui XTTS v2 API server. Synthesis is performed
//     via POST /tts_to_audio/ with a JSON body and requires a speaker.
//
// Requests are paced by a token-bucket limiter so a shared CPU-bound server is
// not flooded when several practice sessions set references at once.
//
// Typical usage:
//
//	p, err := coqui.New("http://localhost:5002",
//	    coqui.WithSpeaker("p225"),
//	    coqui.WithRequestsPerMinute(30),
//	)
//	w, err := p.Synthesize(ctx, "The quick brown fox.", "en")
package coqui

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/MrWong99/elocute/pkg/audio"
	"github.com/MrWong99/elocute/pkg/provider/tts"
)

// Compile-time interface assertion.
var _ tts.Synthesizer = (*Provider)(nil)

const (
	defaultTimeout           = 30 * time.Second
	defaultRequestsPerMinute = 60
	ttsEndpoint              = "/tts_to_audio/"
	apiTTSEndpoint           = "/api/tts"
)

// APIMode selects which Coqui server API the provider will target.
type APIMode string

const (
	// APIModeXTTS targets the Coqui XTTS v2 API server (/tts_to_audio/).
	APIModeXTTS APIMode = "xtts"

	// APIModeStandard targets the standard Coqui TTS server (/api/tts).
	// This is the default mode.
	APIModeStandard APIMode = "standard"
)

// Option is a functional option for configuring a Coqui Provider.
type Option func(*Provider)

// WithSpeaker sets the speaker ID (standard mode, multi-speaker models) or the
// speaker_wav reference (XTTS mode).
func WithSpeaker(id string) Option {
	return func(p *Provider) {
		p.speaker = id
	}
}

// WithTimeout sets the per-request HTTP timeout. Defaults to 30 s.
func WithTimeout(d time.Duration) Option {
	return func(p *Provider) {
		p.httpClient.Timeout = d
	}
}

// WithAPIMode sets the server API mode.
func WithAPIMode(mode APIMode) Option {
	return func(p *Provider) {
		p.apiMode = mode
	}
}

// WithRequestsPerMinute caps the request rate sent to the server. Values <= 0
// disable the limiter. Defaults to 60.
func WithRequestsPerMinute(n int) Option {
	return func(p *Provider) {
		p.requestsPerMinute = n
	}
}

// Provider implements tts.Synthesizer backed by a locally-running Coqui TTS
// server. It is safe for concurrent use.
type Provider struct {
	serverURL         string
	speaker           string
	apiMode           APIMode
	requestsPerMinute int
	httpClient        *http.Client
	limiter           *rate.Limiter
}

// New creates a new Coqui Provider that targets the TTS server at serverURL
// (e.g., "http://localhost:5002"). serverURL must be non-empty.
func New(serverURL string, opts ...Option) (*Provider, error) {
	if serverURL == "" {
		return nil, errors.New("coqui: serverURL must not be empty")
	}
	p := &Provider{
		serverURL:         strings.TrimRight(serverURL, "/"),
		apiMode:           APIModeStandard,
		requestsPerMinute: defaultRequestsPerMinute,
		httpClient:        &http.Client{Timeout: defaultTimeout},
	}
	for _, o := range opts {
		o(p)
	}
	switch p.apiMode {
	case APIModeStandard:
	case APIModeXTTS:
		if p.speaker == "" {
			return nil, errors.New("coqui: speaker must not be empty in XTTS mode")
		}
	default:
		return nil, fmt.Errorf("coqui: unknown API mode %q", p.apiMode)
	}
	if p.requestsPerMinute > 0 {
		p.limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(p.requestsPerMinute)), 1)
	}
	return p, nil
}

// xttsRequest is the JSON body sent to POST /tts_to_audio/.
type xttsRequest struct {
	Text       string `json:"text"`
	SpeakerWav string `json:"speaker_wav"`
	Language   string `json:"language"`
}

// Synthesize waits for the rate limiter, issues one synthesis request and
// decodes the WAV response.
func (p *Provider) Synthesize(ctx context.Context, text, language string) (audio.Waveform, error) {
	if strings.TrimSpace(text) == "" {
		return audio.Waveform{}, errors.New("coqui: text must not be empty")
	}
	if p.limiter != nil {
		if err := p.limiter.Wait(ctx); err != nil {
			return audio.Waveform{}, fmt.Errorf("coqui: rate limit wait: %w", err)
		}
	}

	req, err := p.newRequest(ctx, text, language)
	if err != nil {
		return audio.Waveform{}, err
	}
	req.Header.Set("Accept", "audio/wav")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return audio.Waveform{}, fmt.Errorf("coqui: %s %s: %w", req.Method, req.URL.Path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return audio.Waveform{}, fmt.Errorf("coqui: %s %s returned status %d", req.Method, req.URL.Path, resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return audio.Waveform{}, fmt.Errorf("coqui: read WAV response: %w", err)
	}
	w, err := audio.DecodeWAV(data)
	if err != nil {
		return audio.Waveform{}, fmt.Errorf("coqui: %w", err)
	}
	if err := w.Validate(); err != nil {
		return audio.Waveform{}, fmt.Errorf("coqui: %w", err)
	}
	return w, nil
}

// newRequest builds the mode-specific synthesis request.
func (p *Provider) newRequest(ctx context.Context, text, language string) (*http.Request, error) {
	if p.apiMode == APIModeXTTS {
		body, err := json.Marshal(xttsRequest{Text: text, SpeakerWav: p.speaker, Language: language})
		if err != nil {
			return nil, fmt.Errorf("coqui: marshal tts request: %w", err)
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.serverURL+ttsEndpoint, bytes.NewReader(body))
		if err != nil {
			return nil, fmt.Errorf("coqui: create tts request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")
		return req, nil
	}

	params := url.Values{}
	params.Set("text", text)
	if p.speaker != "" {
		params.Set("speaker_id", p.speaker)
	}
	if language != "" {
		params.Set("language_id", language)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.serverURL+apiTTSEndpoint+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("coqui: create tts request: %w", err)
	}
	return req, nil
}
