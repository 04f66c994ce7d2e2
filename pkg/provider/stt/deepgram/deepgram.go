// Package deepgram provides a Deepgram-backed STT transcriber using the
// Deepgram pre-recorded audio API (POST /v1/listen).
package deepgram

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

	"github.com/MrWong99/elocute/pkg/provider/stt"
)

const (
	defaultEndpoint = "https://api.deepgram.com/v1/listen"
	defaultModel    = "nova-3"
	defaultLanguage = "en"
)

// Compile-time assertion that Provider implements stt.Transcriber.
var _ stt.Transcriber = (*Provider)(nil)

// Option is a functional option for configuring the Deepgram Provider.
type Option func(*Provider)

// WithModel sets the Deepgram model to use (e.g., "nova-3", "base").
func WithModel(model string) Option {
	return func(p *Provider) {
		p.model = model
	}
}

// WithLanguage sets the BCP-47 language code used when the request Config
// leaves Language empty (e.g., "en", "en-GB").
func WithLanguage(language string) Option {
	return func(p *Provider) {
		p.language = language
	}
}

// WithEndpoint overrides the listen endpoint. Intended for tests and proxies.
func WithEndpoint(endpoint string) Option {
	return func(p *Provider) {
		p.endpoint = endpoint
	}
}

// WithTimeout sets the HTTP client timeout. Defaults to 30 s.
func WithTimeout(d time.Duration) Option {
	return func(p *Provider) {
		p.httpClient.Timeout = d
	}
}

// Provider implements stt.Transcriber backed by the Deepgram REST API.
type Provider struct {
	apiKey     string
	model      string
	language   string
	endpoint   string
	httpClient *http.Client
}

// New creates a new Deepgram Provider. apiKey must be non-empty.
func New(apiKey string, opts ...Option) (*Provider, error) {
	if apiKey == "" {
		return nil, errors.New("deepgram: apiKey must not be empty")
	}
	p := &Provider{
		apiKey:     apiKey,
		model:      defaultModel,
		language:   defaultLanguage,
		endpoint:   defaultEndpoint,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
	for _, o := range opts {
		o(p)
	}
	return p, nil
}

// Transcribe uploads wav as the request body and returns the first
// alternative of the first channel.
func (p *Provider) Transcribe(ctx context.Context, wav []byte, cfg stt.Config) (stt.Transcript, error) {
	if len(wav) == 0 {
		return stt.Transcript{}, errors.New("deepgram: empty audio")
	}
	lang := cfg.Language
	if lang == "" {
		lang = p.language
	}
	reqURL, err := p.buildURL(lang, cfg.Prompt)
	if err != nil {
		return stt.Transcript{}, fmt.Errorf("deepgram: build URL: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, reqURL, bytes.NewReader(wav))
	if err != nil {
		return stt.Transcript{}, fmt.Errorf("deepgram: create request: %w", err)
	}
	req.Header.Set("Authorization", "Token "+p.apiKey)
	req.Header.Set("Content-Type", "audio/wav")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return stt.Transcript{}, fmt.Errorf("deepgram: http request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return stt.Transcript{}, fmt.Errorf("deepgram: server returned HTTP %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return stt.Transcript{}, fmt.Errorf("deepgram: read response: %w", err)
	}
	tr, err := parseResponse(body)
	if err != nil {
		return stt.Transcript{}, err
	}
	if tr.Language == "" {
		tr.Language = lang
	}
	return tr, nil
}

// buildURL constructs the listen endpoint URL. Words in prompt are sent as
// key terms so the expected sentence biases recognition.
func (p *Provider) buildURL(lang, prompt string) (string, error) {
	u, err := url.Parse(p.endpoint)
	if err != nil {
		return "", err
	}

	q := u.Query()
	q.Set("model", p.model)
	q.Set("language", lang)
	q.Set("punctuate", "true")
	q.Set("smart_format", "true")
	for _, term := range strings.Fields(prompt) {
		q.Add("keyterm", term)
	}

	u.RawQuery = q.Encode()
	return u.String(), nil
}

// listenResponse is the subset of the pre-recorded response we read.
type listenResponse struct {
	Metadata struct {
		Duration float64 `json:"duration"`
	} `json:"metadata"`
	Results struct {
		Channels []struct {
			DetectedLanguage string `json:"detected_language"`
			Alternatives     []struct {
				Transcript string  `json:"transcript"`
				Confidence float64 `json:"confidence"`
			} `json:"alternatives"`
		} `json:"channels"`
	} `json:"results"`
}

// parseResponse decodes a listen response into a Transcript. A response with
// no channels or alternatives is an error; an empty transcript is not.
func parseResponse(data []byte) (stt.Transcript, error) {
	var resp listenResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return stt.Transcript{}, fmt.Errorf("deepgram: parse JSON response: %w", err)
	}
	if len(resp.Results.Channels) == 0 || len(resp.Results.Channels[0].Alternatives) == 0 {
		return stt.Transcript{}, errors.New("deepgram: response has no transcript alternatives")
	}

	ch := resp.Results.Channels[0]
	return stt.Transcript{
		Text:     strings.TrimSpace(ch.Alternatives[0].Transcript),
		Language: ch.DetectedLanguage,
		Duration: time.Duration(resp.Metadata.Duration * float64(time.Second)),
	}, nil
}
