// Package whisper provides whisper.cpp-backed STT transcribers.
//
// Provider talks to a running whisper-server binary, which exposes a REST API
// at POST /inference. NativeProvider loads a ggml model in-process through the
// whisper.cpp CGO bindings and skips the HTTP hop entirely.
//
// Both accept a WAV recording at any sample rate; it is resampled to the
// 16 kHz mono input whisper.cpp expects before inference.
//
// Usage:
//
//	p, err := whisper.New("http://localhost:8080", whisper.WithModel("base.en"))
//	tr, err := p.Transcribe(ctx, wav, stt.Config{Language: "en"})
package whisper

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/MrWong99/elocute/pkg/audio"
	"github.com/MrWong99/elocute/pkg/provider/stt"
)

const defaultLanguage = "en"

// Compile-time assertion that Provider implements stt.Transcriber.
var _ stt.Transcriber = (*Provider)(nil)

// Option is a functional option for configuring a Provider.
type Option func(*Provider)

// WithModel sets the model identifier forwarded to the whisper.cpp server
// (e.g., "base.en", "small"). When empty the server uses whichever model it
// was started with. This is the default.
func WithModel(model string) Option {
	return func(p *Provider) {
		p.model = model
	}
}

// WithLanguage sets the language code used when the request Config leaves
// Language empty. Defaults to "en".
func WithLanguage(lang string) Option {
	return func(p *Provider) {
		p.language = lang
	}
}

// WithHTTPClient replaces the default HTTP client (30 s timeout).
func WithHTTPClient(c *http.Client) Option {
	return func(p *Provider) {
		p.httpClient = c
	}
}

// Provider implements stt.Transcriber backed by a whisper.cpp HTTP server.
type Provider struct {
	serverURL  string
	model      string
	language   string
	httpClient *http.Client
}

// New creates a new Provider that connects to the whisper.cpp HTTP server at
// serverURL (e.g., "http://localhost:8080"). serverURL must be non-empty.
func New(serverURL string, opts ...Option) (*Provider, error) {
	if serverURL == "" {
		return nil, errors.New("whisper: serverURL must not be empty")
	}
	p := &Provider{
		serverURL:  strings.TrimRight(serverURL, "/"),
		language:   defaultLanguage,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
	for _, o := range opts {
		o(p)
	}
	return p, nil
}

// Transcribe resamples wav to 16 kHz and POSTs it to the /inference endpoint
// as multipart/form-data.
func (p *Provider) Transcribe(ctx context.Context, wav []byte, cfg stt.Config) (stt.Transcript, error) {
	w, err := toWhisperAudio(wav)
	if err != nil {
		return stt.Transcript{}, err
	}
	payload, err := audio.EncodeWAV(w)
	if err != nil {
		return stt.Transcript{}, fmt.Errorf("whisper: encode wav: %w", err)
	}

	lang := cfg.Language
	if lang == "" {
		lang = p.language
	}

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)

	fw, err := mw.CreateFormFile("file", "attempt.wav")
	if err != nil {
		return stt.Transcript{}, fmt.Errorf("whisper: create form file: %w", err)
	}
	if _, err := fw.Write(payload); err != nil {
		return stt.Transcript{}, fmt.Errorf("whisper: write wav data: %w", err)
	}

	fields := map[string]string{
		"language":        lang,
		"model":           p.model,
		"prompt":          cfg.Prompt,
		"response_format": "json",
	}
	for _, name := range []string{"language", "model", "prompt", "response_format"} {
		if fields[name] == "" {
			continue
		}
		if err := mw.WriteField(name, fields[name]); err != nil {
			return stt.Transcript{}, fmt.Errorf("whisper: write %s field: %w", name, err)
		}
	}
	if err := mw.Close(); err != nil {
		return stt.Transcript{}, fmt.Errorf("whisper: close multipart writer: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.serverURL+"/inference", &body)
	if err != nil {
		return stt.Transcript{}, fmt.Errorf("whisper: create request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return stt.Transcript{}, fmt.Errorf("whisper: http request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return stt.Transcript{}, fmt.Errorf("whisper: server returned HTTP %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	var result struct {
		Text string `json:"text"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return stt.Transcript{}, fmt.Errorf("whisper: parse JSON response: %w", err)
	}

	return stt.Transcript{
		Text:     strings.TrimSpace(result.Text),
		Language: lang,
		Duration: w.Duration(),
	}, nil
}
