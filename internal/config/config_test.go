package config_test

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/MrWong99/elocute/internal/config"
	"github.com/MrWong99/elocute/pkg/audio/capture"
	capmock "github.com/MrWong99/elocute/pkg/audio/capture/mock"
	"github.com/MrWong99/elocute/pkg/provider/llm"
	llmmock "github.com/MrWong99/elocute/pkg/provider/llm/mock"
	"github.com/MrWong99/elocute/pkg/provider/stt"
	sttmock "github.com/MrWong99/elocute/pkg/provider/stt/mock"
	"github.com/MrWong99/elocute/pkg/provider/tts"
	ttsmock "github.com/MrWong99/elocute/pkg/provider/tts/mock"
)

// ── helpers ──────────────────────────────────────────────────────────────────

const sampleYAML = `
server:
  listen_addr: ":9090"
  log_level: info
  max_sessions: 32
  session_ttl: 30m

providers:
  stt:
    name: openai
    api_key: ${ELOCUTE_TEST_KEY}
    model: whisper-1
    fallbacks:
      - name: whisper
        base_url: http://localhost:8081
  tts:
    name: coqui
    base_url: http://localhost:5002
    options:
      speaker_id: p225
      speed: 1
  llm:
    name: openai
    api_key: ${ELOCUTE_TEST_KEY}
    model: gpt-4o-mini

practice:
  capture_seconds: 6.5
  sample_rate: 16000
  feedback_language: Korean
  feedback_temperature: 0.3
  capture:
    name: file
    options:
      path: attempt.wav
      realtime: true

telemetry:
  enabled: true
  service_name: elocute-test
`

// ── YAML loading ──────────────────────────────────────────────────────────────

func TestLoadFromReader_Valid(t *testing.T) {
	t.Setenv("ELOCUTE_TEST_KEY", "sk-secret")

	cfg, err := config.LoadFromReader(strings.NewReader(sampleYAML))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Server.Addr() != ":9090" {
		t.Errorf("server.listen_addr: got %q, want %q", cfg.Server.Addr(), ":9090")
	}
	if cfg.Server.LogLevel != config.LogInfo {
		t.Errorf("server.log_level: got %q, want %q", cfg.Server.LogLevel, config.LogInfo)
	}
	if cfg.Server.SessionTTL != 30*time.Minute {
		t.Errorf("server.session_ttl: got %s, want 30m", cfg.Server.SessionTTL)
	}
	if cfg.Providers.STT.APIKey != "sk-secret" {
		t.Errorf("providers.stt.api_key: got %q, want expanded value", cfg.Providers.STT.APIKey)
	}
	if len(cfg.Providers.STT.Fallbacks) != 1 || cfg.Providers.STT.Fallbacks[0].Name != "whisper" {
		t.Fatalf("providers.stt.fallbacks: got %+v", cfg.Providers.STT.Fallbacks)
	}
	if got := cfg.Providers.TTS.OptString("speaker_id"); got != "p225" {
		t.Errorf("tts speaker_id: got %q, want p225", got)
	}
	if got := cfg.Providers.TTS.OptFloat("speed"); got != 1 {
		t.Errorf("tts speed: got %v, want 1", got)
	}
	if got := cfg.Practice.CaptureDuration(); got != 6500*time.Millisecond {
		t.Errorf("capture duration: got %s, want 6.5s", got)
	}
	if cfg.Practice.Rate() != 16000 {
		t.Errorf("sample rate: got %d, want 16000", cfg.Practice.Rate())
	}
	if !cfg.Practice.Capture.OptBool("realtime") {
		t.Error("practice.capture.options.realtime: got false, want true")
	}
	if cfg.Telemetry.ServiceName != "elocute-test" {
		t.Errorf("telemetry.service_name: got %q", cfg.Telemetry.ServiceName)
	}
}

func TestLoadFromReader_EmptyIsValid(t *testing.T) {
	cfg, err := config.LoadFromReader(strings.NewReader(""))
	if err != nil {
		t.Fatalf("unexpected error for empty config: %v", err)
	}
	if cfg.Practice.CaptureDuration() != 5*time.Second {
		t.Errorf("default capture duration: got %s, want 5s", cfg.Practice.CaptureDuration())
	}
	if cfg.Practice.Rate() != config.DefaultSampleRate {
		t.Errorf("default sample rate: got %d", cfg.Practice.Rate())
	}
	if cfg.Server.Addr() != config.DefaultListenAddr {
		t.Errorf("default listen addr: got %q", cfg.Server.Addr())
	}
}

func TestLoadFromReader_UnknownField(t *testing.T) {
	_, err := config.LoadFromReader(strings.NewReader("speakers: []\n"))
	if err == nil {
		t.Fatal("expected error for unknown top-level field")
	}
}

func TestProviderEntry_Options(t *testing.T) {
	e := config.ProviderEntry{Options: map[string]any{
		"s": "text",
		"i": 3,
		"f": 2.5,
		"b": true,
	}}
	if e.OptString("s") != "text" || e.OptString("i") != "" {
		t.Errorf("OptString mismatch")
	}
	if e.OptInt("i") != 3 || e.OptInt("f") != 2 || e.OptInt("missing") != 0 {
		t.Errorf("OptInt mismatch")
	}
	if e.OptFloat("f") != 2.5 || e.OptFloat("i") != 3 {
		t.Errorf("OptFloat mismatch")
	}
	if !e.OptBool("b") || e.OptBool("s") {
		t.Errorf("OptBool mismatch")
	}
}

func TestLogLevel_SlogLevel(t *testing.T) {
	if config.LogDebug.SlogLevel().String() != "DEBUG" {
		t.Errorf("debug maps to %s", config.LogDebug.SlogLevel())
	}
	if config.LogLevel("").SlogLevel().String() != "INFO" {
		t.Errorf("empty maps to %s", config.LogLevel("").SlogLevel())
	}
}

// ── Registry ─────────────────────────────────────────────────────────────────

func TestRegistry_Unknown(t *testing.T) {
	reg := config.NewRegistry()
	entry := config.ProviderEntry{Name: "nonexistent"}

	_, errLLM := reg.CreateLLM(entry)
	_, errSTT := reg.CreateSTT(entry)
	_, errTTS := reg.CreateTTS(entry)
	_, errCap := reg.CreateCapture(entry)
	for kind, err := range map[string]error{"llm": errLLM, "stt": errSTT, "tts": errTTS, "capture": errCap} {
		if !errors.Is(err, config.ErrProviderNotRegistered) {
			t.Errorf("%s: expected ErrProviderNotRegistered, got: %v", kind, err)
		}
	}
}

func TestRegistry_Registered(t *testing.T) {
	reg := config.NewRegistry()

	wantLLM := &llmmock.Provider{}
	wantSTT := &sttmock.Transcriber{}
	wantTTS := &ttsmock.Synthesizer{}
	wantCap := &capmock.Device{}
	var gotEntry config.ProviderEntry

	reg.RegisterLLM("stub", func(e config.ProviderEntry) (llm.Provider, error) { return wantLLM, nil })
	reg.RegisterSTT("stub", func(e config.ProviderEntry) (stt.Transcriber, error) {
		gotEntry = e
		return wantSTT, nil
	})
	reg.RegisterTTS("stub", func(e config.ProviderEntry) (tts.Synthesizer, error) { return wantTTS, nil })
	reg.RegisterCapture("stub", func(e config.ProviderEntry) (capture.Device, error) { return wantCap, nil })

	if got, err := reg.CreateLLM(config.ProviderEntry{Name: "stub"}); err != nil || got != wantLLM {
		t.Errorf("CreateLLM = %v, %v", got, err)
	}
	if got, err := reg.CreateSTT(config.ProviderEntry{Name: "stub", Model: "whisper-1"}); err != nil || got != wantSTT {
		t.Errorf("CreateSTT = %v, %v", got, err)
	}
	if gotEntry.Model != "whisper-1" {
		t.Errorf("factory received model %q, want whisper-1", gotEntry.Model)
	}
	if got, err := reg.CreateTTS(config.ProviderEntry{Name: "stub"}); err != nil || got != wantTTS {
		t.Errorf("CreateTTS = %v, %v", got, err)
	}
	if got, err := reg.CreateCapture(config.ProviderEntry{Name: "stub"}); err != nil || got != wantCap {
		t.Errorf("CreateCapture = %v, %v", got, err)
	}
}

func TestRegistry_Names(t *testing.T) {
	reg := config.NewRegistry()
	reg.RegisterTTS("openai", func(config.ProviderEntry) (tts.Synthesizer, error) { return nil, nil })
	reg.RegisterTTS("coqui", func(config.ProviderEntry) (tts.Synthesizer, error) { return nil, nil })

	got := reg.Names("tts")
	if len(got) != 2 || got[0] != "coqui" || got[1] != "openai" {
		t.Errorf("Names(tts) = %v, want [coqui openai]", got)
	}
	if len(reg.Names("llm")) != 0 {
		t.Errorf("Names(llm) should be empty")
	}
}

func TestRegistry_FactoryError(t *testing.T) {
	reg := config.NewRegistry()
	wantErr := errors.New("factory boom")
	reg.RegisterLLM("broken", func(e config.ProviderEntry) (llm.Provider, error) {
		return nil, wantErr
	})
	_, err := reg.CreateLLM(config.ProviderEntry{Name: "broken"})
	if !errors.Is(err, wantErr) {
		t.Errorf("expected factory error %v, got %v", wantErr, err)
	}
}
