package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"

	"gopkg.in/yaml.v3"
)

// ValidProviderNames lists known provider names per provider kind.
// Used by [Validate] to warn about unrecognised provider names.
var ValidProviderNames = map[string][]string{
	"llm":     {"openai", "anthropic", "ollama", "gemini", "deepseek", "mistral", "groq", "llamacpp", "llamafile"},
	"stt":     {"openai", "whisper", "whisper-native", "deepgram"},
	"tts":     {"openai", "coqui", "elevenlabs", "gtts"},
	"capture": {"file", "microphone"},
}

// Load reads the YAML configuration file at path and returns a validated [Config].
// It is a convenience wrapper around [LoadFromReader] and [Validate].
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r, expands environment references
// in credentials, and validates the result.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	expandEnv(&cfg.Providers.STT)
	expandEnv(&cfg.Providers.TTS)
	expandEnv(&cfg.Providers.LLM)
	expandEnv(&cfg.Practice.Capture)
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// expandEnv replaces ${VAR} references in the credential fields of e and its
// fallbacks.
func expandEnv(e *ProviderEntry) {
	e.APIKey = os.ExpandEnv(e.APIKey)
	e.BaseURL = os.ExpandEnv(e.BaseURL)
	for i := range e.Fallbacks {
		expandEnv(&e.Fallbacks[i])
	}
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	// Server
	if cfg.Server.LogLevel != "" && !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}
	if cfg.Server.MaxSessions < 0 {
		errs = append(errs, fmt.Errorf("server.max_sessions %d must not be negative", cfg.Server.MaxSessions))
	}
	if cfg.Server.SessionTTL < 0 {
		errs = append(errs, fmt.Errorf("server.session_ttl %s must not be negative", cfg.Server.SessionTTL))
	}

	// Practice
	if cfg.Practice.CaptureSeconds < 0 || cfg.Practice.CaptureSeconds > 60 {
		errs = append(errs, fmt.Errorf("practice.capture_seconds %.2f is out of range [0, 60]", cfg.Practice.CaptureSeconds))
	}
	if sr := cfg.Practice.SampleRate; sr != 0 && (sr < 8000 || sr > 192000) {
		errs = append(errs, fmt.Errorf("practice.sample_rate %d is out of range [8000, 192000]", sr))
	}
	if cfg.Practice.FeedbackTemperature < 0 || cfg.Practice.FeedbackTemperature > 2 {
		errs = append(errs, fmt.Errorf("practice.feedback_temperature %.2f is out of range [0, 2]", cfg.Practice.FeedbackTemperature))
	}
	if cfg.Practice.FeedbackMaxTokens < 0 {
		errs = append(errs, fmt.Errorf("practice.feedback_max_tokens %d must not be negative", cfg.Practice.FeedbackMaxTokens))
	}

	// Providers
	errs = append(errs, validateEntry("llm", "providers.llm", cfg.Providers.LLM)...)
	errs = append(errs, validateEntry("stt", "providers.stt", cfg.Providers.STT)...)
	errs = append(errs, validateEntry("tts", "providers.tts", cfg.Providers.TTS)...)
	errs = append(errs, validateEntry("capture", "practice.capture", cfg.Practice.Capture)...)

	// Provider availability warnings
	if cfg.Providers.TTS.Name == "" {
		slog.Warn("no TTS provider configured; reference audio cannot be synthesized")
	}
	if cfg.Providers.STT.Name == "" {
		slog.Warn("no STT provider configured; attempts cannot be transcribed")
	}
	if cfg.Providers.LLM.Name == "" {
		slog.Warn("no LLM provider configured; attempts will be scored without feedback")
	}

	return errors.Join(errs...)
}

// validateEntry checks the fallback chain of e and warns about unknown names.
func validateEntry(kind, prefix string, e ProviderEntry) []error {
	var errs []error
	validateProviderName(kind, e.Name)
	if e.Name == "" && len(e.Fallbacks) > 0 {
		errs = append(errs, fmt.Errorf("%s.name is required when fallbacks are configured", prefix))
	}
	for i, fb := range e.Fallbacks {
		if fb.Name == "" {
			errs = append(errs, fmt.Errorf("%s.fallbacks[%d].name is required", prefix, i))
			continue
		}
		validateProviderName(kind, fb.Name)
	}
	return errs
}

// validateProviderName logs a warning if name is non-empty and not found in
// the [ValidProviderNames] list for the given kind.
func validateProviderName(kind, name string) {
	if name == "" {
		return
	}
	known, ok := ValidProviderNames[kind]
	if !ok {
		return
	}
	if slices.Contains(known, name) {
		return
	}
	slog.Warn("unknown provider name, may be a typo or third-party provider",
		"kind", kind,
		"name", name,
		"known", known,
	)
}
