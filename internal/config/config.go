// Package config provides the configuration schema, loader, and provider registry
// for the elocute pronunciation trainer.
package config

import (
	"log/slog"
	"time"
)

// LogLevel controls log verbosity.
type LogLevel string

const (
	LogDebug LogLevel = "debug"
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

// IsValid reports whether l is a recognised log level.
func (l LogLevel) IsValid() bool {
	switch l {
	case LogDebug, LogInfo, LogWarn, LogError:
		return true
	}
	return false
}

// SlogLevel maps l to the matching [slog.Level]. Unknown and empty values map
// to info.
func (l LogLevel) SlogLevel() slog.Level {
	switch l {
	case LogDebug:
		return slog.LevelDebug
	case LogWarn:
		return slog.LevelWarn
	case LogError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Practice defaults applied by [PracticeConfig] accessors.
const (
	DefaultCaptureSeconds = 5.0
	DefaultSampleRate     = 44100
	DefaultListenAddr     = ":8080"
)

// Config is the root configuration structure for elocute.
// It is typically loaded from a YAML file using [Load] or [LoadFromReader].
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Providers ProvidersConfig `yaml:"providers"`
	Practice  PracticeConfig  `yaml:"practice"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

// ServerConfig holds network and logging settings for the HTTP API.
type ServerConfig struct {
	// ListenAddr is the TCP address the server listens on (e.g., ":8080").
	ListenAddr string `yaml:"listen_addr"`

	// LogLevel controls verbosity.
	LogLevel LogLevel `yaml:"log_level"`

	// MaxSessions caps concurrently open practice sessions. 0 means no limit.
	MaxSessions int `yaml:"max_sessions"`

	// SessionTTL discards sessions idle for longer than this. 0 disables
	// expiry.
	SessionTTL time.Duration `yaml:"session_ttl"`
}

// Addr returns ListenAddr or [DefaultListenAddr].
func (s ServerConfig) Addr() string {
	if s.ListenAddr == "" {
		return DefaultListenAddr
	}
	return s.ListenAddr
}

// ProvidersConfig declares which provider implementation to use for each
// pipeline stage. Each field selects a named provider registered in the [Registry].
type ProvidersConfig struct {
	STT ProviderEntry `yaml:"stt"`
	TTS ProviderEntry `yaml:"tts"`
	LLM ProviderEntry `yaml:"llm"`
}

// ProviderEntry is the common configuration block shared by all provider types.
// The Name field is used to look up the constructor in the [Registry].
type ProviderEntry struct {
	// Name selects the registered provider implementation (e.g., "openai", "coqui").
	Name string `yaml:"name"`

	// APIKey is the authentication key for the provider's API if any.
	// "${VAR}" references are expanded from the environment at load time.
	APIKey string `yaml:"api_key"`

	// BaseURL overrides the provider's default API endpoint.
	// Leave empty to use the provider's built-in default.
	BaseURL string `yaml:"base_url"`

	// Model selects a specific model within the provider (e.g., "whisper-1", "gpt-4o-mini").
	Model string `yaml:"model"`

	// Options holds provider-specific configuration values not covered by the
	// standard fields above. Values may be strings, numbers, booleans, or nested maps.
	Options map[string]any `yaml:"options"`

	// Fallbacks are tried in order when this provider fails. Fallbacks of a
	// fallback are ignored.
	Fallbacks []ProviderEntry `yaml:"fallbacks"`
}

// OptString returns the string option key, or "" when absent or not a string.
func (e ProviderEntry) OptString(key string) string {
	s, _ := e.Options[key].(string)
	return s
}

// OptFloat returns the numeric option key as float64, or 0 when absent.
// YAML integers are accepted.
func (e ProviderEntry) OptFloat(key string) float64 {
	switch v := e.Options[key].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	}
	return 0
}

// OptInt returns the numeric option key as int, or 0 when absent. Floats are
// truncated.
func (e ProviderEntry) OptInt(key string) int {
	switch v := e.Options[key].(type) {
	case int:
		return v
	case float64:
		return int(v)
	}
	return 0
}

// OptBool returns the boolean option key, or false when absent.
func (e ProviderEntry) OptBool(key string) bool {
	b, _ := e.Options[key].(bool)
	return b
}

// PracticeConfig tunes the practice flow.
type PracticeConfig struct {
	// CaptureSeconds is how long an attempt is recorded. Default: 5.
	CaptureSeconds float64 `yaml:"capture_seconds"`

	// SampleRate is the capture sample rate in Hz. Default: 44100.
	SampleRate int `yaml:"sample_rate"`

	// FeedbackLanguage is the natural language feedback is written in.
	// Default: English.
	FeedbackLanguage string `yaml:"feedback_language"`

	// FeedbackTemperature and FeedbackMaxTokens tune the text generator.
	// Zero keeps the provider default.
	FeedbackTemperature float64 `yaml:"feedback_temperature"`
	FeedbackMaxTokens   int     `yaml:"feedback_max_tokens"`

	// Capture selects the capture device used by the practice command.
	Capture ProviderEntry `yaml:"capture"`
}

// CaptureDuration returns the configured capture length.
func (p PracticeConfig) CaptureDuration() time.Duration {
	secs := p.CaptureSeconds
	if secs <= 0 {
		secs = DefaultCaptureSeconds
	}
	return time.Duration(secs * float64(time.Second))
}

// Rate returns the configured capture sample rate.
func (p PracticeConfig) Rate() int {
	if p.SampleRate <= 0 {
		return DefaultSampleRate
	}
	return p.SampleRate
}

// TelemetryConfig controls OpenTelemetry setup.
type TelemetryConfig struct {
	// Enabled installs the SDK meter and tracer providers and serves /metrics.
	Enabled bool `yaml:"enabled"`

	// ServiceName is reported as service.name. Default: "elocute".
	ServiceName string `yaml:"service_name"`
}
