package main

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	anyllmlib "github.com/mozilla-ai/any-llm-go"

	"github.com/MrWong99/elocute/internal/assess"
	"github.com/MrWong99/elocute/internal/config"
	"github.com/MrWong99/elocute/internal/observe"
	"github.com/MrWong99/elocute/internal/resilience"
	"github.com/MrWong99/elocute/pkg/audio/capture"
	"github.com/MrWong99/elocute/pkg/audio/capture/malgo"
	"github.com/MrWong99/elocute/pkg/provider/llm"
	"github.com/MrWong99/elocute/pkg/provider/llm/anyllm"
	oallm "github.com/MrWong99/elocute/pkg/provider/llm/openai"
	"github.com/MrWong99/elocute/pkg/provider/stt"
	"github.com/MrWong99/elocute/pkg/provider/stt/deepgram"
	oastt "github.com/MrWong99/elocute/pkg/provider/stt/openai"
	"github.com/MrWong99/elocute/pkg/provider/stt/whisper"
	"github.com/MrWong99/elocute/pkg/provider/tts"
	"github.com/MrWong99/elocute/pkg/provider/tts/coqui"
	"github.com/MrWong99/elocute/pkg/provider/tts/elevenlabs"
	"github.com/MrWong99/elocute/pkg/provider/tts/gtts"
	oatts "github.com/MrWong99/elocute/pkg/provider/tts/openai"
)

// providers holds the instantiated capabilities. Any field may be nil when
// the matching provider is not configured.
type providers struct {
	TTS     tts.Synthesizer
	TTSName string
	STT     stt.Transcriber
	STTName string
	LLM     llm.Provider
	LLMName string
}

// registerBuiltinProviders wires all built-in provider factories into reg.
// Each factory receives a config.ProviderEntry and constructs the appropriate
// provider from the real implementation packages.
func registerBuiltinProviders(reg *config.Registry) {
	// ── LLM ───────────────────────────────────────────────────────────────────

	reg.RegisterLLM("openai", func(entry config.ProviderEntry) (llm.Provider, error) {
		var opts []oallm.Option
		if entry.BaseURL != "" {
			opts = append(opts, oallm.WithBaseURL(entry.BaseURL))
		}
		if org := entry.OptString("organization"); org != "" {
			opts = append(opts, oallm.WithOrganization(org))
		}
		if secs := entry.OptFloat("timeout_seconds"); secs > 0 {
			opts = append(opts, oallm.WithTimeout(seconds(secs)))
		}
		return oallm.New(entry.APIKey, entry.Model, opts...)
	})

	// anthropic, gemini, deepseek, mistral, groq, llamacpp, llamafile and
	// ollama go through any-llm with optional APIKey + optional BaseURL.
	for _, providerName := range []string{
		"anthropic", "gemini", "ollama",
		"deepseek", "mistral", "groq", "llamacpp", "llamafile",
	} {
		reg.RegisterLLM(providerName, func(entry config.ProviderEntry) (llm.Provider, error) {
			var opts []anyllmlib.Option
			if entry.APIKey != "" {
				opts = append(opts, anyllmlib.WithAPIKey(entry.APIKey))
			}
			if entry.BaseURL != "" {
				opts = append(opts, anyllmlib.WithBaseURL(entry.BaseURL))
			}
			return anyllm.New(providerName, entry.Model, opts...)
		})
	}

	// ── STT ───────────────────────────────────────────────────────────────────

	reg.RegisterSTT("openai", func(entry config.ProviderEntry) (stt.Transcriber, error) {
		var opts []oastt.Option
		if entry.BaseURL != "" {
			opts = append(opts, oastt.WithBaseURL(entry.BaseURL))
		}
		if secs := entry.OptFloat("timeout_seconds"); secs > 0 {
			opts = append(opts, oastt.WithTimeout(seconds(secs)))
		}
		return oastt.New(entry.APIKey, entry.Model, opts...)
	})

	reg.RegisterSTT("whisper", func(entry config.ProviderEntry) (stt.Transcriber, error) {
		var opts []whisper.Option
		if entry.Model != "" {
			opts = append(opts, whisper.WithModel(entry.Model))
		}
		if lang := entry.OptString("language"); lang != "" {
			opts = append(opts, whisper.WithLanguage(lang))
		}
		return whisper.New(entry.BaseURL, opts...)
	})

	reg.RegisterSTT("whisper-native", func(entry config.ProviderEntry) (stt.Transcriber, error) {
		modelPath := entry.Model
		if modelPath == "" {
			modelPath = entry.OptString("model_path")
		}
		var opts []whisper.NativeOption
		if lang := entry.OptString("language"); lang != "" {
			opts = append(opts, whisper.WithNativeLanguage(lang))
		}
		return whisper.NewNative(modelPath, opts...)
	})

	reg.RegisterSTT("deepgram", func(entry config.ProviderEntry) (stt.Transcriber, error) {
		var opts []deepgram.Option
		if entry.Model != "" {
			opts = append(opts, deepgram.WithModel(entry.Model))
		}
		if entry.BaseURL != "" {
			opts = append(opts, deepgram.WithEndpoint(entry.BaseURL))
		}
		if lang := entry.OptString("language"); lang != "" {
			opts = append(opts, deepgram.WithLanguage(lang))
		}
		if secs := entry.OptFloat("timeout_seconds"); secs > 0 {
			opts = append(opts, deepgram.WithTimeout(seconds(secs)))
		}
		return deepgram.New(entry.APIKey, opts...)
	})

	// ── TTS ───────────────────────────────────────────────────────────────────

	reg.RegisterTTS("openai", func(entry config.ProviderEntry) (tts.Synthesizer, error) {
		var opts []oatts.Option
		if entry.BaseURL != "" {
			opts = append(opts, oatts.WithBaseURL(entry.BaseURL))
		}
		if voice := entry.OptString("voice"); voice != "" {
			opts = append(opts, oatts.WithVoice(voice))
		}
		if speed := entry.OptFloat("speed"); speed > 0 {
			opts = append(opts, oatts.WithSpeed(speed))
		}
		if secs := entry.OptFloat("timeout_seconds"); secs > 0 {
			opts = append(opts, oatts.WithTimeout(seconds(secs)))
		}
		return oatts.New(entry.APIKey, entry.Model, opts...)
	})

	reg.RegisterTTS("coqui", func(entry config.ProviderEntry) (tts.Synthesizer, error) {
		var opts []coqui.Option
		if speaker := entry.OptString("speaker_id"); speaker != "" {
			opts = append(opts, coqui.WithSpeaker(speaker))
		}
		if mode := entry.OptString("api_mode"); mode != "" {
			opts = append(opts, coqui.WithAPIMode(coqui.APIMode(mode)))
		}
		if rpm := entry.OptInt("requests_per_minute"); rpm > 0 {
			opts = append(opts, coqui.WithRequestsPerMinute(rpm))
		}
		if secs := entry.OptFloat("timeout_seconds"); secs > 0 {
			opts = append(opts, coqui.WithTimeout(seconds(secs)))
		}
		return coqui.New(entry.BaseURL, opts...)
	})

	reg.RegisterTTS("gtts", func(entry config.ProviderEntry) (tts.Synthesizer, error) {
		opts := []gtts.Option{gtts.WithSlow(entry.OptBool("slow"))}
		if hz := entry.OptInt("sample_rate"); hz > 0 {
			opts = append(opts, gtts.WithSampleRate(hz))
		}
		if rpm := entry.OptInt("requests_per_minute"); rpm > 0 {
			opts = append(opts, gtts.WithRequestsPerMinute(rpm))
		}
		if secs := entry.OptFloat("timeout_seconds"); secs > 0 {
			opts = append(opts, gtts.WithTimeout(seconds(secs)))
		}
		return gtts.New(opts...)
	})

	reg.RegisterTTS("elevenlabs", func(entry config.ProviderEntry) (tts.Synthesizer, error) {
		var opts []elevenlabs.Option
		if entry.Model != "" {
			opts = append(opts, elevenlabs.WithModel(entry.Model))
		}
		if entry.BaseURL != "" {
			opts = append(opts, elevenlabs.WithBaseURL(entry.BaseURL))
		}
		if format := entry.OptString("output_format"); format != "" {
			opts = append(opts, elevenlabs.WithOutputFormat(format))
		}
		if _, ok := entry.Options["stability"]; ok {
			opts = append(opts, elevenlabs.WithVoiceSettings(entry.OptFloat("stability"), entry.OptFloat("similarity_boost")))
		}
		if secs := entry.OptFloat("timeout_seconds"); secs > 0 {
			opts = append(opts, elevenlabs.WithTimeout(seconds(secs)))
		}
		return elevenlabs.New(entry.APIKey, entry.OptString("voice_id"), opts...)
	})

	// ── Capture ───────────────────────────────────────────────────────────────

	reg.RegisterCapture("file", func(entry config.ProviderEntry) (capture.Device, error) {
		return capture.NewFileDevice(entry.OptString("path"), capture.WithRealtime(entry.OptBool("realtime")))
	})

	reg.RegisterCapture("microphone", func(config.ProviderEntry) (capture.Device, error) {
		return malgo.New()
	})

	for _, kind := range []string{"llm", "stt", "tts", "capture"} {
		slog.Debug("registered providers", "kind", kind, "names", reg.Names(kind))
	}
}

// buildProviders instantiates every provider named in cfg. A capability
// with fallbacks is served by a breaker-guarded chain trying the primary
// first.
func buildProviders(cfg *config.Config, reg *config.Registry, m *observe.Metrics) (*providers, error) {
	ps := &providers{}
	var err error

	if e := cfg.Providers.TTS; e.Name != "" {
		ps.TTS, err = buildCapability(reg.CreateTTS, "tts", e, func(bs []resilience.Backend[tts.Synthesizer]) tts.Synthesizer {
			return resilience.NewSynthesizers(bs, resilience.WithChainMetrics(m))
		})
		if err != nil {
			return nil, err
		}
		ps.TTSName = e.Name
	}

	if e := cfg.Providers.STT; e.Name != "" {
		ps.STT, err = buildCapability(reg.CreateSTT, "stt", e, func(bs []resilience.Backend[stt.Transcriber]) stt.Transcriber {
			return resilience.NewTranscribers(bs, resilience.WithChainMetrics(m))
		})
		if err != nil {
			return nil, err
		}
		ps.STTName = e.Name
	}

	if e := cfg.Providers.LLM; e.Name != "" {
		ps.LLM, err = buildCapability(reg.CreateLLM, "llm", e, func(bs []resilience.Backend[llm.Provider]) llm.Provider {
			return resilience.NewFeedbackModels(bs, resilience.WithChainMetrics(m))
		})
		if err != nil {
			return nil, err
		}
		ps.LLMName = e.Name
	}

	return ps, nil
}

// buildCapability creates e and its fallbacks. Without fallbacks the primary
// is returned as is; otherwise chain wraps them in preference order.
func buildCapability[T any](
	create func(config.ProviderEntry) (T, error),
	kind string,
	e config.ProviderEntry,
	chain func([]resilience.Backend[T]) T,
) (T, error) {
	primary, err := createOne(create, kind, e)
	if err != nil {
		return primary, err
	}
	if len(e.Fallbacks) == 0 {
		return primary, nil
	}

	backends := []resilience.Backend[T]{{Name: e.Name, Impl: primary}}
	for _, f := range e.Fallbacks {
		p, err := createOne(create, kind, f)
		if err != nil {
			var zero T
			return zero, err
		}
		backends = append(backends, resilience.Backend[T]{Name: f.Name, Impl: p})
	}
	return chain(backends), nil
}

func createOne[T any](create func(config.ProviderEntry) (T, error), kind string, e config.ProviderEntry) (T, error) {
	p, err := create(e)
	if err != nil {
		var zero T
		if errors.Is(err, config.ErrProviderNotRegistered) {
			return zero, fmt.Errorf("%s provider %q is not built in: %w", kind, e.Name, err)
		}
		return zero, fmt.Errorf("create %s provider %q: %w", kind, e.Name, err)
	}
	slog.Info("provider created", "kind", kind, "name", e.Name)
	return p, nil
}

// buildCapture instantiates the configured capture device, or returns nil
// when none is configured.
func buildCapture(e config.ProviderEntry, reg *config.Registry) (capture.Device, error) {
	if e.Name == "" {
		return nil, nil
	}
	return createOne(reg.CreateCapture, "capture", e)
}

// newSessionFactory returns a factory for sessions sharing ps and tuned by p.
func newSessionFactory(p config.PracticeConfig, ps *providers, device capture.Device, m *observe.Metrics) func() *assess.Session {
	return func() *assess.Session {
		gw := assess.NewGateway(ps.STT,
			assess.WithTranscriberName(nameOr(ps.STTName, "stt")),
			assess.WithGatewayMetrics(m),
		)
		gen := assess.NewFeedbackGenerator(ps.LLM,
			assess.WithGeneratorName(nameOr(ps.LLMName, "llm")),
			assess.WithFeedbackLanguage(p.FeedbackLanguage),
			assess.WithTemperature(p.FeedbackTemperature),
			assess.WithMaxTokens(p.FeedbackMaxTokens),
			assess.WithGeneratorMetrics(m),
		)
		opts := []assess.SessionOption{
			assess.WithSynthesizerName(nameOr(ps.TTSName, "tts")),
			assess.WithCaptureDuration(p.CaptureDuration()),
			assess.WithSampleRate(p.Rate()),
			assess.WithMetrics(m),
		}
		if device != nil {
			opts = append(opts, assess.WithCaptureDevice(device))
		}
		return assess.NewSession(ps.TTS, gw, gen, opts...)
	}
}

func nameOr(name, fallback string) string {
	if name == "" {
		return fallback
	}
	return name
}

func seconds(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}
