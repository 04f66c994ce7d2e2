// Package assess implements the pronunciation-scoring pipeline: reference
// synthesis, attempt capture, transcription, similarity scoring and feedback
// generation, sequenced by a per-user [Session].
//
// The package never talks to a concrete backend. Speech synthesis, capture,
// transcription and text generation are reached through the capability
// interfaces in pkg/provider and pkg/audio/capture, so every stage can be
// swapped or mocked independently.
package assess

import (
	"context"
	"strings"
	"time"

	"go.opentelemetry.io/otel/metric"

	"github.com/MrWong99/elocute/internal/observe"
	"github.com/MrWong99/elocute/pkg/audio"
	"github.com/MrWong99/elocute/pkg/provider/stt"
)

// Language is the only language the pipeline compares in.
const Language = "en"

// Gateway turns a recorded attempt into normalized text through an
// [stt.Transcriber]. It performs no retries.
type Gateway struct {
	transcriber stt.Transcriber
	name        string
	metrics     *observe.Metrics
}

// GatewayOption configures a [Gateway].
type GatewayOption func(*Gateway)

// WithTranscriberName sets the provider name reported in metrics.
func WithTranscriberName(name string) GatewayOption {
	return func(g *Gateway) { g.name = name }
}

// WithGatewayMetrics overrides the metrics sink. Defaults to
// [observe.DefaultMetrics].
func WithGatewayMetrics(m *observe.Metrics) GatewayOption {
	return func(g *Gateway) { g.metrics = m }
}

// NewGateway returns a Gateway backed by t. A nil t is accepted; every call
// then fails with a [TranscriptionError].
func NewGateway(t stt.Transcriber, opts ...GatewayOption) *Gateway {
	g := &Gateway{transcriber: t, name: "stt"}
	for _, o := range opts {
		o(g)
	}
	if g.metrics == nil {
		g.metrics = observe.DefaultMetrics()
	}
	return g
}

// Transcribe encodes recording as 16-bit PCM WAV and transcribes it as
// English. Surrounding whitespace is trimmed and inner whitespace runs are
// collapsed to one space.
//
// An empty or malformed recording yields an [InputError]. A missing
// transcriber, a provider failure or a blank result yields a
// [TranscriptionError].
func (g *Gateway) Transcribe(ctx context.Context, recording audio.Waveform) (string, error) {
	if err := recording.Validate(); err != nil {
		return "", &InputError{Stage: StageTranscription, Cause: err}
	}
	if g.transcriber == nil {
		return "", &TranscriptionError{Stage: StageTranscription, Cause: ErrCapabilityUnavailable}
	}

	wav, err := audio.EncodeWAV(recording)
	if err != nil {
		return "", &TranscriptionError{Stage: StageTranscription, Cause: err}
	}

	ctx, span := observe.StartStage(ctx, observe.SpanTranscribe, observe.Attr("provider", g.name))
	defer func() { observe.EndStage(span, err) }()

	start := time.Now()
	tr, err := g.transcriber.Transcribe(ctx, wav, stt.Config{Language: Language})
	g.metrics.STTDuration.Record(ctx, time.Since(start).Seconds(),
		metric.WithAttributes(observe.Attr("provider", g.name)))
	if err != nil {
		g.metrics.RecordProviderRequest(ctx, g.name, "stt", "error")
		g.metrics.RecordProviderError(ctx, g.name, "stt")
		observe.Logger(ctx).Warn("transcription failed", "provider", g.name, "err", err)
		return "", &TranscriptionError{Stage: StageTranscription, Cause: err}
	}
	g.metrics.RecordProviderRequest(ctx, g.name, "stt", "ok")

	text := normalizeSpace(tr.Text)
	if text == "" {
		return "", &TranscriptionError{Stage: StageTranscription, Cause: ErrEmptyTranscript}
	}
	observe.Logger(ctx).Debug("attempt transcribed",
		"provider", g.name,
		"chars", len(text),
		"audio", recording.Duration(),
	)
	return text, nil
}

func normalizeSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
