// Package observe instruments the practice pipeline: metrics for provider
// latency, failures, failovers and scores, a span per practice stage, HTTP
// middleware for the practice API, and a logger that carries the trace and
// session IDs.
//
// A serving process calls [Setup] to install the SDK providers and expose a
// Prometheus scrape handler. Everything else records through [Metrics];
// [DefaultMetrics] binds to the global meter provider, which stays a no-op
// when Setup was never called. Tests build [Metrics] with [NewMetrics] over a
// ManualReader.
package observe

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// instrumentationName is the scope name of every elocute meter and tracer.
const instrumentationName = "github.com/MrWong99/elocute"

// Metrics holds all OpenTelemetry metric instruments for the application.
// All fields are safe for concurrent use.
type Metrics struct {
	// --- Latency histograms per pipeline stage ---

	// STTDuration tracks speech-to-text transcription latency.
	STTDuration metric.Float64Histogram

	// LLMDuration tracks feedback generation latency.
	LLMDuration metric.Float64Histogram

	// TTSDuration tracks reference speech synthesis latency.
	TTSDuration metric.Float64Histogram

	// CaptureDuration tracks how long an attempt recording took, including
	// cancelled captures.
	CaptureDuration metric.Float64Histogram

	// --- Counters ---

	// ProviderRequests counts provider API calls. Use with attributes:
	//   attribute.String("provider", ...), attribute.String("kind", ...), attribute.String("status", ...)
	ProviderRequests metric.Int64Counter

	// Assessments counts completed ScoreAndAnalyze runs. Use with attribute:
	//   attribute.String("outcome", "analyzed"|"scored")
	Assessments metric.Int64Counter

	// --- Error counters ---

	// ProviderErrors counts provider errors. Use with attributes:
	//   attribute.String("provider", ...), attribute.String("kind", ...)
	ProviderErrors metric.Int64Counter

	// Failovers counts calls handed from a failing backend to the next one
	// in its chain. Attributes: kind, provider (the backend that failed).
	Failovers metric.Int64Counter

	// BreakerTransitions counts circuit breaker state changes. Attributes:
	// kind, provider, state (the state entered).
	BreakerTransitions metric.Int64Counter

	// --- Distributions ---

	// AssessmentScore records similarity scores in [0, 100].
	AssessmentScore metric.Float64Histogram

	// --- Gauges ---

	// ActiveSessions tracks the number of live practice sessions.
	ActiveSessions metric.Int64UpDownCounter

	// --- HTTP middleware ---

	// HTTPRequestDuration tracks HTTP request processing time. Use with attributes:
	//   attribute.String("method", ...), attribute.String("route", ...), attribute.String("status", ...)
	HTTPRequestDuration metric.Float64Histogram
}

// latencyBuckets defines histogram bucket boundaries (in seconds) for
// provider round trips and recordings.
var latencyBuckets = []float64{
	0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 20, 30,
}

// scoreBuckets splits the similarity range into deciles.
var scoreBuckets = []float64{
	10, 20, 30, 40, 50, 60, 70, 80, 90, 95, 100,
}

// NewMetrics creates a fully initialised [Metrics] struct using the given
// [metric.MeterProvider]. Returns an error if any instrument creation fails.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(instrumentationName)
	var err error
	met := &Metrics{}

	// Histograms.
	if met.STTDuration, err = m.Float64Histogram("elocute.stt.duration",
		metric.WithDescription("Latency of speech-to-text transcription."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.LLMDuration, err = m.Float64Histogram("elocute.llm.duration",
		metric.WithDescription("Latency of feedback generation."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.TTSDuration, err = m.Float64Histogram("elocute.tts.duration",
		metric.WithDescription("Latency of reference speech synthesis."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.CaptureDuration, err = m.Float64Histogram("elocute.capture.duration",
		metric.WithDescription("Wall time spent capturing an attempt."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.AssessmentScore, err = m.Float64Histogram("elocute.assessment.score",
		metric.WithDescription("Similarity score of assessed attempts."),
		metric.WithUnit("%"),
		metric.WithExplicitBucketBoundaries(scoreBuckets...),
	); err != nil {
		return nil, err
	}

	// Counters.
	if met.ProviderRequests, err = m.Int64Counter("elocute.provider.requests",
		metric.WithDescription("Total provider API requests by provider, kind, and status."),
	); err != nil {
		return nil, err
	}
	if met.Assessments, err = m.Int64Counter("elocute.assessments",
		metric.WithDescription("Total assessments by outcome."),
	); err != nil {
		return nil, err
	}

	// Error counters.
	if met.ProviderErrors, err = m.Int64Counter("elocute.provider.errors",
		metric.WithDescription("Total provider errors by provider and kind."),
	); err != nil {
		return nil, err
	}

	if met.Failovers, err = m.Int64Counter("elocute.provider.failovers",
		metric.WithDescription("Calls passed on to the next backend after a failure."),
	); err != nil {
		return nil, err
	}
	if met.BreakerTransitions, err = m.Int64Counter("elocute.provider.breaker_transitions",
		metric.WithDescription("Circuit breaker state changes by backend and entered state."),
	); err != nil {
		return nil, err
	}

	// Gauges (UpDownCounters).
	if met.ActiveSessions, err = m.Int64UpDownCounter("elocute.active_sessions",
		metric.WithDescription("Number of live practice sessions."),
	); err != nil {
		return nil, err
	}

	// HTTP middleware histogram.
	if met.HTTPRequestDuration, err = m.Float64Histogram("elocute.http.request.duration",
		metric.WithDescription("HTTP request latency by method, route pattern and status class."),
		metric.WithUnit("s"),
	); err != nil {
		return nil, err
	}

	return met, nil
}

// defaultMetrics is the lazily-initialised package-level Metrics instance.
var (
	defaultMetrics     *Metrics
	defaultMetricsOnce sync.Once
)

// DefaultMetrics returns the package-level [Metrics] instance, creating it on
// first call using [otel.GetMeterProvider]. Subsequent calls return the same
// pointer. Panics if instrument creation fails (should not happen with the
// global provider).
func DefaultMetrics() *Metrics {
	defaultMetricsOnce.Do(func() {
		var err error
		defaultMetrics, err = NewMetrics(otel.GetMeterProvider())
		if err != nil {
			panic("observe: failed to create default metrics: " + err.Error())
		}
	})
	return defaultMetrics
}

// Attr is a convenience alias for [attribute.String] to reduce verbosity at
// call sites.
func Attr(key, value string) attribute.KeyValue {
	return attribute.String(key, value)
}

// RecordProviderRequest is a convenience method that records a provider
// request counter increment with the standard attribute set.
func (m *Metrics) RecordProviderRequest(ctx context.Context, provider, kind, status string) {
	m.ProviderRequests.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("provider", provider),
			attribute.String("kind", kind),
			attribute.String("status", status),
		),
	)
}

// RecordProviderError is a convenience method that records a provider error
// counter increment.
func (m *Metrics) RecordProviderError(ctx context.Context, provider, kind string) {
	m.ProviderErrors.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("provider", provider),
			attribute.String("kind", kind),
		),
	)
}

// RecordAssessment records the score of one assessment together with its
// outcome ("analyzed" when feedback was produced, "scored" otherwise).
func (m *Metrics) RecordAssessment(ctx context.Context, score float64, outcome string) {
	m.AssessmentScore.Record(ctx, score)
	m.Assessments.Add(ctx, 1,
		metric.WithAttributes(attribute.String("outcome", outcome)),
	)
}

// RecordFailover counts a call that moved past the failing backend provider.
func (m *Metrics) RecordFailover(ctx context.Context, kind, provider string) {
	m.Failovers.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("kind", kind),
			attribute.String("provider", provider),
		),
	)
}

// RecordBreakerTransition counts a breaker of the given backend entering state.
func (m *Metrics) RecordBreakerTransition(ctx context.Context, kind, provider, state string) {
	m.BreakerTransitions.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("kind", kind),
			attribute.String("provider", provider),
			attribute.String("state", state),
		),
	)
}
