package observe

import (
	"context"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Span names for the steps of a practice round.
const (
	SpanSetReference    = "assess.set_reference"
	SpanRecord          = "assess.record"
	SpanTranscribe      = "assess.transcribe"
	SpanScoreAndAnalyze = "assess.score_and_analyze"
	SpanAnalyze         = "assess.analyze"
)

// SessionIDKey is the span attribute and log key carrying the practice
// session ID.
const SessionIDKey = "elocute.session_id"

type sessionKey struct{}

// WithSessionID returns a copy of ctx tagged with a practice session ID.
// Stage spans and [Logger] pick it up.
func WithSessionID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, sessionKey{}, id)
}

// SessionID returns the session ID stored by [WithSessionID], or "".
func SessionID(ctx context.Context) string {
	id, _ := ctx.Value(sessionKey{}).(string)
	return id
}

func tracer() trace.Tracer {
	return otel.Tracer(instrumentationName)
}

// StartStage opens the span for one practice step. The caller must end it,
// usually through [EndStage].
func StartStage(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	if id := SessionID(ctx); id != "" {
		attrs = append(attrs, attribute.String(SessionIDKey, id))
	}
	return tracer().Start(ctx, name, trace.WithAttributes(attrs...))
}

// EndStage ends span, marking it failed when err is non-nil.
func EndStage(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

// traceID returns the hex trace ID of the span in ctx, or "".
func traceID(ctx context.Context) string {
	sc := trace.SpanContextFromContext(ctx)
	if sc.HasTraceID() {
		return sc.TraceID().String()
	}
	return ""
}

// Logger returns the default logger enriched with the trace ID and the
// session ID found in ctx.
func Logger(ctx context.Context) *slog.Logger {
	l := slog.Default()
	if id := traceID(ctx); id != "" {
		l = l.With(slog.String("trace_id", id))
	}
	if id := SessionID(ctx); id != "" {
		l = l.With(slog.String("session_id", id))
	}
	return l
}
