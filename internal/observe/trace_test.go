package observe

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

// useSpanRecorder installs an in-memory tracer provider for the duration of
// the test.
func useSpanRecorder(t *testing.T) *tracetest.InMemoryExporter {
	t.Helper()
	exp := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exp))
	orig := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() {
		otel.SetTracerProvider(orig)
		_ = tp.Shutdown(context.Background())
	})
	return exp
}

// captureLogs redirects the default logger into a buffer.
func captureLogs(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	orig := slog.Default()
	slog.SetDefault(slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})))
	t.Cleanup(func() { slog.SetDefault(orig) })
	return &buf
}

func spanAttr(s tracetest.SpanStub, key string) (string, bool) {
	for _, a := range s.Attributes {
		if string(a.Key) == key {
			return a.Value.Emit(), true
		}
	}
	return "", false
}

func TestStartStage_CarriesSessionID(t *testing.T) {
	exp := useSpanRecorder(t)

	ctx := WithSessionID(context.Background(), "sess-42")
	_, span := StartStage(ctx, SpanTranscribe, Attr("provider", "whisper"))
	EndStage(span, nil)

	spans := exp.GetSpans()
	if len(spans) != 1 {
		t.Fatalf("recorded %d spans, want 1", len(spans))
	}
	if spans[0].Name != "assess.transcribe" {
		t.Errorf("span name = %q, want assess.transcribe", spans[0].Name)
	}
	if got, _ := spanAttr(spans[0], SessionIDKey); got != "sess-42" {
		t.Errorf("%s = %q, want sess-42", SessionIDKey, got)
	}
	if got, _ := spanAttr(spans[0], "provider"); got != "whisper" {
		t.Errorf("provider = %q, want whisper", got)
	}
	if spans[0].Status.Code != codes.Unset {
		t.Errorf("status = %v, want unset", spans[0].Status.Code)
	}
}

func TestStartStage_NoSessionOutsideAPI(t *testing.T) {
	exp := useSpanRecorder(t)

	_, span := StartStage(context.Background(), SpanRecord)
	EndStage(span, nil)

	if _, ok := spanAttr(exp.GetSpans()[0], SessionIDKey); ok {
		t.Errorf("practice CLI span should not carry %s", SessionIDKey)
	}
}

func TestEndStage_MarksFailure(t *testing.T) {
	exp := useSpanRecorder(t)

	_, span := StartStage(context.Background(), SpanScoreAndAnalyze)
	EndStage(span, errors.New("llm quota exhausted"))

	s := exp.GetSpans()[0]
	if s.Status.Code != codes.Error || s.Status.Description != "llm quota exhausted" {
		t.Errorf("status = %+v, want error with cause", s.Status)
	}
	if len(s.Events) == 0 || s.Events[0].Name != "exception" {
		t.Errorf("events = %+v, want a recorded exception", s.Events)
	}
}

func TestLogger_TagsTraceAndSession(t *testing.T) {
	exp := useSpanRecorder(t)
	buf := captureLogs(t)

	ctx, span := StartStage(WithSessionID(context.Background(), "sess-7"), SpanSetReference)
	Logger(ctx).Info("reference synthesized")
	EndStage(span, nil)

	logged := buf.String()
	wantTrace := exp.GetSpans()[0].SpanContext.TraceID().String()
	for _, want := range []string{"trace_id=" + wantTrace, "session_id=sess-7"} {
		if !strings.Contains(logged, want) {
			t.Errorf("log line %q missing %q", logged, want)
		}
	}
}

func TestLogger_PlainWithoutContext(t *testing.T) {
	buf := captureLogs(t)

	Logger(context.Background()).Info("recording attempt")

	if logged := buf.String(); strings.Contains(logged, "trace_id") || strings.Contains(logged, "session_id") {
		t.Errorf("log line %q should carry no correlation fields", logged)
	}
}

func TestSessionID_RoundTrip(t *testing.T) {
	if got := SessionID(context.Background()); got != "" {
		t.Errorf("SessionID(background) = %q, want empty", got)
	}
	if got := SessionID(WithSessionID(context.Background(), "abc")); got != "abc" {
		t.Errorf("SessionID = %q, want abc", got)
	}
}
