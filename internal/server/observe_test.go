package server

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/MrWong99/elocute/internal/observe"
)

func recordSpans(t *testing.T) *tracetest.InMemoryExporter {
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

func TestAPI_StageSpansCarrySessionID(t *testing.T) {
	exp := recordSpans(t)
	f := newAPIFixture(t)
	id := f.create(t)
	base := "/v1/sessions/" + id

	wantStatus(t, f.do(t, http.MethodPut, base+"/reference", strings.NewReader(`{"text":"the quick brown fox"}`)), http.StatusOK)
	wantStatus(t, f.do(t, http.MethodPost, base+"/attempt", wavBody(t, tone(1600, 16000))), http.StatusOK)
	wantStatus(t, f.do(t, http.MethodPost, base+"/transcription", nil), http.StatusOK)
	wantStatus(t, f.do(t, http.MethodPost, base+"/assessment", nil), http.StatusOK)

	seen := map[string]string{}
	for _, s := range exp.GetSpans() {
		for _, a := range s.Attributes {
			if string(a.Key) == observe.SessionIDKey {
				seen[s.Name] = a.Value.AsString()
			}
		}
	}
	for _, name := range []string{
		observe.SpanSetReference,
		observe.SpanTranscribe,
		observe.SpanScoreAndAnalyze,
		observe.SpanAnalyze,
	} {
		if seen[name] != id {
			t.Errorf("span %q session = %q, want %q", name, seen[name], id)
		}
	}
}

func TestServer_MetricsEndpointOptional(t *testing.T) {
	m, _ := newTestMetrics(t)
	mgr := NewManager(idleFactory(m), WithManagerMetrics(m))

	bare := New(mgr, WithServerMetrics(m)).Handler()
	rec := httptest.NewRecorder()
	bare.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("GET /metrics without telemetry = %d, want 404", rec.Code)
	}

	scrape := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("elocute_assessments_total 1\n"))
	})
	served := New(mgr, WithServerMetrics(m), WithMetricsEndpoint(scrape)).Handler()
	rec = httptest.NewRecorder()
	served.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "elocute_assessments_total") {
		t.Errorf("GET /metrics = %d %q, want the scrape body", rec.Code, rec.Body.String())
	}
}
