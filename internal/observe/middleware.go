package observe

import (
	"log/slog"
	"net/http"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/propagation"
	semconv "go.opentelemetry.io/otel/semconv/v1.39.0"
	"go.opentelemetry.io/otel/trace"
)

// unmatchedRoute labels requests no route pattern accepted, so stray paths
// cannot blow up metric cardinality.
const unmatchedRoute = "unmatched"

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

// Middleware instruments the practice API.
//
// Every request runs inside a server span that continues an incoming W3C
// trace. Once the mux has routed the request the span is renamed after the
// route pattern (for example "POST /v1/sessions/{id}/attempt") and tagged
// with the session ID from the {id} wildcard. The trace ID is echoed as
// X-Correlation-ID, and the latency is recorded by method, route and status
// class.
func Middleware(m *Metrics) func(http.Handler) http.Handler {
	prop := propagation.TraceContext{}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ctx := prop.Extract(r.Context(), propagation.HeaderCarrier(r.Header))
			ctx, span := tracer().Start(ctx, "HTTP "+r.Method,
				trace.WithSpanKind(trace.SpanKindServer),
				trace.WithAttributes(
					semconv.HTTPRequestMethodKey.String(r.Method),
					semconv.URLPath(r.URL.Path),
				),
			)
			defer span.End()

			if id := traceID(ctx); id != "" {
				w.Header().Set("X-Correlation-ID", id)
			}

			sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
			r = r.WithContext(ctx)
			next.ServeHTTP(sw, r)

			route := unmatchedRoute
			if r.Pattern != "" {
				route = r.Pattern
			}
			span.SetName(route)
			span.SetAttributes(
				semconv.HTTPRoute(route),
				semconv.HTTPResponseStatusCode(sw.status),
			)
			sessionID := r.PathValue("id")
			if sessionID != "" {
				span.SetAttributes(attribute.String(SessionIDKey, sessionID))
			}
			if sw.status >= http.StatusInternalServerError {
				span.SetStatus(codes.Error, http.StatusText(sw.status))
			}

			elapsed := time.Since(start)
			m.HTTPRequestDuration.Record(ctx, elapsed.Seconds(),
				metric.WithAttributes(
					attribute.String("method", r.Method),
					attribute.String("route", route),
					attribute.String("status", statusClass(sw.status)),
				),
			)

			Logger(WithSessionID(ctx, sessionID)).LogAttrs(ctx, slog.LevelDebug, "request served",
				slog.String("route", route),
				slog.Int("status", sw.status),
				slog.Duration("elapsed", elapsed),
			)
		})
	}
}

// statusClass folds a status code into "2xx", "4xx" and so on.
func statusClass(code int) string {
	switch {
	case code >= 500:
		return "5xx"
	case code >= 400:
		return "4xx"
	case code >= 300:
		return "3xx"
	default:
		return "2xx"
	}
}
