package observe

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	promexporter "go.opentelemetry.io/otel/exporters/prometheus"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.39.0"
)

// Telemetry owns the SDK providers of a serving process: a meter provider
// exporting into a private Prometheus registry, and a tracer provider. Both
// are installed as the OTel globals by [Setup].
type Telemetry struct {
	// Metrics is bound to the telemetry meter provider.
	Metrics *Metrics

	registry *prometheus.Registry
	mp       *sdkmetric.MeterProvider
	tp       *sdktrace.TracerProvider
}

// SetupOption configures [Setup].
type SetupOption func(*setupConfig)

type setupConfig struct {
	version  string
	exporter sdktrace.SpanExporter
}

// WithServiceVersion sets service.version on exported telemetry.
func WithServiceVersion(v string) SetupOption {
	return func(c *setupConfig) { c.version = v }
}

// WithSpanExporter batches finished spans to exp. Without it spans are
// recorded for log correlation but never leave the process.
func WithSpanExporter(exp sdktrace.SpanExporter) SetupOption {
	return func(c *setupConfig) { c.exporter = exp }
}

// Setup builds the providers for serviceName and registers them globally.
// The registry behind [Telemetry.Handler] also carries the Go runtime and
// process collectors.
func Setup(serviceName string, opts ...SetupOption) (*Telemetry, error) {
	var cfg setupConfig
	for _, o := range opts {
		o(&cfg)
	}
	if serviceName == "" {
		serviceName = "elocute"
	}

	res, err := resource.Merge(resource.Default(), resource.NewWithAttributes(
		semconv.SchemaURL,
		semconv.ServiceName(serviceName),
		semconv.ServiceVersion(cfg.version),
	))
	if err != nil {
		return nil, fmt.Errorf("observe: build resource: %w", err)
	}

	reg := prometheus.NewRegistry()
	if err := reg.Register(collectors.NewGoCollector()); err != nil {
		return nil, fmt.Errorf("observe: register go collector: %w", err)
	}
	if err := reg.Register(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{})); err != nil {
		return nil, fmt.Errorf("observe: register process collector: %w", err)
	}
	exp, err := promexporter.New(promexporter.WithRegisterer(reg))
	if err != nil {
		return nil, fmt.Errorf("observe: prometheus exporter: %w", err)
	}

	mp := sdkmetric.NewMeterProvider(sdkmetric.WithResource(res), sdkmetric.WithReader(exp))
	tpOpts := []sdktrace.TracerProviderOption{sdktrace.WithResource(res)}
	if cfg.exporter != nil {
		tpOpts = append(tpOpts, sdktrace.WithBatcher(cfg.exporter))
	}
	tp := sdktrace.NewTracerProvider(tpOpts...)

	m, err := NewMetrics(mp)
	if err != nil {
		return nil, errors.Join(fmt.Errorf("observe: create metrics: %w", err), mp.Shutdown(context.Background()))
	}

	otel.SetMeterProvider(mp)
	otel.SetTracerProvider(tp)
	return &Telemetry{Metrics: m, registry: reg, mp: mp, tp: tp}, nil
}

// Handler serves the registry in the Prometheus text format.
func (t *Telemetry) Handler() http.Handler {
	return promhttp.HandlerFor(t.registry, promhttp.HandlerOpts{})
}

// Shutdown flushes pending spans and stops both providers.
func (t *Telemetry) Shutdown(ctx context.Context) error {
	return errors.Join(t.tp.Shutdown(ctx), t.mp.Shutdown(ctx))
}
