// Package tracing sets up the OpenTelemetry tracer provider and offers small span helpers.
// This is part of the platform layer and contains no business logic.
package tracing

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"

	"catalog_chat/platform/config"
)

// InstrumentationName is the tracer name used by application spans.
const InstrumentationName = "catalog_chat"

// Provider owns the SDK tracer provider and its exporter.
type Provider struct {
	tp       *sdktrace.TracerProvider
	tracer   trace.Tracer
	exporter string
}

// New builds a tracer provider and installs it globally.
// With an OTLP endpoint configured spans go over gRPC; otherwise they are
// written as JSON to fallback, which may be io.Discard.
func New(ctx context.Context, cfg config.TracingConfig, fallback io.Writer) (*Provider, error) {
	res, err := resource.Merge(
		resource.Default(),
		resource.NewSchemaless(semconv.ServiceNameKey.String(cfg.GetServiceName())),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	var (
		exporter sdktrace.SpanExporter
		kind     string
	)
	if endpoint := cfg.GetOTLPEndpoint(); endpoint != "" {
		exporter, err = otlptracegrpc.New(ctx,
			otlptracegrpc.WithEndpoint(endpoint),
			otlptracegrpc.WithInsecure(),
		)
		kind = "otlp"
	} else {
		if fallback == nil {
			fallback = io.Discard
		}
		exporter, err = stdouttrace.New(stdouttrace.WithWriter(fallback))
		kind = "stdout"
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create %s exporter: %w", kind, err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
	)

	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	return &Provider{
		tp:       tp,
		tracer:   tp.Tracer(InstrumentationName),
		exporter: kind,
	}, nil
}

// Exporter reports which exporter is in use ("otlp" or "stdout").
func (p *Provider) Exporter() string { return p.exporter }

// Tracer returns the application tracer.
func (p *Provider) Tracer() trace.Tracer { return p.tracer }

// Shutdown flushes pending spans and stops the exporter.
func (p *Provider) Shutdown(ctx context.Context) error {
	return p.tp.Shutdown(ctx)
}

// StartSpan starts a span on the global application tracer.
func StartSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return otel.Tracer(InstrumentationName).Start(ctx, name, trace.WithAttributes(attrs...))
}

// RecordError marks the span as failed. A nil error is ignored.
func RecordError(span trace.Span, err error) {
	if err == nil {
		return
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}

// HTTPClient returns a client whose transport creates a client span per request.
func HTTPClient(base http.RoundTripper) *http.Client {
	if base == nil {
		base = http.DefaultTransport
	}
	return &http.Client{Transport: otelhttp.NewTransport(base)}
}
