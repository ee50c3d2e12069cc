// Package tracing installs an OpenTelemetry tracer provider that exports the
// client's spans over OTLP/HTTP.
package tracing

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"

	"github.com/angeloszaimis/typesense-client/config"
)

const serviceName = "typesense-client"

// ShutdownFunc flushes pending spans and stops the exporter.
type ShutdownFunc func(context.Context) error

// Setup installs a global tracer provider exporting to cfg.Tracing.Endpoint.
// Without an endpoint it installs nothing and the returned ShutdownFunc is
// a no-op.
func Setup(ctx context.Context, cfg *config.Config) (ShutdownFunc, error) {
	if cfg.Tracing.Endpoint == "" {
		return func(context.Context) error { return nil }, nil
	}

	tp, err := NewProvider(ctx, cfg)
	if err != nil {
		return nil, err
	}

	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	return tp.Shutdown, nil
}

// NewProvider builds a batching tracer provider for cfg.Tracing without
// installing it.
func NewProvider(ctx context.Context, cfg *config.Config) (*sdktrace.TracerProvider, error) {
	opts := []otlptracehttp.Option{otlptracehttp.WithEndpoint(cfg.Tracing.Endpoint)}
	if cfg.Tracing.Insecure {
		opts = append(opts, otlptracehttp.WithInsecure())
	}

	exporter, err := otlptracehttp.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("otlp exporter: %w", err)
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName(serviceName),
			semconv.DeploymentEnvironment(cfg.Environment),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("tracing resource: %w", err)
	}

	return sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(sampleRatio(cfg.Tracing.SampleRatio)))),
	), nil
}

// sampleRatio treats the zero value as "sample everything".
func sampleRatio(ratio float64) float64 {
	if ratio <= 0 {
		return 1
	}
	return ratio
}
