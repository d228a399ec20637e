package observability

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/couchcryptid/waveguard-alert-service"

// Tracer returns the service tracer.
func Tracer() trace.Tracer {
	return otel.Tracer(tracerName)
}

// InitTracing installs an OTLP gRPC trace provider. An empty endpoint leaves
// the global noop provider in place. The returned function flushes and stops
// the exporter.
func InitTracing(ctx context.Context, endpoint, version string) (func(context.Context) error, error) {
	if endpoint == "" {
		return func(context.Context) error { return nil }, nil
	}

	exporter, err := otlptracegrpc.New(ctx,
		otlptracegrpc.WithEndpoint(endpoint),
		otlptracegrpc.WithInsecure(),
	)
	if err != nil {
		return nil, fmt.Errorf("create OTLP exporter: %w", err)
	}

	res, err := resource.New(ctx,
		resource.WithHost(),
		resource.WithAttributes(
			semconv.ServiceNameKey.String("waveguard"),
			semconv.ServiceVersionKey.String(version),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("create resource: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(tp)

	return tp.Shutdown, nil
}

// StartPredictSpan opens a client span around one prediction service call.
func StartPredictSpan(ctx context.Context, sessionID string, generation uint64) (context.Context, trace.Span) {
	return Tracer().Start(ctx, "prediction.request",
		trace.WithAttributes(
			attribute.String("waveguard.session_id", sessionID),
			attribute.Int64("waveguard.generation", int64(generation)),
		),
		trace.WithSpanKind(trace.SpanKindClient),
	)
}

// EndPredictSpan records the outcome and ends the span.
func EndPredictSpan(span trace.Span, tier string, isError bool, errMsg string) {
	span.SetAttributes(
		attribute.String("waveguard.tier", tier),
		attribute.Bool("waveguard.error", isError),
	)
	if isError {
		span.SetStatus(codes.Error, errMsg)
	}
	span.End()
}
