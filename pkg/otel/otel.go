// Package otel wires OpenTelemetry tracing for the marketplace binaries.
package otel

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"

	"marketplace/pkg/logger"
)

const tracerName = "marketplace"

// Config configures tracing.
type Config struct {
	ServiceName string
	// Host is the OTLP/gRPC collector address. Spans are created but not
	// exported when it is empty.
	Host        string
	Probability float64
}

// InitTracing installs a global tracer provider and returns it together
// with its shutdown function.
func InitTracing(log *logger.Logger, cfg Config) (*sdktrace.TracerProvider, func(context.Context) error, error) {
	ctx := context.Background()

	opts := []sdktrace.TracerProviderOption{
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(cfg.Probability))),
		sdktrace.WithResource(resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceName(cfg.ServiceName),
		)),
	}
	if cfg.Host != "" {
		exporter, err := otlptracegrpc.New(ctx,
			otlptracegrpc.WithEndpoint(cfg.Host),
			otlptracegrpc.WithInsecure(),
		)
		if err != nil {
			return nil, nil, fmt.Errorf("create otlp exporter: %w", err)
		}
		opts = append(opts, sdktrace.WithBatcher(exporter))
		log.Info(ctx, "tracing enabled", "host", cfg.Host, "probability", cfg.Probability)
	} else {
		log.Info(ctx, "tracing without exporter")
	}

	tp := sdktrace.NewTracerProvider(opts...)
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))
	return tp, tp.Shutdown, nil
}

type tracerKey struct{}

// InjectTracing stores tracer in ctx for later AddSpan calls.
func InjectTracing(ctx context.Context, tracer trace.Tracer) context.Context {
	return context.WithValue(ctx, tracerKey{}, tracer)
}

// AddSpan starts a span named name using the tracer in ctx, falling back
// to the global provider.
func AddSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	tracer, ok := ctx.Value(tracerKey{}).(trace.Tracer)
	if !ok {
		tracer = otel.Tracer(tracerName)
	}
	return tracer.Start(ctx, name, trace.WithAttributes(attrs...))
}

// GetTraceID returns the id of the trace active in ctx, or "".
func GetTraceID(ctx context.Context) string {
	sc := trace.SpanContextFromContext(ctx)
	if !sc.HasTraceID() {
		return ""
	}
	return sc.TraceID().String()
}
