// Package trace owns the process tracer. Spans are exported to stdout when
// LOG_TRACING_ENABLED=true; otherwise StartSpan hands back the caller's span and costs nothing.
package trace

import (
	"context"
	"os"
	"strconv"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
	"go.opentelemetry.io/otel/trace"
)

const serviceName = "llm-fx-advisor"

var (
	provider *sdktrace.TracerProvider
	tracer   trace.Tracer
)

// Init reads LOG_TRACING_ENABLED and, when set, LOG_TRACING_SAMPLE (0..1, default 1)
// and LOG_TRACING_PRETTY.
func Init(version string) error {
	if os.Getenv("LOG_TRACING_ENABLED") != "true" {
		return nil
	}

	var exporterOpts []stdouttrace.Option
	if os.Getenv("LOG_TRACING_PRETTY") == "true" {
		exporterOpts = append(exporterOpts, stdouttrace.WithPrettyPrint())
	}
	exporter, err := stdouttrace.New(exporterOpts...)
	if err != nil {
		return err
	}

	res, err := resource.New(context.Background(),
		resource.WithAttributes(
			semconv.ServiceName(serviceName),
			semconv.ServiceVersion(version),
		),
	)
	if err != nil {
		return err
	}

	use(sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(sampleRatio()))),
	))
	otel.SetTracerProvider(provider)
	return nil
}

func sampleRatio() float64 {
	v, err := strconv.ParseFloat(os.Getenv("LOG_TRACING_SAMPLE"), 64)
	if err != nil || v < 0 || v > 1 {
		return 1
	}
	return v
}

// InitWithProvider installs tp, typically one backed by an in-memory recorder in tests.
func InitWithProvider(tp *sdktrace.TracerProvider) {
	use(tp)
}

func use(tp *sdktrace.TracerProvider) {
	provider = tp
	tracer = tp.Tracer(serviceName)
}

// Shutdown flushes pending spans.
func Shutdown(ctx context.Context) error {
	if provider == nil {
		return nil
	}
	return provider.Shutdown(ctx)
}

func Enabled() bool {
	return tracer != nil
}

func StartSpan(ctx context.Context, name string, opts ...trace.SpanStartOption) (context.Context, trace.Span) {
	if tracer == nil {
		return ctx, trace.SpanFromContext(ctx)
	}
	return tracer.Start(ctx, name, opts...)
}

// GetTraceFields returns the ids of the span in ctx for log correlation.
func GetTraceFields(ctx context.Context) (traceID, spanID string, ok bool) {
	if tracer == nil {
		return "", "", false
	}
	sc := trace.SpanFromContext(ctx).SpanContext()
	if !sc.IsValid() {
		return "", "", false
	}
	return sc.TraceID().String(), sc.SpanID().String(), true
}
