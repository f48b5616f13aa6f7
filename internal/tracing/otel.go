package tracing

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
)

// Config configures the process tracer provider
type Config struct {
	ServiceName string
	// SampleRatio is the fraction of root spans kept, 1 when zero
	SampleRatio float64
	Exporter    sdktrace.SpanExporter
}

var (
	setupOnce sync.Once
	setupErr  error
	active    *sdktrace.TracerProvider
	activeMu  sync.Mutex
)

// Setup installs the global tracer provider. Only the first call has an effect.
func Setup(cfg Config) error {
	setupOnce.Do(func() {
		res, err := resource.New(context.Background(),
			resource.WithAttributes(semconv.ServiceName(cfg.ServiceName)))
		if err != nil {
			setupErr = err
			return
		}

		ratio := cfg.SampleRatio
		if ratio <= 0 {
			ratio = 1
		}
		opts := []sdktrace.TracerProviderOption{
			sdktrace.WithResource(res),
			sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(ratio))),
		}
		if cfg.Exporter != nil {
			opts = append(opts, sdktrace.WithBatcher(cfg.Exporter))
		}

		tp := sdktrace.NewTracerProvider(opts...)
		activeMu.Lock()
		active = tp
		activeMu.Unlock()
		otel.SetTracerProvider(tp)
	})
	return setupErr
}

// Shutdown flushes pending spans of the provider installed by Setup
func Shutdown(ctx context.Context) error {
	activeMu.Lock()
	tp := active
	activeMu.Unlock()
	if tp == nil {
		return nil
	}
	return tp.Shutdown(ctx)
}

// StartSpan starts a span on the named tracer. A context without a trace ID
// picks up the one of the new span.
func StartSpan(ctx context.Context, tracerName, spanName string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, span := otel.Tracer(tracerName).Start(ctx, spanName, trace.WithAttributes(attrs...))

	if sc := span.SpanContext(); sc.IsValid() && GetTraceID(ctx) == "" {
		ctx = WithTraceID(ctx, sc.TraceID().String())
	}
	return ctx, span
}
