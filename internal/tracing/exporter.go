package tracing

import (
	"context"
	"sync"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// LogExporter writes finished spans to a zerolog logger at debug level
type LogExporter struct {
	mu      sync.Mutex
	logger  zerolog.Logger
	stopped bool
}

// NewLogExporter creates a span exporter backed by logger
func NewLogExporter(logger zerolog.Logger) *LogExporter {
	return &LogExporter{logger: logger.With().Str("component", "tracing").Logger()}
}

func (e *LogExporter) ExportSpans(ctx context.Context, spans []sdktrace.ReadOnlySpan) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.stopped {
		return nil
	}

	for _, s := range spans {
		evt := e.logger.Debug().
			Str("trace_id", s.SpanContext().TraceID().String()).
			Str("span_id", s.SpanContext().SpanID().String()).
			Str("span", s.Name()).
			Str("scope", s.InstrumentationScope().Name).
			Dur("duration", s.EndTime().Sub(s.StartTime()))
		if s.Parent().IsValid() {
			evt = evt.Str("parent_span_id", s.Parent().SpanID().String())
		}
		for _, kv := range s.Attributes() {
			evt = evt.Str(string(kv.Key), kv.Value.Emit())
		}
		if s.Status().Code == codes.Error {
			evt = evt.Str("status", "error").Str("status_message", s.Status().Description)
		}
		evt.Msg("Span finished")
	}
	return nil
}

func (e *LogExporter) Shutdown(ctx context.Context) error {
	e.mu.Lock()
	e.stopped = true
	e.mu.Unlock()
	return nil
}
