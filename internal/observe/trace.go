package observe

import (
	"context"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// tracerName is the instrumentation scope of every voxmate span.
const tracerName = "github.com/MrWong99/voxmate"

// Span names recorded by the controller.
const (
	SpanUtterance = "controller.utterance"
	SpanExecute   = "controller.execute"
)

// Span attribute keys.
const (
	AttrTab      = attribute.Key("voxmate.tab")
	AttrOracle   = attribute.Key("voxmate.oracle")
	AttrOutcome  = attribute.Key("voxmate.outcome")
	AttrStrategy = attribute.Key("voxmate.strategy")
	AttrMove     = attribute.Key("voxmate.move")
	AttrAttempts = attribute.Key("voxmate.attempts")
)

// Tracer returns the voxmate tracer of tp, or of the global provider when tp
// is nil.
func Tracer(tp trace.TracerProvider) trace.Tracer {
	if tp == nil {
		tp = otel.GetTracerProvider()
	}
	return tp.Tracer(tracerName)
}

// StartSpan starts a span on the global voxmate tracer. The caller must call
// span.End().
func StartSpan(ctx context.Context, name string, opts ...trace.SpanStartOption) (context.Context, trace.Span) {
	return Tracer(nil).Start(ctx, name, opts...)
}

// StartUtterance opens the span covering one final transcript of tab.
func StartUtterance(ctx context.Context, tr trace.Tracer, tab, oracle string) (context.Context, trace.Span) {
	return tr.Start(ctx, SpanUtterance, trace.WithAttributes(
		AttrTab.String(tab),
		AttrOracle.String(oracle),
	))
}

// EndUtterance records how the utterance was handled and ends span. A non-nil
// err marks the span as failed.
func EndUtterance(span trace.Span, outcome, strategy, move string, err error) {
	attrs := []attribute.KeyValue{AttrOutcome.String(outcome)}
	if strategy != "" {
		attrs = append(attrs, AttrStrategy.String(strategy))
	}
	if move != "" {
		attrs = append(attrs, AttrMove.String(move))
	}
	span.SetAttributes(attrs...)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, outcome)
	}
	span.End()
}

// CorrelationID returns the trace ID of the span in ctx, or "" without one.
func CorrelationID(ctx context.Context) string {
	sc := trace.SpanContextFromContext(ctx)
	if sc.HasTraceID() {
		return sc.TraceID().String()
	}
	return ""
}

// Logger returns the default logger with trace_id and span_id of the span in
// ctx attached, so utterance logs can be joined with their trace.
func Logger(ctx context.Context) *slog.Logger {
	l := slog.Default()
	sc := trace.SpanContextFromContext(ctx)
	if sc.HasTraceID() {
		l = l.With(
			slog.String("trace_id", sc.TraceID().String()),
			slog.String("span_id", sc.SpanID().String()),
		)
	}
	return l
}
