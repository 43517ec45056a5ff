package observe

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func newRecorder(t *testing.T) (*sdktrace.TracerProvider, *tracetest.InMemoryExporter) {
	t.Helper()
	exp := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exp))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })
	return tp, exp
}

func attrMap(kvs []attribute.KeyValue) map[attribute.Key]string {
	m := make(map[attribute.Key]string, len(kvs))
	for _, kv := range kvs {
		m[kv.Key] = kv.Value.Emit()
	}
	return m
}

func TestUtteranceSpan(t *testing.T) {
	tests := []struct {
		name       string
		outcome    string
		strategy   string
		move       string
		err        error
		wantStatus codes.Code
		wantAttrs  map[attribute.Key]string
	}{
		{
			name:       "committed move",
			outcome:    "committed",
			strategy:   "coordinate",
			move:       "e2e4",
			wantStatus: codes.Unset,
			wantAttrs: map[attribute.Key]string{
				AttrTab:      "tab-7",
				AttrOracle:   "shadow",
				AttrOutcome:  "committed",
				AttrStrategy: "coordinate",
				AttrMove:     "e2e4",
			},
		},
		{
			name:       "no parse omits empty attributes",
			outcome:    "no_parse",
			wantStatus: codes.Unset,
			wantAttrs: map[attribute.Key]string{
				AttrTab:     "tab-7",
				AttrOracle:  "shadow",
				AttrOutcome: "no_parse",
			},
		},
		{
			name:       "failed execution",
			outcome:    "failed",
			strategy:   "san",
			move:       "Nf3",
			err:        errors.New("no effect"),
			wantStatus: codes.Error,
			wantAttrs: map[attribute.Key]string{
				AttrOutcome: "failed",
				AttrMove:    "Nf3",
			},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			tp, exp := newRecorder(t)

			ctx, span := StartUtterance(context.Background(), Tracer(tp), "tab-7", "shadow")
			if CorrelationID(ctx) == "" {
				t.Error("utterance context carries no trace ID")
			}
			EndUtterance(span, tc.outcome, tc.strategy, tc.move, tc.err)

			spans := exp.GetSpans()
			if len(spans) != 1 {
				t.Fatalf("recorded %d spans, want 1", len(spans))
			}
			got := spans[0]
			if got.Name != SpanUtterance {
				t.Errorf("span name = %q, want %q", got.Name, SpanUtterance)
			}
			if got.InstrumentationScope.Name != tracerName {
				t.Errorf("scope = %q, want %q", got.InstrumentationScope.Name, tracerName)
			}
			if got.Status.Code != tc.wantStatus {
				t.Errorf("status = %v, want %v", got.Status.Code, tc.wantStatus)
			}
			attrs := attrMap(got.Attributes)
			for k, want := range tc.wantAttrs {
				if attrs[k] != want {
					t.Errorf("attribute %s = %q, want %q", k, attrs[k], want)
				}
			}
			if tc.strategy == "" {
				if _, ok := attrs[AttrStrategy]; ok {
					t.Errorf("empty strategy recorded: %v", attrs)
				}
			}
			if tc.err != nil && len(got.Events) == 0 {
				t.Error("error not recorded as span event")
			}
		})
	}
}

func TestCorrelationID_EmptyWithoutSpan(t *testing.T) {
	if got := CorrelationID(context.Background()); got != "" {
		t.Errorf("CorrelationID(background) = %q, want empty", got)
	}
}

func TestLogger_JoinsUtteranceTrace(t *testing.T) {
	var buf bytes.Buffer
	prev := slog.Default()
	slog.SetDefault(slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelInfo})))
	t.Cleanup(func() { slog.SetDefault(prev) })

	tp, _ := newRecorder(t)
	ctx, span := StartUtterance(context.Background(), Tracer(tp), "tab-7", "shadow")
	Logger(ctx).Info("controller: utterance", "tab", "tab-7")
	EndUtterance(span, "committed", "", "", nil)

	Logger(context.Background()).Info("no span")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("logged %d lines, want 2: %q", len(lines), buf.String())
	}
	if want := "trace_id=" + CorrelationID(ctx); !strings.Contains(lines[0], want) {
		t.Errorf("utterance log %q missing %q", lines[0], want)
	}
	if want := "span_id=" + span.SpanContext().SpanID().String(); !strings.Contains(lines[0], want) {
		t.Errorf("utterance log %q missing %q", lines[0], want)
	}
	if strings.Contains(lines[1], "trace_id") {
		t.Errorf("log without span carries trace_id: %q", lines[1])
	}
}

func TestTracerOptions_SampleRatio(t *testing.T) {
	tests := []struct {
		name        string
		ratio       float64
		wantSampled bool
	}{
		{name: "zero keeps every trace", ratio: 0, wantSampled: true},
		{name: "one keeps every trace", ratio: 1, wantSampled: true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			exp := tracetest.NewInMemoryExporter()
			tp := sdktrace.NewTracerProvider(tracerOptions(resource.Empty(), ProviderConfig{
				TraceSampleRatio: tc.ratio,
				TraceExporter:    exp,
			})...)
			t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })

			_, span := StartUtterance(context.Background(), Tracer(tp), "tab-1", "shadow")
			span.End()
			if got := span.SpanContext().IsSampled(); got != tc.wantSampled {
				t.Errorf("sampled = %v, want %v", got, tc.wantSampled)
			}
			if err := tp.ForceFlush(context.Background()); err != nil {
				t.Fatalf("ForceFlush: %v", err)
			}
			if n := len(exp.GetSpans()); n != 1 {
				t.Errorf("exported %d spans, want 1", n)
			}
		})
	}
}

func TestInitProvider_RejectsBadSampleRatio(t *testing.T) {
	for _, r := range []float64{-0.1, 1.5} {
		if _, err := InitProvider(ProviderConfig{TraceSampleRatio: r}); err == nil {
			t.Errorf("InitProvider(ratio %v) = nil error", r)
		}
	}
}
