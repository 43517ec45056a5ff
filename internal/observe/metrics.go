// Package observe provides application-wide observability primitives for
// voxmate: OpenTelemetry metrics, distributed tracing, structured logging,
// and HTTP middleware that ties them together.
//
// Metrics are recorded through the OpenTelemetry Metrics API. A Prometheus
// exporter bridge is available via [InitProvider] so that metrics can be
// scraped via the standard /metrics endpoint. A package-level default
// [Metrics] instance ([DefaultMetrics]) is provided for convenience; tests
// should use [NewMetrics] with a custom [metric.MeterProvider] to avoid
// cross-test pollution.
package observe

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope name used for all voxmate metrics.
const meterName = "github.com/MrWong99/voxmate"

// Metrics holds all OpenTelemetry metric instruments for the application.
// All fields are safe for concurrent use; the underlying OTel types handle
// their own synchronisation.
type Metrics struct {
	// --- Latency histograms ---

	// ResolveDuration tracks the time from transcript arrival to a
	// resolution outcome (normalize + parse + legal-move lookup).
	ResolveDuration metric.Float64Histogram

	// ExecuteDuration tracks how long the extension took to execute a move
	// on the host page, across all attempts.
	ExecuteDuration metric.Float64Histogram

	// --- Counters ---

	// Utterances counts processed transcripts. Use with attribute:
	//   attribute.String("outcome", ...)
	Utterances metric.Int64Counter

	// ExecutorAttempts counts move execution attempts. Use with attribute:
	//   attribute.String("status", ...)
	ExecutorAttempts metric.Int64Counter

	// RecognitionRestarts counts recognition session restarts. Use with
	// attribute:
	//   attribute.String("reason", ...)
	RecognitionRestarts metric.Int64Counter

	// Resyncs counts move-list replays.
	Resyncs metric.Int64Counter

	// SkippedPlies counts move-list tokens that could not be replayed.
	SkippedPlies metric.Int64Counter

	// ProviderErrors counts speech provider errors. Use with attributes:
	//   attribute.String("provider", ...), attribute.String("kind", ...)
	ProviderErrors metric.Int64Counter

	// --- Gauges ---

	// ActiveTabs tracks the number of connected browser tabs.
	ActiveTabs metric.Int64UpDownCounter

	// --- HTTP middleware ---

	// HTTPRequestDuration tracks HTTP request processing time. Use with attributes:
	//   attribute.String("method", ...), attribute.String("path", ...)
	HTTPRequestDuration metric.Float64Histogram
}

// latencyBuckets defines histogram bucket boundaries (in seconds) for the
// voice-command round trip.
var latencyBuckets = []float64{
	0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5,
}

// NewMetrics creates a fully initialised [Metrics] struct using the given
// [metric.MeterProvider]. Returns an error if any instrument creation fails.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	// Histograms.
	if met.ResolveDuration, err = m.Float64Histogram("voxmate.resolve.duration",
		metric.WithDescription("Latency from transcript arrival to resolution outcome."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.ExecuteDuration, err = m.Float64Histogram("voxmate.execute.duration",
		metric.WithDescription("Latency of move execution on the host page."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}

	// Counters.
	if met.Utterances, err = m.Int64Counter("voxmate.utterances",
		metric.WithDescription("Total processed utterances by resolution outcome."),
	); err != nil {
		return nil, err
	}
	if met.ExecutorAttempts, err = m.Int64Counter("voxmate.executor.attempts",
		metric.WithDescription("Total move execution attempts by status."),
	); err != nil {
		return nil, err
	}
	if met.RecognitionRestarts, err = m.Int64Counter("voxmate.recognition.restarts",
		metric.WithDescription("Total recognition session restarts by reason."),
	); err != nil {
		return nil, err
	}
	if met.Resyncs, err = m.Int64Counter("voxmate.movelist.resyncs",
		metric.WithDescription("Total move-list replays."),
	); err != nil {
		return nil, err
	}
	if met.SkippedPlies, err = m.Int64Counter("voxmate.movelist.skipped_plies",
		metric.WithDescription("Total move-list tokens that could not be replayed."),
	); err != nil {
		return nil, err
	}
	if met.ProviderErrors, err = m.Int64Counter("voxmate.provider.errors",
		metric.WithDescription("Total speech provider errors by provider and kind."),
	); err != nil {
		return nil, err
	}

	// Gauges (UpDownCounters).
	if met.ActiveTabs, err = m.Int64UpDownCounter("voxmate.active_tabs",
		metric.WithDescription("Number of connected browser tabs."),
	); err != nil {
		return nil, err
	}

	// HTTP middleware histogram.
	if met.HTTPRequestDuration, err = m.Float64Histogram("voxmate.http.request.duration",
		metric.WithDescription("HTTP request latency by method and path."),
		metric.WithUnit("s"),
	); err != nil {
		return nil, err
	}

	return met, nil
}

// defaultMetrics is the lazily-initialised package-level Metrics instance.
var (
	defaultMetrics     *Metrics
	defaultMetricsOnce sync.Once
)

// DefaultMetrics returns the package-level [Metrics] instance, creating it on
// first call using [otel.GetMeterProvider]. Subsequent calls return the same
// pointer. Panics if instrument creation fails (should not happen with the
// global provider).
func DefaultMetrics() *Metrics {
	defaultMetricsOnce.Do(func() {
		var err error
		defaultMetrics, err = NewMetrics(otel.GetMeterProvider())
		if err != nil {
			panic("observe: failed to create default metrics: " + err.Error())
		}
	})
	return defaultMetrics
}

// Attr is a convenience alias for [attribute.String] to reduce verbosity at
// call sites.
func Attr(key, value string) attribute.KeyValue {
	return attribute.String(key, value)
}

// RecordUtterance records one processed utterance with its outcome and
// resolution latency.
func (m *Metrics) RecordUtterance(ctx context.Context, outcome string, latency time.Duration) {
	attrs := metric.WithAttributes(attribute.String("outcome", outcome))
	m.Utterances.Add(ctx, 1, attrs)
	m.ResolveDuration.Record(ctx, latency.Seconds(), attrs)
}

// RecordExecutorAttempt records one move execution attempt.
func (m *Metrics) RecordExecutorAttempt(ctx context.Context, status string) {
	m.ExecutorAttempts.Add(ctx, 1,
		metric.WithAttributes(attribute.String("status", status)),
	)
}

// RecordRecognitionRestart records a recognition restart.
func (m *Metrics) RecordRecognitionRestart(ctx context.Context, reason string) {
	m.RecognitionRestarts.Add(ctx, 1,
		metric.WithAttributes(attribute.String("reason", reason)),
	)
}

// RecordResync records a move-list replay and its skipped tokens.
func (m *Metrics) RecordResync(ctx context.Context, skipped int) {
	m.Resyncs.Add(ctx, 1)
	if skipped > 0 {
		m.SkippedPlies.Add(ctx, int64(skipped))
	}
}

// RecordProviderError is a convenience method that records a provider error
// counter increment.
func (m *Metrics) RecordProviderError(ctx context.Context, provider, kind string) {
	m.ProviderErrors.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("provider", provider),
			attribute.String("kind", kind),
		),
	)
}
