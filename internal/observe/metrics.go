// Package observe provides observability primitives for scribe:
// OpenTelemetry metrics, tracing, trace-aware logging and HTTP middleware.
//
// Metrics are recorded through the OpenTelemetry Metrics API. A Prometheus
// exporter bridge is installed by [InitProvider] so metrics can be scraped
// via /metrics. [DefaultMetrics] uses the global meter provider; tests should
// use [NewMetrics] with their own [metric.MeterProvider].
package observe

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope name used for all scribe metrics.
const meterName = "github.com/MrWong99/scribe"

// Word classes recorded on WordsRecognized.
const (
	ClassRecognized = "recognized"
	ClassSkipped    = "skipped"
)

// Metrics holds all OpenTelemetry metric instruments for the application.
// All fields are safe for concurrent use.
type Metrics struct {
	// LinesAppended counts lines added to the transcript.
	LinesAppended metric.Int64Counter

	// WordsRecognized counts words by attribute.String("class", ClassRecognized|ClassSkipped).
	WordsRecognized metric.Int64Counter

	// WordsEdited counts corrections applied to uncertain words.
	WordsEdited metric.Int64Counter

	// RenderDuration tracks how long a full text refresh takes.
	RenderDuration metric.Float64Histogram

	// STTDuration tracks the time from the first audio chunk of an
	// utterance to its final transcript.
	STTDuration metric.Float64Histogram

	// Exports counts export attempts by attribute.String("status", "ok"|"error").
	Exports metric.Int64Counter

	// Suggestions counts offered candidates by attribute.String("source", ...).
	Suggestions metric.Int64Counter

	// ProviderErrors counts provider failures by provider and kind.
	ProviderErrors metric.Int64Counter

	// ActiveRecognitions is the number of recognition runs in progress.
	ActiveRecognitions metric.Int64UpDownCounter

	// HTTPRequestDuration tracks health and metrics endpoint latency.
	HTTPRequestDuration metric.Float64Histogram
}

// latencyBuckets are histogram bucket boundaries in seconds for provider
// round trips.
var latencyBuckets = []float64{
	0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30,
}

// renderBuckets cover in-memory text rebuilds, which take micro- to
// milliseconds.
var renderBuckets = []float64{
	0.00005, 0.0001, 0.00025, 0.0005, 0.001, 0.0025, 0.005, 0.01, 0.05,
}

// NewMetrics creates a fully initialised [Metrics] struct using the given
// [metric.MeterProvider]. Returns an error if any instrument creation fails.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	met := &Metrics{}

	counters := []struct {
		dst  *metric.Int64Counter
		name string
		desc string
	}{
		{&met.LinesAppended, "scribe.lines.appended", "Lines added to the transcript."},
		{&met.WordsRecognized, "scribe.words.recognized", "Recognized words by class."},
		{&met.WordsEdited, "scribe.words.edited", "Corrections applied to uncertain words."},
		{&met.Exports, "scribe.exports", "Export attempts by status."},
		{&met.Suggestions, "scribe.suggestions", "Suggestions offered by source."},
		{&met.ProviderErrors, "scribe.provider.errors", "Provider errors by provider and kind."},
	}
	for _, c := range counters {
		inst, err := m.Int64Counter(c.name, metric.WithDescription(c.desc))
		if err != nil {
			return nil, err
		}
		*c.dst = inst
	}

	histograms := []struct {
		dst     *metric.Float64Histogram
		name    string
		desc    string
		buckets []float64
	}{
		{&met.RenderDuration, "scribe.render.duration", "Duration of a full transcript refresh.", renderBuckets},
		{&met.STTDuration, "scribe.stt.duration", "Time from first audio to final transcript.", latencyBuckets},
		{&met.HTTPRequestDuration, "scribe.http.request.duration", "HTTP request latency by method and path.", nil},
	}
	for _, h := range histograms {
		opts := []metric.Float64HistogramOption{
			metric.WithDescription(h.desc),
			metric.WithUnit("s"),
		}
		if h.buckets != nil {
			opts = append(opts, metric.WithExplicitBucketBoundaries(h.buckets...))
		}
		inst, err := m.Float64Histogram(h.name, opts...)
		if err != nil {
			return nil, err
		}
		*h.dst = inst
	}

	var err error
	if met.ActiveRecognitions, err = m.Int64UpDownCounter("scribe.active_recognitions",
		metric.WithDescription("Number of recognition runs in progress."),
	); err != nil {
		return nil, err
	}

	return met, nil
}

var (
	defaultMetrics     *Metrics
	defaultMetricsOnce sync.Once
)

// DefaultMetrics returns the package-level [Metrics] instance, creating it on
// first call using [otel.GetMeterProvider]. Panics if instrument creation
// fails, which does not happen with the global provider.
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

// Attr is a convenience alias for [attribute.String].
func Attr(key, value string) attribute.KeyValue {
	return attribute.String(key, value)
}

// RecordWords adds the recognized and skipped counts of one line.
func (m *Metrics) RecordWords(ctx context.Context, recognized, skipped int) {
	if recognized > 0 {
		m.WordsRecognized.Add(ctx, int64(recognized), metric.WithAttributes(Attr("class", ClassRecognized)))
	}
	if skipped > 0 {
		m.WordsRecognized.Add(ctx, int64(skipped), metric.WithAttributes(Attr("class", ClassSkipped)))
	}
}

// RecordExport counts one export attempt.
func (m *Metrics) RecordExport(ctx context.Context, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.Exports.Add(ctx, 1, metric.WithAttributes(Attr("status", status)))
}

// RecordSuggestions counts n suggestions from source.
func (m *Metrics) RecordSuggestions(ctx context.Context, source string, n int) {
	if n <= 0 {
		return
	}
	m.Suggestions.Add(ctx, int64(n), metric.WithAttributes(Attr("source", source)))
}

// RecordProviderError counts one provider failure.
func (m *Metrics) RecordProviderError(ctx context.Context, provider, kind string) {
	m.ProviderErrors.Add(ctx, 1,
		metric.WithAttributes(
			Attr("provider", provider),
			Attr("kind", kind),
		),
	)
}
