package observe

import (
	"context"
	"errors"
	"testing"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func newTestMetrics(t *testing.T) (*Metrics, *sdkmetric.ManualReader) {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })

	m, err := NewMetrics(mp)
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}
	return m, reader
}

func collect(t *testing.T, reader *sdkmetric.ManualReader) metricdata.ResourceMetrics {
	t.Helper()
	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("Collect: %v", err)
	}
	return rm
}

func findMetric(rm metricdata.ResourceMetrics, name string) *metricdata.Metrics {
	for _, sm := range rm.ScopeMetrics {
		for i := range sm.Metrics {
			if sm.Metrics[i].Name == name {
				return &sm.Metrics[i]
			}
		}
	}
	return nil
}

// sumByAttr returns the int64 sum data points of metric name keyed by the
// value of attribute key ("" when the point has no such attribute).
func sumByAttr(t *testing.T, rm metricdata.ResourceMetrics, name, key string) map[string]int64 {
	t.Helper()
	met := findMetric(rm, name)
	if met == nil {
		t.Fatalf("metric %q not found", name)
	}
	sum, ok := met.Data.(metricdata.Sum[int64])
	if !ok {
		t.Fatalf("metric %q is %T, not an int64 sum", name, met.Data)
	}
	out := make(map[string]int64)
	for _, dp := range sum.DataPoints {
		v, _ := dp.Attributes.Value(Attr(key, "").Key)
		out[v.AsString()] += dp.Value
	}
	return out
}

func TestNewMetrics_AllInstruments(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	m.LinesAppended.Add(ctx, 1)
	m.WordsEdited.Add(ctx, 1)
	m.ActiveRecognitions.Add(ctx, 1)
	m.RenderDuration.Record(ctx, 0.0002)
	m.STTDuration.Record(ctx, 0.8)
	m.HTTPRequestDuration.Record(ctx, 0.01)
	m.RecordWords(ctx, 1, 1)
	m.RecordExport(ctx, nil)
	m.RecordSuggestions(ctx, "lexical", 1)
	m.RecordProviderError(ctx, "deepgram", "stt")

	rm := collect(t, reader)
	for _, name := range []string{
		"scribe.lines.appended",
		"scribe.words.recognized",
		"scribe.words.edited",
		"scribe.render.duration",
		"scribe.stt.duration",
		"scribe.exports",
		"scribe.suggestions",
		"scribe.provider.errors",
		"scribe.active_recognitions",
		"scribe.http.request.duration",
	} {
		if findMetric(rm, name) == nil {
			t.Errorf("metric %q not recorded", name)
		}
	}
}

func TestRecordWords(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	m.RecordWords(ctx, 3, 1)
	m.RecordWords(ctx, 2, 0)
	m.RecordWords(ctx, 0, 0)

	got := sumByAttr(t, collect(t, reader), "scribe.words.recognized", "class")
	if got[ClassRecognized] != 5 {
		t.Errorf("recognized = %d, want 5", got[ClassRecognized])
	}
	if got[ClassSkipped] != 1 {
		t.Errorf("skipped = %d, want 1", got[ClassSkipped])
	}
}

func TestRecordExport(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	m.RecordExport(ctx, nil)
	m.RecordExport(ctx, nil)
	m.RecordExport(ctx, errors.New("disk full"))

	got := sumByAttr(t, collect(t, reader), "scribe.exports", "status")
	if got["ok"] != 2 || got["error"] != 1 {
		t.Errorf("exports = %v, want ok=2 error=1", got)
	}
}

func TestRecordSuggestions_IgnoresEmpty(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	m.RecordSuggestions(ctx, "phonetic", 3)
	m.RecordSuggestions(ctx, "llm", 0)

	got := sumByAttr(t, collect(t, reader), "scribe.suggestions", "source")
	if got["phonetic"] != 3 {
		t.Errorf("phonetic = %d, want 3", got["phonetic"])
	}
	if _, ok := got["llm"]; ok {
		t.Error("zero suggestions should not create a data point")
	}
}

func TestProviderErrors(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	m.RecordProviderError(ctx, "whisper", "stt")
	m.RecordProviderError(ctx, "whisper", "stt")
	m.RecordProviderError(ctx, "openai", "llm")

	got := sumByAttr(t, collect(t, reader), "scribe.provider.errors", "provider")
	if got["whisper"] != 2 || got["openai"] != 1 {
		t.Errorf("provider errors = %v", got)
	}
}

func TestActiveRecognitions(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	m.ActiveRecognitions.Add(ctx, 1)
	m.ActiveRecognitions.Add(ctx, 1)
	m.ActiveRecognitions.Add(ctx, -1)

	got := sumByAttr(t, collect(t, reader), "scribe.active_recognitions", "")
	if got[""] != 1 {
		t.Errorf("active recognitions = %d, want 1", got[""])
	}
}

func TestRenderDuration_Buckets(t *testing.T) {
	m, reader := newTestMetrics(t)
	m.RenderDuration.Record(context.Background(), 0.0003)

	met := findMetric(collect(t, reader), "scribe.render.duration")
	if met == nil {
		t.Fatal("metric not found")
	}
	hist, ok := met.Data.(metricdata.Histogram[float64])
	if !ok || len(hist.DataPoints) != 1 {
		t.Fatalf("unexpected data %T", met.Data)
	}
	if got := hist.DataPoints[0].Bounds; len(got) != len(renderBuckets) {
		t.Errorf("bounds = %v, want %v", got, renderBuckets)
	}
}

func TestDefaultMetrics_ReturnsSameInstance(t *testing.T) {
	a := DefaultMetrics()
	b := DefaultMetrics()
	if a == nil || a != b {
		t.Fatal("DefaultMetrics should return the same non-nil instance")
	}
}
