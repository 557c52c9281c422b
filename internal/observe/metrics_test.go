package observe

import (
	"context"
	"testing"

	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

// newTestMetrics returns a Metrics instance backed by a ManualReader for
// programmatic metric inspection.
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

// collect gathers all metric data from the reader.
func collect(t *testing.T, reader *sdkmetric.ManualReader) metricdata.ResourceMetrics {
	t.Helper()
	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("Collect: %v", err)
	}
	return rm
}

// findMetric searches for a metric by name across all scope metrics.
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

// sumFor returns the value of the counter data point whose attribute key
// equals value, and whether such a point exists.
func sumFor(t *testing.T, rm metricdata.ResourceMetrics, name, key, value string) (int64, bool) {
	t.Helper()
	met := findMetric(rm, name)
	if met == nil {
		t.Fatalf("metric %q not found", name)
	}
	sum, ok := met.Data.(metricdata.Sum[int64])
	if !ok {
		t.Fatalf("metric %q is not a sum", name)
	}
	for _, dp := range sum.DataPoints {
		if v, ok := dp.Attributes.Value(attribute.Key(key)); ok && v.AsString() == value {
			return dp.Value, true
		}
	}
	return 0, false
}

func TestNewMetrics_CreatesWithoutError(t *testing.T) {
	m, _ := newTestMetrics(t)
	if m == nil {
		t.Fatal("NewMetrics returned nil")
	}
}

func TestRecordToolCall(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	m.RecordToolCall(ctx, "validate_address", StatusOK, 0.2)
	m.RecordToolCall(ctx, "validate_address", StatusOK, 0.3)
	m.RecordToolCall(ctx, "validate_address", StatusError, 0.1)

	rm := collect(t, reader)

	if got, ok := sumFor(t, rm, "toolbox.tool.calls", "status", StatusOK); !ok || got != 2 {
		t.Errorf("ok calls = %d (found %v), want 2", got, ok)
	}
	if got, ok := sumFor(t, rm, "toolbox.tool.calls", "status", StatusError); !ok || got != 1 {
		t.Errorf("error calls = %d (found %v), want 1", got, ok)
	}

	met := findMetric(rm, "toolbox.tool_execution.duration")
	if met == nil {
		t.Fatal("duration metric not found")
	}
	hist, ok := met.Data.(metricdata.Histogram[float64])
	if !ok {
		t.Fatal("duration metric is not a histogram")
	}
	if len(hist.DataPoints) == 0 {
		t.Fatal("no duration data points")
	}
	if got := hist.DataPoints[0].Count; got != 3 {
		t.Errorf("sample count = %d, want 3", got)
	}
}

func TestRecordUpstreamRequest(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	m.RecordUpstreamRequest(ctx, "usps", "token", StatusOK, 0.05)
	m.RecordUpstreamRequest(ctx, "usps", "address", StatusOK, 0.4)

	rm := collect(t, reader)
	if got, ok := sumFor(t, rm, "toolbox.upstream.requests", "endpoint", "address"); !ok || got != 1 {
		t.Errorf("address requests = %d (found %v), want 1", got, ok)
	}

	met := findMetric(rm, "toolbox.upstream.duration")
	if met == nil {
		t.Fatal("upstream duration metric not found")
	}
	hist, ok := met.Data.(metricdata.Histogram[float64])
	if !ok {
		t.Fatal("upstream duration is not a histogram")
	}
	if len(hist.DataPoints) != 2 {
		t.Errorf("data points = %d, want 2 (one per endpoint)", len(hist.DataPoints))
	}
}

func TestRecordUpstreamError(t *testing.T) {
	m, reader := newTestMetrics(t)
	m.RecordUpstreamError(context.Background(), "chucknorris", "server")

	rm := collect(t, reader)
	if got, ok := sumFor(t, rm, "toolbox.upstream.errors", "kind", "server"); !ok || got != 1 {
		t.Errorf("server errors = %d (found %v), want 1", got, ok)
	}
}

func TestRecordVerdict(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	m.RecordVerdict(ctx, "valid")
	m.RecordVerdict(ctx, "valid")
	m.RecordVerdict(ctx, "corrected")

	rm := collect(t, reader)
	if got, ok := sumFor(t, rm, "toolbox.address.verdicts", "verdict", "valid"); !ok || got != 2 {
		t.Errorf("valid verdicts = %d (found %v), want 2", got, ok)
	}
	if got, ok := sumFor(t, rm, "toolbox.address.verdicts", "verdict", "corrected"); !ok || got != 1 {
		t.Errorf("corrected verdicts = %d (found %v), want 1", got, ok)
	}
}

func TestDefaultMetrics_ReturnsSameInstance(t *testing.T) {
	a := DefaultMetrics()
	b := DefaultMetrics()
	if a != b {
		t.Error("DefaultMetrics returned different pointers")
	}
}
