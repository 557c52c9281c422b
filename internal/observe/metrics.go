// Package observe provides application-wide observability primitives for the
// toolbox server: OpenTelemetry metrics, tracing helpers, trace-aware logging
// and HTTP middleware that ties them together.
//
// Metrics are recorded through the OpenTelemetry Metrics API. [InitProvider]
// installs a Prometheus exporter so the instruments can be scraped from
// /metrics. A package-level [Metrics] instance ([DefaultMetrics]) is provided
// for convenience; tests should use [NewMetrics] with their own
// [metric.MeterProvider] to avoid cross-test pollution.
package observe

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope name used for all toolbox metrics.
const meterName = "github.com/MrWong99/toolbox"

// Status values used with the "status" attribute.
const (
	StatusOK    = "ok"
	StatusError = "error"
)

// Metrics holds all OpenTelemetry metric instruments for the application.
// All fields are safe for concurrent use.
type Metrics struct {
	// ToolExecutionDuration tracks tool execution latency. Attributes:
	//   attribute.String("tool", ...)
	ToolExecutionDuration metric.Float64Histogram

	// ToolCalls counts tool invocations. Attributes:
	//   attribute.String("tool", ...), attribute.String("status", ...)
	ToolCalls metric.Int64Counter

	// UpstreamDuration tracks third-party API latency. Attributes:
	//   attribute.String("upstream", ...), attribute.String("endpoint", ...)
	UpstreamDuration metric.Float64Histogram

	// UpstreamRequests counts third-party API calls. Attributes:
	//   attribute.String("upstream", ...), attribute.String("endpoint", ...),
	//   attribute.String("status", ...)
	UpstreamRequests metric.Int64Counter

	// UpstreamErrors counts failed third-party API calls. Attributes:
	//   attribute.String("upstream", ...), attribute.String("kind", ...)
	UpstreamErrors metric.Int64Counter

	// AddressVerdicts counts address verdicts by kind. Attributes:
	//   attribute.String("verdict", ...)
	AddressVerdicts metric.Int64Counter

	// HTTPRequestDuration tracks HTTP request processing time. Attributes:
	//   attribute.String("method", ...), attribute.String("path", ...)
	HTTPRequestDuration metric.Float64Histogram
}

// latencyBuckets defines histogram bucket boundaries (in seconds) sized for
// calls to public HTTP APIs.
var latencyBuckets = []float64{
	0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30,
}

// NewMetrics creates a fully initialised [Metrics] struct using the given
// [metric.MeterProvider]. Returns an error if any instrument creation fails.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	if met.ToolExecutionDuration, err = m.Float64Histogram("toolbox.tool_execution.duration",
		metric.WithDescription("Latency of tool execution."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.UpstreamDuration, err = m.Float64Histogram("toolbox.upstream.duration",
		metric.WithDescription("Latency of third-party API calls."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.HTTPRequestDuration, err = m.Float64Histogram("toolbox.http.request.duration",
		metric.WithDescription("HTTP request latency by method and path."),
		metric.WithUnit("s"),
	); err != nil {
		return nil, err
	}

	if met.ToolCalls, err = m.Int64Counter("toolbox.tool.calls",
		metric.WithDescription("Total tool invocations by tool name and status."),
	); err != nil {
		return nil, err
	}
	if met.UpstreamRequests, err = m.Int64Counter("toolbox.upstream.requests",
		metric.WithDescription("Total third-party API requests by upstream, endpoint and status."),
	); err != nil {
		return nil, err
	}
	if met.UpstreamErrors, err = m.Int64Counter("toolbox.upstream.errors",
		metric.WithDescription("Total third-party API errors by upstream and kind."),
	); err != nil {
		return nil, err
	}
	if met.AddressVerdicts, err = m.Int64Counter("toolbox.address.verdicts",
		metric.WithDescription("Total address verdicts by kind."),
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

// RecordToolCall records one tool invocation and its latency in seconds.
func (m *Metrics) RecordToolCall(ctx context.Context, tool, status string, seconds float64) {
	m.ToolCalls.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("tool", tool),
			attribute.String("status", status),
		),
	)
	m.ToolExecutionDuration.Record(ctx, seconds,
		metric.WithAttributes(attribute.String("tool", tool)),
	)
}

// RecordUpstreamRequest records one third-party API call and its latency in
// seconds.
func (m *Metrics) RecordUpstreamRequest(ctx context.Context, upstream, endpoint, status string, seconds float64) {
	m.UpstreamRequests.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("upstream", upstream),
			attribute.String("endpoint", endpoint),
			attribute.String("status", status),
		),
	)
	m.UpstreamDuration.Record(ctx, seconds,
		metric.WithAttributes(
			attribute.String("upstream", upstream),
			attribute.String("endpoint", endpoint),
		),
	)
}

// RecordUpstreamError records a failed third-party API call. kind is a short
// classifier such as "client", "server", "transport" or "breaker".
func (m *Metrics) RecordUpstreamError(ctx context.Context, upstream, kind string) {
	m.UpstreamErrors.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("upstream", upstream),
			attribute.String("kind", kind),
		),
	)
}

// RecordVerdict records one address verdict.
func (m *Metrics) RecordVerdict(ctx context.Context, verdict string) {
	m.AddressVerdicts.Add(ctx, 1,
		metric.WithAttributes(attribute.String("verdict", verdict)),
	)
}
