package infrastructure

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// BusinessMetrics are the instruments shared by the HTTP layer and the chart
// service. Every Record helper accepts a nil *BusinessMetrics.
type BusinessMetrics struct {
	HTTPRequestsTotal   metric.Int64Counter
	HTTPRequestDuration metric.Float64Histogram
	HTTPActiveRequests  metric.Int64UpDownCounter

	ChartRendersTotal   metric.Int64Counter
	ChartRenderDuration metric.Float64Histogram
	ChartCacheHits      metric.Int64Counter
	ChartCacheMisses    metric.Int64Counter
	FitPointsTrimmed    metric.Int64Counter

	SnapshotLoadsTotal metric.Int64Counter
}

func CreateBusinessMetrics(meter metric.Meter) (*BusinessMetrics, error) {
	var m BusinessMetrics

	counters := map[string]struct {
		dst  *metric.Int64Counter
		desc string
	}{
		"http_requests_total":      {&m.HTTPRequestsTotal, "Total number of HTTP requests"},
		"chart_renders_total":      {&m.ChartRendersTotal, "Chart renders by page, format and status"},
		"chart_cache_hits_total":   {&m.ChartCacheHits, "Rendered charts served from cache"},
		"chart_cache_misses_total": {&m.ChartCacheMisses, "Rendered charts not found in cache"},
		"fit_points_trimmed_total": {&m.FitPointsTrimmed, "Points excluded from overlay fits as outliers"},
		"snapshot_loads_total":     {&m.SnapshotLoadsTotal, "Snapshot loads by result"},
	}
	for name, c := range counters {
		counter, err := meter.Int64Counter(name, metric.WithDescription(c.desc))
		if err != nil {
			return nil, fmt.Errorf("create %s: %w", name, err)
		}
		*c.dst = counter
	}

	var err error
	if m.HTTPRequestDuration, err = meter.Float64Histogram("http_request_duration_seconds",
		metric.WithDescription("HTTP request duration in seconds"), metric.WithUnit("s")); err != nil {
		return nil, fmt.Errorf("create http_request_duration_seconds: %w", err)
	}
	if m.ChartRenderDuration, err = meter.Float64Histogram("chart_render_duration_seconds",
		metric.WithDescription("Chart assembly and render duration in seconds"), metric.WithUnit("s")); err != nil {
		return nil, fmt.Errorf("create chart_render_duration_seconds: %w", err)
	}
	if m.HTTPActiveRequests, err = meter.Int64UpDownCounter("http_active_requests",
		metric.WithDescription("Number of active HTTP requests")); err != nil {
		return nil, fmt.Errorf("create http_active_requests: %w", err)
	}
	return &m, nil
}

func outcome(err error) string {
	if err != nil {
		return "failure"
	}
	return "success"
}

// RecordChartRender counts one render and times it. A failed render also
// marks the active span.
func RecordChartRender(ctx context.Context, metrics *BusinessMetrics, page, format string, duration time.Duration, err error) {
	RecordError(ctx, err)
	if metrics == nil {
		return
	}
	set := metric.WithAttributes(
		attribute.String("page", page),
		attribute.String("format", format),
		attribute.String("status", outcome(err)),
	)
	metrics.ChartRendersTotal.Add(ctx, 1, set)
	metrics.ChartRenderDuration.Record(ctx, duration.Seconds(), set)
}

func RecordSnapshotLoad(ctx context.Context, metrics *BusinessMetrics, err error) {
	if metrics != nil {
		metrics.SnapshotLoadsTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("result", outcome(err))))
	}
}

// RecordFitTrim counts the points a fit excluded. Zero is not recorded.
func RecordFitTrim(ctx context.Context, metrics *BusinessMetrics, variant string, dropped int) {
	if metrics == nil || dropped == 0 {
		return
	}
	metrics.FitPointsTrimmed.Add(ctx, int64(dropped), metric.WithAttributes(attribute.String("variant", variant)))
}

func RecordCacheLookup(ctx context.Context, metrics *BusinessMetrics, hit bool) {
	switch {
	case metrics == nil:
	case hit:
		metrics.ChartCacheHits.Add(ctx, 1)
	default:
		metrics.ChartCacheMisses.Add(ctx, 1)
	}
}
