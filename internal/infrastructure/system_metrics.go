package infrastructure

import (
	"context"
	"fmt"
	"runtime"
	"sync"
	"time"

	"go.opentelemetry.io/otel/metric"
)

// RuntimeMetrics exports Go runtime gauges for the process.
type RuntimeMetrics struct {
	goroutines    metric.Int64Gauge
	heapAlloc     metric.Int64Gauge
	heapSys       metric.Int64Gauge
	gcCount       metric.Int64Gauge
	gcPause       metric.Float64Histogram
	processUptime metric.Float64Gauge
}

// NewRuntimeMetrics creates the runtime instruments on meter.
func NewRuntimeMetrics(meter metric.Meter) (*RuntimeMetrics, error) {
	var (
		m   RuntimeMetrics
		err error
	)

	gauges := []struct {
		dst  *metric.Int64Gauge
		name string
		desc string
		unit string
	}{
		{&m.goroutines, "runtime_goroutines", "Number of live goroutines", ""},
		{&m.heapAlloc, "runtime_heap_alloc_bytes", "Bytes of allocated heap objects", "By"},
		{&m.heapSys, "runtime_heap_sys_bytes", "Heap memory obtained from the OS", "By"},
		{&m.gcCount, "runtime_gc_cycles", "Completed GC cycles", ""},
	}
	for _, g := range gauges {
		opts := []metric.Int64GaugeOption{metric.WithDescription(g.desc)}
		if g.unit != "" {
			opts = append(opts, metric.WithUnit(g.unit))
		}
		if *g.dst, err = meter.Int64Gauge(g.name, opts...); err != nil {
			return nil, fmt.Errorf("failed to create %s: %w", g.name, err)
		}
	}

	if m.gcPause, err = meter.Float64Histogram(
		"runtime_gc_pause_seconds",
		metric.WithDescription("Duration of the most recent GC pause"),
		metric.WithUnit("s"),
	); err != nil {
		return nil, err
	}

	if m.processUptime, err = meter.Float64Gauge(
		"process_uptime_seconds",
		metric.WithDescription("Seconds since the process started"),
		metric.WithUnit("s"),
	); err != nil {
		return nil, err
	}

	return &m, nil
}

// RuntimeStats is one sample of the Go runtime.
type RuntimeStats struct {
	Goroutines  int64
	HeapAlloc   int64
	HeapSys     int64
	GCCount     uint32
	LastGCPause time.Duration
	CPUCount    int
	Uptime      time.Duration
	Timestamp   time.Time
}

// Collect samples the runtime and records the gauges.
func (m *RuntimeMetrics) Collect(ctx context.Context, startTime time.Time) *RuntimeStats {
	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)

	stats := &RuntimeStats{
		Goroutines:  int64(runtime.NumGoroutine()),
		HeapAlloc:   int64(mem.HeapAlloc),
		HeapSys:     int64(mem.HeapSys),
		GCCount:     mem.NumGC,
		LastGCPause: time.Duration(mem.PauseNs[(mem.NumGC+255)%256]),
		CPUCount:    runtime.NumCPU(),
		Uptime:      time.Since(startTime),
		Timestamp:   time.Now(),
	}

	m.goroutines.Record(ctx, stats.Goroutines)
	m.heapAlloc.Record(ctx, stats.HeapAlloc)
	m.heapSys.Record(ctx, stats.HeapSys)
	m.gcCount.Record(ctx, int64(stats.GCCount))
	m.processUptime.Record(ctx, stats.Uptime.Seconds())
	if stats.LastGCPause > 0 {
		m.gcPause.Record(ctx, stats.LastGCPause.Seconds())
	}

	return stats
}

// Map returns the stats in the shape served by the liveness endpoint.
func (s *RuntimeStats) Map() map[string]interface{} {
	return map[string]interface{}{
		"goroutines":       s.Goroutines,
		"heap_alloc_mb":    s.HeapAlloc / 1024 / 1024,
		"heap_sys_mb":      s.HeapSys / 1024 / 1024,
		"gc_count":         s.GCCount,
		"last_gc_pause_ms": s.LastGCPause.Milliseconds(),
		"cpu_count":        s.CPUCount,
		"uptime":           s.Uptime.Seconds(),
		"go_version":       runtime.Version(),
	}
}

// RuntimeCollector samples RuntimeMetrics on an interval.
type RuntimeCollector struct {
	metrics   *RuntimeMetrics
	startTime time.Time
	interval  time.Duration
	stopCh    chan struct{}
	stopOnce  sync.Once
}

// NewRuntimeCollector creates a collector recording on meter every interval.
func NewRuntimeCollector(meter metric.Meter, interval time.Duration) (*RuntimeCollector, error) {
	metrics, err := NewRuntimeMetrics(meter)
	if err != nil {
		return nil, fmt.Errorf("failed to create runtime metrics: %w", err)
	}

	return &RuntimeCollector{
		metrics:   metrics,
		startTime: time.Now(),
		interval:  interval,
		stopCh:    make(chan struct{}),
	}, nil
}

// Start collects until Stop is called or ctx is done. It blocks.
func (c *RuntimeCollector) Start(ctx context.Context) {
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	c.metrics.Collect(ctx, c.startTime)

	for {
		select {
		case <-ticker.C:
			c.metrics.Collect(ctx, c.startTime)
		case <-c.stopCh:
			return
		case <-ctx.Done():
			return
		}
	}
}

// Stop ends collection. It is safe to call more than once.
func (c *RuntimeCollector) Stop() {
	c.stopOnce.Do(func() { close(c.stopCh) })
}

// Stats samples the runtime now.
func (c *RuntimeCollector) Stats(ctx context.Context) *RuntimeStats {
	return c.metrics.Collect(ctx, c.startTime)
}

// StartTime is when the collector was created.
func (c *RuntimeCollector) StartTime() time.Time {
	return c.startTime
}
