package services

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"time"

	"markscope/internal/chartcache"
	"markscope/internal/infrastructure"
)

// HealthService provides health check functionality
type HealthService struct {
	version   string
	buildTime string
	buildID   string
	source    SnapshotSource
	cache     chartcache.Store
	runtime   *infrastructure.RuntimeCollector
	startTime time.Time
	logger    *slog.Logger
}

// HealthStatus represents the health status response
type HealthStatus struct {
	Status    string                 `json:"status"`
	Timestamp time.Time              `json:"timestamp"`
	Version   string                 `json:"version"`
	Runtime   map[string]interface{} `json:"runtime,omitempty"`
	Services  map[string]interface{} `json:"services,omitempty"`
}

// ServiceHealth represents individual service health
type ServiceHealth struct {
	Status  string                 `json:"status"`
	Message string                 `json:"message,omitempty"`
	Stats   map[string]interface{} `json:"stats,omitempty"`
}

// BuildInfo identifies the running binary.
type BuildInfo struct {
	Version   string
	BuildTime string
	BuildID   string
}

// HealthOption configures a HealthService.
type HealthOption func(*HealthService)

// WithCacheCheck includes the chart cache in readiness.
func WithCacheCheck(store chartcache.Store) HealthOption {
	return func(hs *HealthService) { hs.cache = store }
}

// WithRuntimeStats reports runtime statistics on liveness.
func WithRuntimeStats(c *infrastructure.RuntimeCollector) HealthOption {
	return func(hs *HealthService) { hs.runtime = c }
}

// NewHealthService creates a new health service
func NewHealthService(build BuildInfo, source SnapshotSource, logger *slog.Logger, opts ...HealthOption) *HealthService {
	if logger == nil {
		logger = slog.Default()
	}

	hs := &HealthService{
		version:   build.Version,
		buildTime: build.BuildTime,
		buildID:   build.BuildID,
		source:    source,
		startTime: time.Now(),
		logger:    logger.With(slog.String("service", "health")),
	}
	for _, opt := range opts {
		opt(hs)
	}
	if hs.runtime != nil {
		hs.startTime = hs.runtime.StartTime()
	}

	hs.logger.Info("HealthService initialized",
		slog.String("version", hs.version),
		slog.String("build_time", hs.buildTime),
		slog.String("build_id", hs.buildID))
	return hs
}

// HealthCheck returns overall health status
func (hs *HealthService) HealthCheck(ctx context.Context) HealthStatus {
	return HealthStatus{
		Status:    "ok",
		Timestamp: time.Now(),
		Version:   hs.version,
	}
}

// ReadinessCheck reports ready once the snapshot loads and, when configured,
// the chart cache answers.
func (hs *HealthService) ReadinessCheck(ctx context.Context) HealthStatus {
	status := HealthStatus{
		Status:    "ready",
		Timestamp: time.Now(),
		Version:   hs.version,
		Services:  make(map[string]interface{}),
	}

	status.Services["data"] = hs.checkDataHealth(ctx)
	if hs.cache != nil {
		status.Services["cache"] = hs.checkCacheHealth(ctx)
	}

	for _, service := range status.Services {
		if sh, ok := service.(ServiceHealth); ok && sh.Status != "ready" {
			status.Status = "not_ready"
			break
		}
	}

	if status.Status != "ready" {
		hs.logger.WarnContext(ctx, "ReadinessCheck: not ready", slog.Any("services", status.Services))
	}
	return status
}

// LivenessCheck returns liveness status
func (hs *HealthService) LivenessCheck(ctx context.Context) HealthStatus {
	status := HealthStatus{
		Status:    "alive",
		Timestamp: time.Now(),
		Version:   hs.version,
	}

	if hs.runtime != nil {
		status.Runtime = hs.runtime.Stats(ctx).Map()
	} else {
		status.Runtime = map[string]interface{}{
			"uptime":     time.Since(hs.startTime).Seconds(),
			"go_version": runtime.Version(),
			"goroutines": runtime.NumGoroutine(),
		}
	}
	return status
}

// Version returns version information
func (hs *HealthService) Version() map[string]interface{} {
	result := map[string]interface{}{
		"version":      hs.version,
		"go_version":   runtime.Version(),
		"os":           runtime.GOOS,
		"arch":         runtime.GOARCH,
		"uptime":       time.Since(hs.startTime).Seconds(),
		"start_time":   hs.startTime.Format(time.RFC3339),
		"current_time": time.Now().Format(time.RFC3339),
	}

	if hs.buildTime != "" {
		result["build_time"] = hs.buildTime
	}
	if hs.buildID != "" {
		result["build_id"] = hs.buildID
	}
	if snap, err := hs.source.Current(); err == nil {
		result["snapshot"] = infoOf(snap)
	}

	return result
}

// checkDataHealth loads the snapshot if it is not loaded yet
func (hs *HealthService) checkDataHealth(ctx context.Context) ServiceHealth {
	snap, err := hs.source.Get(ctx)
	if err != nil {
		return ServiceHealth{
			Status:  "not_ready",
			Message: fmt.Sprintf("Snapshot unavailable: %v", err),
		}
	}

	return ServiceHealth{
		Status:  "ready",
		Message: fmt.Sprintf("%d assignments loaded", len(snap.Assignments)),
	}
}

// checkCacheHealth pings the chart cache
func (hs *HealthService) checkCacheHealth(ctx context.Context) ServiceHealth {
	if err := hs.cache.Ping(ctx); err != nil {
		return ServiceHealth{
			Status:  "not_ready",
			Message: fmt.Sprintf("Cache unreachable: %v", err),
		}
	}
	health := ServiceHealth{Status: "ready"}
	if st, ok := hs.cache.(interface{ GetStats() map[string]interface{} }); ok {
		health.Stats = st.GetStats()
	}
	return health
}
