// Package services holds the application layer between the HTTP handlers and
// the chart pipeline.
//
// ChartService resolves a page reference, takes the current snapshot from a
// SnapshotSource, assembles the chart and renders it as JSON, an image or an
// HTML page. Rendered images are cached under a key that includes the snapshot
// digest. ExportService writes the same snapshot as a workbook or CSV, and
// HealthService backs the health, readiness and version endpoints.
//
// Services take their dependencies in the constructor and log through the
// injected *slog.Logger:
//
//	loader := snapshot.NewLoader(cfg, logger)
//	charts := services.NewChartService(loader, assembler, renderer, logger,
//	    services.WithCache(chartcache.NewMemoryStore(64), time.Hour))
package services
